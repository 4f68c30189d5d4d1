package main

import "context"

// resetPassword sets a new password & logs the user out everywhere.
func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if usr, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	if err = cli.sessSvc.CloseAll(ctx, usr.ID); err != nil {
		return err
	}
	cli.logger.Info("password reset", map[string]interface{}{"user_id": usr.ID})
	return nil
}
