package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/user"
)

// addUser validates nu the way the API does & creates the user.
func (cli *commandLine) addUser(nu user.NewUser) (user.User, error) {
	if err := nu.Validate(cli.validate); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Translate(cli.translator)))
			}
			return user.User{}, errors.Errorf("invalid user: %s", strings.Join(msgs, "; "))
		}
		return user.User{}, err
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	fmt.Fprintf(cli.out, "user %q created (id=%d, role=%s)\n", usr.Username, usr.ID, usr.Role)
	return usr, nil
}
