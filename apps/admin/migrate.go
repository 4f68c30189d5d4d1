package main

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(cli.db, cli.logger, args[0], args[1:]...)
}
