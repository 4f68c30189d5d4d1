package main

import (
	"log"
	"os"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/user"
	emailsvc "github.com/trezcool/soka/services/email"
	logsvc "github.com/trezcool/soka/services/logger"
	"github.com/trezcool/soka/storage/database"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	// start CLI
	cli := commandLine{
		db:         db,
		logger:     logger,
		validate:   validate,
		translator: translator,
		usrSvc:     user.NewService(db, sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf, logger), conf),
		sessSvc:    session.NewService(db, sqlxrepos.NewSessionRepository(db)),
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Flush()
	if err != nil {
		if err != errHelp {
			log.Printf("error: %s", err)
		}
		os.Exit(1)
	}
}
