package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/soka/apps/api/echo"
	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/booking"
	"github.com/trezcool/soka/core/payment"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/training"
	"github.com/trezcool/soka/core/user"
	"github.com/trezcool/soka/core/valuation"
	emailsvc "github.com/trezcool/soka/services/email"
	logsvc "github.com/trezcool/soka/services/logger"
	receiptsvc "github.com/trezcool/soka/services/receipt"
	"github.com/trezcool/soka/storage/database"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
)

func main() {
	if err := run(); err != nil {
		log.Println("error:", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	defer logger.Flush()

	db, err := setUpDB(conf, logger)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.TestMode {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(db, usrRepo, mailSvc, conf)
	sessSvc := session.NewService(db, sqlxrepos.NewSessionRepository(db))
	teamSvc := team.NewService(db, sqlxrepos.NewTeamRepository(db), usrRepo)
	playerSvc := player.NewService(db, sqlxrepos.NewPlayerRepository(db), usrRepo, teamSvc)
	valuationSvc := valuation.NewService(db, sqlxrepos.NewValuationRepository(db), playerSvc)
	trainingSvc := training.NewService(db, sqlxrepos.NewTrainingRepository(db), teamSvc, playerSvc)
	bookingSvc := booking.NewService(db, sqlxrepos.NewBookingRepository(db), teamSvc)
	paymentSvc := payment.NewService(sqlxrepos.NewPaymentRepository(db), playerSvc, usrRepo, mailSvc, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		Policy:       access.DefaultPolicy,
		Shutdown:     shutdown,
		UserSvc:      usrSvc,
		SessionSvc:   sessSvc,
		TeamSvc:      teamSvc,
		PlayerSvc:    playerSvc,
		ValuationSvc: valuationSvc,
		TrainingSvc:  trainingSvc,
		BookingSvc:   bookingSvc,
		PaymentSvc:   paymentSvc,
		Receipts:     receiptsvc.NewPDFRenderer(),
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}

func setUpDB(conf *core.Config, logger core.Logger) (*sqlx.DB, error) {
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if conf.Database.MigrateOnStart {
		if err = database.Migrate(db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}
