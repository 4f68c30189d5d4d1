package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/booking"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/payment"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/training"
	"github.com/trezcool/soka/core/user"
	"github.com/trezcool/soka/core/valuation"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Policy     access.Policy
		Shutdown   chan os.Signal // optional

		UserSvc      user.Service
		SessionSvc   session.Service
		TeamSvc      team.Service
		PlayerSvc    player.Service
		ValuationSvc valuation.Service
		TrainingSvc  training.Service
		BookingSvc   booking.Service
		PaymentSvc   payment.Service
		Receipts     payment.ReceiptRenderer
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts, "opts"),
	).CheckAndPanic()
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Conf, "Conf"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.Validate, "Validate"),
		vala.IsNotNil(opts.Translator, "Translator"),
		vala.IsNotNil(opts.UserSvc, "UserSvc"),
		vala.IsNotNil(opts.SessionSvc, "SessionSvc"),
		vala.IsNotNil(opts.TeamSvc, "TeamSvc"),
		vala.IsNotNil(opts.PlayerSvc, "PlayerSvc"),
		vala.IsNotNil(opts.ValuationSvc, "ValuationSvc"),
		vala.IsNotNil(opts.TrainingSvc, "TrainingSvc"),
		vala.IsNotNil(opts.BookingSvc, "BookingSvc"),
		vala.IsNotNil(opts.PaymentSvc, "PaymentSvc"),
		vala.IsNotNil(opts.Receipts, "Receipts"),
	).CheckAndPanic()
	if opts.Policy == nil {
		opts.Policy = access.DefaultPolicy
	}

	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Debug = conf.Debug
	s.app.HideBanner = conf.TestMode
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	} else {
		s.app.Logger.SetLevel(log.INFO)
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwtConf := newJWTConfig(conf)
	g := &guard{
		jwt:     middleware.JWTWithConfig(jwtConf),
		policy:  s.opts.Policy,
		usrSvc:  s.opts.UserSvc,
		sessSvc: s.opts.SessionSvc,
	}
	base := baseApi{
		validate: s.opts.Validate,
		listOpts: listing.NewOptions(conf.Listing),
	}

	registerAuthAPI(v1, g, &authApi{
		conf:    conf,
		jwtConf: jwtConf,
		logger:  s.opts.Logger,
		base:    base,
		usrSvc:  s.opts.UserSvc,
		sessSvc: s.opts.SessionSvc,
	})
	registerUserAPI(v1, g, &userApi{base: base, svc: s.opts.UserSvc, sessSvc: s.opts.SessionSvc})
	registerTeamAPI(v1, g, &teamApi{base: base, svc: s.opts.TeamSvc})
	registerPlayerAPI(v1, g, &playerApi{
		base:         base,
		svc:          s.opts.PlayerSvc,
		valuationSvc: s.opts.ValuationSvc,
		trainingSvc:  s.opts.TrainingSvc,
	})
	registerValuationAPI(v1, g, &valuationApi{base: base, svc: s.opts.ValuationSvc})
	registerTrainingAPI(v1, g, &trainingApi{base: base, svc: s.opts.TrainingSvc})
	registerBookingAPI(v1, g, &bookingApi{base: base, svc: s.opts.BookingSvc})
	registerPaymentAPI(v1, g, &paymentApi{base: base, svc: s.opts.PaymentSvc, receipts: s.opts.Receipts})
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	if s.opts.Shutdown != nil {
		s.opts.Shutdown <- syscall.SIGTERM
	}
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
