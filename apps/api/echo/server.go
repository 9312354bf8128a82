package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/ar"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/notification"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool
		Validate       *validator.Validate
		Translator     ut.Translator

		// Health reports the storage backend in use and whether it is degraded.
		Health func() Health

		UserSvc         user.Service
		BusinessSvc     business.Service
		CustomerSvc     customer.Service
		ProductSvc      product.Service
		NotificationSvc notification.Service
		JobSvc          job.Service
		ScheduleSvc     schedule.Service
		ARSvc           ar.Service
	}

	Health struct {
		Status   string `json:"status"`
		Backend  string `json:"backend"`
		Degraded bool   `json:"degraded"`
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		auth     *authenticator
		metrics  *httpMetrics
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		auth:     newAuthenticator(opts.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.metrics = newHTTPMetrics(opts.Conf.AppName, s.health)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware())
	if conf.FrontendBaseURL != "" {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{conf.FrontendBaseURL},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	if conf.Server.RateLimit > 0 {
		s.app.Use(newRateLimiter(conf.Server.RateLimit, conf.Server.RateBurst).middleware())
	}
	if conf.Server.MaxUploadSize > 0 {
		s.app.Use(middleware.BodyLimit(bodyLimit(conf.Server.MaxUploadSize)))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/health", s.healthCheck)
	s.app.GET("/metrics", s.metrics.handler())

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.config)

	registerUserAPI(v1, jwt, s.auth, s.opts.UserSvc, s.opts.ScheduleSvc, s.opts.Validate)
	registerBusinessAPI(v1, jwt, s.opts.BusinessSvc, s.opts.UserSvc, s.opts.Validate)
	registerCustomerAPI(v1, jwt, s.opts.CustomerSvc, s.opts.UserSvc, s.opts.Validate)
	registerProductAPI(v1, jwt, s.opts.ProductSvc, s.opts.UserSvc, s.opts.Validate)
	registerNotificationAPI(v1, jwt, s.opts.NotificationSvc, s.opts.UserSvc, s.opts.Validate)
	registerJobAPI(v1, jwt, s.opts.JobSvc, s.opts.UserSvc, s.opts.Validate)
	registerARAPI(v1, jwt, s.opts.ARSvc, s.opts.UserSvc, s.opts.Validate)
}

func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) health() Health {
	if s.opts.Health == nil {
		return Health{Status: "ok"}
	}
	h := s.opts.Health()
	h.Status = "ok"
	if h.Degraded {
		h.Status = "degraded"
	}
	return h
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

func (s *server) healthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.health())
}
