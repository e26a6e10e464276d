package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/course"
	"github.com/Cherif0104/EcosystIA-sub000/core/dashboard"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	"github.com/Cherif0104/EcosystIA-sub000/services/tracing"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Tracing    *tracing.Provider // optional

		UserSvc      user.Service
		ProjectSvc   project.Service
		CourseSvc    course.Service
		TimeLogSvc   timelog.Service
		MeetingSvc   meeting.Service
		DashboardSvc dashboard.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Conf, "Conf"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.Validate, "Validate"),
		vala.IsNotNil(opts.Translator, "Translator"),
		vala.IsNotNil(opts.UserSvc, "UserSvc"),
		vala.IsNotNil(opts.ProjectSvc, "ProjectSvc"),
		vala.IsNotNil(opts.CourseSvc, "CourseSvc"),
		vala.IsNotNil(opts.TimeLogSvc, "TimeLogSvc"),
		vala.IsNotNil(opts.MeetingSvc, "MeetingSvc"),
		vala.IsNotNil(opts.DashboardSvc, "DashboardSvc"),
	).CheckAndPanic()

	s := &server{
		opts:     opts,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.opts.Tracing != nil {
		s.app.Use(s.opts.Tracing.Middleware())
	}
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	auth := newAuthenticator(conf, s.opts.UserSvc)
	jwt := middleware.JWTWithConfig(auth.jwtConfig)
	authed := []echo.MiddlewareFunc{jwt, auth.userMiddleware}

	registerUserAPI(v1, auth, authed, s.opts.UserSvc, s.opts.Validate)
	registerProjectAPI(v1, authed, s.opts.ProjectSvc, s.opts.UserSvc, s.opts.Validate)
	registerCourseAPI(v1, authed, s.opts.CourseSvc, s.opts.Validate)
	registerTimeLogAPI(v1, authed, s.opts.TimeLogSvc, s.opts.UserSvc, s.opts.Validate)
	registerMeetingAPI(v1, authed, s.opts.MeetingSvc, s.opts.Validate)
	registerDashboardAPI(v1, authed, s.opts.DashboardSvc)
}

// Start listens on the configured address; failures are sent to Errors().
func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Stop(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
