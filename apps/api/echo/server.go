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

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/certificate"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/dashboard"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/reminder"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/settings"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/core/user"
	"github.com/trezcool/edugest/services/document"
	"github.com/trezcool/edugest/services/metrics"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Documents  *docsvc.Generator
		Metrics    *metricsvc.Metrics // optional

		UserSvc        user.ServiceInterface
		SchoolSvc      *school.Service
		SettingsSvc    *settings.Service
		ClassSvc       *class.Service
		StudentSvc     *student.Service
		EnrollmentSvc  *enrollment.Service
		PaymentSvc     *payment.Service
		CertificateSvc *certificate.Service
		ReminderSvc    *reminder.Service
		DashboardSvc   *dashboard.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
	}
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	maintenance := maintenanceMiddleware(s.deps.SettingsSvc)
	tenant := []echo.MiddlewareFunc{jwt, tenantMiddleware(s.deps.UserSvc, s.deps.SchoolSvc), maintenance}
	scoped := func(prefix string) *echo.Group { return v1.Group(prefix, tenant...) }

	registerUserAPI(v1, jwt, maintenance, s.deps)
	registerSchoolAPI(v1, jwt, maintenance, s.deps)
	registerStudentAPI(scoped("/students"), s.deps)
	registerClassAPI(scoped("/classes"), s.deps)
	registerEnrollmentAPI(scoped("/enrollments"), s.deps)
	registerPaymentAPI(scoped("/payments"), s.deps)
	registerCertificateAPI(scoped("/certificates"), s.deps)
	registerReminderAPI(scoped("/reminders"), s.deps)
	registerReportAPI(scoped("/reports"), scoped("/dashboard"), s.deps)
}

// Start blocks until the server stops; failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
