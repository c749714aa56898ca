// Package di builds the dependency graph shared by the API server and the worker.
package di

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/edugest/apps/api/echo"
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
	docsvc "github.com/trezcool/edugest/services/document"
	emailsvc "github.com/trezcool/edugest/services/email"
	logsvc "github.com/trezcool/edugest/services/logger"
	metricsvc "github.com/trezcool/edugest/services/metrics"
	notifiersvc "github.com/trezcool/edugest/services/notifier"
	"github.com/trezcool/edugest/storage/database"
	sqlxrepos "github.com/trezcool/edugest/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// repositories exposes the PostgreSQL repositories under every interface the services consume.
type repositories struct {
	dig.Out

	Users        user.Repository
	Schools      school.Repository
	Settings     settings.Repository
	Classes      class.Repository
	Students     student.Repository
	Enrollments  enrollment.Repository
	Payments     payment.Repository
	Certificates certificate.Repository
	Reminders    reminder.Repository

	Counter core.Counter
	Tx      core.TxRunner

	StudentSchools    student.SchoolStore
	ClassRoster       class.Roster
	ClassEnrollments  class.EnrollmentRoster
	PaymentStudents   payment.StudentStore
	PaymentClasses    payment.ClassStore
	CertificateRoster certificate.StudentStore
	ReminderStudents  reminder.StudentStore
	DispatcherSchools reminder.SchoolStore
	DispatcherClasses reminder.ClassStore
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Documents  *docsvc.Generator
	Metrics    *metricsvc.Metrics

	Users        *user.Service
	Schools      *school.Service
	Settings     *settings.Service
	Classes      *class.Service
	Students     *student.Service
	Enrollments  *enrollment.Service
	Payments     *payment.Service
	Certificates *certificate.Service
	Reminders    *reminder.Service
	Dashboard    *dashboard.Service
}

// newLogger returns the application logger, its lines prefixed with the app name.
func newLogger(app string) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		stdLogger := log.New(os.Stdout, app+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
		logger := logsvc.NewRollbarLogger(stdLogger, conf)
		logger.Enable(!conf.Debug)
		return logger
	}
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepositories(db *sqlx.DB) repositories {
	students := sqlxrepos.NewStudentRepository(db)
	schools := sqlxrepos.NewSchoolRepository(db)
	classes := sqlxrepos.NewClassRepository(db)
	enrollments := sqlxrepos.NewEnrollmentRepository(db)
	return repositories{
		Users:        sqlxrepos.NewUserRepository(db),
		Schools:      schools,
		Settings:     sqlxrepos.NewSettingsRepository(db),
		Classes:      classes,
		Students:     students,
		Enrollments:  enrollments,
		Payments:     sqlxrepos.NewPaymentRepository(db),
		Certificates: sqlxrepos.NewCertificateRepository(db),
		Reminders:    sqlxrepos.NewReminderRepository(db),

		Counter: sqlxrepos.NewCounter(db),
		Tx:      database.NewTxRunner(db),

		StudentSchools:    schools,
		ClassRoster:       students,
		ClassEnrollments:  enrollments,
		PaymentStudents:   students,
		PaymentClasses:    classes,
		CertificateRoster: students,
		ReminderStudents:  students,
		DispatcherSchools: schools,
		DispatcherClasses: classes,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newPaymentService(
	repo payment.Repository,
	students payment.StudentStore,
	classes payment.ClassStore,
	tx core.TxRunner,
	conf *core.Config,
	m *metricsvc.Metrics,
) *payment.Service {
	return payment.NewService(repo, students, classes, tx, conf, m)
}

func newEnrollmentService(repo enrollment.Repository, students *student.Service, classes *class.Service, payments *payment.Service, tx core.TxRunner) *enrollment.Service {
	return enrollment.NewService(repo, students, classes, payments, tx)
}

func newSchoolService(repo school.Repository, users *user.Service, defaults *settings.Service, tx core.TxRunner, conf *core.Config) *school.Service {
	return school.NewService(repo, users, defaults, tx, conf)
}

func newDashboardService(students *student.Service, classes *class.Service, payments *payment.Service, enrollments *enrollment.Service) *dashboard.Service {
	return dashboard.NewService(students, classes, payments, enrollments)
}

func newNotifier(mailSvc core.EmailService, logger core.Logger) reminder.Notifier {
	return notifiersvc.NewDefault(mailSvc, logger)
}

func newDispatcher(
	svc *reminder.Service,
	payments *payment.Service,
	schools reminder.SchoolStore,
	classes reminder.ClassStore,
	notifier reminder.Notifier,
	m *metricsvc.Metrics,
	conf *core.Config,
	logger core.Logger,
) *reminder.Dispatcher {
	return reminder.NewDispatcher(svc, payments, schools, classes, notifier, m, conf, logger)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		Documents:      p.Documents,
		Metrics:        p.Metrics,
		UserSvc:        p.Users,
		SchoolSvc:      p.Schools,
		SettingsSvc:    p.Settings,
		ClassSvc:       p.Classes,
		StudentSvc:     p.Students,
		EnrollmentSvc:  p.Enrollments,
		PaymentSvc:     p.Payments,
		CertificateSvc: p.Certificates,
		ReminderSvc:    p.Reminders,
		DashboardSvc:   p.Dashboard,
	})
}

// New returns a new dependency injection dig.Container; app prefixes the log lines (API, WORKER).
func New(app string) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger(app)))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(metricsvc.New))
	must(c.Provide(docsvc.NewGenerator))
	must(c.Provide(newNotifier))

	must(c.Provide(user.NewService))
	must(c.Provide(settings.NewService))
	must(c.Provide(newSchoolService))
	must(c.Provide(class.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(newPaymentService))
	must(c.Provide(newEnrollmentService))
	must(c.Provide(certificate.NewService))
	must(c.Provide(reminder.NewService))
	must(c.Provide(newDashboardService))
	must(c.Provide(newDispatcher))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
