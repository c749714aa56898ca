package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

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
	"github.com/trezcool/edugest/storage/database/inmem"
)

// Services wires every service over a single in-memory database.
type Services struct {
	DB   *inmemdb.DB
	Conf *core.Config

	UserRepo     user.Repository
	SchoolRepo   school.Repository
	ClassRepo    class.Repository
	StudentRepo  student.Repository
	PaymentRepo  payment.Repository
	ReminderRepo reminder.Repository

	Users        *user.ServiceMock
	Settings     *settings.Service
	Schools      *school.Service
	Classes      *class.Service
	Students     *student.Service
	Payments     *payment.Service
	Enrollments  *enrollment.Service
	Certificates *certificate.Service
	Reminders    *reminder.Service
	Dashboard    *dashboard.Service
}

// NewServices returns fresh services; observer may be nil.
func NewServices(conf *core.Config, mailSvc core.EmailService, observer payment.Observer) *Services {
	db := inmemdb.Open()
	userRepo := inmemdb.NewUserRepository(db)
	schoolRepo := inmemdb.NewSchoolRepository(db)
	classRepo := inmemdb.NewClassRepository(db)
	studentRepo := inmemdb.NewStudentRepository(db)
	paymentRepo := inmemdb.NewPaymentRepository(db)
	reminderRepo := inmemdb.NewReminderRepository(db)

	svcs := &Services{
		DB:           db,
		Conf:         conf,
		UserRepo:     userRepo,
		SchoolRepo:   schoolRepo,
		ClassRepo:    classRepo,
		StudentRepo:  studentRepo,
		PaymentRepo:  paymentRepo,
		ReminderRepo: reminderRepo,
	}
	svcs.Users = user.NewServiceMock(userRepo, mailSvc, conf)
	svcs.Settings = settings.NewService(inmemdb.NewSettingsRepository(db), conf)
	svcs.Schools = school.NewService(schoolRepo, svcs.Users, svcs.Settings, db, conf)
	enrollmentRepo := inmemdb.NewEnrollmentRepository(db)
	svcs.Classes = class.NewService(classRepo, studentRepo, enrollmentRepo, db)
	svcs.Students = student.NewService(studentRepo, schoolRepo, db, db)
	svcs.Payments = payment.NewService(paymentRepo, studentRepo, classRepo, db, conf, observer)
	svcs.Enrollments = enrollment.NewService(enrollmentRepo, svcs.Students, svcs.Classes, svcs.Payments, db)
	svcs.Certificates = certificate.NewService(inmemdb.NewCertificateRepository(db), studentRepo, db, db)
	svcs.Reminders = reminder.NewService(reminderRepo, studentRepo)
	svcs.Dashboard = dashboard.NewService(svcs.Students, svcs.Classes, svcs.Payments, svcs.Enrollments)
	return svcs
}

var seq int64

// Seq returns a process-wide unique number, handy for unique codes and contacts.
func Seq() int64 {
	return atomic.AddInt64(&seq, 1)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []user.UserRole,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FullName:  name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	for _, r := range roles {
		if r.SchoolID != "" {
			usr.SchoolID = r.SchoolID
			break
		}
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateSchool creates an active school with an unlimited student cap unless maxStudents is given.
func CreateSchool(t *testing.T, svc *school.Service, name, code string, maxStudents ...int) school.School {
	t.Helper()
	ns := school.NewSchool{Name: name, Code: code}
	if len(maxStudents) > 0 {
		ns.MaxStudents = &maxStudents[0]
	}
	sch, err := svc.Create(context.Background(), ns, "")
	if err != nil {
		t.Fatalf("createSchool() failed: %v", err)
	}
	return sch
}

func CreateClass(t *testing.T, svc *class.Service, schoolID, name, academicYear string, capacity int, registration, monthly, annual int64) class.Class {
	t.Helper()
	c, err := svc.Create(context.Background(), schoolID, class.NewClass{
		Name:            name,
		AcademicYear:    academicYear,
		Capacity:        capacity,
		RegistrationFee: decimal.NewFromInt(registration),
		MonthlyFee:      decimal.NewFromInt(monthly),
		AnnualTuition:   decimal.NewFromInt(annual),
	})
	if err != nil {
		t.Fatalf("createClass() failed: %v", err)
	}
	return c
}

// CreateStudent creates an active student of className with unique contacts.
func CreateStudent(t *testing.T, svc *student.Service, schoolID, firstName, lastName, className, academicYear string) student.Student {
	t.Helper()
	n := Seq()
	stud, err := svc.Create(context.Background(), schoolID, student.NewStudent{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        fmt.Sprintf("student%d@test.cd", n),
		Phone:        fmt.Sprintf("+24381%07d", n),
		ParentName:   "Parent " + lastName,
		ParentPhone:  fmt.Sprintf("+24382%07d", n),
		ParentEmail:  fmt.Sprintf("parent%d@test.cd", n),
		ClassName:    className,
		AcademicYear: academicYear,
		Status:       student.StatusActive,
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return stud
}

func CreatePayment(t *testing.T, svc *payment.Service, schoolID, studentID, paymentType, period string, amount int64) payment.Payment {
	t.Helper()
	p, err := svc.Create(context.Background(), schoolID, payment.NewPayment{
		StudentID:     studentID,
		Amount:        decimal.NewFromInt(amount),
		PaymentMethod: payment.MethodCash,
		PaymentType:   paymentType,
		PaymentDate:   core.DateOf(core.NowFunc()),
		PaymentPeriod: period,
	}, "")
	if err != nil {
		t.Fatalf("createPayment() failed: %v", err)
	}
	return p
}

// FreezeTime makes core.NowFunc return now until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}
