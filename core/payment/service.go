package payment

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/student"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("payment not found")
	ErrPeriodPaid    = core.NewConflictError("payment_period", "a monthly payment already exists for this student and period")
	ErrReceiptExists = core.NewConflictError("receipt_number", "a payment with this receipt number already exists")
)

type (
	Repository interface {
		// GenerateReceiptNumber returns a fresh receipt number for the school: <CODE>-<YYYY>-<NNNNNN>.
		GenerateReceiptNumber(ctx context.Context, schoolID, defaultPrefix string, exec ...core.DBExecutor) (string, error)
		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetPayment(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Payment, error)
		GetPaymentByReceipt(ctx context.Context, schoolID, receipt string, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Payment, error)
		DeletePayment(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
		SumStudentPayments(ctx context.Context, schoolID, studentID string, exec ...core.DBExecutor) (decimal.Decimal, error)
		PeriodPaid(ctx context.Context, schoolID, studentID, academicYear, period string, exec ...core.DBExecutor) (bool, error)
	}

	StudentStore interface {
		GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (student.Student, error)
		QueryStudents(ctx context.Context, schoolID string, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error)
		SetPaymentStatus(ctx context.Context, schoolID, id, status string, exec ...core.DBExecutor) error
	}

	ClassStore interface {
		GetClassByName(ctx context.Context, schoolID, name, academicYear string, exec ...core.DBExecutor) (class.Class, error)
	}

	// Observer is notified of committed payments.
	Observer interface {
		PaymentRecorded(p Payment)
	}

	Service struct {
		repo     Repository
		students StudentStore
		classes  ClassStore
		tx       core.TxRunner
		conf     *core.Config
		observer Observer
	}
)

type nopObserver struct{}

func (nopObserver) PaymentRecorded(Payment) {}

func NewService(repo Repository, students StudentStore, classes ClassStore, tx core.TxRunner, conf *core.Config, observer Observer) *Service {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{repo: repo, students: students, classes: classes, tx: tx, conf: conf, observer: observer}
}

// Create records a payment: duplicate monthly period check, receipt number, insert and
// student payment status refresh all run in one transaction. Inside a caller's transaction (exec),
// the caller reports the payment with NotifyRecorded after committing.
func (svc *Service) Create(ctx context.Context, schoolID string, np NewPayment, recordedBy string, exec ...core.DBExecutor) (Payment, error) {
	p := Payment{
		SchoolID:      schoolID,
		StudentID:     np.StudentID,
		Amount:        np.Amount,
		PaymentType:   np.PaymentType,
		PaymentMethod: np.PaymentMethod,
		PaymentDate:   np.PaymentDate,
		PaymentPeriod: np.PaymentPeriod,
		AcademicYear:  np.AcademicYear,
		Reference:     np.Reference,
		Notes:         np.Notes,
		RecordedBy:    recordedBy,
		CreatedAt:     core.NowFunc().UTC(),
	}

	err := core.InTx(ctx, svc.tx, exec, func(exec core.DBExecutor) error {
		stud, err := svc.students.GetStudent(ctx, schoolID, p.StudentID, exec)
		if err != nil {
			return err
		}
		if p.AcademicYear == "" {
			p.AcademicYear = stud.AcademicYear
		}
		if p.AcademicYear == "" {
			p.AcademicYear = core.AcademicYear(p.PaymentDate.Time)
		}

		if p.PaymentType == TypeMonthlyTuition {
			paid, err := svc.repo.PeriodPaid(ctx, schoolID, p.StudentID, p.AcademicYear, p.PaymentPeriod, exec)
			if err != nil {
				return errors.Wrap(err, "checking payment period")
			}
			if paid {
				return ErrPeriodPaid
			}
		}

		if p.ReceiptNumber, err = svc.repo.GenerateReceiptNumber(ctx, schoolID, svc.conf.Payments.ReceiptPrefix, exec); err != nil {
			return errors.Wrap(err, "generating receipt number")
		}
		if p, err = svc.repo.CreatePayment(ctx, p, exec); err != nil {
			return err
		}
		return svc.refreshStatus(ctx, stud, exec)
	})
	if err != nil {
		return Payment{}, err
	}
	if len(exec) == 0 || exec[0] == nil {
		svc.observer.PaymentRecorded(p)
	}
	return p, nil
}

// NotifyRecorded reports a payment created inside a caller's transaction, once that one is committed.
func (svc *Service) NotifyRecorded(p Payment) {
	svc.observer.PaymentRecorded(p)
}

// RefreshStatus recomputes the student's payment status from the sum of their payments.
func (svc *Service) RefreshStatus(ctx context.Context, schoolID, studentID string, exec ...core.DBExecutor) error {
	return core.InTx(ctx, svc.tx, exec, func(exec core.DBExecutor) error {
		stud, err := svc.students.GetStudent(ctx, schoolID, studentID, exec)
		if err != nil {
			return err
		}
		return svc.refreshStatus(ctx, stud, exec)
	})
}

func (svc *Service) refreshStatus(ctx context.Context, stud student.Student, exec core.DBExecutor) error {
	total, err := svc.repo.SumStudentPayments(ctx, stud.SchoolID, stud.ID, exec)
	if err != nil {
		return errors.Wrap(err, "summing payments")
	}

	due := decimal.Zero
	derivePaid := svc.conf.Payments.DerivePaidStatus
	if derivePaid && stud.ClassName != "" {
		c, err := svc.classes.GetClassByName(ctx, stud.SchoolID, stud.ClassName, stud.AcademicYear, exec)
		switch {
		case err == nil:
			due = c.TotalDue()
		case !core.IsNotFound(err):
			return errors.Wrap(err, "getting class")
		}
	}

	status := DeriveStatus(total, due, derivePaid)
	if status == stud.PaymentStatus {
		return nil
	}
	return errors.Wrap(svc.students.SetPaymentStatus(ctx, stud.SchoolID, stud.ID, status, exec), "setting payment status")
}

func (svc *Service) Get(ctx context.Context, schoolID, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, schoolID, id)
}

func (svc *Service) ByReceipt(ctx context.Context, schoolID, receipt string) (Payment, error) {
	return svc.repo.GetPaymentByReceipt(ctx, schoolID, core.CleanString(receipt))
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, schoolID, filter, ordering)
}

// Delete removes the payment and recomputes the student's payment status.
func (svc *Service) Delete(ctx context.Context, schoolID, id string) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		p, err := svc.repo.GetPayment(ctx, schoolID, id, exec)
		if err != nil {
			return err
		}
		if err = svc.repo.DeletePayment(ctx, schoolID, id, exec); err != nil {
			return err
		}
		return svc.RefreshStatus(ctx, schoolID, p.StudentID, exec)
	})
}

func (svc *Service) Stats(ctx context.Context, schoolID string) (Stats, error) {
	payments, err := svc.repo.QueryPayments(ctx, schoolID, nil, nil)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying payments")
	}
	return ComputeStats(payments, core.NowFunc()), nil
}

// LatePayments returns the active students of className (all classes when empty) without any
// tuition payment for month.
func (svc *Service) LatePayments(ctx context.Context, schoolID, className, month string) ([]student.Student, error) {
	if !core.IsMonth(month) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "month", Error: "must be a month formatted as YYYY-MM"})
	}
	students, err := svc.students.QueryStudents(ctx, schoolID, &student.QueryFilter{
		ClassName: className,
		Statuses:  []string{student.StatusActive},
	}, []core.DBOrdering{{Field: "last_name", Ascending: true}, {Field: "first_name", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	payments, err := svc.repo.QueryPayments(ctx, schoolID, &QueryFilter{Types: TuitionTypes, Period: month}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	return FilterLate(students, payments, month), nil
}
