package enrollment

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/student"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("enrollment not found")
	ErrNotEditable   = core.NewRuleError("only pending enrollments or enrollments with missing documents can be modified")
	ErrApprovedFinal = core.NewRuleError("an approved enrollment cannot be deleted")
)

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
		CountByStatus(ctx context.Context, schoolID string, exec ...core.DBExecutor) (map[string]int, error)
	}

	Students interface {
		Create(ctx context.Context, schoolID string, ns student.NewStudent, exec ...core.DBExecutor) (student.Student, error)
		Get(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (student.Student, error)
		Activate(ctx context.Context, schoolID, id, className, academicYear string, exec ...core.DBExecutor) (student.Student, error)
	}

	Classes interface {
		GetByName(ctx context.Context, schoolID, name, academicYear string, exec ...core.DBExecutor) (class.Class, error)
	}

	Payments interface {
		Create(ctx context.Context, schoolID string, np payment.NewPayment, recordedBy string, exec ...core.DBExecutor) (payment.Payment, error)
		NotifyRecorded(p payment.Payment)
	}

	Service struct {
		repo     Repository
		students Students
		classes  Classes
		payments Payments
		tx       core.TxRunner
	}
)

func NewService(repo Repository, students Students, classes Classes, payments Payments, tx core.TxRunner) *Service {
	return &Service{repo: repo, students: students, classes: classes, payments: payments, tx: tx}
}

// Create registers an enrollment request. A new student described by StudentData is created
// (pending) in the same transaction, after its contacts were checked against the school's students.
func (svc *Service) Create(ctx context.Context, schoolID string, ne NewEnrollment) (Enrollment, error) {
	now := core.NowFunc().UTC()
	e := Enrollment{
		SchoolID:         schoolID,
		StudentID:        ne.StudentID,
		StudentData:      ne.StudentData,
		EnrollmentType:   ne.EnrollmentType,
		RequestedClass:   ne.RequestedClass,
		AcademicYear:     ne.AcademicYear,
		Status:           StatusPending,
		EnrollmentFee:    ne.EnrollmentFee,
		FeePaymentStatus: ne.FeePaymentStatus,
		PaymentMethod:    ne.PaymentMethod,
		MissingDocuments: ne.MissingDocuments,
		Notes:            ne.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if e.AcademicYear == "" {
		e.AcademicYear = core.AcademicYear(now)
	}
	if e.FeePaymentStatus == "" {
		e.FeePaymentStatus = FeePending
	}
	if e.MissingDocuments == nil {
		e.MissingDocuments = []string{}
	}

	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var stud student.Student
		if e.StudentData != nil {
			ns := *e.StudentData
			ns.Status = student.StatusPending
			ns.ClassName = e.RequestedClass
			ns.AcademicYear = e.AcademicYear
			var err error
			if stud, err = svc.students.Create(ctx, schoolID, ns, exec); err != nil {
				return err
			}
			e.StudentID = stud.ID
		} else {
			var err error
			if stud, err = svc.students.Get(ctx, schoolID, e.StudentID, exec); err != nil {
				return err
			}
		}
		e.StudentName = stud.FullName()

		var err error
		e, err = svc.repo.CreateEnrollment(ctx, e, exec)
		return err
	})
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func (svc *Service) Get(ctx context.Context, schoolID, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, schoolID, id)
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, schoolID, filter, ordering)
}

func (svc *Service) CountByStatus(ctx context.Context, schoolID string) (map[string]int, error) {
	return svc.repo.CountByStatus(ctx, schoolID)
}

func (svc *Service) Update(ctx context.Context, e Enrollment, ue UpdateEnrollment) (Enrollment, error) {
	if !e.Editable() {
		return Enrollment{}, ErrNotEditable
	}
	ue.apply(&e)
	e.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateEnrollment(ctx, e)
}

// Approve approves the enrollment, activates its student in the approved class and records the
// registration payment when part of the fee was collected. Everything runs in one transaction.
func (svc *Service) Approve(ctx context.Context, schoolID, id, approverID string, ae ApproveEnrollment) (ApprovalResult, error) {
	var (
		res        ApprovalResult
		registered *payment.Payment
	)
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		e, err := svc.repo.GetEnrollment(ctx, schoolID, id, exec)
		if err != nil {
			return err
		}
		if !CanTransition(e.Status, StatusApproved) {
			return core.NewStateError("enrollment", e.Status, StatusApproved)
		}

		e.ApprovedClass = ae.ApprovedClass
		if e.ApprovedClass == "" {
			e.ApprovedClass = e.RequestedClass
		}
		c, err := svc.classes.GetByName(ctx, schoolID, e.ApprovedClass, e.AcademicYear, exec)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(err, core.FieldError{Field: "approved_class", Error: "class not found for this academic year"})
			}
			return errors.Wrap(err, "getting class")
		}

		now := core.NowFunc().UTC()
		e.Status = StatusApproved
		e.ApprovedBy = approverID
		e.ApprovedAt = now
		e.UpdatedAt = now
		if ae.PaymentMethod != "" {
			e.PaymentMethod = ae.PaymentMethod
		}

		if _, err = svc.students.Activate(ctx, schoolID, e.StudentID, e.ApprovedClass, e.AcademicYear, exec); err != nil {
			return err
		}

		amountPaid, err := paidAmount(e, ae)
		if err != nil {
			return err
		}
		if amountPaid.IsPositive() {
			method := e.PaymentMethod
			if method == "" {
				method = payment.MethodCash
			}
			p, err := svc.payments.Create(ctx, schoolID, payment.NewPayment{
				StudentID:     e.StudentID,
				Amount:        amountPaid,
				PaymentMethod: method,
				PaymentType:   payment.TypeRegistration,
				PaymentDate:   core.DateOf(now),
				AcademicYear:  e.AcademicYear,
				Notes:         "enrollment " + e.ID,
			}, approverID, exec)
			if err != nil {
				return errors.Wrap(err, "recording registration payment")
			}
			res.Receipt = p.ReceiptNumber
			registered = &p
		}

		if e, err = svc.repo.UpdateEnrollment(ctx, e, exec); err != nil {
			return err
		}

		res.Enrollment = e
		res.AmountPaid = amountPaid
		res.TotalAmount = c.RegistrationFee
		res.Remaining = decimal.Max(c.RegistrationFee.Sub(amountPaid), decimal.Zero)
		return nil
	})
	if err != nil {
		return ApprovalResult{}, err
	}
	if registered != nil {
		svc.payments.NotifyRecorded(*registered)
	}
	return res, nil
}

// paidAmount is the part of the enrollment fee collected at approval: nothing while the fee is pending.
func paidAmount(e Enrollment, ae ApproveEnrollment) (decimal.Decimal, error) {
	if !e.EnrollmentFee.IsPositive() || e.FeePaymentStatus == FeePending || e.FeePaymentStatus == "" {
		return decimal.Zero, nil
	}
	if ae.AmountPaid == nil {
		return e.EnrollmentFee, nil
	}
	if ae.AmountPaid.GreaterThan(e.EnrollmentFee) {
		return decimal.Zero, core.NewValidationError(nil, core.FieldError{Field: "amount_paid", Error: "cannot exceed the enrollment fee"})
	}
	return *ae.AmountPaid, nil
}

func (svc *Service) Reject(ctx context.Context, schoolID, id string, re RejectEnrollment) (Enrollment, error) {
	return svc.transition(ctx, schoolID, id, StatusRejected, func(e *Enrollment) {
		e.RejectionReason = re.Reason
	})
}

func (svc *Service) MarkDocumentsMissing(ctx context.Context, schoolID, id string, md MissingDocuments) (Enrollment, error) {
	return svc.transition(ctx, schoolID, id, StatusDocumentsMissing, func(e *Enrollment) {
		e.MissingDocuments = md.Documents
	})
}

// Resubmit puts an enrollment with missing documents back to pending.
func (svc *Service) Resubmit(ctx context.Context, schoolID, id string) (Enrollment, error) {
	return svc.transition(ctx, schoolID, id, StatusPending, func(e *Enrollment) {
		e.MissingDocuments = []string{}
	})
}

func (svc *Service) transition(ctx context.Context, schoolID, id, to string, update func(e *Enrollment)) (Enrollment, error) {
	var e Enrollment
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if e, err = svc.repo.GetEnrollment(ctx, schoolID, id, exec); err != nil {
			return err
		}
		if !CanTransition(e.Status, to) {
			return core.NewStateError("enrollment", e.Status, to)
		}
		e.Status = to
		e.UpdatedAt = core.NowFunc().UTC()
		update(&e)
		e, err = svc.repo.UpdateEnrollment(ctx, e, exec)
		return err
	})
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func (svc *Service) Delete(ctx context.Context, schoolID, id string) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		e, err := svc.repo.GetEnrollment(ctx, schoolID, id, exec)
		if err != nil {
			return err
		}
		if e.Status == StatusApproved {
			return ErrApprovedFinal
		}
		return svc.repo.DeleteEnrollment(ctx, schoolID, id, exec)
	})
}
