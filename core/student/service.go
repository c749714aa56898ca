package student

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/school"
)

const matriculeCounter = "matricule"

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("student not found")
	ErrSchoolFull    = core.NewRuleError("the school has reached its maximum number of students")
	ErrHasPayments   = core.NewRuleError("a student with recorded payments cannot be deleted")
	conflictMessages = map[string]string{
		"email":        "a student with this email already exists",
		"phone":        "a student with this phone number already exists",
		"parent_phone": "a student with this parent phone number already exists",
		"parent_email": "a student with this parent email already exists",
		"matricule":    "a student with this matricule already exists",
	}
)

// NewConflictError returns the conflict error reported for a colliding student field.
func NewConflictError(field string) error {
	msg, ok := conflictMessages[field]
	if !ok {
		msg = "a student with this " + strings.ReplaceAll(field, "_", " ") + " already exists"
	}
	return core.NewConflictError(field, msg)
}

type (
	Repository interface {
		// FindContactConflicts returns the Contacts fields (json names) already used by another student of the school.
		FindContactConflicts(ctx context.Context, schoolID string, c Contacts, excludeID string, exec ...core.DBExecutor) ([]string, error)
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		SetPaymentStatus(ctx context.Context, schoolID, id, status string, exec ...core.DBExecutor) error
		CountStudents(ctx context.Context, schoolID string, exec ...core.DBExecutor) (Counts, error)
		CountStudentPayments(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (int, error)
		DeleteStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
	}

	SchoolStore interface {
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error)
	}

	Service struct {
		repo    Repository
		schools SchoolStore
		counter core.Counter
		tx      core.TxRunner
	}
)

func NewService(repo Repository, schools SchoolStore, counter core.Counter, tx core.TxRunner) *Service {
	return &Service{repo: repo, schools: schools, counter: counter, tx: tx}
}

// CheckContacts fails with a conflict error on the first contact already used within the school.
func (svc *Service) CheckContacts(ctx context.Context, schoolID string, c Contacts, excludeID string, exec ...core.DBExecutor) error {
	if c.IsEmpty() {
		return nil
	}
	fields, err := svc.repo.FindContactConflicts(ctx, schoolID, c, excludeID, exec...)
	if err != nil {
		return errors.Wrap(err, "checking contacts")
	}
	if len(fields) > 0 {
		return NewConflictError(fields[0])
	}
	return nil
}

func (svc *Service) checkCapacity(ctx context.Context, schoolID string, exec ...core.DBExecutor) error {
	sch, err := svc.schools.GetSchool(ctx, schoolID, exec...)
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	if sch.MaxStudents < 0 {
		return nil
	}
	counts, err := svc.repo.CountStudents(ctx, schoolID, exec...)
	if err != nil {
		return errors.Wrap(err, "counting students")
	}
	if !sch.AcceptsStudents(counts.ByStatus[StatusActive]) {
		return ErrSchoolFull
	}
	return nil
}

// NextMatricule returns a new matricule for the school: <YY><CODE><NNNN>.
func (svc *Service) NextMatricule(ctx context.Context, schoolID string, exec ...core.DBExecutor) (string, error) {
	sch, err := svc.schools.GetSchool(ctx, schoolID, exec...)
	if err != nil {
		return "", errors.Wrap(err, "getting school")
	}
	year := core.NowFunc().Year()
	n, err := svc.counter.NextValue(ctx, schoolID, matriculeCounter, year, exec...)
	if err != nil {
		return "", errors.Wrap(err, "incrementing matricule counter")
	}
	return fmt.Sprintf("%02d%s%04d", year%100, strings.ToUpper(sch.Code), n), nil
}

// Create checks contact collisions within the school before inserting the student.
func (svc *Service) Create(ctx context.Context, schoolID string, ns NewStudent, exec ...core.DBExecutor) (Student, error) {
	now := core.NowFunc().UTC()
	s := Student{
		SchoolID:      schoolID,
		Matricule:     ns.Matricule,
		FirstName:     ns.FirstName,
		LastName:      ns.LastName,
		DateOfBirth:   ns.DateOfBirth,
		Gender:        ns.Gender,
		Email:         ns.Email,
		Phone:         ns.Phone,
		Address:       ns.Address,
		ParentName:    ns.ParentName,
		ParentPhone:   ns.ParentPhone,
		ParentEmail:   ns.ParentEmail,
		ClassName:     ns.ClassName,
		AcademicYear:  ns.AcademicYear,
		Status:        ns.Status,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	if s.AcademicYear == "" {
		s.AcademicYear = core.AcademicYear(now)
	}

	err := core.InTx(ctx, svc.tx, exec, func(exec core.DBExecutor) error {
		if err := svc.CheckContacts(ctx, schoolID, ns.Contacts(), "", exec); err != nil {
			return err
		}
		if s.Status == StatusActive {
			if err := svc.checkCapacity(ctx, schoolID, exec); err != nil {
				return err
			}
		}
		if s.Matricule == "" {
			m, err := svc.NextMatricule(ctx, schoolID, exec)
			if err != nil {
				return err
			}
			s.Matricule = m
		}
		var err error
		s, err = svc.repo.CreateStudent(ctx, s, exec)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

func (svc *Service) Get(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Student, error) {
	return svc.repo.GetStudent(ctx, schoolID, id, exec...)
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, schoolID, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, s Student, us UpdateStudent) (Student, error) {
	us.apply(&s)
	if err := svc.CheckContacts(ctx, s.SchoolID, s.Contacts(), s.ID); err != nil {
		return Student{}, err
	}
	s.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

// SetStatus changes the student's status; statuses are managed manually, only activation is capped.
func (svc *Service) SetStatus(ctx context.Context, s Student, status string, exec ...core.DBExecutor) (Student, error) {
	if !isStatus(status) {
		return Student{}, core.NewStateError("student", s.Status, status)
	}
	err := core.InTx(ctx, svc.tx, exec, func(exec core.DBExecutor) error {
		if status == StatusActive && s.Status != StatusActive {
			if err := svc.checkCapacity(ctx, s.SchoolID, exec); err != nil {
				return err
			}
		}
		s.Status = status
		s.UpdatedAt = core.NowFunc().UTC()
		var err error
		s, err = svc.repo.UpdateStudent(ctx, s, exec)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// Activate makes the student active in the given class (enrollment approval).
func (svc *Service) Activate(ctx context.Context, schoolID, id, className, academicYear string, exec ...core.DBExecutor) (Student, error) {
	var s Student
	err := core.InTx(ctx, svc.tx, exec, func(exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.GetStudent(ctx, schoolID, id, exec); err != nil {
			return err
		}
		s.ClassName = className
		if academicYear != "" {
			s.AcademicYear = academicYear
		}
		s, err = svc.SetStatus(ctx, s, StatusActive, exec)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// Delete refuses to drop students with recorded payments.
func (svc *Service) Delete(ctx context.Context, schoolID, id string) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		n, err := svc.repo.CountStudentPayments(ctx, schoolID, id, exec)
		if err != nil {
			return errors.Wrap(err, "counting payments")
		}
		if n > 0 {
			return ErrHasPayments
		}
		return svc.repo.DeleteStudent(ctx, schoolID, id, exec)
	})
}

func (svc *Service) Counts(ctx context.Context, schoolID string) (Counts, error) {
	return svc.repo.CountStudents(ctx, schoolID)
}

func isStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}
