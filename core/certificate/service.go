package certificate

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/student"
)

const serialCounter = "certificate"

var (
	// errors
	ErrNotFound = core.NewNotFoundError("certificate not found")
	ErrIssued   = core.NewRuleError("only draft certificates can be deleted")
)

type (
	Repository interface {
		CreateCertificate(ctx context.Context, c Certificate, exec ...core.DBExecutor) (Certificate, error)
		GetCertificate(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Certificate, error)
		QueryCertificates(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Certificate, error)
		UpdateCertificate(ctx context.Context, c Certificate, exec ...core.DBExecutor) (Certificate, error)
		DeleteCertificate(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
	}

	StudentStore interface {
		GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (student.Student, error)
	}

	Service struct {
		repo     Repository
		students StudentStore
		counter  core.Counter
		tx       core.TxRunner
	}
)

func NewService(repo Repository, students StudentStore, counter core.Counter, tx core.TxRunner) *Service {
	return &Service{repo: repo, students: students, counter: counter, tx: tx}
}

// Create records a draft certificate for an existing student, with serial CERT-<YYYY>-<NNNN>.
func (svc *Service) Create(ctx context.Context, schoolID string, nc NewCertificate, createdBy string) (Certificate, error) {
	now := core.NowFunc().UTC()
	c := Certificate{
		SchoolID:        schoolID,
		StudentID:       nc.StudentID,
		CertificateType: nc.CertificateType,
		AcademicYear:    nc.AcademicYear,
		SignatoryName:   nc.SignatoryName,
		SignatoryTitle:  nc.SignatoryTitle,
		IssueDate:       nc.IssueDate,
		Status:          StatusDraft,
		Notes:           nc.Notes,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c.IssueDate.IsZero() {
		c.IssueDate = core.DateOf(now)
	}

	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		stud, err := svc.students.GetStudent(ctx, schoolID, c.StudentID, exec)
		if err != nil {
			return err
		}
		if c.AcademicYear == "" {
			c.AcademicYear = stud.AcademicYear
		}

		year := c.IssueDate.Year()
		n, err := svc.counter.NextValue(ctx, schoolID, serialCounter, year, exec)
		if err != nil {
			return errors.Wrap(err, "incrementing certificate counter")
		}
		c.SerialNumber = fmt.Sprintf("CERT-%d-%04d", year, n)

		c, err = svc.repo.CreateCertificate(ctx, c, exec)
		return err
	})
	if err != nil {
		return Certificate{}, err
	}
	return c, nil
}

func (svc *Service) Get(ctx context.Context, schoolID, id string) (Certificate, error) {
	return svc.repo.GetCertificate(ctx, schoolID, id)
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Certificate, error) {
	return svc.repo.QueryCertificates(ctx, schoolID, filter, ordering)
}

// SetStatus moves the certificate along draft -> issued -> revoked.
func (svc *Service) SetStatus(ctx context.Context, c Certificate, status string) (Certificate, error) {
	if !CanTransition(c.Status, status) {
		return Certificate{}, core.NewStateError("certificate", c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateCertificate(ctx, c)
}

func (svc *Service) Delete(ctx context.Context, c Certificate) error {
	if c.Status != StatusDraft {
		return ErrIssued
	}
	return svc.repo.DeleteCertificate(ctx, c.SchoolID, c.ID)
}
