// Package dashboard aggregates the per-school figures shown on the home page.
package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/student"
)

type (
	Students interface {
		Counts(ctx context.Context, schoolID string) (student.Counts, error)
	}

	Classes interface {
		Stats(ctx context.Context, schoolID, academicYear string) (class.Summary, error)
	}

	Payments interface {
		Stats(ctx context.Context, schoolID string) (payment.Stats, error)
		LatePayments(ctx context.Context, schoolID, className, month string) ([]student.Student, error)
	}

	Enrollments interface {
		CountByStatus(ctx context.Context, schoolID string) (map[string]int, error)
	}

	Service struct {
		students    Students
		classes     Classes
		payments    Payments
		enrollments Enrollments
	}
)

// Dashboard is a snapshot of a school's activity.
type Dashboard struct {
	AcademicYear       string         `json:"academic_year"`
	Month              string         `json:"month"`
	Students           student.Counts `json:"students"`
	Classes            class.Summary  `json:"classes"`
	Payments           payment.Stats  `json:"payments"`
	PendingEnrollments int            `json:"pending_enrollments"`
	Enrollments        map[string]int `json:"enrollments"`
	LateCount          int            `json:"late_count"`
}

func NewService(students Students, classes Classes, payments Payments, enrollments Enrollments) *Service {
	return &Service{students: students, classes: classes, payments: payments, enrollments: enrollments}
}

func (svc *Service) Get(ctx context.Context, schoolID string) (Dashboard, error) {
	now := core.NowFunc()
	d := Dashboard{AcademicYear: core.AcademicYear(now), Month: now.Format("2006-01")}

	var err error
	if d.Students, err = svc.students.Counts(ctx, schoolID); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting students")
	}
	if d.Classes, err = svc.classes.Stats(ctx, schoolID, d.AcademicYear); err != nil {
		return Dashboard{}, errors.Wrap(err, "computing class stats")
	}
	if d.Payments, err = svc.payments.Stats(ctx, schoolID); err != nil {
		return Dashboard{}, errors.Wrap(err, "computing payment stats")
	}
	if d.Enrollments, err = svc.enrollments.CountByStatus(ctx, schoolID); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting enrollments")
	}
	d.PendingEnrollments = d.Enrollments[enrollment.StatusPending]

	late, err := svc.payments.LatePayments(ctx, schoolID, "", d.Month)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "finding late payments")
	}
	d.LateCount = len(late)
	return d, nil
}
