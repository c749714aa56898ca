package class

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("class not found")
	ErrNameExists  = core.NewConflictError("name", "a class with this name already exists for this academic year")
	ErrHasStudents = core.NewRuleError("a class with students cannot be deleted")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, c Class, exec ...core.DBExecutor) (Class, error)
		GetClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Class, error)
		GetClassByName(ctx context.Context, schoolID, name, academicYear string, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		UpdateClass(ctx context.Context, c Class, exec ...core.DBExecutor) (Class, error)
		DeleteClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
	}

	// Roster reads and maintains the name-based link between students and classes.
	Roster interface {
		// CountActiveByClass returns the number of active students per class name for the academic year.
		CountActiveByClass(ctx context.Context, schoolID, academicYear string, exec ...core.DBExecutor) (map[string]int, error)
		CountInClass(ctx context.Context, schoolID, className, academicYear string, exec ...core.DBExecutor) (int, error)
		RenameClass(ctx context.Context, schoolID, oldName, newName, academicYear string, exec ...core.DBExecutor) error
	}

	// EnrollmentRoster keeps the class names requested and approved by enrollments in step with renames.
	EnrollmentRoster interface {
		RenameClass(ctx context.Context, schoolID, oldName, newName, academicYear string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo        Repository
		roster      Roster
		enrollments EnrollmentRoster
		tx          core.TxRunner
	}
)

func NewService(repo Repository, roster Roster, enrollments EnrollmentRoster, tx core.TxRunner) *Service {
	return &Service{repo: repo, roster: roster, enrollments: enrollments, tx: tx}
}

func (svc *Service) Create(ctx context.Context, schoolID string, nc NewClass) (Class, error) {
	now := core.NowFunc().UTC()
	return svc.repo.CreateClass(ctx, Class{
		SchoolID:        schoolID,
		Name:            nc.Name,
		Level:           nc.Level,
		AcademicYear:    nc.AcademicYear,
		Capacity:        nc.Capacity,
		RegistrationFee: nc.RegistrationFee,
		MonthlyFee:      nc.MonthlyFee,
		AnnualTuition:   nc.AnnualTuition,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (svc *Service) Get(ctx context.Context, schoolID, id string) (Class, error) {
	return svc.repo.GetClass(ctx, schoolID, id)
}

func (svc *Service) GetByName(ctx context.Context, schoolID, name, academicYear string, exec ...core.DBExecutor) (Class, error) {
	return svc.repo.GetClassByName(ctx, schoolID, name, academicYear, exec...)
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, schoolID, filter, ordering)
}

// Update saves the class; a rename cascades to the students and enrollments in the same transaction.
func (svc *Service) Update(ctx context.Context, c Class, uc UpdateClass) (Class, error) {
	oldName := c.Name
	uc.apply(&c)
	c.UpdatedAt = core.NowFunc().UTC()

	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if c, err = svc.repo.UpdateClass(ctx, c, exec); err != nil {
			return err
		}
		if c.Name == oldName {
			return nil
		}
		if err = svc.roster.RenameClass(ctx, c.SchoolID, oldName, c.Name, c.AcademicYear, exec); err != nil {
			return errors.Wrap(err, "renaming students' class")
		}
		return errors.Wrap(svc.enrollments.RenameClass(ctx, c.SchoolID, oldName, c.Name, c.AcademicYear, exec), "renaming enrollments' class")
	})
	if err != nil {
		return Class{}, err
	}
	return c, nil
}

// Delete refuses to drop a class that still has students attached.
func (svc *Service) Delete(ctx context.Context, c Class) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		n, err := svc.roster.CountInClass(ctx, c.SchoolID, c.Name, c.AcademicYear, exec)
		if err != nil {
			return errors.Wrap(err, "counting students")
		}
		if n > 0 {
			return ErrHasStudents
		}
		return svc.repo.DeleteClass(ctx, c.SchoolID, c.ID, exec)
	})
}

// Stats computes the occupancy and expected revenue of the school's classes; only active students count.
func (svc *Service) Stats(ctx context.Context, schoolID, academicYear string) (Summary, error) {
	classes, err := svc.repo.QueryClasses(ctx, schoolID, &QueryFilter{AcademicYear: academicYear}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying classes")
	}

	// counts are per academic year since class names repeat across years
	counts := make(map[string]map[string]int)
	stats := make([]Stats, 0, len(classes))
	for _, c := range classes {
		yearCounts, ok := counts[c.AcademicYear]
		if !ok {
			if yearCounts, err = svc.roster.CountActiveByClass(ctx, schoolID, c.AcademicYear); err != nil {
				return Summary{}, errors.Wrap(err, "counting students")
			}
			counts[c.AcademicYear] = yearCounts
		}
		stats = append(stats, ComputeStats(c, yearCounts[c.Name]))
	}
	return Summarize(stats), nil
}
