package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
)

var classColumns = []string{
	"id", "school_id", "name", "level", "academic_year", "capacity", "registration_fee", "monthly_fee",
	"annual_tuition", "created_at", "updated_at",
}

type classRow struct {
	ID              string          `db:"id"`
	SchoolID        string          `db:"school_id"`
	Name            string          `db:"name"`
	Level           string          `db:"level"`
	AcademicYear    string          `db:"academic_year"`
	Capacity        int             `db:"capacity"`
	RegistrationFee decimal.Decimal `db:"registration_fee"`
	MonthlyFee      decimal.Decimal `db:"monthly_fee"`
	AnnualTuition   decimal.Decimal `db:"annual_tuition"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r classRow) toClass() class.Class {
	return class.Class(r)
}

type classRepository struct {
	repository
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(exec core.DBExecutor) *classRepository {
	return &classRepository{repository{exec: exec}}
}

func (repo classRepository) CreateClass(ctx context.Context, c class.Class, exec ...core.DBExecutor) (class.Class, error) {
	c.ID = newID()
	_, err := repo.execute(ctx, exec, psql.Insert("classes").Columns(classColumns...).Values(
		c.ID, c.SchoolID, c.Name, c.Level, c.AcademicYear, c.Capacity, c.RegistrationFee, c.MonthlyFee,
		c.AnnualTuition, c.CreatedAt, c.UpdatedAt,
	))
	if err != nil {
		return class.Class{}, translateErr(err, "inserting class")
	}
	return c, nil
}

func (repo classRepository) getOne(ctx context.Context, exec []core.DBExecutor, where sq.Eq) (class.Class, error) {
	var row classRow
	if err := repo.get(ctx, exec, &row, psql.Select(classColumns...).From("classes").Where(where)); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "getting class")
	}
	return row.toClass(), nil
}

func (repo classRepository) GetClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (class.Class, error) {
	if !validUUID(id) {
		return class.Class{}, class.ErrNotFound
	}
	return repo.getOne(ctx, exec, sq.Eq{"school_id": schoolID, "id": id})
}

func (repo classRepository) GetClassByName(ctx context.Context, schoolID, name, academicYear string, exec ...core.DBExecutor) (class.Class, error) {
	return repo.getOne(ctx, exec, sq.Eq{"school_id": schoolID, "name": name, "academic_year": academicYear})
}

func (repo classRepository) QueryClasses(ctx context.Context, schoolID string, filter *class.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]class.Class, error) {
	q := psql.Select(classColumns...).From("classes").Where(sq.Eq{"school_id": schoolID})
	if filter != nil {
		if filter.Search != "" {
			q = q.Where(search(filter.Search, "name", "level"))
		}
		if filter.Level != "" {
			q = q.Where(sq.Eq{"level": filter.Level})
		}
		if filter.AcademicYear != "" {
			q = q.Where(sq.Eq{"academic_year": filter.AcademicYear})
		}
	}
	q = orderBy(q, ordering, "academic_year DESC, name ASC", "name", "level", "academic_year", "capacity", "created_at")

	var rows []classRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.toClass())
	}
	return classes, nil
}

func (repo classRepository) UpdateClass(ctx context.Context, c class.Class, exec ...core.DBExecutor) (class.Class, error) {
	n, err := repo.execute(ctx, exec, psql.Update("classes").SetMap(map[string]interface{}{
		"name":             c.Name,
		"level":            c.Level,
		"academic_year":    c.AcademicYear,
		"capacity":         c.Capacity,
		"registration_fee": c.RegistrationFee,
		"monthly_fee":      c.MonthlyFee,
		"annual_tuition":   c.AnnualTuition,
		"updated_at":       c.UpdatedAt,
	}).Where(sq.Eq{"school_id": c.SchoolID, "id": c.ID}))
	if err != nil {
		return class.Class{}, translateErr(err, "updating class")
	}
	if n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return c, nil
}

func (repo classRepository) DeleteClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, exec, psql.Delete("classes").Where(sq.Eq{"school_id": schoolID, "id": id}))
	if err != nil {
		return translateErr(err, "deleting class")
	}
	if n == 0 {
		return class.ErrNotFound
	}
	return nil
}
