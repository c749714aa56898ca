package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/school"
)

var schoolColumns = []string{
	"id", "name", "code", "address", "phone", "email", "logo_path", "currency", "max_students",
	"is_active", "created_at", "updated_at",
}

type schoolRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Code        string    `db:"code"`
	Address     string    `db:"address"`
	Phone       string    `db:"phone"`
	Email       string    `db:"email"`
	LogoPath    string    `db:"logo_path"`
	Currency    string    `db:"currency"`
	MaxStudents int       `db:"max_students"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r schoolRow) toSchool() school.School {
	return school.School{
		ID:          r.ID,
		Name:        r.Name,
		Code:        r.Code,
		Address:     r.Address,
		Phone:       r.Phone,
		Email:       r.Email,
		LogoPath:    r.LogoPath,
		Currency:    r.Currency,
		MaxStudents: r.MaxStudents,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type schoolRepository struct {
	repository
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{repository{exec: exec}}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, s school.School, exec ...core.DBExecutor) (school.School, error) {
	s.ID = newID()
	_, err := repo.execute(ctx, exec, psql.Insert("schools").Columns(schoolColumns...).Values(
		s.ID, s.Name, s.Code, s.Address, s.Phone, s.Email, s.LogoPath, s.Currency, s.MaxStudents,
		s.IsActive, s.CreatedAt, s.UpdatedAt,
	))
	if err != nil {
		return school.School{}, translateErr(err, "inserting school")
	}
	return s, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error) {
	if !validUUID(id) {
		return school.School{}, school.ErrNotFound
	}
	var row schoolRow
	if err := repo.get(ctx, exec, &row, psql.Select(schoolColumns...).From("schools").Where(sq.Eq{"id": id})); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "getting school")
	}
	return row.toSchool(), nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.School, error) {
	q := psql.Select(schoolColumns...).From("schools")
	if filter != nil {
		if filter.Search != "" {
			q = q.Where(search(filter.Search, "name", "code", "email"))
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
	}
	q = orderBy(q, ordering, "name ASC", "name", "code", "created_at")

	var rows []schoolRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.toSchool())
	}
	return schools, nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, s school.School, exec ...core.DBExecutor) (school.School, error) {
	n, err := repo.execute(ctx, exec, psql.Update("schools").SetMap(map[string]interface{}{
		"name":         s.Name,
		"code":         s.Code,
		"address":      s.Address,
		"phone":        s.Phone,
		"email":        s.Email,
		"logo_path":    s.LogoPath,
		"currency":     s.Currency,
		"max_students": s.MaxStudents,
		"is_active":    s.IsActive,
		"updated_at":   s.UpdatedAt,
	}).Where(sq.Eq{"id": s.ID}))
	if err != nil {
		return school.School{}, translateErr(err, "updating school")
	}
	if n == 0 {
		return school.School{}, school.ErrNotFound
	}
	return s, nil
}

func (repo schoolRepository) DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validUUID(id) {
		return school.ErrNotFound
	}
	n, err := repo.execute(ctx, exec, psql.Delete("schools").Where(sq.Eq{"id": id}))
	if err != nil {
		return translateErr(err, "deleting school")
	}
	if n == 0 {
		return school.ErrNotFound
	}
	return nil
}
