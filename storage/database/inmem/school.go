package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/certificate"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/reminder"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/student"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) codeTaken(code, excludeID string) bool {
	for _, s := range repo.db.schools {
		if s.ID != excludeID && strings.EqualFold(s.Code, code) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateSchool(_ context.Context, s school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.codeTaken(s.Code, "") {
		return school.School{}, school.ErrCodeExists
	}
	s.ID = newID()
	repo.db.schools[s.ID] = s
	return s, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.schools[id]; ok {
		return s, nil
	}
	return school.School{}, school.ErrNotFound
}

var schoolFields = map[string]comparer[school.School]{
	"name":       func(a, b school.School) int { return strings.Compare(a.Name, b.Name) },
	"code":       func(a, b school.School) int { return strings.Compare(a.Code, b.Code) },
	"created_at": func(a, b school.School) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter *school.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0, len(repo.db.schools))
	for _, s := range repo.db.schools {
		if filter != nil {
			if filter.Search != "" && !matches(filter.Search, s.Name, s.Code, s.Email) {
				continue
			}
			if filter.IsActive != nil && s.IsActive != *filter.IsActive {
				continue
			}
		}
		schools = append(schools, s)
	}
	sortRows(schools, ordering, schoolFields, asc("name"))
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, s school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[s.ID]; !ok {
		return school.School{}, school.ErrNotFound
	}
	if repo.codeTaken(s.Code, s.ID) {
		return school.School{}, school.ErrCodeExists
	}
	repo.db.schools[s.ID] = s
	return s, nil
}

// DeleteSchool cascades to every row of the school.
func (repo *schoolRepository) DeleteSchool(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[id]; !ok {
		return school.ErrNotFound
	}
	delete(repo.db.schools, id)
	deleteWhere(repo.db.classes, func(r class.Class) bool { return r.SchoolID == id })
	deleteWhere(repo.db.students, func(r student.Student) bool { return r.SchoolID == id })
	deleteWhere(repo.db.enrollments, func(r enrollment.Enrollment) bool { return r.SchoolID == id })
	deleteWhere(repo.db.payments, func(r payment.Payment) bool { return r.SchoolID == id })
	deleteWhere(repo.db.certificates, func(r certificate.Certificate) bool { return r.SchoolID == id })
	deleteWhere(repo.db.configurations, func(r reminder.Configuration) bool { return r.SchoolID == id })
	deleteWhere(repo.db.scheduled, func(r reminder.Scheduled) bool { return r.SchoolID == id })
	for key := range repo.db.counters {
		if key.schoolID == id {
			delete(repo.db.counters, key)
		}
	}
	for uid, u := range repo.db.users {
		if u.SchoolID == id {
			u.SchoolID = ""
		}
		roles := u.Roles[:0:0]
		for _, r := range u.Roles {
			if r.SchoolID != id {
				roles = append(roles, r)
			}
		}
		u.Roles = roles
		repo.db.users[uid] = u
	}
	return nil
}

func deleteWhere[T any](table map[string]T, pred func(T) bool) {
	for k, v := range table {
		if pred(v) {
			delete(table, k)
		}
	}
}

func utcNow() time.Time { return core.NowFunc().UTC() }
