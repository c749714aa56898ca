package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) nameTaken(c class.Class) bool {
	for _, other := range repo.db.classes {
		if other.ID != c.ID && other.SchoolID == c.SchoolID && other.Name == c.Name && other.AcademicYear == c.AcademicYear {
			return true
		}
	}
	return false
}

func (repo *classRepository) CreateClass(_ context.Context, c class.Class, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.nameTaken(c) {
		return class.Class{}, class.ErrNameExists
	}
	c.ID = newID()
	repo.db.classes[c.ID] = c
	return c, nil
}

func (repo *classRepository) GetClass(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.classes[id]; ok && c.SchoolID == schoolID {
		return c, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) GetClassByName(_ context.Context, schoolID, name, academicYear string, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.classes {
		if c.SchoolID == schoolID && c.Name == name && c.AcademicYear == academicYear {
			return c, nil
		}
	}
	return class.Class{}, class.ErrNotFound
}

var classFields = map[string]comparer[class.Class]{
	"name":          func(a, b class.Class) int { return strings.Compare(a.Name, b.Name) },
	"level":         func(a, b class.Class) int { return strings.Compare(a.Level, b.Level) },
	"academic_year": func(a, b class.Class) int { return strings.Compare(a.AcademicYear, b.AcademicYear) },
	"capacity":      func(a, b class.Class) int { return a.Capacity - b.Capacity },
	"created_at":    func(a, b class.Class) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *classRepository) QueryClasses(_ context.Context, schoolID string, filter *class.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]class.Class, 0)
	for _, c := range repo.db.classes {
		if c.SchoolID != schoolID {
			continue
		}
		if filter != nil {
			if filter.Search != "" && !matches(filter.Search, c.Name, c.Level) {
				continue
			}
			if filter.Level != "" && c.Level != filter.Level {
				continue
			}
			if filter.AcademicYear != "" && c.AcademicYear != filter.AcademicYear {
				continue
			}
		}
		classes = append(classes, c)
	}
	sortRows(classes, ordering, classFields, desc("academic_year"), asc("name"))
	return classes, nil
}

func (repo *classRepository) UpdateClass(_ context.Context, c class.Class, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.classes[c.ID]; !ok || orig.SchoolID != c.SchoolID {
		return class.Class{}, class.ErrNotFound
	}
	if repo.nameTaken(c) {
		return class.Class{}, class.ErrNameExists
	}
	repo.db.classes[c.ID] = c
	return c, nil
}

func (repo *classRepository) DeleteClass(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c, ok := repo.db.classes[id]; !ok || c.SchoolID != schoolID {
		return class.ErrNotFound
	}
	delete(repo.db.classes, id)
	return nil
}
