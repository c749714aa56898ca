package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

// withStudent fills the student name, as the SQL join does.
func (repo *enrollmentRepository) withStudent(e enrollment.Enrollment) enrollment.Enrollment {
	e.StudentName = ""
	if s, ok := repo.db.students[e.StudentID]; ok {
		e.StudentName = s.FullName()
	}
	if e.MissingDocuments == nil {
		e.MissingDocuments = []string{}
	}
	return e
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.ID = newID()
	repo.db.enrollments[e.ID] = e
	return repo.withStudent(e), nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok && e.SchoolID == schoolID {
		return repo.withStudent(e), nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

var enrollmentFields = map[string]comparer[enrollment.Enrollment]{
	"created_at":      func(a, b enrollment.Enrollment) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"status":          func(a, b enrollment.Enrollment) int { return strings.Compare(a.Status, b.Status) },
	"requested_class": func(a, b enrollment.Enrollment) int { return strings.Compare(a.RequestedClass, b.RequestedClass) },
	"academic_year":   func(a, b enrollment.Enrollment) int { return strings.Compare(a.AcademicYear, b.AcademicYear) },
	"enrollment_fee":  func(a, b enrollment.Enrollment) int { return a.EnrollmentFee.Cmp(b.EnrollmentFee) },
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, schoolID string, filter *enrollment.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := make([]enrollment.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if e.SchoolID != schoolID {
			continue
		}
		if filter != nil {
			stud := repo.db.students[e.StudentID]
			switch {
			case filter.Search != "" && !matches(filter.Search, stud.FirstName, stud.LastName, stud.Matricule):
				continue
			case len(filter.Statuses) > 0 && !contains(filter.Statuses, e.Status):
				continue
			case len(filter.Types) > 0 && !contains(filter.Types, e.EnrollmentType):
				continue
			case filter.AcademicYear != "" && e.AcademicYear != filter.AcademicYear:
				continue
			case filter.ClassName != "" && e.RequestedClass != filter.ClassName && e.ApprovedClass != filter.ClassName:
				continue
			}
		}
		enrollments = append(enrollments, repo.withStudent(e))
	}
	sortRows(enrollments, ordering, enrollmentFields, desc("created_at"))
	return enrollments, nil
}

func (repo *enrollmentRepository) RenameClass(_ context.Context, schoolID, oldName, newName, academicYear string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := utcNow()
	for id, e := range repo.db.enrollments {
		if e.SchoolID != schoolID || e.AcademicYear != academicYear {
			continue
		}
		renamed := false
		if e.RequestedClass == oldName {
			e.RequestedClass, renamed = newName, true
		}
		if e.ApprovedClass == oldName {
			e.ApprovedClass, renamed = newName, true
		}
		if renamed {
			e.UpdatedAt = now
			repo.db.enrollments[id] = e
		}
	}
	return nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.enrollments[e.ID]; !ok || orig.SchoolID != e.SchoolID {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	repo.db.enrollments[e.ID] = e
	return repo.withStudent(e), nil
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if e, ok := repo.db.enrollments[id]; !ok || e.SchoolID != schoolID {
		return enrollment.ErrNotFound
	}
	delete(repo.db.enrollments, id)
	return nil
}

func (repo *enrollmentRepository) CountByStatus(_ context.Context, schoolID string, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[string]int, len(enrollment.Statuses))
	for _, s := range enrollment.Statuses {
		counts[s] = 0
	}
	for _, e := range repo.db.enrollments {
		if e.SchoolID == schoolID {
			counts[e.Status]++
		}
	}
	return counts, nil
}
