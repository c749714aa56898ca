package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/student"
)

type studentRepository struct {
	db *DB
}

var (
	_ student.Repository = (*studentRepository)(nil) // interface compliance check
	_ class.Roster       = (*studentRepository)(nil)
)

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

// conflicts returns the contact fields of c already used by another student of the school,
// in email, phone, parent_phone, parent_email order.
func (repo *studentRepository) conflicts(schoolID string, c student.Contacts, excludeID string) []string {
	contacts := []struct {
		field, value string
		get          func(student.Student) string
	}{
		{"email", c.Email, func(s student.Student) string { return s.Email }},
		{"phone", c.Phone, func(s student.Student) string { return s.Phone }},
		{"parent_phone", c.ParentPhone, func(s student.Student) string { return s.ParentPhone }},
		{"parent_email", c.ParentEmail, func(s student.Student) string { return s.ParentEmail }},
	}
	var fields []string
	for _, ct := range contacts {
		if ct.value == "" {
			continue
		}
		for _, s := range repo.db.students {
			if s.SchoolID == schoolID && s.ID != excludeID && ct.get(s) == ct.value {
				fields = append(fields, ct.field)
				break
			}
		}
	}
	return fields
}

// uniqueViolation mirrors the unique indexes of the students table.
func (repo *studentRepository) uniqueViolation(s student.Student) error {
	for _, other := range repo.db.students {
		if other.ID == s.ID || other.SchoolID != s.SchoolID {
			continue
		}
		switch {
		case other.Matricule == s.Matricule:
			return student.NewConflictError("matricule")
		case s.Email != "" && other.Email == s.Email:
			return student.NewConflictError("email")
		case s.Phone != "" && other.Phone == s.Phone:
			return student.NewConflictError("phone")
		}
	}
	return nil
}

func (repo *studentRepository) FindContactConflicts(_ context.Context, schoolID string, c student.Contacts, excludeID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.conflicts(schoolID, c, excludeID), nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.uniqueViolation(s); err != nil {
		return student.Student{}, err
	}
	s.ID = newID()
	repo.db.students[s.ID] = s
	return s, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.students[id]; ok && s.SchoolID == schoolID {
		return s, nil
	}
	return student.Student{}, student.ErrNotFound
}

var studentFields = map[string]comparer[student.Student]{
	"first_name":     func(a, b student.Student) int { return strings.Compare(a.FirstName, b.FirstName) },
	"last_name":      func(a, b student.Student) int { return strings.Compare(a.LastName, b.LastName) },
	"matricule":      func(a, b student.Student) int { return strings.Compare(a.Matricule, b.Matricule) },
	"class_name":     func(a, b student.Student) int { return strings.Compare(a.ClassName, b.ClassName) },
	"status":         func(a, b student.Student) int { return strings.Compare(a.Status, b.Status) },
	"payment_status": func(a, b student.Student) int { return strings.Compare(a.PaymentStatus, b.PaymentStatus) },
	"created_at":     func(a, b student.Student) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *studentRepository) QueryStudents(_ context.Context, schoolID string, filter *student.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0)
	for _, s := range repo.db.students {
		if s.SchoolID != schoolID {
			continue
		}
		if filter != nil && !studentMatches(s, filter) {
			continue
		}
		students = append(students, s)
	}
	sortRows(students, ordering, studentFields, asc("last_name"), asc("first_name"))
	return students, nil
}

func studentMatches(s student.Student, filter *student.QueryFilter) bool {
	switch {
	case filter.Search != "" && !matches(filter.Search, s.FirstName, s.LastName, s.Matricule, s.Email, s.Phone, s.ParentPhone):
		return false
	case filter.ClassName != "" && s.ClassName != filter.ClassName:
		return false
	case len(filter.Statuses) > 0 && !contains(filter.Statuses, s.Status):
		return false
	case filter.PaymentStatus != "" && s.PaymentStatus != filter.PaymentStatus:
		return false
	case filter.AcademicYear != "" && s.AcademicYear != filter.AcademicYear:
		return false
	case filter.IDs != nil && !contains(filter.IDs, s.ID):
		return false
	}
	return true
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.students[s.ID]; !ok || orig.SchoolID != s.SchoolID {
		return student.Student{}, student.ErrNotFound
	}
	if err := repo.uniqueViolation(s); err != nil {
		return student.Student{}, err
	}
	repo.db.students[s.ID] = s
	return s, nil
}

func (repo *studentRepository) SetPaymentStatus(_ context.Context, schoolID, id, status string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.students[id]
	if !ok || s.SchoolID != schoolID {
		return student.ErrNotFound
	}
	s.PaymentStatus = status
	s.UpdatedAt = utcNow()
	repo.db.students[id] = s
	return nil
}

func (repo *studentRepository) CountStudents(_ context.Context, schoolID string, _ ...core.DBExecutor) (student.Counts, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := student.Counts{ByStatus: make(map[string]int), ByPaymentStatus: make(map[string]int)}
	for _, s := range student.Statuses {
		counts.ByStatus[s] = 0
	}
	for _, s := range student.PaymentStatuses {
		counts.ByPaymentStatus[s] = 0
	}
	for _, s := range repo.db.students {
		if s.SchoolID == schoolID {
			counts.Total++
			counts.ByStatus[s.Status]++
			counts.ByPaymentStatus[s.PaymentStatus]++
		}
	}
	return counts, nil
}

func (repo *studentRepository) CountStudentPayments(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, p := range repo.db.payments {
		if p.SchoolID == schoolID && p.StudentID == id {
			n++
		}
	}
	return n, nil
}

// DeleteStudent cascades to the student's enrollments, certificates and reminders.
func (repo *studentRepository) DeleteStudent(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if s, ok := repo.db.students[id]; !ok || s.SchoolID != schoolID {
		return student.ErrNotFound
	}
	delete(repo.db.students, id)
	for k, e := range repo.db.enrollments {
		if e.StudentID == id {
			delete(repo.db.enrollments, k)
		}
	}
	for k, c := range repo.db.certificates {
		if c.StudentID == id {
			delete(repo.db.certificates, k)
		}
	}
	for k, r := range repo.db.scheduled {
		if r.StudentID == id {
			delete(repo.db.scheduled, k)
		}
	}
	return nil
}

// Roster

func (repo *studentRepository) CountActiveByClass(_ context.Context, schoolID, academicYear string, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[string]int)
	for _, s := range repo.db.students {
		if s.SchoolID == schoolID && s.AcademicYear == academicYear && s.Status == student.StatusActive {
			counts[s.ClassName]++
		}
	}
	return counts, nil
}

func (repo *studentRepository) CountInClass(_ context.Context, schoolID, className, academicYear string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, s := range repo.db.students {
		if s.SchoolID == schoolID && s.ClassName == className && s.AcademicYear == academicYear {
			n++
		}
	}
	return n, nil
}

func (repo *studentRepository) RenameClass(_ context.Context, schoolID, oldName, newName, academicYear string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := utcNow()
	for id, s := range repo.db.students {
		if s.SchoolID == schoolID && s.ClassName == oldName && s.AcademicYear == academicYear {
			s.ClassName = newName
			s.UpdatedAt = now
			repo.db.students[id] = s
		}
	}
	return nil
}
