package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/student"
)

var studentColumns = []string{
	"id", "school_id", "matricule", "first_name", "last_name", "date_of_birth", "gender", "email", "phone",
	"address", "parent_name", "parent_phone", "parent_email", "class_name", "academic_year", "status",
	"payment_status", "created_at", "updated_at",
}

type studentRow struct {
	ID            string    `db:"id"`
	SchoolID      string    `db:"school_id"`
	Matricule     string    `db:"matricule"`
	FirstName     string    `db:"first_name"`
	LastName      string    `db:"last_name"`
	DateOfBirth   null.Time `db:"date_of_birth"`
	Gender        string    `db:"gender"`
	Email         string    `db:"email"`
	Phone         string    `db:"phone"`
	Address       string    `db:"address"`
	ParentName    string    `db:"parent_name"`
	ParentPhone   string    `db:"parent_phone"`
	ParentEmail   string    `db:"parent_email"`
	ClassName     string    `db:"class_name"`
	AcademicYear  string    `db:"academic_year"`
	Status        string    `db:"status"`
	PaymentStatus string    `db:"payment_status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r studentRow) toStudent() student.Student {
	return student.Student{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		Matricule:     r.Matricule,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		DateOfBirth:   core.DateOf(r.DateOfBirth.Time),
		Gender:        r.Gender,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		ParentName:    r.ParentName,
		ParentPhone:   r.ParentPhone,
		ParentEmail:   r.ParentEmail,
		ClassName:     r.ClassName,
		AcademicYear:  r.AcademicYear,
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func studentValues(s student.Student) map[string]interface{} {
	return map[string]interface{}{
		"matricule":      s.Matricule,
		"first_name":     s.FirstName,
		"last_name":      s.LastName,
		"date_of_birth":  s.DateOfBirth,
		"gender":         s.Gender,
		"email":          s.Email,
		"phone":          s.Phone,
		"address":        s.Address,
		"parent_name":    s.ParentName,
		"parent_phone":   s.ParentPhone,
		"parent_email":   s.ParentEmail,
		"class_name":     s.ClassName,
		"academic_year":  s.AcademicYear,
		"status":         s.Status,
		"payment_status": s.PaymentStatus,
		"updated_at":     s.UpdatedAt,
	}
}

type studentRepository struct {
	repository
}

var (
	_ student.Repository = (*studentRepository)(nil) // interface compliance check
	_ class.Roster       = (*studentRepository)(nil)
)

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{repository{exec: exec}}
}

func (repo studentRepository) FindContactConflicts(ctx context.Context, schoolID string, c student.Contacts, excludeID string, exec ...core.DBExecutor) ([]string, error) {
	contacts := []struct{ field, value string }{
		{"email", c.Email}, {"phone", c.Phone}, {"parent_phone", c.ParentPhone}, {"parent_email", c.ParentEmail},
	}
	or := make(sq.Or, 0, len(contacts))
	for _, ct := range contacts {
		if ct.value != "" {
			or = append(or, sq.Eq{ct.field: ct.value})
		}
	}
	if len(or) == 0 {
		return nil, nil
	}

	q := psql.Select("email", "phone", "parent_phone", "parent_email").From("students").
		Where(sq.Eq{"school_id": schoolID}).
		Where(or)
	if excludeID != "" {
		q = q.Where(sq.NotEq{"id": excludeID})
	}
	var rows []struct {
		Email       string `db:"email"`
		Phone       string `db:"phone"`
		ParentPhone string `db:"parent_phone"`
		ParentEmail string `db:"parent_email"`
	}
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "finding contact conflicts")
	}

	var fields []string
	for _, ct := range contacts {
		if ct.value == "" {
			continue
		}
		for _, r := range rows {
			existing := map[string]string{"email": r.Email, "phone": r.Phone, "parent_phone": r.ParentPhone, "parent_email": r.ParentEmail}
			if existing[ct.field] == ct.value {
				fields = append(fields, ct.field)
				break
			}
		}
	}
	return fields, nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	s.ID = newID()
	values := studentValues(s)
	values["id"] = s.ID
	values["school_id"] = s.SchoolID
	values["created_at"] = s.CreatedAt
	if _, err := repo.execute(ctx, exec, psql.Insert("students").SetMap(values)); err != nil {
		return student.Student{}, translateErr(err, "inserting student")
	}
	return s, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (student.Student, error) {
	if !validUUID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	q := psql.Select(studentColumns...).From("students").Where(sq.Eq{"school_id": schoolID, "id": id})
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "getting student")
	}
	return row.toStudent(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, schoolID string, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	q := psql.Select(studentColumns...).From("students").Where(sq.Eq{"school_id": schoolID})
	if filter != nil {
		if filter.Search != "" {
			q = q.Where(search(filter.Search, "first_name", "last_name", "matricule", "email", "phone", "parent_phone"))
		}
		if filter.ClassName != "" {
			q = q.Where(sq.Eq{"class_name": filter.ClassName})
		}
		if len(filter.Statuses) > 0 {
			q = q.Where(sq.Eq{"status": lowerAll(filter.Statuses)})
		}
		if filter.PaymentStatus != "" {
			q = q.Where(sq.Eq{"payment_status": filter.PaymentStatus})
		}
		if filter.AcademicYear != "" {
			q = q.Where(sq.Eq{"academic_year": filter.AcademicYear})
		}
		if filter.IDs != nil {
			q = q.Where(sq.Eq{"id": filter.IDs})
		}
	}
	q = orderBy(q, ordering, "last_name ASC, first_name ASC",
		"first_name", "last_name", "matricule", "class_name", "status", "payment_status", "created_at")

	var rows []studentRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	n, err := repo.execute(ctx, exec, psql.Update("students").SetMap(studentValues(s)).Where(sq.Eq{"school_id": s.SchoolID, "id": s.ID}))
	if err != nil {
		return student.Student{}, translateErr(err, "updating student")
	}
	if n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return s, nil
}

func (repo studentRepository) SetPaymentStatus(ctx context.Context, schoolID, id, status string, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, exec, psql.Update("students").
		Set("payment_status", status).
		Set("updated_at", core.NowFunc().UTC()).
		Where(sq.Eq{"school_id": schoolID, "id": id}))
	if err != nil {
		return translateErr(err, "setting payment status")
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo studentRepository) CountStudents(ctx context.Context, schoolID string, exec ...core.DBExecutor) (student.Counts, error) {
	var rows []struct {
		Status        string `db:"status"`
		PaymentStatus string `db:"payment_status"`
		Count         int    `db:"count"`
	}
	q := psql.Select("status", "payment_status", "count(*) AS count").From("students").
		Where(sq.Eq{"school_id": schoolID}).
		GroupBy("status", "payment_status")
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return student.Counts{}, errors.Wrap(err, "counting students")
	}

	counts := student.Counts{ByStatus: make(map[string]int), ByPaymentStatus: make(map[string]int)}
	for _, s := range student.Statuses {
		counts.ByStatus[s] = 0
	}
	for _, s := range student.PaymentStatuses {
		counts.ByPaymentStatus[s] = 0
	}
	for _, r := range rows {
		counts.Total += r.Count
		counts.ByStatus[r.Status] += r.Count
		counts.ByPaymentStatus[r.PaymentStatus] += r.Count
	}
	return counts, nil
}

func (repo studentRepository) CountStudentPayments(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (int, error) {
	var n int
	q := psql.Select("count(*)").From("payments").Where(sq.Eq{"school_id": schoolID, "student_id": id})
	if err := repo.get(ctx, exec, &n, q); err != nil {
		return 0, errors.Wrap(err, "counting student payments")
	}
	return n, nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	if !validUUID(id) {
		return student.ErrNotFound
	}
	n, err := repo.execute(ctx, exec, psql.Delete("students").Where(sq.Eq{"school_id": schoolID, "id": id}))
	if err != nil {
		return translateErr(err, "deleting student")
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}

// Roster

func (repo studentRepository) CountActiveByClass(ctx context.Context, schoolID, academicYear string, exec ...core.DBExecutor) (map[string]int, error) {
	var rows []struct {
		ClassName string `db:"class_name"`
		Count     int    `db:"count"`
	}
	q := psql.Select("class_name", "count(*) AS count").From("students").
		Where(sq.Eq{"school_id": schoolID, "academic_year": academicYear, "status": student.StatusActive}).
		GroupBy("class_name")
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting students by class")
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ClassName] = r.Count
	}
	return counts, nil
}

func (repo studentRepository) CountInClass(ctx context.Context, schoolID, className, academicYear string, exec ...core.DBExecutor) (int, error) {
	var n int
	q := psql.Select("count(*)").From("students").
		Where(sq.Eq{"school_id": schoolID, "class_name": className, "academic_year": academicYear})
	if err := repo.get(ctx, exec, &n, q); err != nil {
		return 0, errors.Wrap(err, "counting students in class")
	}
	return n, nil
}

func (repo studentRepository) RenameClass(ctx context.Context, schoolID, oldName, newName, academicYear string, exec ...core.DBExecutor) error {
	_, err := repo.execute(ctx, exec, psql.Update("students").
		Set("class_name", newName).
		Set("updated_at", core.NowFunc().UTC()).
		Where(sq.Eq{"school_id": schoolID, "class_name": oldName, "academic_year": academicYear}))
	return translateErr(err, "renaming students' class")
}
