package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/student"
)

var enrollmentColumns = []string{
	"e.id", "e.school_id", "e.student_id", "e.student_data", "e.enrollment_type", "e.requested_class",
	"e.approved_class", "e.academic_year", "e.status", "e.enrollment_fee", "e.fee_payment_status",
	"e.payment_method", "e.missing_documents", "e.notes", "e.rejection_reason", "e.approved_by",
	"e.approved_at", "e.created_at", "e.updated_at",
	"coalesce(s.first_name || ' ' || s.last_name, '') AS student_name",
}

type enrollmentRow struct {
	ID               string          `db:"id"`
	SchoolID         string          `db:"school_id"`
	StudentID        null.String     `db:"student_id"`
	StudentData      null.JSON       `db:"student_data"`
	StudentName      string          `db:"student_name"`
	EnrollmentType   string          `db:"enrollment_type"`
	RequestedClass   string          `db:"requested_class"`
	ApprovedClass    string          `db:"approved_class"`
	AcademicYear     string          `db:"academic_year"`
	Status           string          `db:"status"`
	EnrollmentFee    decimal.Decimal `db:"enrollment_fee"`
	FeePaymentStatus string          `db:"fee_payment_status"`
	PaymentMethod    string          `db:"payment_method"`
	MissingDocuments pq.StringArray  `db:"missing_documents"`
	Notes            string          `db:"notes"`
	RejectionReason  string          `db:"rejection_reason"`
	ApprovedBy       null.String     `db:"approved_by"`
	ApprovedAt       null.Time       `db:"approved_at"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r enrollmentRow) toEnrollment() (enrollment.Enrollment, error) {
	e := enrollment.Enrollment{
		ID:               r.ID,
		SchoolID:         r.SchoolID,
		StudentID:        r.StudentID.String,
		StudentName:      r.StudentName,
		EnrollmentType:   r.EnrollmentType,
		RequestedClass:   r.RequestedClass,
		ApprovedClass:    r.ApprovedClass,
		AcademicYear:     r.AcademicYear,
		Status:           r.Status,
		EnrollmentFee:    r.EnrollmentFee,
		FeePaymentStatus: r.FeePaymentStatus,
		PaymentMethod:    r.PaymentMethod,
		MissingDocuments: []string(r.MissingDocuments),
		Notes:            r.Notes,
		RejectionReason:  r.RejectionReason,
		ApprovedBy:       r.ApprovedBy.String,
		ApprovedAt:       r.ApprovedAt.Time,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if e.MissingDocuments == nil {
		e.MissingDocuments = []string{}
	}
	if r.StudentData.Valid {
		var data student.NewStudent
		if err := r.StudentData.Unmarshal(&data); err != nil {
			return enrollment.Enrollment{}, errors.Wrap(err, "decoding student data")
		}
		e.StudentData = &data
	}
	return e, nil
}

func enrollmentValues(e enrollment.Enrollment) (map[string]interface{}, error) {
	data := null.JSON{}
	if e.StudentData != nil {
		b, err := json.Marshal(e.StudentData)
		if err != nil {
			return nil, errors.Wrap(err, "encoding student data")
		}
		data = null.JSONFrom(b)
	}
	return map[string]interface{}{
		"student_id":         nullString(e.StudentID),
		"student_data":       data,
		"enrollment_type":    e.EnrollmentType,
		"requested_class":    e.RequestedClass,
		"approved_class":     e.ApprovedClass,
		"academic_year":      e.AcademicYear,
		"status":             e.Status,
		"enrollment_fee":     e.EnrollmentFee,
		"fee_payment_status": e.FeePaymentStatus,
		"payment_method":     e.PaymentMethod,
		"missing_documents":  pq.StringArray(e.MissingDocuments),
		"notes":              e.Notes,
		"rejection_reason":   e.RejectionReason,
		"approved_by":        nullString(e.ApprovedBy),
		"approved_at":        null.NewTime(e.ApprovedAt, !e.ApprovedAt.IsZero()),
		"updated_at":         e.UpdatedAt,
	}, nil
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{repository{exec: exec}}
}

func (repo enrollmentRepository) selectBuilder(schoolID string) sq.SelectBuilder {
	return psql.Select(enrollmentColumns...).
		From("enrollments e").
		LeftJoin("students s ON s.id = e.student_id").
		Where(sq.Eq{"e.school_id": schoolID})
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	e.ID = newID()
	values, err := enrollmentValues(e)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	values["id"] = e.ID
	values["school_id"] = e.SchoolID
	values["created_at"] = e.CreatedAt
	if _, err = repo.execute(ctx, exec, psql.Insert("enrollments").SetMap(values)); err != nil {
		return enrollment.Enrollment{}, translateErr(err, "inserting enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	if !validUUID(id) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	var row enrollmentRow
	if err := repo.get(ctx, exec, &row, repo.selectBuilder(schoolID).Where(sq.Eq{"e.id": id})); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "getting enrollment")
	}
	return row.toEnrollment()
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, schoolID string, filter *enrollment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	q := repo.selectBuilder(schoolID)
	if filter != nil {
		if filter.Search != "" {
			q = q.Where(search(filter.Search, "s.first_name", "s.last_name", "s.matricule"))
		}
		if len(filter.Statuses) > 0 {
			q = q.Where(sq.Eq{"e.status": lowerAll(filter.Statuses)})
		}
		if len(filter.Types) > 0 {
			q = q.Where(sq.Eq{"e.enrollment_type": lowerAll(filter.Types)})
		}
		if filter.AcademicYear != "" {
			q = q.Where(sq.Eq{"e.academic_year": filter.AcademicYear})
		}
		if filter.ClassName != "" {
			q = q.Where(sq.Or{sq.Eq{"e.requested_class": filter.ClassName}, sq.Eq{"e.approved_class": filter.ClassName}})
		}
	}
	q = orderBy(q, prefixOrdering(ordering, "e."), "e.created_at DESC",
		"e.created_at", "e.status", "e.requested_class", "e.academic_year", "e.enrollment_fee")

	var rows []enrollmentRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEnrollment()
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}

// RenameClass moves the requested and approved class names of the school's enrollments for academicYear.
func (repo enrollmentRepository) RenameClass(ctx context.Context, schoolID, oldName, newName, academicYear string, exec ...core.DBExecutor) error {
	now := core.NowFunc().UTC()
	for _, col := range []string{"requested_class", "approved_class"} {
		_, err := repo.execute(ctx, exec, psql.Update("enrollments").
			Set(col, newName).
			Set("updated_at", now).
			Where(sq.Eq{"school_id": schoolID, col: oldName, "academic_year": academicYear}))
		if err != nil {
			return translateErr(err, "renaming enrollments' class")
		}
	}
	return nil
}

func (repo enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	values, err := enrollmentValues(e)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	n, err := repo.execute(ctx, exec, psql.Update("enrollments").SetMap(values).Where(sq.Eq{"school_id": e.SchoolID, "id": e.ID}))
	if err != nil {
		return enrollment.Enrollment{}, translateErr(err, "updating enrollment")
	}
	if n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return e, nil
}

func (repo enrollmentRepository) DeleteEnrollment(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, exec, psql.Delete("enrollments").Where(sq.Eq{"school_id": schoolID, "id": id}))
	if err != nil {
		return translateErr(err, "deleting enrollment")
	}
	if n == 0 {
		return enrollment.ErrNotFound
	}
	return nil
}

func (repo enrollmentRepository) CountByStatus(ctx context.Context, schoolID string, exec ...core.DBExecutor) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	q := psql.Select("status", "count(*) AS count").From("enrollments").Where(sq.Eq{"school_id": schoolID}).GroupBy("status")
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting enrollments")
	}
	counts := make(map[string]int, len(enrollment.Statuses))
	for _, s := range enrollment.Statuses {
		counts[s] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
