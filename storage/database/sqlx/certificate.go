package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/certificate"
)

var certificateColumns = []string{
	"id", "school_id", "student_id", "certificate_type", "academic_year", "signatory_name", "signatory_title",
	"issue_date", "serial_number", "status", "notes", "created_by", "created_at", "updated_at",
}

type certificateRow struct {
	ID              string      `db:"id"`
	SchoolID        string      `db:"school_id"`
	StudentID       string      `db:"student_id"`
	CertificateType string      `db:"certificate_type"`
	AcademicYear    string      `db:"academic_year"`
	SignatoryName   string      `db:"signatory_name"`
	SignatoryTitle  string      `db:"signatory_title"`
	IssueDate       core.Date   `db:"issue_date"`
	SerialNumber    string      `db:"serial_number"`
	Status          string      `db:"status"`
	Notes           string      `db:"notes"`
	CreatedBy       null.String `db:"created_by"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r certificateRow) toCertificate() certificate.Certificate {
	return certificate.Certificate{
		ID:              r.ID,
		SchoolID:        r.SchoolID,
		StudentID:       r.StudentID,
		CertificateType: r.CertificateType,
		AcademicYear:    r.AcademicYear,
		SignatoryName:   r.SignatoryName,
		SignatoryTitle:  r.SignatoryTitle,
		IssueDate:       r.IssueDate,
		SerialNumber:    r.SerialNumber,
		Status:          r.Status,
		Notes:           r.Notes,
		CreatedBy:       r.CreatedBy.String,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type certificateRepository struct {
	repository
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(exec core.DBExecutor) *certificateRepository {
	return &certificateRepository{repository{exec: exec}}
}

func (repo certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate, exec ...core.DBExecutor) (certificate.Certificate, error) {
	c.ID = newID()
	_, err := repo.execute(ctx, exec, psql.Insert("certificates").Columns(certificateColumns...).Values(
		c.ID, c.SchoolID, c.StudentID, c.CertificateType, c.AcademicYear, c.SignatoryName, c.SignatoryTitle,
		c.IssueDate, c.SerialNumber, c.Status, c.Notes, nullString(c.CreatedBy), c.CreatedAt, c.UpdatedAt,
	))
	if err != nil {
		return certificate.Certificate{}, translateErr(err, "inserting certificate")
	}
	return c, nil
}

func (repo certificateRepository) GetCertificate(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	if !validUUID(id) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	var row certificateRow
	q := psql.Select(certificateColumns...).From("certificates").Where(sq.Eq{"school_id": schoolID, "id": id})
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "getting certificate")
	}
	return row.toCertificate(), nil
}

func (repo certificateRepository) QueryCertificates(ctx context.Context, schoolID string, filter *certificate.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]certificate.Certificate, error) {
	q := psql.Select(certificateColumns...).From("certificates").Where(sq.Eq{"school_id": schoolID})
	if filter != nil {
		if filter.StudentID != "" {
			if !validUUID(filter.StudentID) {
				return []certificate.Certificate{}, nil
			}
			q = q.Where(sq.Eq{"student_id": filter.StudentID})
		}
		if len(filter.Types) > 0 {
			q = q.Where(sq.Eq{"certificate_type": lowerAll(filter.Types)})
		}
		if len(filter.Statuses) > 0 {
			q = q.Where(sq.Eq{"status": lowerAll(filter.Statuses)})
		}
		if filter.AcademicYear != "" {
			q = q.Where(sq.Eq{"academic_year": filter.AcademicYear})
		}
	}
	q = orderBy(q, ordering, "issue_date DESC, created_at DESC", "issue_date", "serial_number", "status", "created_at")

	var rows []certificateRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	certs := make([]certificate.Certificate, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, r.toCertificate())
	}
	return certs, nil
}

func (repo certificateRepository) UpdateCertificate(ctx context.Context, c certificate.Certificate, exec ...core.DBExecutor) (certificate.Certificate, error) {
	n, err := repo.execute(ctx, exec, psql.Update("certificates").SetMap(map[string]interface{}{
		"signatory_name":  c.SignatoryName,
		"signatory_title": c.SignatoryTitle,
		"status":          c.Status,
		"notes":           c.Notes,
		"updated_at":      c.UpdatedAt,
	}).Where(sq.Eq{"school_id": c.SchoolID, "id": c.ID}))
	if err != nil {
		return certificate.Certificate{}, translateErr(err, "updating certificate")
	}
	if n == 0 {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return c, nil
}

func (repo certificateRepository) DeleteCertificate(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, exec, psql.Delete("certificates").Where(sq.Eq{"school_id": schoolID, "id": id}))
	if err != nil {
		return translateErr(err, "deleting certificate")
	}
	if n == 0 {
		return certificate.ErrNotFound
	}
	return nil
}
