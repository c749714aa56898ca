package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/certificate"
)

var errSerialTaken = core.NewConflictError("serial_number", "a certificate with this serial number already exists")

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) *certificateRepository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, c certificate.Certificate, _ ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.certificates {
		if other.SchoolID == c.SchoolID && other.SerialNumber == c.SerialNumber {
			return certificate.Certificate{}, errSerialTaken
		}
	}
	c.ID = newID()
	repo.db.certificates[c.ID] = c
	return c, nil
}

func (repo *certificateRepository) GetCertificate(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.certificates[id]; ok && c.SchoolID == schoolID {
		return c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

var certificateFields = map[string]comparer[certificate.Certificate]{
	"issue_date":    func(a, b certificate.Certificate) int { return a.IssueDate.Compare(b.IssueDate.Time) },
	"serial_number": func(a, b certificate.Certificate) int { return strings.Compare(a.SerialNumber, b.SerialNumber) },
	"status":        func(a, b certificate.Certificate) int { return strings.Compare(a.Status, b.Status) },
	"created_at":    func(a, b certificate.Certificate) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *certificateRepository) QueryCertificates(_ context.Context, schoolID string, filter *certificate.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	certs := make([]certificate.Certificate, 0)
	for _, c := range repo.db.certificates {
		if c.SchoolID != schoolID {
			continue
		}
		if filter != nil {
			switch {
			case filter.StudentID != "" && c.StudentID != filter.StudentID:
				continue
			case len(filter.Types) > 0 && !contains(filter.Types, c.CertificateType):
				continue
			case len(filter.Statuses) > 0 && !contains(filter.Statuses, c.Status):
				continue
			case filter.AcademicYear != "" && c.AcademicYear != filter.AcademicYear:
				continue
			}
		}
		certs = append(certs, c)
	}
	sortRows(certs, ordering, certificateFields, desc("issue_date"), desc("created_at"))
	return certs, nil
}

func (repo *certificateRepository) UpdateCertificate(_ context.Context, c certificate.Certificate, _ ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.certificates[c.ID]
	if !ok || orig.SchoolID != c.SchoolID {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	orig.SignatoryName = c.SignatoryName
	orig.SignatoryTitle = c.SignatoryTitle
	orig.Status = c.Status
	orig.Notes = c.Notes
	orig.UpdatedAt = c.UpdatedAt
	repo.db.certificates[c.ID] = orig
	return orig, nil
}

func (repo *certificateRepository) DeleteCertificate(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c, ok := repo.db.certificates[id]; !ok || c.SchoolID != schoolID {
		return certificate.ErrNotFound
	}
	delete(repo.db.certificates, id)
	return nil
}
