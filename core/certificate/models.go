package certificate

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edugest/core"
)

// Certificate types
const (
	TypeEnrollment = "enrollment"
	TypeAttendance = "attendance"
	TypeCompletion = "completion"
	TypeConduct    = "conduct"
	TypeTransfer   = "transfer"
)

// Statuses
const (
	StatusDraft   = "draft"
	StatusIssued  = "issued"
	StatusRevoked = "revoked"
)

var (
	Types    = []string{TypeEnrollment, TypeAttendance, TypeCompletion, TypeConduct, TypeTransfer}
	Statuses = []string{StatusDraft, StatusIssued, StatusRevoked}

	// Titles are the headings printed on the documents.
	Titles = map[string]string{
		TypeEnrollment: "Certificat de scolarité",
		TypeAttendance: "Certificat de fréquentation",
		TypeCompletion: "Attestation de fin d'études",
		TypeConduct:    "Certificat de bonne conduite",
		TypeTransfer:   "Certificat de transfert",
	}

	transitions = map[string]string{
		StatusDraft:  StatusIssued,
		StatusIssued: StatusRevoked,
	}
)

// CanTransition reports whether a certificate may go from status `from` to status `to`.
func CanTransition(from, to string) bool {
	return transitions[from] == to
}

// Certificate is the record of a generated document; the PDF itself is rendered on request.
type Certificate struct {
	ID              string    `json:"id"`
	SchoolID        string    `json:"school_id"`
	StudentID       string    `json:"student_id"`
	CertificateType string    `json:"certificate_type"`
	AcademicYear    string    `json:"academic_year"`
	SignatoryName   string    `json:"signatory_name"`
	SignatoryTitle  string    `json:"signatory_title"`
	IssueDate       core.Date `json:"issue_date"`
	SerialNumber    string    `json:"serial_number"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c Certificate) Title() string {
	if title, ok := Titles[c.CertificateType]; ok {
		return title
	}
	return "Certificat"
}

type NewCertificate struct {
	StudentID       string    `json:"student_id" validate:"required,uuid"`
	CertificateType string    `json:"certificate_type" validate:"required,oneof=enrollment attendance completion conduct transfer"`
	AcademicYear    string    `json:"academic_year" validate:"omitempty,academicyear"`
	SignatoryName   string    `json:"signatory_name" validate:"required"`
	SignatoryTitle  string    `json:"signatory_title"`
	IssueDate       core.Date `json:"issue_date"`
	Notes           string    `json:"notes"`
}

func (nc *NewCertificate) Validate(validate *validator.Validate) error {
	nc.StudentID = core.CleanString(nc.StudentID, true /* lower */)
	nc.CertificateType = core.CleanString(nc.CertificateType, true /* lower */)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	nc.SignatoryName = core.CleanString(nc.SignatoryName)
	nc.SignatoryTitle = core.CleanString(nc.SignatoryTitle)
	nc.Notes = core.CleanString(nc.Notes)
	return validate.Struct(nc)
}

type SetStatus struct {
	Status string `json:"status" validate:"required,oneof=draft issued revoked"`
}

func (ss *SetStatus) Validate(validate *validator.Validate) error {
	ss.Status = core.CleanString(ss.Status, true /* lower */)
	return validate.Struct(ss)
}

type QueryFilter struct {
	StudentID    string   `query:"student_id"`
	Types        []string `query:"type"`
	Statuses     []string `query:"status"`
	AcademicYear string   `query:"academic_year"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID, true /* lower */)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}
