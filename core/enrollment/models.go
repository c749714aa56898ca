package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/student"
)

// Enrollment types
const (
	TypeNew          = "new"
	TypeReEnrollment = "re-enrollment"
)

// Statuses
const (
	StatusPending          = "pending"
	StatusApproved         = "approved"
	StatusRejected         = "rejected"
	StatusDocumentsMissing = "documents_missing"
)

// Fee payment statuses
const (
	FeePending = "pending"
	FeePartial = "partial"
	FeePaid    = "paid"
)

var (
	Statuses = []string{StatusPending, StatusApproved, StatusRejected, StatusDocumentsMissing}

	// transitions lists the statuses reachable from each status; approved and rejected are terminal.
	transitions = map[string][]string{
		StatusPending:          {StatusApproved, StatusRejected, StatusDocumentsMissing},
		StatusDocumentsMissing: {StatusApproved, StatusRejected, StatusPending},
	}
)

// CanTransition reports whether an enrollment may go from status `from` to status `to`.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Enrollment links a (possibly new) Student to a requested class for an academic year.
type Enrollment struct {
	ID               string              `json:"id"`
	SchoolID         string              `json:"school_id"`
	StudentID        string              `json:"student_id"`
	StudentName      string              `json:"student_name"`
	StudentData      *student.NewStudent `json:"student_data,omitempty"`
	EnrollmentType   string              `json:"enrollment_type"`
	RequestedClass   string              `json:"requested_class"`
	ApprovedClass    string              `json:"approved_class"`
	AcademicYear     string              `json:"academic_year"`
	Status           string              `json:"status"`
	EnrollmentFee    decimal.Decimal     `json:"enrollment_fee"`
	FeePaymentStatus string              `json:"fee_payment_status"`
	PaymentMethod    string              `json:"payment_method"`
	MissingDocuments []string            `json:"missing_documents"`
	Notes            string              `json:"notes"`
	RejectionReason  string              `json:"rejection_reason"`
	ApprovedBy       string              `json:"approved_by"`
	ApprovedAt       time.Time           `json:"approved_at"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Editable reports whether the enrollment may still be modified.
func (e Enrollment) Editable() bool {
	return e.Status == StatusPending || e.Status == StatusDocumentsMissing
}

// NewEnrollment creates the student from StudentData when present (new student),
// StudentID is required otherwise (re-enrollment).
type NewEnrollment struct {
	StudentID        string              `json:"student_id" validate:"omitempty,uuid"`
	StudentData      *student.NewStudent `json:"student_data"`
	EnrollmentType   string              `json:"enrollment_type" validate:"required,oneof=new re-enrollment"`
	RequestedClass   string              `json:"requested_class" validate:"required"`
	AcademicYear     string              `json:"academic_year" validate:"omitempty,academicyear"`
	EnrollmentFee    decimal.Decimal     `json:"enrollment_fee" validate:"min=0"`
	FeePaymentStatus string              `json:"fee_payment_status" validate:"omitempty,oneof=pending partial paid"`
	PaymentMethod    string              `json:"payment_method" validate:"omitempty,oneof=cash mobile_money bank_transfer check card"`
	MissingDocuments []string            `json:"missing_documents"`
	Notes            string              `json:"notes"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.StudentID = core.CleanString(ne.StudentID, true /* lower */)
	ne.EnrollmentType = core.CleanString(ne.EnrollmentType, true /* lower */)
	ne.RequestedClass = core.CleanString(ne.RequestedClass)
	ne.AcademicYear = core.CleanString(ne.AcademicYear)
	ne.FeePaymentStatus = core.CleanString(ne.FeePaymentStatus, true /* lower */)
	ne.PaymentMethod = core.CleanString(ne.PaymentMethod, true /* lower */)
	ne.Notes = core.CleanString(ne.Notes)
	ne.MissingDocuments = cleanDocuments(ne.MissingDocuments)
	if ne.StudentData != nil {
		ne.StudentData.Clean()
	}

	if err := validate.Struct(ne); err != nil {
		return err
	}
	if ne.StudentData == nil && ne.StudentID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "this field is required without student_data"})
	}
	return nil
}

// UpdateEnrollment holds the fields that may be changed while the enrollment is editable.
type UpdateEnrollment struct {
	RequestedClass   *string          `json:"requested_class" validate:"omitempty,min=1"`
	AcademicYear     *string          `json:"academic_year" validate:"omitempty,academicyear"`
	EnrollmentFee    *decimal.Decimal `json:"enrollment_fee" validate:"omitempty,min=0"`
	FeePaymentStatus *string          `json:"fee_payment_status" validate:"omitempty,oneof=pending partial paid"`
	PaymentMethod    *string          `json:"payment_method" validate:"omitempty,oneof=cash mobile_money bank_transfer check card"`
	MissingDocuments *[]string        `json:"missing_documents"`
	Notes            *string          `json:"notes"`
}

func (ue *UpdateEnrollment) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ue.RequestedClass, ue.AcademicYear, ue.Notes} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	for _, s := range []*string{ue.FeePaymentStatus, ue.PaymentMethod} {
		if s != nil {
			*s = core.CleanString(*s, true /* lower */)
		}
	}
	if ue.MissingDocuments != nil {
		docs := cleanDocuments(*ue.MissingDocuments)
		ue.MissingDocuments = &docs
	}
	return validate.Struct(ue)
}

func (ue UpdateEnrollment) apply(e *Enrollment) {
	if ue.RequestedClass != nil {
		e.RequestedClass = *ue.RequestedClass
	}
	if ue.AcademicYear != nil {
		e.AcademicYear = *ue.AcademicYear
	}
	if ue.EnrollmentFee != nil {
		e.EnrollmentFee = *ue.EnrollmentFee
	}
	if ue.FeePaymentStatus != nil {
		e.FeePaymentStatus = *ue.FeePaymentStatus
	}
	if ue.PaymentMethod != nil {
		e.PaymentMethod = *ue.PaymentMethod
	}
	if ue.MissingDocuments != nil {
		e.MissingDocuments = *ue.MissingDocuments
	}
	if ue.Notes != nil {
		e.Notes = *ue.Notes
	}
}

// ApproveEnrollment is the approval payload. AmountPaid is the part of the enrollment fee
// collected so far; it defaults to the whole fee when the fee is paid.
type ApproveEnrollment struct {
	ApprovedClass string           `json:"approved_class"`
	AmountPaid    *decimal.Decimal `json:"amount_paid" validate:"omitempty,gt=0"`
	PaymentMethod string           `json:"payment_method" validate:"omitempty,oneof=cash mobile_money bank_transfer check card"`
}

func (ae *ApproveEnrollment) Validate(validate *validator.Validate) error {
	ae.ApprovedClass = core.CleanString(ae.ApprovedClass)
	ae.PaymentMethod = core.CleanString(ae.PaymentMethod, true /* lower */)
	return validate.Struct(ae)
}

// ApprovalResult summarizes the registration fee after an approval.
type ApprovalResult struct {
	Enrollment  Enrollment      `json:"enrollment"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Remaining   decimal.Decimal `json:"remaining"`
	Receipt     string          `json:"receipt_number,omitempty"`
}

type RejectEnrollment struct {
	Reason string `json:"reason" validate:"required"`
}

func (re *RejectEnrollment) Validate(validate *validator.Validate) error {
	re.Reason = core.CleanString(re.Reason)
	return validate.Struct(re)
}

type MissingDocuments struct {
	Documents []string `json:"documents" validate:"required,min=1"`
}

func (md *MissingDocuments) Validate(validate *validator.Validate) error {
	md.Documents = cleanDocuments(md.Documents)
	return validate.Struct(md)
}

type QueryFilter struct {
	Search       string   `query:"search"` // matches the student's names and matricule
	Statuses     []string `query:"status"`
	Types        []string `query:"type"`
	AcademicYear string   `query:"academic_year"`
	ClassName    string   `query:"class"` // requested or approved class
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
	qf.ClassName = core.CleanString(qf.ClassName)
}

func cleanDocuments(docs []string) []string {
	cleaned := make([]string, 0, len(docs))
	for _, d := range docs {
		if d = core.CleanString(d); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return cleaned
}
