package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edugest/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Payment statuses, derived from the student's payments.
const (
	PaymentPending = "pending"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

var (
	Statuses        = []string{StatusPending, StatusActive, StatusInactive}
	PaymentStatuses = []string{PaymentPending, PaymentPartial, PaymentPaid}
)

// Student belongs to one School, and to one class by name (ClassName is not a foreign key).
type Student struct {
	ID            string    `json:"id"`
	SchoolID      string    `json:"school_id"`
	Matricule     string    `json:"matricule"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	DateOfBirth   core.Date `json:"date_of_birth"`
	Gender        string    `json:"gender"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	ParentName    string    `json:"parent_name"`
	ParentPhone   string    `json:"parent_phone"`
	ParentEmail   string    `json:"parent_email"`
	ClassName     string    `json:"class_name"`
	AcademicYear  string    `json:"academic_year"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (s Student) Contacts() Contacts {
	return Contacts{Email: s.Email, Phone: s.Phone, ParentPhone: s.ParentPhone, ParentEmail: s.ParentEmail}
}

// Contacts are the fields that must not collide with another student of the same school.
type Contacts struct {
	Email       string
	Phone       string
	ParentPhone string
	ParentEmail string
}

func (c Contacts) IsEmpty() bool {
	return c.Email == "" && c.Phone == "" && c.ParentPhone == "" && c.ParentEmail == ""
}

type NewStudent struct {
	FirstName    string    `json:"first_name" validate:"required"`
	LastName     string    `json:"last_name" validate:"required"`
	DateOfBirth  core.Date `json:"date_of_birth"`
	Gender       string    `json:"gender" validate:"omitempty,oneof=male female"`
	Email        string    `json:"email" validate:"omitempty,email"`
	Phone        string    `json:"phone" validate:"omitempty,min=6,max=20"`
	Address      string    `json:"address"`
	ParentName   string    `json:"parent_name"`
	ParentPhone  string    `json:"parent_phone" validate:"omitempty,min=6,max=20"`
	ParentEmail  string    `json:"parent_email" validate:"omitempty,email"`
	ClassName    string    `json:"class_name"`
	AcademicYear string    `json:"academic_year" validate:"omitempty,academicyear"`
	Matricule    string    `json:"matricule" validate:"omitempty,max=30"`
	Status       string    `json:"status" validate:"omitempty,oneof=pending active inactive"`
}

// Clean normalizes the input before validation.
func (ns *NewStudent) Clean() {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Address = core.CleanString(ns.Address)
	ns.ParentName = core.CleanString(ns.ParentName)
	ns.ParentPhone = core.CleanString(ns.ParentPhone)
	ns.ParentEmail = core.CleanString(ns.ParentEmail, true /* lower */)
	ns.ClassName = core.CleanString(ns.ClassName)
	ns.AcademicYear = core.CleanString(ns.AcademicYear)
	ns.Matricule = core.CleanString(ns.Matricule)
	ns.Status = core.CleanString(ns.Status, true /* lower */)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

func (ns NewStudent) Contacts() Contacts {
	return Contacts{Email: ns.Email, Phone: ns.Phone, ParentPhone: ns.ParentPhone, ParentEmail: ns.ParentEmail}
}

// UpdateStudent holds the fields that may be changed; nil fields are left untouched.
type UpdateStudent struct {
	FirstName    *string    `json:"first_name" validate:"omitempty,min=1"`
	LastName     *string    `json:"last_name" validate:"omitempty,min=1"`
	DateOfBirth  *core.Date `json:"date_of_birth"`
	Gender       *string    `json:"gender" validate:"omitempty,oneof=male female"`
	Email        *string    `json:"email" validate:"omitempty,email"`
	Phone        *string    `json:"phone" validate:"omitempty,min=6,max=20"`
	Address      *string    `json:"address"`
	ParentName   *string    `json:"parent_name"`
	ParentPhone  *string    `json:"parent_phone" validate:"omitempty,min=6,max=20"`
	ParentEmail  *string    `json:"parent_email" validate:"omitempty,email"`
	ClassName    *string    `json:"class_name"`
	AcademicYear *string    `json:"academic_year" validate:"omitempty,academicyear"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	for _, s := range []*string{us.FirstName, us.LastName, us.Phone, us.Address, us.ParentName, us.ParentPhone, us.ClassName, us.AcademicYear} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	for _, s := range []*string{us.Gender, us.Email, us.ParentEmail} {
		if s != nil {
			*s = core.CleanString(*s, true /* lower */)
		}
	}
	return validate.Struct(us)
}

func (us UpdateStudent) apply(s *Student) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.FirstName, us.FirstName)
	set(&s.LastName, us.LastName)
	set(&s.Gender, us.Gender)
	set(&s.Email, us.Email)
	set(&s.Phone, us.Phone)
	set(&s.Address, us.Address)
	set(&s.ParentName, us.ParentName)
	set(&s.ParentPhone, us.ParentPhone)
	set(&s.ParentEmail, us.ParentEmail)
	set(&s.ClassName, us.ClassName)
	set(&s.AcademicYear, us.AcademicYear)
	if us.DateOfBirth != nil {
		s.DateOfBirth = *us.DateOfBirth
	}
}

type SetStatus struct {
	Status string `json:"status" validate:"required,oneof=pending active inactive"`
}

func (ss *SetStatus) Validate(validate *validator.Validate) error {
	ss.Status = core.CleanString(ss.Status, true /* lower */)
	return validate.Struct(ss)
}

type QueryFilter struct {
	Search        string   `query:"search"` // matches names, matricule, email, phone
	ClassName     string   `query:"class"`
	Statuses      []string `query:"status"`
	PaymentStatus string   `query:"payment_status"`
	AcademicYear  string   `query:"academic_year"`
	IDs           []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassName = core.CleanString(qf.ClassName)
	qf.PaymentStatus = core.CleanString(qf.PaymentStatus, true /* lower */)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}

// Counts summarizes a school's students.
type Counts struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByPaymentStatus map[string]int `json:"by_payment_status"`
}
