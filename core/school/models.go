package school

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edugest/core"
)

// UnlimitedStudents is the MaxStudents value of schools without an enrollment cap.
const UnlimitedStudents = -1

// School is the tenant root: every other row belongs to exactly one School.
type School struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	LogoPath    string    `json:"logo_path"`
	Currency    string    `json:"currency"`
	MaxStudents int       `json:"max_students"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AcceptsStudents reports whether one more active student fits under the school's cap.
func (s School) AcceptsStudents(activeCount int) bool {
	return s.MaxStudents < 0 || activeCount < s.MaxStudents
}

type NewSchool struct {
	Name        string `json:"name" validate:"required"`
	Code        string `json:"code" validate:"required,alphanum,min=2,max=10"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
	LogoPath    string `json:"logo_path"`
	Currency    string `json:"currency"`
	MaxStudents *int   `json:"max_students" validate:"omitempty,min=-1"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = strings.ToUpper(core.CleanString(ns.Code))
	ns.Address = core.CleanString(ns.Address)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Currency = strings.ToUpper(core.CleanString(ns.Currency))
	return validate.Struct(ns)
}

// UpdateSchool holds the fields that may be changed; nil fields are left untouched.
type UpdateSchool struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email" validate:"omitempty,email"`
	LogoPath    *string `json:"logo_path"`
	Currency    *string `json:"currency"`
	MaxStudents *int    `json:"max_students" validate:"omitempty,min=-1"`
}

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	for _, s := range []*string{us.Name, us.Address, us.Phone, us.LogoPath} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if us.Email != nil {
		*us.Email = core.CleanString(*us.Email, true /* lower */)
	}
	if us.Currency != nil {
		*us.Currency = strings.ToUpper(core.CleanString(*us.Currency))
	}
	return validate.Struct(us)
}

func (us UpdateSchool) apply(s *School) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Address != nil {
		s.Address = *us.Address
	}
	if us.Phone != nil {
		s.Phone = *us.Phone
	}
	if us.Email != nil {
		s.Email = *us.Email
	}
	if us.LogoPath != nil {
		s.LogoPath = *us.LogoPath
	}
	if us.Currency != nil && *us.Currency != "" {
		s.Currency = *us.Currency
	}
	if us.MaxStudents != nil {
		s.MaxStudents = *us.MaxStudents
	}
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
