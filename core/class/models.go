package class

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edugest/core"
)

// Class belongs to a School and is unique per (school, name, academic year).
type Class struct {
	ID              string          `json:"id"`
	SchoolID        string          `json:"school_id"`
	Name            string          `json:"name"`
	Level           string          `json:"level"`
	AcademicYear    string          `json:"academic_year"`
	Capacity        int             `json:"capacity"`
	RegistrationFee decimal.Decimal `json:"registration_fee"`
	MonthlyFee      decimal.Decimal `json:"monthly_fee"`
	AnnualTuition   decimal.Decimal `json:"annual_tuition"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TotalDue is what a student of the class owes for the year.
func (c Class) TotalDue() decimal.Decimal {
	return c.RegistrationFee.Add(c.AnnualTuition)
}

// Stats is the occupancy and revenue forecast of a class.
type Stats struct {
	ClassID         string          `json:"class_id"`
	Name            string          `json:"name"`
	AcademicYear    string          `json:"academic_year"`
	Capacity        int             `json:"capacity"`
	StudentCount    int             `json:"student_count"`
	OccupancyRate   float64         `json:"occupancy_rate"` // percent
	ExpectedRevenue decimal.Decimal `json:"expected_revenue"`
}

// ComputeStats derives occupancy% (studentCount/capacity*100, 0 without capacity) and
// expectedRevenue (studentCount * (registration_fee + annual_tuition)).
func ComputeStats(c Class, studentCount int) Stats {
	var occupancy float64
	if c.Capacity > 0 {
		occupancy = float64(studentCount) / float64(c.Capacity) * 100
	}
	return Stats{
		ClassID:         c.ID,
		Name:            c.Name,
		AcademicYear:    c.AcademicYear,
		Capacity:        c.Capacity,
		StudentCount:    studentCount,
		OccupancyRate:   occupancy,
		ExpectedRevenue: c.TotalDue().Mul(decimal.NewFromInt(int64(studentCount))),
	}
}

// Summary aggregates the stats of several classes.
type Summary struct {
	Classes         []Stats         `json:"classes"`
	TotalCapacity   int             `json:"total_capacity"`
	TotalStudents   int             `json:"total_students"`
	OccupancyRate   float64         `json:"occupancy_rate"`
	ExpectedRevenue decimal.Decimal `json:"expected_revenue"`
}

func Summarize(stats []Stats) Summary {
	sum := Summary{Classes: stats, ExpectedRevenue: decimal.Zero}
	for _, st := range stats {
		sum.TotalCapacity += st.Capacity
		sum.TotalStudents += st.StudentCount
		sum.ExpectedRevenue = sum.ExpectedRevenue.Add(st.ExpectedRevenue)
	}
	if sum.TotalCapacity > 0 {
		sum.OccupancyRate = float64(sum.TotalStudents) / float64(sum.TotalCapacity) * 100
	}
	if sum.Classes == nil {
		sum.Classes = []Stats{}
	}
	return sum
}

type NewClass struct {
	Name            string          `json:"name" validate:"required,max=50"`
	Level           string          `json:"level"`
	AcademicYear    string          `json:"academic_year" validate:"required,academicyear"`
	Capacity        int             `json:"capacity" validate:"min=0"`
	RegistrationFee decimal.Decimal `json:"registration_fee" validate:"min=0"`
	MonthlyFee      decimal.Decimal `json:"monthly_fee" validate:"min=0"`
	AnnualTuition   decimal.Decimal `json:"annual_tuition" validate:"min=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Level = core.CleanString(nc.Level)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	return validate.Struct(nc)
}

// UpdateClass holds the fields that may be changed; nil fields are left untouched.
type UpdateClass struct {
	Name            *string          `json:"name" validate:"omitempty,min=1,max=50"`
	Level           *string          `json:"level"`
	Capacity        *int             `json:"capacity" validate:"omitempty,min=0"`
	RegistrationFee *decimal.Decimal `json:"registration_fee" validate:"omitempty,min=0"`
	MonthlyFee      *decimal.Decimal `json:"monthly_fee" validate:"omitempty,min=0"`
	AnnualTuition   *decimal.Decimal `json:"annual_tuition" validate:"omitempty,min=0"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	if uc.Name != nil {
		*uc.Name = core.CleanString(*uc.Name)
	}
	if uc.Level != nil {
		*uc.Level = core.CleanString(*uc.Level)
	}
	return validate.Struct(uc)
}

func (uc UpdateClass) apply(c *Class) {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Level != nil {
		c.Level = *uc.Level
	}
	if uc.Capacity != nil {
		c.Capacity = *uc.Capacity
	}
	if uc.RegistrationFee != nil {
		c.RegistrationFee = *uc.RegistrationFee
	}
	if uc.MonthlyFee != nil {
		c.MonthlyFee = *uc.MonthlyFee
	}
	if uc.AnnualTuition != nil {
		c.AnnualTuition = *uc.AnnualTuition
	}
}

type QueryFilter struct {
	Search       string `query:"search"`
	Level        string `query:"level"`
	AcademicYear string `query:"academic_year"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Level = core.CleanString(qf.Level)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}
