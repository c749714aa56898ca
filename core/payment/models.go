package payment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/student"
)

// Payment types
const (
	TypeRegistration   = "registration"
	TypeMonthlyTuition = "monthly_tuition"
	TypeTuition        = "tuition"
	TypeExamFee        = "exam_fee"
	TypeUniform        = "uniform"
	TypeTransport      = "transport"
	TypeOther          = "other"
)

// Payment methods
const (
	MethodCash         = "cash"
	MethodMobileMoney  = "mobile_money"
	MethodBankTransfer = "bank_transfer"
	MethodCheck        = "check"
	MethodCard         = "card"
)

var (
	Types   = []string{TypeRegistration, TypeMonthlyTuition, TypeTuition, TypeExamFee, TypeUniform, TypeTransport, TypeOther}
	Methods = []string{MethodCash, MethodMobileMoney, MethodBankTransfer, MethodCheck, MethodCard}

	// TuitionTypes are the payment types that settle a month.
	TuitionTypes = []string{TypeMonthlyTuition, TypeTuition}
)

// Payment belongs to a Student; its ReceiptNumber is generated by the store, unique per school.
type Payment struct {
	ID            string          `json:"id"`
	SchoolID      string          `json:"school_id"`
	StudentID     string          `json:"student_id"`
	ReceiptNumber string          `json:"receipt_number"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentType   string          `json:"payment_type"`
	PaymentMethod string          `json:"payment_method"`
	PaymentDate   core.Date       `json:"payment_date"`
	PaymentPeriod string          `json:"payment_period"` // YYYY-MM, monthly tuition only
	AcademicYear  string          `json:"academic_year"`
	Reference     string          `json:"reference"`
	Notes         string          `json:"notes"`
	RecordedBy    string          `json:"recorded_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p Payment) IsTuition() bool {
	return p.PaymentType == TypeMonthlyTuition || p.PaymentType == TypeTuition
}

type NewPayment struct {
	StudentID     string          `json:"student_id" validate:"required,uuid"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash mobile_money bank_transfer check card"`
	PaymentType   string          `json:"payment_type" validate:"required,oneof=registration monthly_tuition tuition exam_fee uniform transport other"`
	PaymentDate   core.Date       `json:"payment_date" validate:"required"`
	PaymentPeriod string          `json:"payment_period" validate:"omitempty,month"`
	AcademicYear  string          `json:"academic_year" validate:"omitempty,academicyear"`
	Reference     string          `json:"reference" validate:"max=100"`
	Notes         string          `json:"notes"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID, true /* lower */)
	np.PaymentMethod = core.CleanString(np.PaymentMethod, true /* lower */)
	np.PaymentType = core.CleanString(np.PaymentType, true /* lower */)
	np.PaymentPeriod = core.CleanString(np.PaymentPeriod)
	np.AcademicYear = core.CleanString(np.AcademicYear)
	np.Reference = core.CleanString(np.Reference)
	np.Notes = core.CleanString(np.Notes)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.PaymentType == TypeMonthlyTuition && np.PaymentPeriod == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "payment_period", Error: "this field is required for monthly tuition"})
	}
	return nil
}

type QueryFilter struct {
	StudentID    string    `query:"student_id"`
	Types        []string  `query:"type"`
	Methods      []string  `query:"method"`
	Period       string    `query:"period"`
	AcademicYear string    `query:"academic_year"`
	DateFrom     core.Date `query:"date_from"`
	DateTo       core.Date `query:"date_to"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID, true /* lower */)
	qf.Period = core.CleanString(qf.Period)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}

// DeriveStatus derives a student's payment status from the total paid: partial once anything
// was paid, pending otherwise. paid is only reached when derivePaid is enabled and totalDue is covered.
func DeriveStatus(totalPaid, totalDue decimal.Decimal, derivePaid bool) string {
	if !totalPaid.IsPositive() {
		return student.PaymentPending
	}
	if derivePaid && totalDue.IsPositive() && totalPaid.GreaterThanOrEqual(totalDue) {
		return student.PaymentPaid
	}
	return student.PaymentPartial
}

type Bucket struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

func (b *Bucket) add(amount decimal.Decimal) {
	b.Amount = b.Amount.Add(amount)
	b.Count++
}

// Stats aggregates a school's payments.
type Stats struct {
	Total     Bucket                     `json:"total"`
	Today     Bucket                     `json:"today"`
	ThisMonth Bucket                     `json:"this_month"`
	ThisYear  Bucket                     `json:"this_year"`
	ByMethod  map[string]decimal.Decimal `json:"by_method"`
	ByType    map[string]decimal.Decimal `json:"by_type"`
}

// ComputeStats aggregates payments relative to now (by payment date).
func ComputeStats(payments []Payment, now time.Time) Stats {
	stats := Stats{
		Total:     Bucket{Amount: decimal.Zero},
		Today:     Bucket{Amount: decimal.Zero},
		ThisMonth: Bucket{Amount: decimal.Zero},
		ThisYear:  Bucket{Amount: decimal.Zero},
		ByMethod:  make(map[string]decimal.Decimal),
		ByType:    make(map[string]decimal.Decimal),
	}
	today := core.DateOf(now)
	for _, p := range payments {
		stats.Total.add(p.Amount)
		d := p.PaymentDate
		if d.Year() == today.Year() {
			stats.ThisYear.add(p.Amount)
			if d.Month() == today.Month() {
				stats.ThisMonth.add(p.Amount)
				if d.Day() == today.Day() {
					stats.Today.add(p.Amount)
				}
			}
		}
		stats.ByMethod[p.PaymentMethod] = stats.ByMethod[p.PaymentMethod].Add(p.Amount)
		stats.ByType[p.PaymentType] = stats.ByType[p.PaymentType].Add(p.Amount)
	}
	return stats
}

// FilterLate returns the active students without any tuition payment for month.
// payments may hold any payments; only tuition ones for month are considered.
func FilterLate(students []student.Student, payments []Payment, month string) []student.Student {
	paid := make(map[string]struct{}, len(payments))
	for _, p := range payments {
		if p.IsTuition() && p.PaymentPeriod == month {
			paid[p.StudentID] = struct{}{}
		}
	}
	late := make([]student.Student, 0, len(students))
	for _, s := range students {
		if s.Status != student.StatusActive {
			continue
		}
		if _, ok := paid[s.ID]; !ok {
			late = append(late, s)
		}
	}
	return late
}
