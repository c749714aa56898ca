package inmemdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db}
}

// GenerateReceiptNumber returns <CODE>-<YYYY>-<NNNNNN>, defaultPrefix standing in for schools without a code.
func (repo *paymentRepository) GenerateReceiptNumber(ctx context.Context, schoolID, defaultPrefix string, _ ...core.DBExecutor) (string, error) {
	repo.db.mutex.RLock()
	sch, ok := repo.db.schools[schoolID]
	repo.db.mutex.RUnlock()
	if !ok {
		return "", errors.Errorf("no school %s to number receipts for", schoolID)
	}

	prefix := sch.Code
	if prefix == "" {
		prefix = defaultPrefix
	}
	if prefix == "" {
		prefix = "REC"
	}
	year := core.NowFunc().Year()
	n, err := repo.db.NextValue(ctx, schoolID, "receipt", year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%06d", strings.ToUpper(prefix), year, n), nil
}

func samePeriod(a, b payment.Payment) bool {
	return a.PaymentType == payment.TypeMonthlyTuition && b.PaymentType == payment.TypeMonthlyTuition &&
		a.StudentID == b.StudentID && a.AcademicYear == b.AcademicYear && a.PaymentPeriod == b.PaymentPeriod
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[p.StudentID]; !ok {
		return payment.Payment{}, core.NewRuleError("a referenced record does not exist")
	}
	for _, other := range repo.db.payments {
		if other.SchoolID == p.SchoolID && other.ReceiptNumber == p.ReceiptNumber {
			return payment.Payment{}, payment.ErrReceiptExists
		}
		if samePeriod(other, p) {
			return payment.Payment{}, payment.ErrPeriodPaid
		}
	}
	p.ID = newID()
	repo.db.payments[p.ID] = p
	return p, nil
}

func (repo *paymentRepository) GetPayment(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.payments[id]; ok && p.SchoolID == schoolID {
		return p, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) GetPaymentByReceipt(_ context.Context, schoolID, receipt string, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.payments {
		if p.SchoolID == schoolID && p.ReceiptNumber == receipt {
			return p, nil
		}
	}
	return payment.Payment{}, payment.ErrNotFound
}

var paymentFields = map[string]comparer[payment.Payment]{
	"payment_date":   func(a, b payment.Payment) int { return a.PaymentDate.Compare(b.PaymentDate.Time) },
	"amount":         func(a, b payment.Payment) int { return a.Amount.Cmp(b.Amount) },
	"receipt_number": func(a, b payment.Payment) int { return strings.Compare(a.ReceiptNumber, b.ReceiptNumber) },
	"payment_type":   func(a, b payment.Payment) int { return strings.Compare(a.PaymentType, b.PaymentType) },
	"payment_method": func(a, b payment.Payment) int { return strings.Compare(a.PaymentMethod, b.PaymentMethod) },
	"created_at":     func(a, b payment.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *paymentRepository) QueryPayments(_ context.Context, schoolID string, filter *payment.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	payments := make([]payment.Payment, 0)
	for _, p := range repo.db.payments {
		if p.SchoolID != schoolID {
			continue
		}
		if filter != nil && !paymentMatches(p, filter) {
			continue
		}
		payments = append(payments, p)
	}
	sortRows(payments, ordering, paymentFields, desc("payment_date"), desc("created_at"))
	return payments, nil
}

func paymentMatches(p payment.Payment, filter *payment.QueryFilter) bool {
	switch {
	case filter.StudentID != "" && p.StudentID != filter.StudentID:
		return false
	case len(filter.Types) > 0 && !contains(filter.Types, p.PaymentType):
		return false
	case len(filter.Methods) > 0 && !contains(filter.Methods, p.PaymentMethod):
		return false
	case filter.Period != "" && p.PaymentPeriod != filter.Period:
		return false
	case filter.AcademicYear != "" && p.AcademicYear != filter.AcademicYear:
		return false
	case !filter.DateFrom.IsZero() && p.PaymentDate.Before(filter.DateFrom):
		return false
	case !filter.DateTo.IsZero() && p.PaymentDate.After(filter.DateTo):
		return false
	}
	return true
}

func (repo *paymentRepository) DeletePayment(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if p, ok := repo.db.payments[id]; !ok || p.SchoolID != schoolID {
		return payment.ErrNotFound
	}
	delete(repo.db.payments, id)
	return nil
}

func (repo *paymentRepository) SumStudentPayments(_ context.Context, schoolID, studentID string, _ ...core.DBExecutor) (decimal.Decimal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	total := decimal.Zero
	for _, p := range repo.db.payments {
		if p.SchoolID == schoolID && p.StudentID == studentID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (repo *paymentRepository) PeriodPaid(_ context.Context, schoolID, studentID, academicYear, period string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	probe := payment.Payment{
		PaymentType:   payment.TypeMonthlyTuition,
		StudentID:     studentID,
		AcademicYear:  academicYear,
		PaymentPeriod: period,
	}
	for _, p := range repo.db.payments {
		if p.SchoolID == schoolID && samePeriod(p, probe) {
			return true, nil
		}
	}
	return false, nil
}
