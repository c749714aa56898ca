package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/student"
)

func TestDeriveStatus(t *testing.T) {
	d := decimal.NewFromInt
	tests := []struct {
		name       string
		paid, due  decimal.Decimal
		derivePaid bool
		want       string
	}{
		{"nothing paid", decimal.Zero, d(170000), false, student.PaymentPending},
		{"first payment", d(50000), d(170000), false, student.PaymentPartial},
		{"fully paid, paid status disabled", d(170000), d(170000), false, student.PaymentPartial},
		{"overpaid, paid status disabled", d(200000), d(170000), false, student.PaymentPartial},
		{"fully paid", d(170000), d(170000), true, student.PaymentPaid},
		{"partially paid", d(50000), d(170000), true, student.PaymentPartial},
		{"no class fees", d(50000), decimal.Zero, true, student.PaymentPartial},
		{"nothing paid, paid status enabled", decimal.Zero, d(170000), true, student.PaymentPending},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(tc.paid, tc.due, tc.derivePaid))
		})
	}
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	payments := []Payment{
		{Amount: decimal.NewFromInt(50000), PaymentMethod: MethodCash, PaymentType: TypeMonthlyTuition, PaymentDate: core.NewDate(2025, time.March, 15)},
		{Amount: decimal.NewFromInt(20000), PaymentMethod: MethodMobileMoney, PaymentType: TypeRegistration, PaymentDate: core.NewDate(2025, time.March, 2)},
		{Amount: decimal.NewFromInt(15000), PaymentMethod: MethodCash, PaymentType: TypeUniform, PaymentDate: core.NewDate(2025, time.January, 10)},
		{Amount: decimal.NewFromInt(10000), PaymentMethod: MethodCash, PaymentType: TypeMonthlyTuition, PaymentDate: core.NewDate(2024, time.December, 10)},
	}

	stats := ComputeStats(payments, now)
	assert.True(t, decimal.NewFromInt(95000).Equal(stats.Total.Amount))
	assert.Equal(t, 4, stats.Total.Count)
	assert.True(t, decimal.NewFromInt(85000).Equal(stats.ThisYear.Amount))
	assert.Equal(t, 3, stats.ThisYear.Count)
	assert.True(t, decimal.NewFromInt(70000).Equal(stats.ThisMonth.Amount))
	assert.Equal(t, 2, stats.ThisMonth.Count)
	assert.True(t, decimal.NewFromInt(50000).Equal(stats.Today.Amount))
	assert.Equal(t, 1, stats.Today.Count)
	assert.True(t, decimal.NewFromInt(75000).Equal(stats.ByMethod[MethodCash]))
	assert.True(t, decimal.NewFromInt(60000).Equal(stats.ByType[TypeMonthlyTuition]))

	empty := ComputeStats(nil, now)
	assert.True(t, empty.Total.Amount.IsZero())
	assert.Empty(t, empty.ByMethod)
}

func TestFilterLate(t *testing.T) {
	students := []student.Student{
		{ID: "s1", Status: student.StatusActive},
		{ID: "s2", Status: student.StatusActive},
		{ID: "s3", Status: student.StatusActive},
		{ID: "s4", Status: student.StatusInactive},
		{ID: "s5", Status: student.StatusActive},
	}
	payments := []Payment{
		{StudentID: "s1", PaymentType: TypeMonthlyTuition, PaymentPeriod: "2025-03"},
		{StudentID: "s2", PaymentType: TypeTuition, PaymentPeriod: "2025-03"},
		{StudentID: "s3", PaymentType: TypeMonthlyTuition, PaymentPeriod: "2025-02"},
		{StudentID: "s5", PaymentType: TypeUniform, PaymentPeriod: "2025-03"},
	}

	late := FilterLate(students, payments, "2025-03")
	ids := make([]string, 0, len(late))
	for _, s := range late {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"s3", "s5"}, ids)
}
