package class

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	sixthA := Class{
		ID:              "c1",
		Name:            "6ème A",
		Capacity:        40,
		RegistrationFee: decimal.NewFromInt(20000),
		AnnualTuition:   decimal.NewFromInt(150000),
	}

	tests := []struct {
		name          string
		class         Class
		count         int
		wantOccupancy float64
		wantRevenue   decimal.Decimal
	}{
		{name: "6ème A", class: sixthA, count: 32, wantOccupancy: 80, wantRevenue: decimal.NewFromInt(5440000)},
		{name: "empty", class: sixthA, count: 0, wantOccupancy: 0, wantRevenue: decimal.Zero},
		{name: "overbooked", class: sixthA, count: 50, wantOccupancy: 125, wantRevenue: decimal.NewFromInt(8500000)},
		{name: "no capacity", class: Class{Name: "CP", AnnualTuition: decimal.NewFromInt(1000)}, count: 3, wantRevenue: decimal.NewFromInt(3000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStats(tt.class, tt.count)
			assert.InDelta(t, tt.wantOccupancy, got.OccupancyRate, 1e-9)
			assert.True(t, tt.wantRevenue.Equal(got.ExpectedRevenue), "revenue = %s, want %s", got.ExpectedRevenue, tt.wantRevenue)

			// pure: same snapshot, same result
			assert.Equal(t, got, ComputeStats(tt.class, tt.count))
		})
	}
}

func TestSummarize(t *testing.T) {
	a := ComputeStats(Class{Name: "A", Capacity: 40, AnnualTuition: decimal.NewFromInt(100)}, 30)
	b := ComputeStats(Class{Name: "B", Capacity: 10, AnnualTuition: decimal.NewFromInt(50)}, 10)

	sum := Summarize([]Stats{a, b})
	assert.Equal(t, 50, sum.TotalCapacity)
	assert.Equal(t, 40, sum.TotalStudents)
	assert.InDelta(t, 80, sum.OccupancyRate, 1e-9)
	assert.True(t, decimal.NewFromInt(3500).Equal(sum.ExpectedRevenue))

	empty := Summarize(nil)
	assert.Equal(t, []Stats{}, empty.Classes)
	assert.Zero(t, empty.OccupancyRate)
}
