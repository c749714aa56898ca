package class_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/services/email"
	"github.com/trezcool/edugest/services/logger"
	"github.com/trezcool/edugest/tests"
)

const year = "2024-2025"

func setup(t *testing.T) *testutil.Services {
	t.Helper()
	testutil.FreezeTime(t, time.Date(2024, time.October, 1, 8, 0, 0, 0, time.UTC))
	conf := core.NewTestConfig()
	return testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logsvc.NewDiscardLogger()), nil)
}

func TestService_Create(t *testing.T) {
	svcs := setup(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	testutil.CreateClass(t, svcs.Classes, sch.ID, "6A", year, 40, 20000, 15000, 150000)

	_, err := svcs.Classes.Create(ctx, sch.ID, class.NewClass{Name: "6A", AcademicYear: year})
	assert.Equal(t, class.ErrNameExists, err)

	_, err = svcs.Classes.Create(ctx, sch.ID, class.NewClass{Name: "6A", AcademicYear: "2025-2026"})
	assert.NoError(t, err, "names are unique per academic year")

	other := testutil.CreateSchool(t, svcs.Schools, "Institut Mwinda", "IMW")
	_, err = svcs.Classes.Create(ctx, other.ID, class.NewClass{Name: "6A", AcademicYear: year})
	assert.NoError(t, err, "names are unique per school")
}

func TestService_Rename(t *testing.T) {
	svcs := setup(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	c := testutil.CreateClass(t, svcs.Classes, sch.ID, "6A", year, 40, 20000, 15000, 150000)
	testutil.CreateClass(t, svcs.Classes, sch.ID, "6B", year, 40, 20000, 15000, 150000)
	inClass := []student.Student{
		testutil.CreateStudent(t, svcs.Students, sch.ID, "Paul", "Ilunga", "6A", year),
		testutil.CreateStudent(t, svcs.Students, sch.ID, "Marie", "Tshala", "6A", year),
	}
	lastYear := testutil.CreateStudent(t, svcs.Students, sch.ID, "Jean", "Kasongo", "6A", "2023-2024")
	other := testutil.CreateStudent(t, svcs.Students, sch.ID, "Grace", "Mujinga", "6A", "2023-2024")
	pending, err := svcs.Enrollments.Create(ctx, sch.ID, enrollment.NewEnrollment{
		StudentID:      lastYear.ID,
		EnrollmentType: enrollment.TypeReEnrollment,
		RequestedClass: "6A",
		AcademicYear:   year,
	})
	require.NoError(t, err)

	newName := "6ème A"
	c, err = svcs.Classes.Update(ctx, c, class.UpdateClass{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, newName, c.Name)

	pending, err = svcs.Enrollments.Get(ctx, sch.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, newName, pending.RequestedClass)
	res, err := svcs.Enrollments.Approve(ctx, sch.ID, pending.ID, "", enrollment.ApproveEnrollment{})
	require.NoError(t, err, "pending enrollments follow the rename")
	assert.Equal(t, newName, res.Enrollment.ApprovedClass)

	for _, s := range inClass {
		got, err := svcs.Students.Get(ctx, sch.ID, s.ID)
		require.NoError(t, err)
		assert.Equal(t, newName, got.ClassName)
	}
	got, err := svcs.Students.Get(ctx, sch.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "6A", got.ClassName, "other academic years are untouched")

	t.Run("rename onto an existing class", func(t *testing.T) {
		taken := "6B"
		_, err := svcs.Classes.Update(ctx, c, class.UpdateClass{Name: &taken})
		assert.Equal(t, class.ErrNameExists, err)

		got, err := svcs.Students.Get(ctx, sch.ID, inClass[0].ID)
		require.NoError(t, err)
		assert.Equal(t, newName, got.ClassName)
	})
}

func TestService_Delete(t *testing.T) {
	svcs := setup(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	full := testutil.CreateClass(t, svcs.Classes, sch.ID, "6A", year, 40, 0, 0, 0)
	empty := testutil.CreateClass(t, svcs.Classes, sch.ID, "6B", year, 40, 0, 0, 0)
	testutil.CreateStudent(t, svcs.Students, sch.ID, "Paul", "Ilunga", "6A", year)

	assert.Equal(t, class.ErrHasStudents, svcs.Classes.Delete(ctx, full))
	require.NoError(t, svcs.Classes.Delete(ctx, empty))
	_, err := svcs.Classes.Get(ctx, sch.ID, empty.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Stats(t *testing.T) {
	svcs := setup(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	testutil.CreateClass(t, svcs.Classes, sch.ID, "6A", year, 40, 20000, 15000, 150000)
	testutil.CreateClass(t, svcs.Classes, sch.ID, "6B", year, 0, 20000, 15000, 150000)
	for i := 0; i < 32; i++ {
		testutil.CreateStudent(t, svcs.Students, sch.ID, "Élève", "Numéro", "6A", year)
	}
	inactive := testutil.CreateStudent(t, svcs.Students, sch.ID, "Luc", "Mukendi", "6A", year)
	_, err := svcs.Students.SetStatus(ctx, inactive, student.StatusInactive)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		summary, err := svcs.Classes.Stats(ctx, sch.ID, year)
		require.NoError(t, err)
		require.Len(t, summary.Classes, 2)

		a := summary.Classes[0]
		assert.Equal(t, "6A", a.Name)
		assert.Equal(t, 32, a.StudentCount)
		assert.InDelta(t, 80.0, a.OccupancyRate, 0.001)
		assert.True(t, decimal.NewFromInt(5440000).Equal(a.ExpectedRevenue), a.ExpectedRevenue.String())

		b := summary.Classes[1]
		assert.Equal(t, 0, b.StudentCount)
		assert.Zero(t, b.OccupancyRate, "no capacity, no occupancy")

		assert.Equal(t, 32, summary.TotalStudents)
		assert.Equal(t, 40, summary.TotalCapacity)
	}
}
