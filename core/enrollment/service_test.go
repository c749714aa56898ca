package enrollment_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/services/email"
	"github.com/trezcool/edugest/services/logger"
	"github.com/trezcool/edugest/tests"
)

const year = "2024-2025"

func setup(t *testing.T) (*testutil.Services, school.School) {
	t.Helper()
	testutil.FreezeTime(t, time.Date(2024, time.September, 2, 8, 0, 0, 0, time.UTC))
	conf := core.NewTestConfig()
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logsvc.NewDiscardLogger()), nil)
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	testutil.CreateClass(t, svcs.Classes, sch.ID, "6A", year, 40, 20000, 15000, 150000)
	testutil.CreateClass(t, svcs.Classes, sch.ID, "6B", year, 40, 20000, 15000, 150000)
	return svcs, sch
}

func newStudentEnrollment(email, phone string, fee int64, feeStatus string) enrollment.NewEnrollment {
	return enrollment.NewEnrollment{
		StudentData: &student.NewStudent{
			FirstName:   "Aïcha",
			LastName:    "Mbemba",
			Email:       email,
			Phone:       phone,
			ParentName:  "Joseph Mbemba",
			ParentPhone: "+243820000001",
		},
		EnrollmentType:   enrollment.TypeNew,
		RequestedClass:   "6A",
		AcademicYear:     year,
		EnrollmentFee:    decimal.NewFromInt(fee),
		FeePaymentStatus: feeStatus,
		PaymentMethod:    payment.MethodMobileMoney,
	}
}

func countStudents(t *testing.T, svcs *testutil.Services, schoolID string) int {
	t.Helper()
	counts, err := svcs.Students.Counts(context.Background(), schoolID)
	require.NoError(t, err)
	return counts.Total
}

func TestService_Create(t *testing.T) {
	svcs, sch := setup(t)
	ctx := context.Background()

	e, err := svcs.Enrollments.Create(ctx, sch.ID, newStudentEnrollment("aicha@test.cd", "+243810000001", 20000, enrollment.FeePending))
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusPending, e.Status)
	assert.Equal(t, "Aïcha Mbemba", e.StudentName)
	require.NotEmpty(t, e.StudentID)

	stud, err := svcs.Students.Get(ctx, sch.ID, e.StudentID)
	require.NoError(t, err)
	assert.Equal(t, student.StatusPending, stud.Status)
	assert.Equal(t, "6A", stud.ClassName)
	assert.Equal(t, "24LWA0001", stud.Matricule)

	tests := []struct {
		name  string
		email string
		phone string
		field string
	}{
		{"email collision", "aicha@test.cd", "+243810000099", "email"},
		{"phone collision", "other@test.cd", "+243810000001", "phone"},
		{"parent phone collision", "other@test.cd", "+243810000099", "parent_phone"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := countStudents(t, svcs, sch.ID)
			ne := newStudentEnrollment(tc.email, tc.phone, 0, "")
			if tc.field != "parent_phone" {
				ne.StudentData.ParentPhone = "+243820000099"
			}

			_, err := svcs.Enrollments.Create(ctx, sch.ID, ne)
			require.Error(t, err)
			var conflict *core.ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tc.field, conflict.Field)

			assert.Equal(t, before, countStudents(t, svcs, sch.ID), "no student is created")
			enrollments, err := svcs.Enrollments.Query(ctx, sch.ID, nil, nil)
			require.NoError(t, err)
			assert.Len(t, enrollments, 1, "no enrollment is created")
		})
	}

	t.Run("same contacts in another school", func(t *testing.T) {
		other := testutil.CreateSchool(t, svcs.Schools, "Institut Mwinda", "IMW")
		_, err := svcs.Enrollments.Create(ctx, other.ID, newStudentEnrollment("aicha@test.cd", "+243810000001", 0, ""))
		assert.NoError(t, err)
	})

	t.Run("re-enrollment of an existing student", func(t *testing.T) {
		re, err := svcs.Enrollments.Create(ctx, sch.ID, enrollment.NewEnrollment{
			StudentID:      stud.ID,
			EnrollmentType: enrollment.TypeReEnrollment,
			RequestedClass: "6B",
		})
		require.NoError(t, err)
		assert.Equal(t, stud.ID, re.StudentID)
		assert.Equal(t, year, re.AcademicYear)
	})
}

func TestService_Approve(t *testing.T) {
	partial := decimal.NewFromInt(5000)
	tests := []struct {
		name          string
		fee           int64
		feeStatus     string
		amountPaid    *decimal.Decimal
		approvedClass string
		wantPaid      int64
		wantRemaining int64
		wantClass     string
	}{
		{"fee pending", 20000, enrollment.FeePending, nil, "", 0, 20000, "6A"},
		{"fee paid", 20000, enrollment.FeePaid, nil, "", 20000, 0, "6A"},
		{"fee partially paid", 20000, enrollment.FeePartial, &partial, "6B", 5000, 15000, "6B"},
		{"no fee", 0, enrollment.FeePaid, nil, "", 0, 20000, "6A"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svcs, sch := setup(t)
			ctx := context.Background()
			e, err := svcs.Enrollments.Create(ctx, sch.ID, newStudentEnrollment("aicha@test.cd", "+243810000001", tc.fee, tc.feeStatus))
			require.NoError(t, err)

			res, err := svcs.Enrollments.Approve(ctx, sch.ID, e.ID, "", enrollment.ApproveEnrollment{
				ApprovedClass: tc.approvedClass,
				AmountPaid:    tc.amountPaid,
			})
			require.NoError(t, err)
			assert.Equal(t, enrollment.StatusApproved, res.Enrollment.Status)
			assert.Equal(t, tc.wantClass, res.Enrollment.ApprovedClass)
			assert.True(t, decimal.NewFromInt(tc.wantPaid).Equal(res.AmountPaid))
			assert.True(t, decimal.NewFromInt(20000).Equal(res.TotalAmount))
			assert.True(t, decimal.NewFromInt(tc.wantRemaining).Equal(res.Remaining))

			stud, err := svcs.Students.Get(ctx, sch.ID, e.StudentID)
			require.NoError(t, err)
			assert.Equal(t, student.StatusActive, stud.Status)
			assert.Equal(t, tc.wantClass, stud.ClassName)

			payments, err := svcs.Payments.Query(ctx, sch.ID, &payment.QueryFilter{StudentID: stud.ID}, nil)
			require.NoError(t, err)
			if tc.wantPaid == 0 {
				assert.Empty(t, payments)
				assert.Empty(t, res.Receipt)
				return
			}
			require.Len(t, payments, 1)
			assert.Equal(t, payment.TypeRegistration, payments[0].PaymentType)
			assert.Equal(t, res.Receipt, payments[0].ReceiptNumber)
			assert.True(t, decimal.NewFromInt(tc.wantPaid).Equal(payments[0].Amount))
			assert.Equal(t, student.PaymentPartial, stud.PaymentStatus)
		})
	}
}

type recorder struct {
	payments []payment.Payment
}

func (r *recorder) PaymentRecorded(p payment.Payment) { r.payments = append(r.payments, p) }

func TestService_Approve_reportsPaymentOnce(t *testing.T) {
	testutil.FreezeTime(t, time.Date(2024, time.September, 2, 8, 0, 0, 0, time.UTC))
	conf := core.NewTestConfig()
	rec := &recorder{}
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logsvc.NewDiscardLogger()), rec)
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	testutil.CreateClass(t, svcs.Classes, sch.ID, "6A", year, 40, 20000, 15000, 150000)
	ctx := context.Background()
	tooMuch := decimal.NewFromInt(30000)

	e, err := svcs.Enrollments.Create(ctx, sch.ID, newStudentEnrollment("aicha@test.cd", "+243810000001", 20000, enrollment.FeePaid))
	require.NoError(t, err)

	_, err = svcs.Enrollments.Approve(ctx, sch.ID, e.ID, "", enrollment.ApproveEnrollment{AmountPaid: &tooMuch})
	require.Error(t, err)
	assert.Empty(t, rec.payments)

	res, err := svcs.Enrollments.Approve(ctx, sch.ID, e.ID, "", enrollment.ApproveEnrollment{})
	require.NoError(t, err)
	require.Len(t, rec.payments, 1)
	assert.Equal(t, res.Receipt, rec.payments[0].ReceiptNumber)
	assert.Equal(t, payment.TypeRegistration, rec.payments[0].PaymentType)
}

func TestService_ApproveFailures(t *testing.T) {
	svcs, sch := setup(t)
	ctx := context.Background()
	tooMuch := decimal.NewFromInt(30000)

	e, err := svcs.Enrollments.Create(ctx, sch.ID, newStudentEnrollment("aicha@test.cd", "+243810000001", 20000, enrollment.FeePaid))
	require.NoError(t, err)

	t.Run("unknown class", func(t *testing.T) {
		_, err := svcs.Enrollments.Approve(ctx, sch.ID, e.ID, "", enrollment.ApproveEnrollment{ApprovedClass: "Terminale"})
		assert.True(t, core.IsValidation(err))
	})

	t.Run("amount above the fee rolls everything back", func(t *testing.T) {
		_, err := svcs.Enrollments.Approve(ctx, sch.ID, e.ID, "", enrollment.ApproveEnrollment{AmountPaid: &tooMuch})
		assert.True(t, core.IsValidation(err))

		stud, err := svcs.Students.Get(ctx, sch.ID, e.StudentID)
		require.NoError(t, err)
		assert.Equal(t, student.StatusPending, stud.Status)
		got, err := svcs.Enrollments.Get(ctx, sch.ID, e.ID)
		require.NoError(t, err)
		assert.Equal(t, enrollment.StatusPending, got.Status)
	})

	t.Run("school full", func(t *testing.T) {
		full := testutil.CreateSchool(t, svcs.Schools, "Petite École", "PEC", 0)
		testutil.CreateClass(t, svcs.Classes, full.ID, "6A", year, 40, 0, 0, 0)
		fe, err := svcs.Enrollments.Create(ctx, full.ID, newStudentEnrollment("x@test.cd", "+243810000077", 0, ""))
		require.NoError(t, err)

		_, err = svcs.Enrollments.Approve(ctx, full.ID, fe.ID, "", enrollment.ApproveEnrollment{})
		assert.Equal(t, student.ErrSchoolFull, err)
	})

	t.Run("approved enrollments are final", func(t *testing.T) {
		_, err := svcs.Enrollments.Approve(ctx, sch.ID, e.ID, "", enrollment.ApproveEnrollment{})
		require.NoError(t, err)

		_, err = svcs.Enrollments.Approve(ctx, sch.ID, e.ID, "", enrollment.ApproveEnrollment{})
		assert.True(t, core.IsState(err))
		_, err = svcs.Enrollments.Reject(ctx, sch.ID, e.ID, enrollment.RejectEnrollment{Reason: "late"})
		assert.True(t, core.IsState(err))
		assert.Equal(t, enrollment.ErrApprovedFinal, svcs.Enrollments.Delete(ctx, sch.ID, e.ID))

		payments, err := svcs.Payments.Query(ctx, sch.ID, &payment.QueryFilter{StudentID: e.StudentID}, nil)
		require.NoError(t, err)
		assert.Len(t, payments, 1, "exactly one registration payment")
	})
}

func TestService_Workflow(t *testing.T) {
	svcs, sch := setup(t)
	ctx := context.Background()
	e, err := svcs.Enrollments.Create(ctx, sch.ID, newStudentEnrollment("aicha@test.cd", "+243810000001", 0, ""))
	require.NoError(t, err)

	e, err = svcs.Enrollments.MarkDocumentsMissing(ctx, sch.ID, e.ID, enrollment.MissingDocuments{Documents: []string{"birth certificate"}})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusDocumentsMissing, e.Status)
	assert.Equal(t, []string{"birth certificate"}, e.MissingDocuments)

	notes := "documents received"
	e, err = svcs.Enrollments.Update(ctx, e, enrollment.UpdateEnrollment{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, e.Notes)

	e, err = svcs.Enrollments.Resubmit(ctx, sch.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusPending, e.Status)
	assert.Empty(t, e.MissingDocuments)

	e, err = svcs.Enrollments.Reject(ctx, sch.ID, e.ID, enrollment.RejectEnrollment{Reason: "class full"})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusRejected, e.Status)
	assert.Equal(t, "class full", e.RejectionReason)

	_, err = svcs.Enrollments.Update(ctx, e, enrollment.UpdateEnrollment{Notes: &notes})
	assert.Equal(t, enrollment.ErrNotEditable, err)

	counts, err := svcs.Enrollments.CountByStatus(ctx, sch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[enrollment.StatusRejected])
	assert.Equal(t, 0, counts[enrollment.StatusPending])

	require.NoError(t, svcs.Enrollments.Delete(ctx, sch.ID, e.ID))
	_, err = svcs.Enrollments.Get(ctx, sch.ID, e.ID)
	assert.True(t, core.IsNotFound(err))
}
