package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/dashboard"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/reminder"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/core/user"
	"github.com/trezcool/edugest/tests"
)

func Test_enrollmentApi_workflow(t *testing.T) {
	app := setup(t)
	sch := app.schoolStaff(t, "ENR", user.RoleSchoolAdmin, user.RoleTeacher)
	adminToken := app.token(t, sch.users[user.RoleSchoolAdmin])
	year := core.AcademicYear(core.NowFunc())
	testutil.CreateClass(t, app.svcs.Classes, sch.ID, "1ère A", year, 40, 25000, 10000, 100000)

	body := []byte(`{
		"enrollment_type": "new",
		"requested_class": "1ère A",
		"enrollment_fee": "25000",
		"fee_payment_status": "partial",
		"student_data": {"first_name": "Esther", "last_name": "Mwamba", "parent_phone": "+243990000001"}
	}`)
	req, rec := newAuthRequest(http.MethodPost, "/v1/enrollments", adminToken, body)
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var enr enrollment.Enrollment
	unmarshallObj(t, rec, &enr)
	assert.Equal(t, enrollment.StatusPending, enr.Status)
	assert.Equal(t, "Esther Mwamba", enr.StudentName)
	detail := "/v1/enrollments/" + enr.ID

	runHTTPTests(t, app, []httpTest{
		{name: "teacher cannot approve", method: http.MethodPost, path: detail + "/approve", token: app.token(t, sch.users[user.RoleTeacher]), body: []byte(`{}`), wantCode: http.StatusForbidden},
		{name: "documents missing", method: http.MethodPost, path: detail + "/documents-missing", token: adminToken, body: []byte(`{"documents": ["bulletin", " "]}`), wantCode: http.StatusOK},
		{name: "resubmit", method: http.MethodPost, path: detail + "/resubmit", token: adminToken, wantCode: http.StatusOK},
		{name: "overpaid", method: http.MethodPost, path: detail + "/approve", token: adminToken, body: []byte(`{"amount_paid": "30000"}`), wantCode: http.StatusBadRequest},
	})

	req, rec = newAuthRequest(http.MethodPost, detail+"/approve", adminToken, []byte(`{"amount_paid": "10000", "payment_method": "mobile_money"}`))
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res enrollment.ApprovalResult
	unmarshallObj(t, rec, &res)
	assert.Equal(t, enrollment.StatusApproved, res.Enrollment.Status)
	assert.Equal(t, "15000", res.Remaining.String())
	assert.NotEmpty(t, res.Receipt)

	// the student is active and the registration payment is recorded
	req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+enr.StudentID, adminToken)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stud student.Student
	unmarshallObj(t, rec, &stud)
	assert.Equal(t, student.StatusActive, stud.Status)
	assert.Equal(t, student.PaymentPartial, stud.PaymentStatus)

	runHTTPTests(t, app, []httpTest{
		{name: "approved is final", method: http.MethodPost, path: detail + "/reject", token: adminToken, body: []byte(`{"reason": "trop tard"}`), wantCode: http.StatusUnprocessableEntity},
		{name: "approved cannot be deleted", method: http.MethodDelete, path: detail, token: adminToken, wantCode: http.StatusUnprocessableEntity},
	})
}

func Test_paymentApi(t *testing.T) {
	app := setup(t)
	sch := app.schoolStaff(t, "PAY", user.RoleSchoolAdmin, user.RoleAccountant, user.RoleTeacher)
	accountantToken := app.token(t, sch.users[user.RoleAccountant])
	cls := testutil.CreateClass(t, app.svcs.Classes, sch.ID, "CM1", core.AcademicYear(core.NowFunc()), 30, 10000, 5000, 50000)
	payer := testutil.CreateStudent(t, app.svcs.Students, sch.ID, "Daniel", "Tshibanda", cls.Name, cls.AcademicYear)
	late := testutil.CreateStudent(t, app.svcs.Students, sch.ID, "Sarah", "Lukusa", cls.Name, cls.AcademicYear)
	month := core.NowFunc().Format("2006-01")

	newPayment := func(typ, period string) []byte {
		return marshallObj(t, payment.NewPayment{
			StudentID:     payer.ID,
			Amount:        decimal.NewFromInt(5000),
			PaymentMethod: payment.MethodCash,
			PaymentType:   typ,
			PaymentDate:   core.DateOf(core.NowFunc()),
			PaymentPeriod: period,
		})
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/payments", accountantToken, newPayment(payment.TypeMonthlyTuition, month))
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pmt payment.Payment
	unmarshallObj(t, rec, &pmt)
	assert.Regexp(t, "^"+strings.ToUpper(sch.Code)+`-\d{4}-000001$`, pmt.ReceiptNumber)
	assert.Equal(t, sch.users[user.RoleAccountant].ID, pmt.RecordedBy)

	runHTTPTests(t, app, []httpTest{
		{name: "teacher has no access", method: http.MethodGet, path: "/v1/payments", token: app.token(t, sch.users[user.RoleTeacher]), wantCode: http.StatusForbidden},
		{name: "same month twice", method: http.MethodPost, path: "/v1/payments", token: accountantToken, body: newPayment(payment.TypeMonthlyTuition, month), wantCode: http.StatusConflict},
		{name: "monthly without period", method: http.MethodPost, path: "/v1/payments", token: accountantToken, body: newPayment(payment.TypeMonthlyTuition, ""), wantCode: http.StatusBadRequest},
		{name: "by receipt", method: http.MethodGet, path: "/v1/payments/receipts/" + pmt.ReceiptNumber, token: accountantToken, wantCode: http.StatusOK, wantData: marshallObj(t, pmt)},
		{name: "unknown receipt", method: http.MethodGet, path: "/v1/payments/receipts/NOPE", token: accountantToken, wantCode: http.StatusNotFound},
		{name: "bad month", method: http.MethodGet, path: "/v1/payments/late?month=2024-13", token: accountantToken, wantCode: http.StatusBadRequest},
	})

	t.Run("late", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/late?month="+month, accountantToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []student.Student
		unmarshallObj(t, rec, &students)
		require.Len(t, students, 1)
		assert.Equal(t, late.ID, students[0].ID)
	})

	t.Run("stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/stats", accountantToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var stats payment.Stats
		unmarshallObj(t, rec, &stats)
		assert.Equal(t, 1, stats.Total.Count)
		assert.Equal(t, "5000", stats.Today.Amount.String())
	})

	t.Run("receipt pdf", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/payments/"+pmt.ID+"/receipt", accountantToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/payments/"+pmt.ID, accountantToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	})
}

func Test_reportApi(t *testing.T) {
	app := setup(t)
	sch := app.schoolStaff(t, "RPT", user.RoleSchoolAdmin, user.RoleAccountant, user.RoleTeacher)
	accountantToken := app.token(t, sch.users[user.RoleAccountant])
	teacherToken := app.token(t, sch.users[user.RoleTeacher])
	cls := testutil.CreateClass(t, app.svcs.Classes, sch.ID, "CE2", core.AcademicYear(core.NowFunc()), 20, 10000, 5000, 50000)
	stud := testutil.CreateStudent(t, app.svcs.Students, sch.ID, "Benjamin", "Kabongo", cls.Name, cls.AcademicYear)
	testutil.CreatePayment(t, app.svcs.Payments, sch.ID, stud.ID, payment.TypeRegistration, "", 10000)

	for _, path := range []string{"/v1/reports/financial", "/v1/reports/payments?type=registration", "/v1/reports/classes", "/v1/reports/enrollments"} {
		t.Run(path, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, accountantToken)
			app.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
			assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

			req, rec = newAuthRequest(http.MethodGet, path, teacherToken)
			app.do(req, rec)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}

	t.Run("dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", teacherToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var d dashboard.Dashboard
		unmarshallObj(t, rec, &d)
		assert.Equal(t, 1, d.Students.Total)
		assert.Equal(t, 1, d.Classes.TotalStudents)
		assert.Equal(t, "10000", d.Payments.Total.Amount.String())
		assert.Equal(t, 1, d.LateCount)
	})
}

func Test_reminderApi(t *testing.T) {
	app := setup(t)
	sch := app.schoolStaff(t, "RMD", user.RoleAccountant, user.RoleTeacher)
	token := app.token(t, sch.users[user.RoleAccountant])
	stud := testutil.CreateStudent(t, app.svcs.Students, sch.ID, "Léa", "Mukendi", "CP", core.AcademicYear(core.NowFunc()))

	req, rec := newAuthRequest(http.MethodPost, "/v1/reminders/configurations", token, []byte(`{
		"name": "Retard J+3", "trigger_days": 3, "channels": ["Email", "sms", "email"],
		"message_template": "Bonjour {parent_name}, {student_name} n'a pas payé {month}."
	}`))
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var conf reminder.Configuration
	unmarshallObj(t, rec, &conf)
	assert.Equal(t, []string{reminder.ChannelEmail, reminder.ChannelSMS}, conf.Channels)

	req, rec = newAuthRequest(http.MethodPost, "/v1/reminders/configurations/"+conf.ID+"/toggle-active", token)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var toggled reminder.Configuration
	unmarshallObj(t, rec, &toggled)
	assert.Equal(t, !conf.IsActive, toggled.IsActive)

	scheduled := marshallObj(t, reminder.NewScheduled{
		StudentID:   stud.ID,
		Channel:     reminder.ChannelSMS,
		Message:     "Rappel de paiement",
		ScheduledAt: time.Now().Add(time.Hour),
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/reminders/scheduled", token, scheduled)
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rem reminder.Scheduled
	unmarshallObj(t, rec, &rem)
	assert.Equal(t, reminder.StatusPending, rem.Status)
	assert.Equal(t, reminder.SourceManual, rem.Source)

	runHTTPTests(t, app, []httpTest{
		{name: "teacher has no access", method: http.MethodGet, path: "/v1/reminders/scheduled", token: app.token(t, sch.users[user.RoleTeacher]), wantCode: http.StatusForbidden},
		{name: "bad channel", method: http.MethodPost, path: "/v1/reminders/configurations", token: token, body: []byte(`{"name": "x", "channels": ["fax"], "message_template": "x"}`), wantCode: http.StatusBadRequest},
		{name: "cancel", method: http.MethodPost, path: "/v1/reminders/scheduled/" + rem.ID + "/cancel", token: token, wantCode: http.StatusOK},
		{name: "cancel twice", method: http.MethodPost, path: "/v1/reminders/scheduled/" + rem.ID + "/cancel", token: token, wantCode: http.StatusUnprocessableEntity},
		{name: "delete configuration", method: http.MethodDelete, path: "/v1/reminders/configurations/" + conf.ID, token: token, wantCode: http.StatusNoContent},
	})
}
