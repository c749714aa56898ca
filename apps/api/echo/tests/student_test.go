package tests

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core/certificate"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/core/user"
	"github.com/trezcool/edugest/tests"
)

func Test_studentApi(t *testing.T) {
	app := setup(t)
	sch := app.schoolStaff(t, "STU", user.RoleSchoolAdmin, user.RoleTeacher)
	other := app.schoolStaff(t, "STO", user.RoleSchoolAdmin)
	adminToken := app.token(t, sch.users[user.RoleSchoolAdmin])
	teacherToken := app.token(t, sch.users[user.RoleTeacher])
	foreign := testutil.CreateStudent(t, app.svcs.Students, other.ID, "Paul", "Étranger", "6e", "2024-2025")

	var created student.Student
	t.Run("create", func(t *testing.T) {
		body := marshallObj(t, student.NewStudent{
			FirstName:   " Grâce ",
			LastName:    "Mbuyi",
			Gender:      "Female",
			ParentPhone: "+243810000001",
			ClassName:   "6e",
			Status:      student.StatusActive,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", adminToken, body)
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshallObj(t, rec, &created)
		assert.Equal(t, "Grâce", created.FirstName)
		assert.Equal(t, "female", created.Gender)
		assert.Equal(t, sch.ID, created.SchoolID)
		assert.NotEmpty(t, created.Matricule)
	})
	require.NotEmpty(t, created.ID)

	runHTTPTests(t, app, []httpTest{
		{name: "teacher reads", method: http.MethodGet, path: "/v1/students", token: teacherToken, wantCode: http.StatusOK},
		{name: "teacher cannot create", method: http.MethodPost, path: "/v1/students", token: teacherToken, body: []byte(`{"first_name": "A", "last_name": "B"}`), wantCode: http.StatusForbidden},
		{name: "validation", method: http.MethodPost, path: "/v1/students", token: adminToken, body: []byte(`{"first_name": "A"}`), wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"last_name": "this field is required"})},
		{name: "duplicate parent phone", method: http.MethodPost, path: "/v1/students", token: adminToken, body: []byte(`{"first_name": "A", "last_name": "B", "parent_phone": "+243810000001"}`), wantCode: http.StatusConflict},
		{name: "other school's student is invisible", method: http.MethodGet, path: "/v1/students/" + foreign.ID, token: adminToken, wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound)},
		{name: "status", method: http.MethodPost, path: "/v1/students/" + created.ID + "/status", token: adminToken, body: []byte(`{"status": "inactive"}`), wantCode: http.StatusOK},
		{name: "bad status", method: http.MethodPost, path: "/v1/students/" + created.ID + "/status", token: adminToken, body: []byte(`{"status": "expelled"}`), wantCode: http.StatusBadRequest},
		{name: "update", method: http.MethodPut, path: "/v1/students/" + created.ID, token: adminToken, body: []byte(`{"address": "Av. Kasa-Vubu 12"}`), wantCode: http.StatusOK},
	})

	t.Run("query", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/students?search=mbuyi&status=inactive", teacherToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []student.Student
		unmarshallObj(t, rec, &students)
		require.Len(t, students, 1)
		assert.Equal(t, "Av. Kasa-Vubu 12", students[0].Address)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/students/"+created.ID, adminToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := app.svcs.Students.Get(context.Background(), sch.ID, created.ID)
		assert.Error(t, err)
	})
}

func Test_classApi(t *testing.T) {
	app := setup(t)
	sch := app.schoolStaff(t, "CLS", user.RoleSchoolAdmin, user.RoleTeacher)
	adminToken := app.token(t, sch.users[user.RoleSchoolAdmin])
	teacherToken := app.token(t, sch.users[user.RoleTeacher])

	cls := testutil.CreateClass(t, app.svcs.Classes, sch.ID, "5e B", "2024-2025", 10, 20000, 15000, 150000)
	testutil.CreateStudent(t, app.svcs.Students, sch.ID, "Jonas", "Ilunga", cls.Name, cls.AcademicYear)
	testutil.CreateStudent(t, app.svcs.Students, sch.ID, "Ruth", "Kalala", cls.Name, cls.AcademicYear)

	runHTTPTests(t, app, []httpTest{
		{name: "duplicate name", method: http.MethodPost, path: "/v1/classes", token: adminToken, body: []byte(`{"name": "5e B", "academic_year": "2024-2025"}`), wantCode: http.StatusConflict},
		{name: "bad academic year", method: http.MethodPost, path: "/v1/classes", token: adminToken, body: []byte(`{"name": "4e", "academic_year": "2024"}`), wantCode: http.StatusBadRequest},
		{name: "teacher cannot update", method: http.MethodPut, path: "/v1/classes/" + cls.ID, token: teacherToken, body: []byte(`{"capacity": 12}`), wantCode: http.StatusForbidden},
		{name: "class with students", method: http.MethodDelete, path: "/v1/classes/" + cls.ID, token: adminToken, wantCode: http.StatusUnprocessableEntity},
	})

	t.Run("stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes/stats?academic_year=2024-2025", teacherToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var summary class.Summary
		unmarshallObj(t, rec, &summary)
		require.Len(t, summary.Classes, 1)
		assert.Equal(t, 2, summary.TotalStudents)
		assert.InDelta(t, 20.0, summary.OccupancyRate, 0.001)
		assert.Equal(t, "340000", summary.ExpectedRevenue.String())
	})

	t.Run("rename cascades", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/classes/"+cls.ID, adminToken, []byte(`{"name": "5e C"}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		students, err := app.svcs.Students.Query(context.Background(), sch.ID, &student.QueryFilter{ClassName: "5e C"}, nil)
		require.NoError(t, err)
		assert.Len(t, students, 2)
	})
}

func Test_certificateApi(t *testing.T) {
	app := setup(t)
	sch := app.schoolStaff(t, "CRT", user.RoleSchoolAdmin, user.RoleTeacher)
	adminToken := app.token(t, sch.users[user.RoleSchoolAdmin])
	teacherToken := app.token(t, sch.users[user.RoleTeacher])
	stud := testutil.CreateStudent(t, app.svcs.Students, sch.ID, "Joël", "Kanku", "4e", "2024-2025")

	body := marshallObj(t, certificate.NewCertificate{
		StudentID:       stud.ID,
		CertificateType: "Enrollment",
		SignatoryName:   "Mme Directrice",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/certificates", adminToken, body)
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cert certificate.Certificate
	unmarshallObj(t, rec, &cert)
	assert.Equal(t, certificate.StatusDraft, cert.Status)
	assert.Equal(t, "2024-2025", cert.AcademicYear)
	assert.Regexp(t, `^CERT-\d{4}-0001$`, cert.SerialNumber)
	detail := "/v1/certificates/" + cert.ID

	runHTTPTests(t, app, []httpTest{
		{name: "teacher cannot create", method: http.MethodPost, path: "/v1/certificates", token: teacherToken, body: body, wantCode: http.StatusForbidden},
		{name: "draft cannot be revoked", method: http.MethodPost, path: detail + "/status", token: adminToken, body: []byte(`{"status": "revoked"}`), wantCode: http.StatusUnprocessableEntity},
		{name: "issue", method: http.MethodPost, path: detail + "/status", token: adminToken, body: []byte(`{"status": "issued"}`), wantCode: http.StatusOK},
		{name: "teacher reads", method: http.MethodGet, path: detail, token: teacherToken, wantCode: http.StatusOK},
	})

	t.Run("pdf", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, detail+"/pdf", teacherToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})
}
