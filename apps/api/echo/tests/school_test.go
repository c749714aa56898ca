package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/edugest/apps/api/echo"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/settings"
	"github.com/trezcool/edugest/core/user"
	"github.com/trezcool/edugest/tests"
)

func Test_schoolApi_onboard(t *testing.T) {
	app := setup(t)
	newcomer := testutil.CreateUser(t, app.svcs.UserRepo, "Nouveau Directeur", "nouveau@test.cd", testPassword, nil, true)
	token := app.token(t, newcomer)

	// no school yet: tenant endpoints are closed
	req, rec := newAuthRequest(http.MethodGet, "/v1/students", token)
	app.do(req, rec)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodPost, "/v1/onboarding", token, marshallObj(t, school.NewSchool{Name: "Complexe Scolaire Uhuru", Code: "csu"}))
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp OnboardingResponse
	unmarshallObj(t, rec, &resp)
	assert.Equal(t, "CSU", resp.School.Code)
	assert.Equal(t, app.conf.Payments.Currency, resp.School.Currency)
	require.NotEmpty(t, resp.Token)

	// the new token works on the school's endpoints
	req, rec = newAuthRequest(http.MethodGet, "/v1/students", resp.Token)
	app.do(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// only once
	req, rec = newAuthRequest(http.MethodPost, "/v1/onboarding", resp.Token, marshallObj(t, school.NewSchool{Name: "Deuxième", Code: "DEUX"}))
	app.do(req, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func Test_schoolApi_admin(t *testing.T) {
	app := setup(t)
	root := app.superAdmin(t)
	rootToken := app.token(t, root)
	sch := app.schoolStaff(t, "ADM", user.RoleSchoolAdmin)
	adminToken := app.token(t, sch.users[user.RoleSchoolAdmin])

	runHTTPTests(t, app, []httpTest{
		{name: "school admin cannot list schools", method: http.MethodGet, path: "/v1/admin/schools", token: adminToken, wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{name: "school admin cannot read settings", method: http.MethodGet, path: "/v1/admin/settings", token: adminToken, wantCode: http.StatusForbidden},
		{name: "unknown school", method: http.MethodGet, path: "/v1/admin/schools/00000000-0000-0000-0000-000000000000", token: rootToken, wantCode: http.StatusNotFound},
		{
			name: "duplicate code", method: http.MethodPost, path: "/v1/admin/schools", token: rootToken,
			body:     marshallObj(t, school.NewSchool{Name: "Copie", Code: "ADM"}),
			wantCode: http.StatusConflict, wantData: marshallObj(t, map[string]string{"code": "a school with this code already exists"}),
		},
	})

	t.Run("create with owner", func(t *testing.T) {
		owner := testutil.CreateUser(t, app.svcs.UserRepo, "Propriétaire", "owner@test.cd", testPassword, nil, true)
		body := marshallObj(t, NewSchoolRequest{NewSchool: school.NewSchool{Name: "Institut Lumumba", Code: "ILU"}, OwnerID: owner.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/schools", rootToken, body)
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var created school.School
		unmarshallObj(t, rec, &created)

		owner, err := app.svcs.Users.GetByID(context.Background(), owner.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, owner.SchoolID)
	})

	t.Run("toggle active closes the school", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/schools/"+sch.ID+"/toggle-active", rootToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var toggled school.School
		unmarshallObj(t, rec, &toggled)
		assert.False(t, toggled.IsActive)

		req, rec = newAuthRequest(http.MethodGet, "/v1/students", adminToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "school deactivated"})}, rec)

		// super admins still get in
		req, rec = newAuthRequest(http.MethodGet, "/v1/students", rootToken)
		req.Header.Set("X-School-ID", sch.ID)
		app.do(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func Test_settings_maintenanceMode(t *testing.T) {
	app := setup(t)
	rootToken := app.token(t, app.superAdmin(t))
	sch := app.schoolStaff(t, "MNT", user.RoleSchoolAdmin)
	adminToken := app.token(t, sch.users[user.RoleSchoolAdmin])

	on := true
	req, rec := newAuthRequest(http.MethodPut, "/v1/admin/settings", rootToken, marshallObj(t, settings.UpdateSystem{MaintenanceMode: &on}))
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sys settings.System
	unmarshallObj(t, rec, &sys)
	assert.True(t, sys.MaintenanceMode)

	newClass := marshallObj(t, map[string]interface{}{"name": "6e A", "academic_year": "2024-2025", "capacity": 30})
	runHTTPTests(t, app, []httpTest{
		{name: "reads still served", method: http.MethodGet, path: "/v1/classes", token: adminToken, wantCode: http.StatusOK},
		{name: "writes refused", method: http.MethodPost, path: "/v1/classes", token: adminToken, body: newClass, wantCode: http.StatusServiceUnavailable, wantData: marshallObj(t, httpErr{Error: "the platform is under maintenance"})},
	})

	req, rec = newAuthRequest(http.MethodPost, "/v1/classes", rootToken, newClass)
	req.Header.Set("X-School-ID", sch.ID)
	app.do(req, rec)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func Test_schoolApi_preferences(t *testing.T) {
	app := setup(t)
	sch := app.schoolStaff(t, "PRF", user.RoleTeacher)
	token := app.token(t, sch.users[user.RoleTeacher])

	req, rec := newAuthRequest(http.MethodGet, "/v1/preferences", token)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var prefs settings.Preferences
	unmarshallObj(t, rec, &prefs)
	assert.Equal(t, "fr", prefs.Language)

	runHTTPTests(t, app, []httpTest{
		{name: "invalid theme", method: http.MethodPut, path: "/v1/preferences", token: token, body: []byte(`{"theme": "pink"}`), wantCode: http.StatusBadRequest},
		{name: "update", method: http.MethodPut, path: "/v1/preferences", token: token, body: []byte(`{"language": "EN", "theme": "dark"}`), wantCode: http.StatusOK},
	})

	prefs, err := app.svcs.Settings.Preferences(context.Background(), sch.users[user.RoleTeacher].ID)
	require.NoError(t, err)
	assert.Equal(t, "en", prefs.Language)
	assert.Equal(t, "dark", prefs.Theme)
}
