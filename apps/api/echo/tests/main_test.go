package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/edugest/apps/api/echo"
	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/user"
	"github.com/trezcool/edugest/services/document"
	"github.com/trezcool/edugest/services/email"
	"github.com/trezcool/edugest/services/logger"
	"github.com/trezcool/edugest/tests"
)

const testPassword = "Kin.Shasa2020"

var (
	validate   *validator.Validate
	translator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func TestMain(m *testing.M) {
	_en := en.New()
	translator, _ = ut.New(_en, _en).GetTranslator("en")
	validate = validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	os.Exit(m.Run())
}

type testApp struct {
	*Server
	svcs *testutil.Services
	conf *core.Config
}

func setup(t *testing.T) testApp {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	emailsvc.ClearSentMessages()
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logger), nil)

	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Documents:      docsvc.NewGenerator(conf, logger),
		UserSvc:        svcs.Users,
		SchoolSvc:      svcs.Schools,
		SettingsSvc:    svcs.Settings,
		ClassSvc:       svcs.Classes,
		StudentSvc:     svcs.Students,
		EnrollmentSvc:  svcs.Enrollments,
		PaymentSvc:     svcs.Payments,
		CertificateSvc: svcs.Certificates,
		ReminderSvc:    svcs.Reminders,
		DashboardSvc:   svcs.Dashboard,
	})
	return testApp{Server: srv, svcs: svcs, conf: conf}
}

// schoolStaff creates a school with one active user per given role.
func (app testApp) schoolStaff(t *testing.T, code string, roles ...string) (sch schoolFixture) {
	t.Helper()
	sch.School = testutil.CreateSchool(t, app.svcs.Schools, "École "+code, code)
	sch.users = make(map[string]user.User, len(roles))
	for _, role := range roles {
		sch.users[role] = testutil.CreateUser(
			t, app.svcs.UserRepo, role+" "+code, role+"."+strings.ToLower(code)+"@test.cd", testPassword,
			[]user.UserRole{{Role: role, SchoolID: sch.ID}}, true,
		)
	}
	return sch
}

func (app testApp) superAdmin(t *testing.T) user.User {
	t.Helper()
	return testutil.CreateUser(t, app.svcs.UserRepo, "Root", "root@test.cd", testPassword, []user.UserRole{{Role: user.RoleSuperAdmin}}, true)
}

func (app testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr, app.conf), app.conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves the request and returns the recorder.
func (app testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshallObj() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, app.do(req, rec))
		})
	}
}

type schoolFixture struct {
	school.School
	users map[string]user.User
}
