package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ismis/assets"
	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
	emailsvc "github.com/trezcool/ismis/services/email"
	"github.com/trezcool/ismis/services/identity"
	dummydb "github.com/trezcool/ismis/storage/database/dummy"
	"github.com/trezcool/ismis/testutil"
)

var (
	missingTokenErr = httpErr{Error: "missing or malformed token"}
	forbiddenErr    = httpErr{Error: "permission denied"}
)

type testApp struct {
	server   *Server
	idp      *identity.Local
	students student.Repository
	gateway  *testutil.FakeGateway
	mailSvc  *emailsvc.ConsoleServiceMock

	admin, teacher, accounts, jane, john user.Profile
}

// newTestApp starts from an empty in-memory DB holding one user per role; jane & john are students.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return buildTestApp(t, true)
}

// newTestAppWithoutGateway is newTestApp with no payment gateway configured.
func newTestAppWithoutGateway(t *testing.T) *testApp {
	t.Helper()
	return buildTestApp(t, false)
}

func buildTestApp(t *testing.T, withGateway bool) *testApp {
	t.Helper()
	conf := &core.Config{
		AppName:            "ISMIS",
		TestMode:           true,
		SecretKey:          "secret",
		JWTExpirationDelta: time.Hour,
		Server:             core.ServerConfig{DisableReqLogs: true},
	}
	validate, translator := testutil.NewValidator()
	tmpls, err := core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf)
	require.NoError(t, err)

	db := dummydb.Open()
	app := &testApp{
		idp:      identity.NewLocal(dummydb.NewCredentialRepository(db), conf),
		students: dummydb.NewStudentRepository(db),
		gateway:  &testutil.FakeGateway{},
		mailSvc:  emailsvc.NewConsoleServiceMock(tmpls, conf, testutil.NopLogger{}),
	}
	studentSvc := student.NewService(app.students, validate)
	userSvc := user.NewService(dummydb.NewUserRepository(db), app.idp, studentSvc, validate, testutil.NopLogger{})
	paymentDeps := payment.Deps{
		Repo:     dummydb.NewPaymentRepository(db),
		Records:  app.students,
		Rates:    testutil.FixedRates{Rate: 160},
		MailSvc:  app.mailSvc,
		Validate: validate,
		Logger:   testutil.NopLogger{},
	}
	if withGateway {
		paymentDeps.Gateway = app.gateway
	}
	paymentSvc := payment.NewService(paymentDeps)

	app.server = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     testutil.NopLogger{},
		UserSvc:    userSvc,
		StudentSvc: studentSvc,
		PaymentSvc: paymentSvc,
		Translator: translator,
	})
	t.Cleanup(func() { _ = app.server.Close() })

	app.admin = testutil.Register(t, userSvc, user.Registration{Email: "ann@ismis.test", Name: "Ann", Role: user.RoleAdmin})
	app.teacher = testutil.Register(t, userSvc, user.Registration{Email: "tom@ismis.test", Name: "Tom", Role: user.RoleTeacher})
	app.accounts = testutil.Register(t, userSvc, user.Registration{Email: "cam@ismis.test", Name: "Cam", Role: user.RoleAccountsAdmin})
	app.jane = testutil.Register(t, userSvc, user.Registration{
		Email: "jane@ismis.test", Name: "Jane", Role: user.RoleStudent,
		Courses: []string{"Computer Course", "Science Course"}, PaymentPlan: student.PlanTwoInstallments,
	})
	app.john = testutil.Register(t, userSvc, user.Registration{
		Email: "john@ismis.test", Name: "John", Role: user.RoleStudent,
		Courses: []string{"Computer Course"}, PaymentPlan: student.PlanFull,
	})
	return app
}

func (app *testApp) token(t *testing.T, prof user.Profile) string {
	t.Helper()
	token, err := app.idp.IssueToken(prof.ID)
	require.NoError(t, err)
	return token
}

func (app *testApp) record(t *testing.T, id string) student.Record {
	t.Helper()
	rec, err := app.students.GetRecord(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (app *testApp) serve(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	for k, v := range tt.headers {
		req.Header.Set(k, v)
	}
	app.server.ServeHTTP(rec, req)
	return rec
}

// run runs the table, checking status code & body of every test.
func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.serve(tt))
		})
	}
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
	headers  map[string]string
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
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
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, rec.Body.String()) && !ok {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestServer_home(t *testing.T) {
	app := newTestApp(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to ISMIS API!", rec.Body.String())
}
