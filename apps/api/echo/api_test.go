package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/apps/shared"
	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/ar"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/notification"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
	"github.com/trezcool/fieldpro/services/email"
	"github.com/trezcool/fieldpro/services/logger"
	"github.com/trezcool/fieldpro/storage/localstore"
	"github.com/trezcool/fieldpro/testutil"
)

const testPwd = "Zq8#vLx2!mW"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

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

// testApp is a server backed by a throwaway local store.
type testApp struct {
	srv     *server
	store   *localstore.Store
	mailSvc *emailsvc.ConsoleService
	health  Health
}

func testConfig() *core.Config {
	return &core.Config{
		Env:              "test",
		AppName:          "FieldPro",
		TestMode:         true,
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "FieldPro", Address: "noreply@fieldpro.test"},
		FrontendBaseURL:  "http://localhost:3000",

		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			MaxUploadSize:             1 << 20,
		},
	}
}

func newTestApp(t *testing.T, confs ...func(*core.Config)) *testApp {
	t.Helper()

	conf := testConfig()
	for _, fn := range confs {
		fn(conf)
	}
	store := testutil.OpenStore(t)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	lg := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	lg.Enable(false)

	translator := shared.NewTranslator()
	validate := shared.NewValidator(translator)

	usrSvc := user.NewService(store, mailSvc, conf)
	bizSvc := business.NewService(store)
	custSvc := customer.NewService(store)
	prodSvc := product.NewService(store)
	notifSvc := notification.NewService(store)

	ta := &testApp{
		store:   store,
		mailSvc: mailSvc,
		health:  Health{Backend: core.BackendLocal},
	}
	ta.srv = NewServer(&Options{
		Conf:            conf,
		Logger:          lg,
		DisableReqLogs:  true,
		Validate:        validate,
		Translator:      translator,
		Health:          func() Health { return ta.health },
		UserSvc:         usrSvc,
		BusinessSvc:     bizSvc,
		CustomerSvc:     custSvc,
		ProductSvc:      prodSvc,
		NotificationSvc: notifSvc,
		JobSvc:          job.NewService(store, bizSvc, custSvc, usrSvc, prodSvc, notifSvc, mailSvc),
		ScheduleSvc:     schedule.NewService(store),
		ARSvc:           ar.NewService(store, t.TempDir()),
	}).(*server)
	return ta
}

// fixtures

type tenant struct {
	biz      business.Business
	owner    user.User
	employee user.User
}

func (ta *testApp) admin(t *testing.T) user.User {
	return testutil.CreateUser(t, ta.store, "Ada Admin", "root@fieldpro.test", testPwd, user.RoleAdmin, "", true)
}

func (ta *testApp) tenant(t *testing.T, name, domain string) tenant {
	b := testutil.CreateBusiness(t, ta.store, name)
	return tenant{
		biz:      b,
		owner:    testutil.CreateUser(t, ta.store, "Owen Owner", "owner@"+domain, testPwd, user.RoleBusiness, b.ID, true),
		employee: testutil.CreateUser(t, ta.store, "Eve Fitter", "eve@"+domain, testPwd, user.RoleEmployee, b.ID, true),
	}
}

func (ta *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := ta.srv.auth.generateToken(ta.srv.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

func (ta *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ta.srv.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			rec := ta.do(req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// request helpers

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList(): %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
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
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
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
