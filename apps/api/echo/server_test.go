package echoapi

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core"
)

func Test_server_health(t *testing.T) {
	ta := newTestApp(t)

	ta.run(t, []httpTest{
		{
			name:     "ok",
			method:   http.MethodGet,
			path:     "/health",
			wantCode: http.StatusOK,
			wantData: marshallObj(t, Health{Status: "ok", Backend: core.BackendLocal}),
		},
		{
			name:     "unknown route",
			method:   http.MethodGet,
			path:     "/v1/nope",
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "Not Found"}),
		},
	})

	ta.health = Health{Backend: core.BackendSupabase, Degraded: true}
	rec := ta.do(newRequest(http.MethodGet, "/health/"))
	require.Equal(t, http.StatusOK, rec.Code)
	var h Health
	decode(t, rec, &h)
	assert.Equal(t, Health{Status: "degraded", Backend: core.BackendSupabase, Degraded: true}, h)
}

func Test_server_metrics(t *testing.T) {
	ta := newTestApp(t)
	ta.health.Degraded = true
	acme := ta.tenant(t, "Acme Blinds", "acme.test")

	ta.do(newAuthRequest(http.MethodGet, "/v1/users/me", ta.token(t, acme.owner)))
	ta.do(newRequest(http.MethodGet, "/v1/users/me"))

	rec := ta.do(newRequest(http.MethodGet, "/metrics"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `fieldpro_http_requests_total{method="GET",path="/v1/users/me",status="200"} 1`)
	assert.Contains(t, body, `fieldpro_http_requests_total{method="GET",path="/v1/users/me",status="401"} 1`)
	assert.Contains(t, body, "fieldpro_storage_degraded 1")
	assert.NotContains(t, body, `path="/metrics"`)
}

func Test_metricName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"FieldPro", "fieldpro"},
		{" Field Pro-2 ", "field_pro_2"},
		{"", "app"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, metricName(tt.in), tt.in)
	}
}

func Test_server_rateLimit(t *testing.T) {
	ta := newTestApp(t, func(conf *core.Config) {
		conf.Server.RateLimit = 0.001
		conf.Server.RateBurst = 2
	})

	for i := 0; i < 2; i++ {
		rec := ta.do(newRequest(http.MethodGet, "/health"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := ta.do(newRequest(http.MethodGet, "/health"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// clients are limited independently
	req := newRequest(http.MethodGet, "/health")
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.2")
	rec = ta.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_server_bodyLimit(t *testing.T) {
	ta := newTestApp(t, func(conf *core.Config) {
		conf.Server.MaxUploadSize = 64
	})

	body := []byte(`{"email":"` + strings.Repeat("a", 100) + `@acme.test","password":"x"}`)
	rec := ta.do(newRequest(http.MethodPost, "/v1/users/login", body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func Test_appHTTPErrorHandler(t *testing.T) {
	ta := newTestApp(t)
	ta.srv.app.GET("/boom", func(ctx echo.Context) error {
		return errors.Wrap(errors.New("kaboom"), "handling boom")
	})
	ta.srv.app.GET("/halt", func(ctx echo.Context) error {
		return errors.Wrap(core.NewShutdownError("integrity issue"), "handling halt")
	})

	ta.run(t, []httpTest{
		{
			name:     "server errors are hidden",
			method:   http.MethodGet,
			path:     "/boom",
			wantCode: http.StatusInternalServerError,
			wantData: marshallObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)}),
		},
		{
			name:     "malformed body",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"email":`),
			wantCode: http.StatusBadRequest,
		},
	})

	select {
	case <-ta.srv.ShutdownSignal():
		t.Fatal("unexpected shutdown signal")
	default:
	}

	rec := ta.do(newRequest(http.MethodGet, "/halt"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	select {
	case <-ta.srv.ShutdownSignal():
	default:
		t.Fatal("shutdown was not signalled")
	}
}

func Test_server_home(t *testing.T) {
	ta := newTestApp(t)
	rec := ta.do(newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("FieldPro")))
}
