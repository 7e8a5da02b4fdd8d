package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmocks "github.com/hasifahmed52-lang/mecha-29-hub/internal/mocks/auth"
)

func TestHealthz(t *testing.T) {
	h := NewRouter(RouterServices{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	v := &authmocks.StaticVerifier{Valid: map[string]string{"ops": "pw"}}
	h := NewRouter(RouterServices{Verifier: v, Config: RouterConfig{MetricsPath: "/metrics"}})

	req := httptest.NewRequest(http.MethodPost, VerifyPath, strings.NewReader(`{"username":"ops","password":"pw"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mecha_hub_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/verify-admin-login"`)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	h := NewRouter(RouterServices{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "boom")
}

func TestLogging_OmitsBody(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	v := &authmocks.StaticVerifier{Valid: map[string]string{"ops": "s3cret-pw"}}
	h := NewRouter(RouterServices{Verifier: v, Logger: logger})

	req := httptest.NewRequest(http.MethodPost, VerifyPath, strings.NewReader(`{"username":"ops","password":"s3cret-pw"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "status=200")
	assert.NotContains(t, buf.String(), "s3cret-pw")
}
