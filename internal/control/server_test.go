package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *Engine) {
	t.Helper()
	en := newTestEngine(t)
	return NewServer(en, 0), en
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_Status(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, testThresholds(), st.Config)
	assert.False(t, st.CooldownActive)
}

func TestServer_AdminRequiresIdentity(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/reset-metrics", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/reset-metrics", nil)
	req.Header.Set("X-Admin-Id", "ops-1")
	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_AdminSetConfig(t *testing.T) {
	srv, en := newTestServer(t)

	cfg := testThresholds()
	cfg.FailureRateThreshold = 42
	payload, err := json.Marshal(cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(string(payload)))
	req.Header.Set("X-Admin-Id", "ops-1")
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := en.monitor.Config(req.Context())
	require.NoError(t, err)
	assert.Equal(t, uint32(42), got.FailureRateThreshold)
}

func TestServer_AdminSetConfigRejectsInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(`{"time_window_secs": 1}`))
	req.Header.Set("X-Admin-Id", "ops-1")
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_AdminResetCooldown(t *testing.T) {
	srv, en := newTestServer(t)
	ctx := t.Context()

	require.NoError(t, en.monitor.IncreaseMultiplier(ctx))

	req := httptest.NewRequest(http.MethodPost, "/admin/reset-cooldown", nil)
	req.Header.Set("X-Admin-Id", "ops-1")
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	mult, err := en.monitor.Multiplier(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), mult)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
