package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/petcare/internal/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("INVENTORY_ALLOW_NEGATIVE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.AppAddr)
	require.True(t, cfg.InventoryAllowNegative)
	require.False(t, cfg.FeatureSupplierCatalog)
	require.Equal(t, 10*time.Minute, cfg.SummaryCacheTTL)
	require.Equal(t, 30*time.Second, cfg.AppRequestTimeout)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SUMMARY_CACHE_TTL", "0s")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "SUMMARY_CACHE_TTL")

	t.Setenv("SUMMARY_CACHE_TTL", "1m")
	t.Setenv("APP_READ_TIMEOUT", "soon")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{LogFormat: "json", AppEnv: "test"}).Info("hello")
	require.Contains(t, buf.String(), `"msg":"hello"`)
	require.Contains(t, buf.String(), `"env":"test"`)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(db Pinger, cfg *Config) http.Handler {
	return NewRouter(RouterParams{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   cfg,
		Database: db,
		Metrics:  observability.NewMetrics(),
	})
}

func TestRouterHealthAndProblems(t *testing.T) {
	cfg := &Config{AppEnv: "development", RateLimitPerMinute: 0}

	rr := httptest.NewRecorder()
	newTestRouter(stubPinger{}, cfg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	newTestRouter(stubPinger{err: errors.New("refused")}, cfg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	newTestRouter(nil, cfg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "application/problem+json")

	rr = httptest.NewRecorder()
	newTestRouter(nil, cfg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterRateLimit(t *testing.T) {
	router := newTestRouter(nil, &Config{RateLimitPerMinute: 2})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
