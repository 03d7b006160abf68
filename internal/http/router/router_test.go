package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/scout-reports/internal/ai"
	"github.com/ignatzorin/scout-reports/internal/config"
	"github.com/ignatzorin/scout-reports/internal/http/handlers"
	"github.com/ignatzorin/scout-reports/internal/http/middleware"
	"github.com/ignatzorin/scout-reports/internal/metrics"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/service"
)

type noRoles struct{}

func (noRoles) Resolve(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	return models.RoleScout, nil
}

func newTestRouter(t *testing.T, analyzeLimit int64) (http.Handler, *metrics.Metrics) {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	store, err := middleware.NewLimiterStore("")
	require.NoError(t, err)

	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  analyzeLimit,
		RateLimitPeriod: time.Minute,
	}
	tokens := service.NewTokenManager("router-test-access-secret-0123456789", "router-test-refresh-secret-0123456789", time.Hour, time.Hour)

	// Проверки входа срабатывают раньше обращения к модели и хранилищу.
	ingestion := service.NewIngestionService(nil, nil, ai.DefaultRegion, m)
	h := Handlers{
		Analyze: handlers.NewAnalyzeHandler(ingestion),
		Reports: handlers.NewReportHandler(service.NewReportService(nil, noRoles{})),
	}
	return SetupRouter(cfg, h, Deps{Tokens: tokens, Roles: noRoles{}, LimiterStore: store, Metrics: m}), m
}

func serve(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t, 10)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/reports"},
		{http.MethodGet, "/api/reports/map"},
		{http.MethodPatch, "/api/reports/" + uuid.NewString() + "/resolve"},
		{http.MethodGet, "/api/ranger/dashboard"},
	} {
		w := serve(r, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
		assert.Contains(t, w.Body.String(), `"success":false`)
	}
}

func TestRouter_AnalyzeRateLimit(t *testing.T) {
	r, _ := newTestRouter(t, 2)
	for i := 0; i < 2; i++ {
		w := serve(r, http.MethodPost, "/api/analyze", `{}`, map[string]string{"Content-Type": "application/json"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	}
	w := serve(r, http.MethodPost, "/api/analyze", `{}`, map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, 10)
	w := serve(r, http.MethodOptions, "/api/analyze", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodOptions, "/api/analyze", "", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, 10)
	serve(r, http.MethodPost, "/api/analyze", `{}`, map[string]string{"Content-Type": "application/json"})

	w := serve(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `scout_ingestion_submissions_total{result="invalid_input"} 1`)
	assert.Contains(t, body, `scout_http_requests_total{method="POST",route="/api/analyze",status="400"} 1`)
}
