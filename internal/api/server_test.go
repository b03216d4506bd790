package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lukman83/closeshave/internal/metrics"
	"github.com/lukman83/closeshave/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	got  models.SearchRequest
	resp *models.SearchResponse
	err  error
}

func (s *stubSearcher) Search(_ context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	s.got = req
	return s.resp, s.err
}

type stubValidator struct{ v models.Validation }

func (s stubValidator) Validate(context.Context, string) models.Validation { return s.v }

type stubMerchants []models.MerchantInfo

func (s stubMerchants) List() []models.MerchantInfo { return s }

func newTestRouter(opts Options) http.Handler {
	if opts.Version == "" {
		opts.Version = "0.1.0"
	}
	if opts.CORSOrigins == nil {
		opts.CORSOrigins = []string{"http://localhost:5173"}
	}
	return NewHandlers(opts).Router()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRoot(t *testing.T) {
	rec := do(t, newTestRouter(Options{}), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "0.1.0", body["version"])
}

func TestSearch_ok(t *testing.T) {
	s := &stubSearcher{resp: &models.SearchResponse{
		SearchID:     "abc",
		Products:     []models.Listing{{Title: "Mouse", TotalPrice: 9.99}},
		TotalResults: 1,
	}}
	h := newTestRouter(Options{Search: s})

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"mouse","max_results":5,"min_price":1.5}`))
	req.RemoteAddr = "203.0.113.7:4321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mouse", s.got.Query)
	assert.Equal(t, 5, s.got.MaxResults)
	require.NotNil(t, s.got.MinPrice)
	assert.Equal(t, 1.5, *s.got.MinPrice)
	assert.Equal(t, "203.0.113.7", s.got.ClientIP)

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.SearchID)
	assert.Len(t, resp.Products, 1)
}

func TestSearch_forwardedClientIP(t *testing.T) {
	s := &stubSearcher{resp: &models.SearchResponse{}}
	h := newTestRouter(Options{Search: s})

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"tv"}`))
	req.Header.Set("X-Forwarded-For", "198.51.100.20")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.20", s.got.ClientIP)
}

func TestSearch_errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"malformed body", `{"query":`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid request", `{"query":""}`, &models.ValidationError{Err: errors.New("query must not be empty")}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"internal", `{"query":"x"}`, errors.New("database on fire"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(Options{Search: &stubSearcher{err: tt.err}})
			rec := do(t, h, http.MethodPost, "/api/search", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.code, body["error"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, rec.Body.String(), "database on fire")
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		rec := do(t, newTestRouter(Options{}), http.MethodPost, "/api/validate", `{"query":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Query cannot be empty", decodeBody(t, rec)["message"])
	})

	t.Run("disabled is permissive", func(t *testing.T) {
		rec := do(t, newTestRouter(Options{}), http.MethodPost, "/api/validate", `{"query":"laptop"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var v models.Validation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		assert.True(t, v.IsValid)
		assert.False(t, v.HasResults)
		assert.Equal(t, 0.5, v.Confidence)
	})

	t.Run("validator verdict", func(t *testing.T) {
		want := models.Validation{IsValid: true, HasResults: true, Suggestions: []string{"laptop stand"}, Confidence: 0.9}
		h := newTestRouter(Options{Validator: stubValidator{v: want}})
		rec := do(t, h, http.MethodPost, "/api/validate", `{"query":"laptop"}`)

		var v models.Validation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		assert.Equal(t, want, v)
	})
}

func TestHealthAndMerchants(t *testing.T) {
	merchants := stubMerchants{
		{Name: "amazon", Enabled: true, Version: "1.0.0"},
		{Name: "target", Enabled: false, Version: "1.0.0", Headless: true},
	}
	h := newTestRouter(Options{Merchants: merchants})

	rec := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "0.1.0", health.Version)
	assert.Equal(t, []models.MerchantInfo(merchants), health.Merchants)

	rec = do(t, h, http.MethodGet, "/api/merchants", "")
	var list map[string][]models.MerchantInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list["merchants"], 2)
	assert.False(t, list["merchants"][1].Enabled)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOptionalRoutes(t *testing.T) {
	bare := newTestRouter(Options{})
	assert.Equal(t, http.StatusNotFound, do(t, bare, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, do(t, bare, http.MethodGet, "/healthz", "").Code)

	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	full := newTestRouter(Options{Metrics: metrics.New(), MCP: mcp})
	assert.Equal(t, http.StatusOK, do(t, full, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusTeapot, do(t, full, http.MethodPost, "/mcp", "{}").Code)
}
