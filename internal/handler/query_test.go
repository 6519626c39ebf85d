package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"marketinsights/internal/cache"
	"marketinsights/internal/model"
	"marketinsights/internal/query"
	"marketinsights/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRouter struct {
	mu      sync.Mutex
	routed  []string
	cleared int
}

func (s *stubRouter) RouteQuery(ctx context.Context, raw string) model.ModelResponse {
	s.mu.Lock()
	s.routed = append(s.routed, raw)
	s.mu.Unlock()
	return model.ModelResponse{
		Content:    "Seattle apartments yield about 4%.",
		ModelUsed:  "test/model:free",
		EngineUsed: model.EngineDatabaseQuery,
	}
}

func (s *stubRouter) Parse(raw string) model.ParsedQuery {
	return query.Parse(raw)
}

func (s *stubRouter) CacheStats() model.CacheStats {
	return model.CacheStats{Hits: 3, Misses: 1, HitRate: 0.75, ResponseEntries: 1}
}

func (s *stubRouter) ClearCache() {
	s.mu.Lock()
	s.cleared++
	s.mu.Unlock()
}

type recordingLog struct {
	entries chan repository.QueryLog
	err     error
}

func (r *recordingLog) LogQuery(ctx context.Context, entry repository.QueryLog) error {
	r.entries <- entry
	return r.err
}

type stubDataCache struct{ cleared bool }

func (s *stubDataCache) CacheStats() cache.Stats { return cache.Stats{Entries: 7} }
func (s *stubDataCache) ClearCache()             { s.cleared = true }

type stubUsage struct{}

func (stubUsage) RateLimitStatus() model.RateLimitStatus {
	return model.RateLimitStatus{DailyLimit: 50, RequestsUsed: 5, Remaining: 45, UsagePercent: 10}
}

func newTestEngine(t *testing.T, router QueryRouter, queryLog QueryLogger, data DataCache, usage UsageReporter) *gin.Engine {
	t.Helper()
	engine := gin.New()
	RegisterRoutes(engine,
		NewQueryHandler(router, queryLog, zaptest.NewLogger(t)),
		NewAdminHandler(router, data, usage),
	)
	return engine
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestQuery_Success(t *testing.T) {
	router := &stubRouter{}
	queryLog := &recordingLog{entries: make(chan repository.QueryLog, 1)}
	engine := newTestEngine(t, router, queryLog, nil, nil)

	w := postJSON(engine, "/api/v1/query", `{"query":"Rental yield for apartments in Seattle"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "Rental yield for apartments in Seattle", resp.Query)
	assert.Equal(t, model.IntentMarketYield, resp.Parsed.Intent)
	assert.Equal(t, []string{"seattle"}, resp.Parsed.Locations)
	assert.Equal(t, model.EngineDatabaseQuery, resp.Response.EngineUsed)
	assert.Equal(t, []string{"Rental yield for apartments in Seattle"}, router.routed)

	select {
	case entry := <-queryLog.entries:
		assert.Equal(t, resp.RequestID, entry.RequestID)
		assert.Equal(t, model.EngineDatabaseQuery, entry.EngineUsed)
		assert.Equal(t, model.IntentMarketYield, entry.Parsed.Intent)
	case <-time.After(2 * time.Second):
		t.Fatal("query was not logged")
	}
}

func TestQuery_LogFailureDoesNotAffectResponse(t *testing.T) {
	queryLog := &recordingLog{entries: make(chan repository.QueryLog, 1), err: errors.New("db down")}
	// The warning is logged after the test may have returned.
	engine := gin.New()
	RegisterRoutes(engine,
		NewQueryHandler(&stubRouter{}, queryLog, zap.NewNop()),
		NewAdminHandler(&stubRouter{}, nil, nil),
	)

	w := postJSON(engine, "/api/v1/query", `{"query":"Should I buy or rent?"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	<-queryLog.entries
}

func TestQuery_InvalidRequests(t *testing.T) {
	router := &stubRouter{}
	engine := newTestEngine(t, router, nil, nil, nil)

	for _, body := range []string{`{}`, `{"query":"   "}`, `not json`} {
		w := postJSON(engine, "/api/v1/query", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, router.routed)
}

func TestQueryStream_Events(t *testing.T) {
	engine := newTestEngine(t, &stubRouter{}, nil, nil, nil)

	w := postJSON(engine, "/api/v1/query/stream", `{"query":"Compare Seattle vs Portland"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	start := strings.Index(body, "event: start")
	parsed := strings.Index(body, "event: parsed")
	response := strings.Index(body, "event: response")
	done := strings.Index(body, "event: done")
	assert.True(t, start >= 0 && start < parsed && parsed < response && response < done, body)
	assert.Contains(t, body, `"intent":"location_comparison"`)
}

func TestParse_Endpoint(t *testing.T) {
	engine := newTestEngine(t, &stubRouter{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/parse?q=2+bedroom+condos+in+Austin+under+%24500k", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var parsed model.ParsedQuery
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Equal(t, []string{"austin"}, parsed.Locations)
	require.NotNil(t, parsed.PropertyType)
	assert.Equal(t, "condo", *parsed.PropertyType)
	require.NotNil(t, parsed.Bedrooms)
	assert.Equal(t, 2, *parsed.Bedrooms)
	require.NotNil(t, parsed.PriceRange)
	assert.Equal(t, 500000.0, parsed.PriceRange.Max)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/parse", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
