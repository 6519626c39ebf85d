package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"marketinsights/internal/config"
	"marketinsights/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeOpenRouter fails for the models in failing and answers for the rest
type fakeOpenRouter struct {
	failing map[string]bool
	reply   string

	mu      sync.Mutex
	models  []string
	headers []http.Header
}

func (f *fakeOpenRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.models = append(f.models, body.Model)
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.failing[body.Model] {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
		return
	}

	reply := f.reply
	if reply == "" {
		reply = "Seattle yields sit near 4%."
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "gen-1",
		"object": "chat.completion",
		"model":  body.Model,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": reply},
		}},
	})
}

func newTestClient(t *testing.T, server *httptest.Server) *OpenRouterClient {
	t.Helper()
	client, err := NewOpenRouterClient(&config.OpenRouterConfig{
		APIKey:            "test-key",
		APIBase:           server.URL + "/api/v1/",
		DefaultModel:      "primary:free",
		FallbackModels:    []string{"second:free", "third:free", "fourth:free"},
		MaxFallbacks:      2,
		Timeout:           5 * time.Second,
		MaxTokens:         300,
		Temperature:       0.3,
		HTTPReferer:       "https://insights.local",
		AppTitle:          "Market Insights",
		DailyRequestLimit: 50,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func userQuestion(q string) GenerationRequest {
	return GenerationRequest{
		Messages: []model.Message{
			{Role: "system", Content: "You are a real estate market analyst."},
			{Role: "user", Content: q},
		},
	}
}

func TestNewOpenRouterClient_RequiresKey(t *testing.T) {
	_, err := NewOpenRouterClient(&config.OpenRouterConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenRouterClient_FirstModelAnswers(t *testing.T) {
	fake := &fakeOpenRouter{}
	server := httptest.NewServer(fake)
	defer server.Close()
	client := newTestClient(t, server)

	gen, err := client.Generate(context.Background(), userQuestion("Seattle yields?"))
	require.NoError(t, err)
	assert.Equal(t, "primary:free", gen.Model)
	assert.Equal(t, "Seattle yields sit near 4%.", gen.Content)
	assert.Equal(t, []string{"primary:free"}, fake.models)

	h := fake.headers[0]
	assert.Equal(t, "Bearer test-key", h.Get("Authorization"))
	assert.Equal(t, "https://insights.local", h.Get("HTTP-Referer"))
	assert.Equal(t, "Market Insights", h.Get("X-Title"))
}

func TestOpenRouterClient_FallsBackInOrder(t *testing.T) {
	fake := &fakeOpenRouter{failing: map[string]bool{"primary:free": true}}
	server := httptest.NewServer(fake)
	defer server.Close()
	client := newTestClient(t, server)

	gen, err := client.Generate(context.Background(), userQuestion("Seattle yields?"))
	require.NoError(t, err)
	assert.Equal(t, "second:free", gen.Model)
	assert.Equal(t, []string{"primary:free", "second:free"}, fake.models)
	assert.Equal(t, int64(1), client.UsageCount())
}

func TestOpenRouterClient_ExhaustsBoundedList(t *testing.T) {
	fake := &fakeOpenRouter{failing: map[string]bool{
		"primary:free": true, "second:free": true, "third:free": true,
	}}
	server := httptest.NewServer(fake)
	defer server.Close()
	client := newTestClient(t, server)

	_, err := client.Generate(context.Background(), userQuestion("Seattle yields?"))
	assert.ErrorIs(t, err, ErrProviderExhausted)
	// fourth:free is beyond the fallback bound and never tried
	assert.Equal(t, []string{"primary:free", "second:free", "third:free"}, fake.models)
	assert.Zero(t, client.UsageCount())
}

func TestOpenRouterClient_RateLimitStatus(t *testing.T) {
	server := httptest.NewServer(&fakeOpenRouter{})
	defer server.Close()
	client := newTestClient(t, server)

	for i := 0; i < 5; i++ {
		_, err := client.Generate(context.Background(), userQuestion("hi"))
		require.NoError(t, err)
	}

	status := client.RateLimitStatus()
	assert.Equal(t, 50, status.DailyLimit)
	assert.Equal(t, int64(5), status.RequestsUsed)
	assert.Equal(t, int64(45), status.Remaining)
	assert.Equal(t, 10.0, status.UsagePercent)
}

func TestOpenRouterClient_TestConnection(t *testing.T) {
	server := httptest.NewServer(&fakeOpenRouter{reply: "Connection successful"})
	defer server.Close()
	assert.NoError(t, newTestClient(t, server).TestConnection(context.Background()))

	other := httptest.NewServer(&fakeOpenRouter{reply: "Hello there"})
	defer other.Close()
	assert.Error(t, newTestClient(t, other).TestConnection(context.Background()))
}

func TestOpenRouterClient_Models(t *testing.T) {
	server := httptest.NewServer(&fakeOpenRouter{})
	defer server.Close()
	client := newTestClient(t, server)

	models := client.Models()
	assert.Equal(t, []string{"primary:free", "second:free", "third:free"}, models)

	models[0] = "mutated"
	assert.Equal(t, "primary:free", client.Models()[0])
}
