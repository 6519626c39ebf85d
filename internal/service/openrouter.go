package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketinsights/internal/config"
	"marketinsights/internal/metrics"
	"marketinsights/internal/model"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrMissingAPIKey is returned when no OpenRouter key is configured
	ErrMissingAPIKey = errors.New("OpenRouter API key is required")
	// ErrProviderExhausted is returned when every model in the list failed
	ErrProviderExhausted = errors.New("all models failed to respond")
)

const (
	tokensPerWord     = 1.33
	costPer1KTokenUSD = 0.001
)

// OpenRouterClient talks to OpenRouter's OpenAI-compatible API, falling back
// through an ordered model list
type OpenRouterClient struct {
	client      *openai.Client
	models      []string
	maxTokens   int
	temperature float64
	dailyLimit  int
	logger      *zap.Logger

	mu           sync.Mutex
	requestCount int64
}

// headerTransport adds the attribution headers OpenRouter expects
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// NewOpenRouterClient creates a client for the configured models
func NewOpenRouterClient(cfg *config.OpenRouterConfig, logger *zap.Logger) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.APIBase, "/")
	clientCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": cfg.HTTPReferer,
				"X-Title":      cfg.AppTitle,
			},
		},
	}

	c := &OpenRouterClient{
		client:      openai.NewClientWithConfig(clientCfg),
		models:      cfg.Models(),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		dailyLimit:  cfg.DailyRequestLimit,
		logger:      logger,
	}

	logger.Info("OpenRouter client initialized",
		zap.String("api_base", clientCfg.BaseURL),
		zap.Strings("models", c.models),
		zap.Duration("timeout", cfg.Timeout),
	)
	return c, nil
}

// Generate tries each model in order and returns the first answer
func (c *OpenRouterClient) Generate(ctx context.Context, req GenerationRequest) (*Generation, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	var lastErr error
	for _, modelName := range c.models {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       modelName,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: float32(temperature),
		})
		if err == nil && len(resp.Choices) == 0 {
			err = errors.New("response contained no choices")
		}
		if err != nil {
			lastErr = err
			metrics.GenerationRequests.WithLabelValues(modelName, "error").Inc()
			c.logger.Warn("Model failed",
				zap.String("model", modelName),
				zap.String("query_type", req.QueryType),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		c.mu.Lock()
		c.requestCount++
		c.mu.Unlock()

		metrics.GenerationRequests.WithLabelValues(modelName, "success").Inc()
		c.logger.Info("Model responded",
			zap.String("model", modelName),
			zap.String("query_type", req.QueryType),
			zap.Duration("took", time.Since(start)),
		)
		return &Generation{
			Content: resp.Choices[0].Message.Content,
			Model:   modelName,
		}, nil
	}

	if lastErr == nil {
		return nil, ErrProviderExhausted
	}
	return nil, fmt.Errorf("%w: %w", ErrProviderExhausted, lastErr)
}

// Models returns the model list in the order it is tried
func (c *OpenRouterClient) Models() []string {
	return append([]string(nil), c.models...)
}

// UsageCount returns the number of successful generations
func (c *OpenRouterClient) UsageCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCount
}

// RateLimitStatus reports usage against the daily request limit
func (c *OpenRouterClient) RateLimitStatus() model.RateLimitStatus {
	used := c.UsageCount()
	status := model.RateLimitStatus{
		DailyLimit:   c.dailyLimit,
		RequestsUsed: used,
		Remaining:    max(0, int64(c.dailyLimit)-used),
	}
	if c.dailyLimit > 0 {
		status.UsagePercent = float64(used) / float64(c.dailyLimit) * 100
	}
	return status
}

// TestConnection sends a short prompt and checks that a model answers
func (c *OpenRouterClient) TestConnection(ctx context.Context) error {
	gen, err := c.Generate(ctx, GenerationRequest{
		Messages: []model.Message{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a test assistant."},
			{Role: openai.ChatMessageRoleUser, Content: "Say 'Connection successful' if you can read this."},
		},
		MaxTokens: 20,
		QueryType: "connection_test",
	})
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(gen.Content), "connection successful") {
		return fmt.Errorf("unexpected reply from %s: %q", gen.Model, gen.Content)
	}
	return nil
}

// EstimateCost is zero for free models, otherwise a word-count approximation
func EstimateCost(content, modelName string) float64 {
	if strings.Contains(modelName, ":free") {
		return 0
	}
	tokens := float64(len(strings.Fields(content))) * tokensPerWord
	return tokens / 1000 * costPer1KTokenUSD
}
