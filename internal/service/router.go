package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"marketinsights/internal/cache"
	"marketinsights/internal/logger"
	"marketinsights/internal/metrics"
	"marketinsights/internal/model"
	"marketinsights/internal/query"

	"go.uber.org/zap"
)

// RouterOptions configures the router caches and generation parameters
type RouterOptions struct {
	ResponseTTL      time.Duration
	ResponseCapacity int
	ParseTTL         time.Duration
	ParseCapacity    int
	MaxTokens        int
	Temperature      float64
	Clock            cache.Clock
}

// Router answers free-text questions by classifying them, fetching market
// data for the detected intent and asking the generator for a short answer
type Router struct {
	data      MarketDataProvider
	gen       Generator
	parser    *query.Parser
	responses *cache.TTL[model.ModelResponse]
	handlers  map[model.Intent]intentHandler
	opts      RouterOptions
	now       cache.Clock
	logger    *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRouter creates a router
func NewRouter(data MarketDataProvider, gen Generator, opts RouterOptions, logger *zap.Logger) *Router {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 300
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		data:      data,
		gen:       gen,
		parser:    query.NewParser(opts.ParseTTL, opts.ParseCapacity, opts.Clock),
		responses: cache.New[model.ModelResponse](opts.ResponseTTL, opts.ResponseCapacity, opts.Clock),
		opts:      opts,
		now:       opts.Clock,
		logger:    logger,
	}
	r.handlers = r.handlerTable()
	return r
}

// responseKey folds case and surrounding whitespace before hashing
func responseKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(raw))))
	return hex.EncodeToString(sum[:])
}

// RouteQuery always returns an answer. Failures produce an apology tagged
// with the error_handler engine.
func (r *Router) RouteQuery(ctx context.Context, raw string) (resp model.ModelResponse) {
	start := r.now()
	key := responseKey(raw)

	if cached, ok := r.responses.Get(key); ok {
		r.hits.Add(1)
		metrics.CacheLookups.WithLabelValues("response", "hit").Inc()
		r.logger.Debug("Response cache hit", zap.String("key", key[:12]))
		return cached
	}
	r.misses.Add(1)
	metrics.CacheLookups.WithLabelValues("response", "miss").Inc()

	intent := model.IntentGeneralQuestion
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic while routing query",
				zap.Any("panic", rec),
				zap.String("intent", string(intent)),
			)
			resp = r.errorResponse(start)
		}
		metrics.QueriesRouted.WithLabelValues(string(intent), resp.EngineUsed).Inc()
		metrics.QueryDuration.WithLabelValues(string(intent)).Observe(resp.ResponseTimeSeconds)
	}()

	parsed := r.parser.Parse(raw)
	intent = parsed.Intent
	r.logger.Info("Routing query",
		zap.String("query", logger.Truncate(raw, 80)),
		zap.String("intent", string(intent)),
		zap.Strings("locations", parsed.Locations),
	)

	resp, err := r.dispatch(ctx, parsed)
	if err != nil {
		r.logger.Error("Error routing query",
			zap.String("intent", string(intent)),
			zap.Error(err),
		)
		return r.errorResponse(start)
	}

	resp.ResponseTimeSeconds = r.now().Sub(start).Seconds()
	r.responses.Set(key, resp)
	return resp
}

// dispatch builds exactly one conversation and calls the generator once
func (r *Router) dispatch(ctx context.Context, parsed model.ParsedQuery) (model.ModelResponse, error) {
	messages, engine, err := r.conversationFor(ctx, parsed)
	if err != nil {
		return model.ModelResponse{}, err
	}

	gen, err := r.gen.Generate(ctx, GenerationRequest{
		Messages:    messages,
		MaxTokens:   r.opts.MaxTokens,
		Temperature: r.opts.Temperature,
		QueryType:   string(parsed.Intent),
	})
	if err != nil {
		return model.ModelResponse{}, fmt.Errorf("generate answer: %w", err)
	}
	if gen == nil {
		return model.ModelResponse{}, errors.New("generator returned no answer")
	}

	return model.ModelResponse{
		Content:      gen.Content,
		ModelUsed:    gen.Model,
		CostEstimate: EstimateCost(gen.Content, gen.Model),
		EngineUsed:   engine,
	}, nil
}

// conversationFor runs the intent handler, falling back to the general
// conversation when the handler has nothing to ground the answer in
func (r *Router) conversationFor(ctx context.Context, parsed model.ParsedQuery) ([]model.Message, string, error) {
	handler, ok := r.handlers[parsed.Intent]
	if !ok {
		return generalConversation(parsed.RawQuery), model.EngineAIGenerated, nil
	}

	messages, err := handler(ctx, parsed)
	switch {
	case errors.Is(err, model.ErrNoData):
		r.logger.Debug("No grounding data, answering generally",
			zap.String("intent", string(parsed.Intent)),
		)
		return generalConversation(parsed.RawQuery), model.EngineAIGenerated, nil
	case err != nil:
		return nil, "", err
	}
	return messages, model.EngineDatabaseQuery, nil
}

func (r *Router) errorResponse(start time.Time) model.ModelResponse {
	return model.ModelResponse{
		Content:             errorApology,
		ModelUsed:           "none",
		ResponseTimeSeconds: r.now().Sub(start).Seconds(),
		CostEstimate:        0,
		EngineUsed:          model.EngineErrorHandler,
	}
}

// Parse exposes the memoized parser
func (r *Router) Parse(raw string) model.ParsedQuery {
	return r.parser.Parse(raw)
}

// CacheStats reports response cache hit rate and entry counts
func (r *Router) CacheStats() model.CacheStats {
	hits, misses := r.hits.Load(), r.misses.Load()
	stats := model.CacheStats{
		Hits:            hits,
		Misses:          misses,
		ResponseEntries: r.responses.Len(),
		ParsedEntries:   r.parser.Len(),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ClearCache drops cached responses and parses
func (r *Router) ClearCache() {
	r.responses.Clear()
	r.parser.Clear()
	r.logger.Info("Router caches cleared")
}
