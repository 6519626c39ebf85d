package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketinsights/internal/model"
	"marketinsights/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const queryLogTimeout = 5 * time.Second

// QueryRouter answers questions and exposes its caches
type QueryRouter interface {
	RouteQuery(ctx context.Context, raw string) model.ModelResponse
	Parse(raw string) model.ParsedQuery
	CacheStats() model.CacheStats
	ClearCache()
}

// QueryLogger records answered questions
type QueryLogger interface {
	LogQuery(ctx context.Context, entry repository.QueryLog) error
}

// QueryHandler handles question-related HTTP requests
type QueryHandler struct {
	router   QueryRouter
	queryLog QueryLogger
	logger   *zap.Logger
}

// NewQueryHandler creates a new query handler. queryLog may be nil.
func NewQueryHandler(router QueryRouter, queryLog QueryLogger, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{
		router:   router,
		queryLog: queryLog,
		logger:   logger,
	}
}

func bindQuery(c *gin.Context) (string, bool) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return "", false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query must not be empty"})
		return "", false
	}
	return req.Query, true
}

// Query handles POST /api/v1/query
func (h *QueryHandler) Query(c *gin.Context) {
	raw, ok := bindQuery(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.answer(c.Request.Context(), raw))
}

func (h *QueryHandler) answer(ctx context.Context, raw string) *model.QueryResponse {
	startTime := time.Now()
	requestID := uuid.NewString()

	resp := h.router.RouteQuery(ctx, raw)
	parsed := h.router.Parse(raw)
	took := time.Since(startTime).Milliseconds()

	h.logger.Info("Query answered",
		zap.String("request_id", requestID),
		zap.String("intent", string(parsed.Intent)),
		zap.String("engine", resp.EngineUsed),
		zap.String("model", resp.ModelUsed),
		zap.Int64("took_ms", took),
	)

	// Log query (non-blocking)
	if h.queryLog != nil {
		entry := repository.QueryLog{
			RequestID:      requestID,
			Query:          raw,
			Parsed:         parsed,
			EngineUsed:     resp.EngineUsed,
			ModelUsed:      resp.ModelUsed,
			ResponseTimeMs: took,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), queryLogTimeout)
			defer cancel()
			if err := h.queryLog.LogQuery(ctx, entry); err != nil {
				h.logger.Warn("Failed to log query", zap.String("request_id", entry.RequestID), zap.Error(err))
			}
		}()
	}

	return &model.QueryResponse{
		RequestID: requestID,
		Query:     raw,
		Parsed:    parsed,
		Response:  resp,
		Took:      took,
	}
}

// QueryStream handles POST /api/v1/query/stream - SSE streaming answer
func (h *QueryHandler) QueryStream(c *gin.Context) {
	raw, ok := bindQuery(c)
	if !ok {
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	sendSSE(c, "start", map[string]any{"query": raw})
	flusher.Flush()

	sendSSE(c, "parsed", h.router.Parse(raw))
	flusher.Flush()

	sendSSE(c, "response", h.answer(c.Request.Context(), raw))
	flusher.Flush()

	sendSSE(c, "done", nil)
	flusher.Flush()
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data == nil {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
		return
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
}

// Parse handles GET /api/v1/parse?q=...
func (h *QueryHandler) Parse(c *gin.Context) {
	raw := c.Query("q")
	if strings.TrimSpace(raw) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query parameter q"})
		return
	}

	c.JSON(http.StatusOK, h.router.Parse(raw))
}
