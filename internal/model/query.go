package model

// Engine tags recorded on every answer
const (
	EngineDatabaseQuery = "database_query"
	EngineAIGenerated   = "ai_generated"
	EngineErrorHandler  = "error_handler"
)

// Message is one role-tagged turn of a generation request
type Message struct {
	Role    string `json:"role"` // system, user
	Content string `json:"content"`
}

// ModelResponse is the answer produced for a routed question
type ModelResponse struct {
	Content             string  `json:"content"`
	ModelUsed           string  `json:"model_used"`
	ResponseTimeSeconds float64 `json:"response_time_seconds"`
	CostEstimate        float64 `json:"cost_estimate"`
	EngineUsed          string  `json:"engine_used"`
}

// QueryRequest represents a question submitted over HTTP
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// QueryResponse represents the HTTP answer to a question
type QueryResponse struct {
	RequestID string        `json:"request_id"`
	Query     string        `json:"query"`
	Parsed    ParsedQuery   `json:"parsed"`
	Response  ModelResponse `json:"response"`
	Took      int64         `json:"took_ms"` // Response time in milliseconds
}

// CacheStats reports router cache usage
type CacheStats struct {
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	HitRate         float64 `json:"hit_rate"`
	ResponseEntries int     `json:"response_entries"`
	ParsedEntries   int     `json:"parsed_entries"`
}

// RateLimitStatus reports generation provider usage against the daily limit
type RateLimitStatus struct {
	DailyLimit   int     `json:"daily_limit"`
	RequestsUsed int64   `json:"requests_used"`
	Remaining    int64   `json:"remaining"`
	UsagePercent float64 `json:"usage_percent"`
}
