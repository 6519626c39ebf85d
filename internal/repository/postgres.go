package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketinsights/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewPostgresDB opens a pooled PostgreSQL connection and verifies it
func NewPostgresDB(dsn string, maxConn, maxIdleConn int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// QueryLog is one answered question recorded for analytics
type QueryLog struct {
	RequestID      string
	Query          string
	Parsed         model.ParsedQuery
	EngineUsed     string
	ModelUsed      string
	ResponseTimeMs int64
}

// LogQuery records an answered question
func (r *MarketRepository) LogQuery(ctx context.Context, entry QueryLog) error {
	if r.db == nil {
		return nil
	}

	parsed, err := json.Marshal(entry.Parsed)
	if err != nil {
		return fmt.Errorf("failed to encode parsed query: %w", err)
	}

	logQuery := `
		INSERT INTO query_logs (request_id, query, intent, parsed_query, engine_used, model_used, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, logQuery,
		entry.RequestID,
		entry.Query,
		string(entry.Parsed.Intent),
		parsed,
		entry.EngineUsed,
		entry.ModelUsed,
		entry.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log query: %w", err)
	}
	return nil
}
