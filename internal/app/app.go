// Package app wires configuration, storage, the generation provider and the
// router into one value shared by the server and the CLI.
package app

import (
	"context"

	"marketinsights/internal/config"
	"marketinsights/internal/handler"
	"marketinsights/internal/repository"
	"marketinsights/internal/service"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// App holds the initialized components
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *sqlx.DB // nil without a database
	Repository *repository.MarketRepository
	Provider   *service.OpenRouterClient // nil without an API key
	Router     *service.Router
}

// New initializes every component from cfg
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// Initialize database connection
	if cfg.DatabaseConfigured() {
		db, err := repository.NewPostgresDB(
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		switch {
		case err == nil:
			a.DB = db
			logger.Info("Connected to PostgreSQL database", zap.String("schema", cfg.PostgreSQL.Schema))
		case cfg.Data.SyntheticFallback:
			logger.Warn("Database unavailable, serving synthetic market data", zap.Error(err))
		default:
			return nil, err
		}
	} else {
		logger.Info("No database configured, serving synthetic market data")
	}

	a.Repository = repository.NewMarketRepository(a.DB, repository.Options{
		CacheTTL:          cfg.Cache.DataTTL,
		CacheCapacity:     cfg.Cache.DataCapacity,
		QueryTimeout:      cfg.PostgreSQL.QueryTimeout,
		SyntheticFallback: cfg.Data.SyntheticFallback,
		SyntheticSeed:     cfg.Data.SyntheticSeed,
	}, logger)

	// Initialize generation provider
	var gen service.Generator = service.UnavailableGenerator{}
	if cfg.GenerationEnabled() {
		provider, err := service.NewOpenRouterClient(&cfg.OpenRouter, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Provider = provider
		gen = provider
	} else {
		logger.Warn("OpenRouter is disabled - set OPENROUTER_API_KEY to enable answers")
	}

	a.Router = service.NewRouter(a.Repository, gen, service.RouterOptions{
		ResponseTTL:      cfg.Cache.ResponseTTL,
		ResponseCapacity: cfg.Cache.ResponseCapacity,
		ParseTTL:         cfg.Cache.ParseTTL,
		ParseCapacity:    cfg.Cache.ParseCapacity,
		MaxTokens:        cfg.OpenRouter.MaxTokens,
		Temperature:      cfg.OpenRouter.Temperature,
	}, logger)

	logger.Info("Services initialized")
	return a, nil
}

// Usage returns the provider as a UsageReporter, or nil without one
func (a *App) Usage() handler.UsageReporter {
	if a.Provider == nil {
		return nil
	}
	return a.Provider
}

// QueryLog returns the repository as a QueryLogger, or nil without a database
func (a *App) QueryLog() handler.QueryLogger {
	if a.DB == nil {
		return nil
	}
	return a.Repository
}

// Ping checks the database when one is connected
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.Repository.Ping(ctx)
}

// Close releases the database connection
func (a *App) Close() error {
	return a.Repository.Close()
}
