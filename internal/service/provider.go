package service

import (
	"context"

	"marketinsights/internal/model"
)

// MarketDataProvider serves the aggregate figures answers are grounded in.
// Implementations return model.ErrNoData when nothing matches.
type MarketDataProvider interface {
	GetMarketYield(ctx context.Context, location, propertyType string, bedrooms *int) (*model.YieldData, error)
	GetMarketTrends(ctx context.Context, location string, months int) ([]model.TrendPoint, error)
	CompareLocations(ctx context.Context, locations []string, propertyType string) ([]model.YieldData, error)
	GetInvestmentOpportunities(ctx context.Context, minYield, maxPrice float64, location string) ([]model.Opportunity, error)
	GetMarketSummary(ctx context.Context, location string) (*model.MarketSummary, error)
}

// GenerationRequest is one conversation sent to a language model
type GenerationRequest struct {
	Messages    []model.Message
	MaxTokens   int
	Temperature float64
	QueryType   string // intent tag, used for logging only
}

// Generation is the text a model produced
type Generation struct {
	Content string
	Model   string
}

// Generator produces answer text for a conversation
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*Generation, error)
}

// UnavailableGenerator fails every request. It stands in for the provider
// when no API key is configured.
type UnavailableGenerator struct{}

func (UnavailableGenerator) Generate(ctx context.Context, req GenerationRequest) (*Generation, error) {
	return nil, ErrMissingAPIKey
}
