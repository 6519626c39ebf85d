package service

import (
	"context"
	"fmt"
	"sort"

	"marketinsights/internal/model"
)

const (
	defaultPropertyType = "apartment"
	defaultTrendMonths  = 12
	defaultMinYield     = 4.0
	defaultMaxPrice     = 1_000_000.0
	maxComparedPlaces   = 2
	maxOpportunities    = 3
)

// intentHandler builds the grounded conversation for one intent.
// Returning model.ErrNoData sends the question to the general handler.
type intentHandler func(ctx context.Context, parsed model.ParsedQuery) ([]model.Message, error)

func (r *Router) handlerTable() map[model.Intent]intentHandler {
	return map[model.Intent]intentHandler{
		model.IntentMarketYield:             r.handleMarketYield,
		model.IntentMarketTrends:            r.handleMarketTrends,
		model.IntentLocationComparison:      r.handleLocationComparison,
		model.IntentInvestmentOpportunities: r.handleInvestmentOpportunities,
		model.IntentMarketSummary:           r.handleMarketSummary,
	}
}

func propertyTypeOrDefault(parsed model.ParsedQuery) string {
	if parsed.PropertyType != nil && *parsed.PropertyType != "" {
		return *parsed.PropertyType
	}
	return defaultPropertyType
}

func (r *Router) handleMarketYield(ctx context.Context, parsed model.ParsedQuery) ([]model.Message, error) {
	if len(parsed.Locations) == 0 {
		return nil, model.ErrNoData
	}
	location := parsed.Locations[0]
	propertyType := propertyTypeOrDefault(parsed)

	data, err := r.data.GetMarketYield(ctx, location, propertyType, parsed.Bedrooms)
	if err != nil {
		return nil, fmt.Errorf("market yield for %s: %w", location, err)
	}
	if data == nil {
		return nil, model.ErrNoData
	}
	return yieldPrompt(location, propertyType, data)
}

func (r *Router) handleMarketTrends(ctx context.Context, parsed model.ParsedQuery) ([]model.Message, error) {
	if len(parsed.Locations) == 0 {
		return nil, model.ErrNoData
	}
	location := parsed.Locations[0]
	months := defaultTrendMonths
	if parsed.TimePeriodMonths != nil && *parsed.TimePeriodMonths > 0 {
		months = *parsed.TimePeriodMonths
	}

	points, err := r.data.GetMarketTrends(ctx, location, months)
	if err != nil {
		return nil, fmt.Errorf("market trends for %s: %w", location, err)
	}
	if len(points) == 0 {
		return nil, model.ErrNoData
	}
	return trendsPrompt(model.SummarizeTrend(location, months, points))
}

func (r *Router) handleLocationComparison(ctx context.Context, parsed model.ParsedQuery) ([]model.Message, error) {
	if len(parsed.Locations) < maxComparedPlaces {
		return nil, model.ErrNoData
	}
	locations := parsed.Locations[:maxComparedPlaces]
	propertyType := propertyTypeOrDefault(parsed)

	data, err := r.data.CompareLocations(ctx, locations, propertyType)
	if err != nil {
		return nil, fmt.Errorf("compare %v: %w", locations, err)
	}
	if len(data) == 0 {
		return nil, model.ErrNoData
	}
	return comparisonPrompt(propertyType, data)
}

func (r *Router) handleInvestmentOpportunities(ctx context.Context, parsed model.ParsedQuery) ([]model.Message, error) {
	minYield := defaultMinYield
	if parsed.YieldThreshold != nil {
		minYield = *parsed.YieldThreshold
	}
	maxPrice := defaultMaxPrice
	if parsed.PriceRange != nil && parsed.PriceRange.Max > 0 {
		maxPrice = parsed.PriceRange.Max
	}
	location := ""
	if len(parsed.Locations) > 0 {
		location = parsed.Locations[0]
	}

	opps, err := r.data.GetInvestmentOpportunities(ctx, minYield, maxPrice, location)
	if err != nil {
		return nil, fmt.Errorf("investment opportunities: %w", err)
	}
	if len(opps) == 0 {
		return nil, model.ErrNoData
	}

	ranked := make([]model.Opportunity, len(opps))
	copy(ranked, opps)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].YieldPercent > ranked[j].YieldPercent
	})
	if len(ranked) > maxOpportunities {
		ranked = ranked[:maxOpportunities]
	}
	return opportunitiesPrompt(ranked)
}

func (r *Router) handleMarketSummary(ctx context.Context, parsed model.ParsedQuery) ([]model.Message, error) {
	if len(parsed.Locations) == 0 {
		return nil, model.ErrNoData
	}
	location := parsed.Locations[0]

	summary, err := r.data.GetMarketSummary(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("market summary for %s: %w", location, err)
	}
	if summary == nil || (summary.Yield == nil && summary.Trend == nil) {
		return nil, model.ErrNoData
	}
	return summaryPrompt(summary)
}
