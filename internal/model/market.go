package model

import (
	"errors"
	"time"
)

// ErrNoData is returned by a data provider when no rows match the filters.
var ErrNoData = errors.New("no matching market data")

// YieldData represents the rental yield aggregate for one market segment
type YieldData struct {
	Location        string  `json:"location" db:"location"`
	PropertyType    string  `json:"property_type" db:"property_type"`
	Bedrooms        *int    `json:"bedrooms,omitempty" db:"bedrooms"`
	AvgPrice        float64 `json:"avg_price" db:"avg_price"`
	AvgMonthlyRent  float64 `json:"avg_monthly_rent" db:"avg_monthly_rent"`
	AvgYieldPercent float64 `json:"avg_yield_percent" db:"avg_yield_percent"`
	SampleSize      int     `json:"sample_size" db:"sample_size"`
	Synthetic       bool    `json:"synthetic,omitempty" db:"-"`
}

// TrendPoint is one month of a market trend series
type TrendPoint struct {
	Month        time.Time `json:"month" db:"month"`
	AvgPrice     float64   `json:"avg_price" db:"avg_price"`
	AvgRent      float64   `json:"avg_rent" db:"avg_rent"`
	Transactions int       `json:"transactions" db:"transactions"`
}

// TrendSummary condenses a trend series into the figures used for grounding
type TrendSummary struct {
	Location          string  `json:"location"`
	PeriodMonths      int     `json:"period_months"`
	AvgPriceChangePct float64 `json:"avg_monthly_price_change_percent"`
	AvgRentChangePct  float64 `json:"avg_monthly_rent_change_percent"`
	TotalTransactions int     `json:"total_transactions"`
	LatestAvgPrice    float64 `json:"latest_avg_price"`
	LatestAvgRent     float64 `json:"latest_avg_rent"`
	DataPoints        int     `json:"data_points"`
}

// Opportunity represents an investment candidate
type Opportunity struct {
	Location     string  `json:"location" db:"location"`
	PropertyType string  `json:"property_type" db:"property_type"`
	Bedrooms     int     `json:"bedrooms" db:"bedrooms"`
	Price        float64 `json:"price" db:"price"`
	MonthlyRent  float64 `json:"monthly_rent" db:"monthly_rent"`
	YieldPercent float64 `json:"yield_percent" db:"yield_percent"`
	Neighborhood string  `json:"neighborhood,omitempty" db:"neighborhood"`
}

// MarketSummary combines yield and trend data for a location
type MarketSummary struct {
	Location    string        `json:"location"`
	Yield       *YieldData    `json:"yield,omitempty"`
	Trend       *TrendSummary `json:"trend,omitempty"`
	MarketTrend string        `json:"market_trend"` // rising, falling, stable
}

// SummarizeTrend reduces an oldest-first series to mean month-over-month
// percentage changes and a transaction total
func SummarizeTrend(location string, months int, points []TrendPoint) TrendSummary {
	summary := TrendSummary{
		Location:     location,
		PeriodMonths: months,
		DataPoints:   len(points),
	}
	if len(points) == 0 {
		return summary
	}

	var priceSum, rentSum float64
	var priceN, rentN int
	for i, p := range points {
		summary.TotalTransactions += p.Transactions
		if i == 0 {
			continue
		}
		prev := points[i-1]
		if prev.AvgPrice != 0 {
			priceSum += (p.AvgPrice - prev.AvgPrice) / prev.AvgPrice * 100
			priceN++
		}
		if prev.AvgRent != 0 {
			rentSum += (p.AvgRent - prev.AvgRent) / prev.AvgRent * 100
			rentN++
		}
	}
	if priceN > 0 {
		summary.AvgPriceChangePct = priceSum / float64(priceN)
	}
	if rentN > 0 {
		summary.AvgRentChangePct = rentSum / float64(rentN)
	}

	last := points[len(points)-1]
	summary.LatestAvgPrice = last.AvgPrice
	summary.LatestAvgRent = last.AvgRent
	return summary
}

// TrendLabel classifies a mean monthly price change
func TrendLabel(avgPriceChangePct float64) string {
	switch {
	case avgPriceChangePct > 1:
		return "rising"
	case avgPriceChangePct < -1:
		return "falling"
	default:
		return "stable"
	}
}
