package model

// Intent is the analytic category a question is classified into
type Intent string

const (
	IntentMarketYield             Intent = "market_yield"
	IntentMarketTrends            Intent = "market_trends"
	IntentLocationComparison      Intent = "location_comparison"
	IntentInvestmentOpportunities Intent = "investment_opportunities"
	IntentMarketSummary           Intent = "market_summary"
	IntentGeneralQuestion         Intent = "general_question"
)

// MaxTimePeriodMonths bounds every look-back window (50 years)
const MaxTimePeriodMonths = 600

// PriceRange is an inclusive price window, Min <= Max
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ParsedQuery represents the structured reading of a natural language question
type ParsedQuery struct {
	Intent           Intent      `json:"intent"`
	Locations        []string    `json:"locations"`
	PropertyType     *string     `json:"property_type,omitempty"`
	Bedrooms         *int        `json:"bedrooms,omitempty"`
	PriceRange       *PriceRange `json:"price_range,omitempty"`
	YieldThreshold   *float64    `json:"yield_threshold,omitempty"`
	TimePeriodMonths *int        `json:"time_period_months,omitempty"` // 时间窗口（月）
	RawQuery         string      `json:"raw_query"`
}

// Clone returns a deep copy so cached values are never shared for mutation
func (p ParsedQuery) Clone() ParsedQuery {
	out := p
	out.Locations = append([]string{}, p.Locations...)
	if p.PropertyType != nil {
		v := *p.PropertyType
		out.PropertyType = &v
	}
	if p.Bedrooms != nil {
		v := *p.Bedrooms
		out.Bedrooms = &v
	}
	if p.PriceRange != nil {
		v := *p.PriceRange
		out.PriceRange = &v
	}
	if p.YieldThreshold != nil {
		v := *p.YieldThreshold
		out.YieldThreshold = &v
	}
	if p.TimePeriodMonths != nil {
		v := *p.TimePeriodMonths
		out.TimePeriodMonths = &v
	}
	return out
}
