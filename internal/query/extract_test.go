package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketinsights/internal/model"
)

func TestExtractLocations(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"aliases in order", "sf vs la", []string{"san francisco", "los angeles"}},
		{"single city", "apartments in seattle", []string{"seattle"}},
		{"two cities", "compare seattle and portland", []string{"seattle", "portland"}},
		{"position order", "portland or seattle", []string{"portland", "seattle"}},
		{"multi word city", "downtown san francisco market", []string{"san francisco"}},
		{"neighbourhoods ignored", "suburbs vs city center", []string{}},
		{"alias and full name deduplicated", "nyc or new york", []string{"new york"}},
		{"dc alias", "rents in dc", []string{"washington"}},
		{"nola alias", "condos in nola", []string{"new orleans"}},
		{"nola and full name deduplicated", "nola vs new orleans", []string{"new orleans"}},
		{"aliases before gazetteer", "austin or sf", []string{"san francisco", "austin"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractLocations(tt.query)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPropertyType(t *testing.T) {
	tests := []struct {
		query string
		want  *string
	}{
		{"apartments in seattle", strPtr("apartment")},
		{"2-bedroom house for rent", strPtr("house")},
		{"condo investment opportunities", strPtr("condo")},
		{"studio apartment yields", strPtr("studio")},
		{"penthouse apartment in miami", strPtr("penthouse")},
		{"townhouse prices", strPtr("townhouse")},
		{"one bedroom units", strPtr("apartment")},
		{"3br in austin", strPtr("apartment")},
		{"rental units downtown", strPtr("apartment")},
		{"what is real estate", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPropertyType(tt.query))
		})
	}
}

func TestExtractBedrooms(t *testing.T) {
	tests := []struct {
		query string
		want  *int
	}{
		{"2-bedroom apartment", intPtr(2)},
		{"three bedroom house", intPtr(3)},
		{"1 br condo", intPtr(1)},
		{"five-bedroom villa", intPtr(5)},
		{"3 beds in denver", intPtr(3)},
		{"studio apartment", nil},
		{"a studio bedroom layout", intPtr(0)},
		{"houses with two car garages and a big bedroom", intPtr(2)},
		{"no rooms mentioned", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBedrooms(tt.query))
		})
	}
}

func TestExtractPriceRange(t *testing.T) {
	tests := []struct {
		query string
		want  *model.PriceRange
	}{
		{"properties under $500k", &model.PriceRange{Min: 0, Max: 500000}},
		{"between $300,000 and $500,000", &model.PriceRange{Min: 300000, Max: 500000}},
		{"under 1000k", &model.PriceRange{Min: 0, Max: 1000000}},
		{"under $1.5m", &model.PriceRange{Min: 0, Max: 1500000}},
		{"between 300 and 450k", &model.PriceRange{Min: 300000, Max: 450000}},
		{"between $500k to $1.2m", &model.PriceRange{Min: 500000, Max: 1200000}},
		{"between 600k and 400k", &model.PriceRange{Min: 400000, Max: 600000}},
		{"no price mentioned", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ExtractPriceRange(tt.query)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, tt.want.Min, got.Min, 0.001)
			assert.InDelta(t, tt.want.Max, got.Max, 0.001)
		})
	}
}

func TestExtractYieldThreshold(t *testing.T) {
	tests := []struct {
		query string
		want  *float64
	}{
		{"yield above 5%", floatPtr(5)},
		{"6.5% return or higher", floatPtr(6.5)},
		{"roi of 4%", floatPtr(4)},
		{"listings over 7% please", floatPtr(7)},
		{"at least 3.5% in austin", floatPtr(3.5)},
		{"no yield mentioned", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractYieldThreshold(tt.query))
		})
	}
}

func TestExtractTimePeriod(t *testing.T) {
	tests := []struct {
		query string
		want  *int
	}{
		{"past 6 months", intPtr(6)},
		{"past 3 months", intPtr(3)},
		{"last 2 years", intPtr(24)},
		{"past quarter", intPtr(3)},
		{"last quarter", intPtr(3)},
		{"past year", intPtr(12)},
		{"price movement in the last year", intPtr(12)},
		{"last 0 months", nil},
		{"past 600 months", intPtr(600)},
		{"past 20000000 months", intPtr(600)},
		{"last 51 years", intPtr(600)},
		{"last 999999999999999999 years", intPtr(600)},
		{"past 768614336404564651 years", intPtr(600)},
		{"past 99999999999999999999999 months", intPtr(600)},
		{"no time mentioned", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTimePeriod(tt.query))
		})
	}
}

func TestExtractors_Idempotent(t *testing.T) {
	q := "compare 2-bedroom condos in sf vs seattle under $800k with yield above 4% over the past 2 years"
	first := Parse(q)
	second := Parse(q)
	assert.Equal(t, first, second)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }
