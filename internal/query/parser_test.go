package query

import (
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketinsights/internal/metrics"
	"marketinsights/internal/model"
)

func TestParser_EndToEnd(t *testing.T) {
	p := NewParser(time.Hour, 100, nil)

	parsed := p.Parse("Compare Seattle vs Portland for 2-bedroom apartments")

	assert.Equal(t, model.IntentLocationComparison, parsed.Intent)
	assert.Equal(t, []string{"seattle", "portland"}, parsed.Locations)
	require.NotNil(t, parsed.PropertyType)
	assert.Equal(t, "apartment", *parsed.PropertyType)
	require.NotNil(t, parsed.Bedrooms)
	assert.Equal(t, 2, *parsed.Bedrooms)
	assert.Nil(t, parsed.PriceRange)
	assert.Equal(t, "Compare Seattle vs Portland for 2-bedroom apartments", parsed.RawQuery)
}

func TestParser_EmptyInput(t *testing.T) {
	p := NewParser(time.Hour, 100, nil)

	parsed := p.Parse("")

	assert.Equal(t, model.IntentGeneralQuestion, parsed.Intent)
	assert.Empty(t, parsed.Locations)
	assert.Nil(t, parsed.PropertyType)
	assert.Nil(t, parsed.Bedrooms)
	assert.Nil(t, parsed.PriceRange)
	assert.Nil(t, parsed.YieldThreshold)
	assert.Nil(t, parsed.TimePeriodMonths)
}

func TestParser_MemoizesByExactString(t *testing.T) {
	p := NewParser(time.Hour, 100, nil)

	p.Parse("Seattle yields")
	p.Parse("Seattle yields")
	assert.Equal(t, 1, p.Len())

	// Keys are not normalized.
	p.Parse("seattle yields")
	assert.Equal(t, 2, p.Len())

	p.Clear()
	assert.Equal(t, 0, p.Len())
}

func TestParser_ReturnsIndependentCopies(t *testing.T) {
	p := NewParser(time.Hour, 100, nil)

	first := p.Parse("compare seattle and portland")
	first.Locations[0] = "mutated"

	second := p.Parse("compare seattle and portland")
	assert.Equal(t, []string{"seattle", "portland"}, second.Locations)
}

func TestParser_ConcurrentParse(t *testing.T) {
	p := NewParser(time.Hour, 10, nil)
	queries := []string{
		"market summary for austin",
		"compare sf vs la",
		"rental yield in denver",
		"price trends in miami over the past 6 months",
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, q := range queries {
				parsed := p.Parse(q)
				assert.Equal(t, q, parsed.RawQuery)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(queries), p.Len())
}

func parseLookups(t *testing.T, result string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.CacheLookups.WithLabelValues("parse", result).Write(&m))
	return m.GetCounter().GetValue()
}

func TestParser_CountsCacheLookups(t *testing.T) {
	p := NewParser(time.Hour, 100, nil)
	hits, misses := parseLookups(t, "hit"), parseLookups(t, "miss")

	p.Parse("market trends in Austin")
	p.Parse("market trends in Austin")
	p.Parse("market trends in Denver")

	assert.Equal(t, hits+1, parseLookups(t, "hit"))
	assert.Equal(t, misses+2, parseLookups(t, "miss"))
}
