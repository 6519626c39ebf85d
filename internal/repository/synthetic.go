package repository

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"marketinsights/internal/model"
)

var syntheticLocationMultipliers = map[string]float64{
	"seattle": 1.2, "san francisco": 1.8, "portland": 1.0,
	"los angeles": 1.5, "new york": 2.0, "boston": 1.4,
	"chicago": 0.9, "austin": 1.1, "denver": 1.0,
	"miami": 1.3, "atlanta": 0.8, "dallas": 0.9,
}

var syntheticPropertyMultipliers = map[string]float64{
	"apartment": 1.0, "house": 1.4, "condo": 1.1,
	"townhouse": 1.2, "studio": 0.7,
}

var syntheticBedroomMultipliers = map[int]float64{
	0: 0.6, 1: 0.8, 2: 1.0, 3: 1.3, 4: 1.6,
}

// opportunityCities are searched when no location is given
var opportunityCities = []string{"seattle", "portland", "austin", "denver", "atlanta"}

const (
	syntheticBasePrice = 300000.0
	syntheticBaseRent  = 2000.0
)

// SyntheticGenerator produces plausible market figures when the database
// has nothing to offer. It is safe for concurrent use.
type SyntheticGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSyntheticGenerator creates a generator. Equal seeds give equal sequences.
func NewSyntheticGenerator(seed int64, now func() time.Time) *SyntheticGenerator {
	if now == nil {
		now = time.Now
	}
	return &SyntheticGenerator{
		rng: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

func (g *SyntheticGenerator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *SyntheticGenerator) intn(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func multiplier(table map[string]float64, key string) float64 {
	if m, ok := table[key]; ok {
		return m
	}
	return 1.0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Yield returns a yield aggregate scaled by location, type and bedrooms
func (g *SyntheticGenerator) Yield(location, propertyType string, bedrooms *int) *model.YieldData {
	g.mu.Lock()
	defer g.mu.Unlock()

	price := syntheticBasePrice *
		multiplier(syntheticLocationMultipliers, location) *
		multiplier(syntheticPropertyMultipliers, propertyType)
	if bedrooms != nil {
		if m, ok := syntheticBedroomMultipliers[*bedrooms]; ok {
			price *= m
		}
	}
	price *= g.uniform(0.9, 1.1)

	// Monthly rent is 0.5% to 0.8% of price.
	rent := price * g.uniform(0.005, 0.008)

	return &model.YieldData{
		Location:        location,
		PropertyType:    propertyType,
		Bedrooms:        bedrooms,
		AvgPrice:        round2(price),
		AvgMonthlyRent:  round2(rent),
		AvgYieldPercent: round2(rent * 12 / price * 100),
		SampleSize:      g.intn(15, 50),
		Synthetic:       true,
	}
}

// Trends returns an oldest-first monthly series growing about 2% a month.
// The window is capped at model.MaxTimePeriodMonths.
func (g *SyntheticGenerator) Trends(location string, months int) []model.TrendPoint {
	months = max(0, min(months, model.MaxTimePeriodMonths))

	g.mu.Lock()
	defer g.mu.Unlock()

	loc := multiplier(syntheticLocationMultipliers, location)
	current := g.now().UTC()
	thisMonth := time.Date(current.Year(), current.Month(), 1, 0, 0, 0, 0, time.UTC)

	points := make([]model.TrendPoint, 0, months)
	for i := 0; i < months; i++ {
		growth := 1 + float64(i)*0.02
		noise := g.uniform(0.98, 1.02)
		points = append(points, model.TrendPoint{
			Month:        thisMonth.AddDate(0, i-months+1, 0),
			AvgPrice:     round2(syntheticBasePrice * loc * growth * noise),
			AvgRent:      round2(syntheticBaseRent * loc * growth * noise),
			Transactions: g.intn(10, 30),
		})
	}
	return points
}

// Opportunities returns candidates at or above minYield, best yield first
func (g *SyntheticGenerator) Opportunities(minYield, maxPrice float64, location string) []model.Opportunity {
	g.mu.Lock()
	defer g.mu.Unlock()

	cities := opportunityCities
	if location != "" {
		cities = []string{location}
	}

	lowPrice := 200000.0
	if maxPrice < lowPrice {
		lowPrice = maxPrice / 2
	}

	propertyTypes := []string{"apartment", "house", "condo"}
	var out []model.Opportunity
	for _, city := range cities {
		// A few listings per city so a single-city search still has a top 3.
		for n := 0; n < 3; n++ {
			price := math.Round(g.uniform(lowPrice, maxPrice))
			rent := price * g.uniform(0.006, 0.012)
			yield := rent * 12 / price * 100
			ptype := propertyTypes[g.rng.Intn(len(propertyTypes))]
			beds := g.intn(1, 4)
			if yield < minYield || price <= 0 {
				continue
			}
			out = append(out, model.Opportunity{
				Location:     city,
				PropertyType: ptype,
				Bedrooms:     beds,
				Price:        price,
				MonthlyRent:  round2(rent),
				YieldPercent: round2(yield),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].YieldPercent > out[j].YieldPercent
	})
	return out
}
