// Package query turns free-text real estate questions into structured,
// classified queries.
package query

import (
	"strings"
	"time"

	"marketinsights/internal/cache"
	"marketinsights/internal/metrics"
	"marketinsights/internal/model"
)

// Parser classifies and extracts entities, memoizing results by raw query
type Parser struct {
	cache *cache.TTL[model.ParsedQuery]
}

// NewParser creates a parser whose memo entries live for ttl and are swept
// once more than capacity are stored
func NewParser(ttl time.Duration, capacity int, clock cache.Clock) *Parser {
	return &Parser{cache: cache.New[model.ParsedQuery](ttl, capacity, clock)}
}

// Parse never fails. Empty or unrecognized input yields a general question
// with no entities.
func (p *Parser) Parse(raw string) model.ParsedQuery {
	if cached, ok := p.cache.Get(raw); ok {
		metrics.CacheLookups.WithLabelValues("parse", "hit").Inc()
		return cached.Clone()
	}
	metrics.CacheLookups.WithLabelValues("parse", "miss").Inc()

	parsed := Parse(raw)
	p.cache.Set(raw, parsed)
	return parsed.Clone()
}

// Len returns the number of memoized parses
func (p *Parser) Len() int {
	return p.cache.Len()
}

// Clear drops memoized parses
func (p *Parser) Clear() {
	p.cache.Clear()
}

// Parse classifies raw and extracts every entity without memoization
func Parse(raw string) model.ParsedQuery {
	q := strings.ToLower(raw)
	return model.ParsedQuery{
		Intent:           Classify(q),
		Locations:        ExtractLocations(q),
		PropertyType:     ExtractPropertyType(q),
		Bedrooms:         ExtractBedrooms(q),
		PriceRange:       ExtractPriceRange(q),
		YieldThreshold:   ExtractYieldThreshold(q),
		TimePeriodMonths: ExtractTimePeriod(q),
		RawQuery:         raw,
	}
}
