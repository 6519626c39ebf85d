package query

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"marketinsights/internal/model"
)

// locationAliases maps short tokens to canonical city names. Aliases are
// matched per token, never as substrings.
var locationAliases = map[string]string{
	"sf":     "san francisco",
	"nyc":    "new york",
	"ny":     "new york",
	"la":     "los angeles",
	"chi":    "chicago",
	"dc":     "washington",
	"philly": "philadelphia",
	"atl":    "atlanta",
	"nola":   "new orleans",
	"vegas":  "las vegas",
}

// knownLocations is the gazetteer scanned by plain substring containment.
var knownLocations = []string{
	"seattle", "portland", "san francisco", "los angeles", "new york",
	"boston", "chicago", "austin", "denver", "miami", "atlanta", "dallas",
	"houston", "phoenix", "philadelphia", "san diego", "washington",
	"las vegas", "nashville", "minneapolis", "new orleans",
}

type propertyTypeRule struct {
	name     string
	patterns []*regexp.Regexp
}

// propertyTypeRules is checked top to bottom; specific types come before the
// general ones so "studio apartment" resolves to studio.
var propertyTypeRules = []propertyTypeRule{
	{"studio", compile(`\bstudios?\b`)},
	{"penthouse", compile(`\bpenthouses?\b`)},
	{"townhouse", compile(`\btown\s?houses?\b`, `\btownhomes?\b`)},
	{"duplex", compile(`\bduplex(?:es)?\b`)},
	{"villa", compile(`\bvillas?\b`)},
	{"condo", compile(`\bcondos?\b`, `\bcondominiums?\b`)},
	{"apartment", compile(`\bapartments?\b`, `\bapts?\b`, `\bflats?\b`)},
	{"house", compile(`\bhouses?\b`, `\bhomes?\b`, `\bsingle[\s-]family\b`)},
}

var (
	unitsPattern = regexp.MustCompile(`\bunits?\b`)

	bedroomNumeral  = regexp.MustCompile(`(\d+)[\s-]?(?:bedrooms?|beds?|br)\b`)
	bedroomWordNext = regexp.MustCompile(`\b(studio|one|two|three|four|five|six)[\s-]?(?:bedrooms?|br)\b`)
	bedroomWord     = regexp.MustCompile(`\b(studio|one|two|three|four|five|six)\b`)
	bedroomMention  = regexp.MustCompile(`\bbedrooms?\b|\bbr\b`)

	priceUnder   = regexp.MustCompile(`\bunder\s*\$?(\d[\d,]*(?:\.\d+)?)\s*([km]\b)?`)
	priceBetween = regexp.MustCompile(`\bbetween\s*\$?(\d[\d,]*(?:\.\d+)?)\s*([km]\b)?\s*(?:and|to)\s*\$?(\d[\d,]*(?:\.\d+)?)\s*([km]\b)?`)
)

var bedroomWords = map[string]int{
	"studio": 0,
	"one":    1,
	"two":    2,
	"three":  3,
	"four":   4,
	"five":   5,
	"six":    6,
}

// yieldPatterns capture the percentage in group 1, first match wins.
var yieldPatterns = compile(
	`(?:yield|return|\broi\b).*?(\d+(?:\.\d+)?)\s*%`,
	`(\d+(?:\.\d+)?)\s*%.*?(?:yield|return|\broi\b)`,
	`\b(?:above|over|more than|at least)\s*(\d+(?:\.\d+)?)\s*%`,
)

type timeRule struct {
	pattern    *regexp.Regexp
	multiplier int
}

// timeRules without a capture group yield the multiplier itself.
var timeRules = []timeRule{
	{regexp.MustCompile(`\b(?:past|last)\s*(\d+)\s*months?\b`), 1},
	{regexp.MustCompile(`\b(?:past|last)\s*(\d+)\s*years?\b`), 12},
	{regexp.MustCompile(`\b(?:past|last)\s*quarter\b`), 3},
	{regexp.MustCompile(`\b(?:past|last)\s*year\b`), 12},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// ExtractLocations returns canonical city names in first-seen order. Alias
// tokens are resolved first, then the gazetteer is scanned by substring.
func ExtractLocations(q string) []string {
	locations := []string{}
	seen := make(map[string]bool)
	add := func(loc string) {
		if !seen[loc] {
			seen[loc] = true
			locations = append(locations, loc)
		}
	}

	tokens := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if canonical, ok := locationAliases[tok]; ok {
			add(canonical)
		}
	}

	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, name := range knownLocations {
		if pos := strings.Index(q, name); pos >= 0 {
			hits = append(hits, hit{name, pos})
		}
	}
	// Insertion sort keeps gazetteer order for equal positions.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	for _, h := range hits {
		add(h.name)
	}

	return locations
}

// ExtractPropertyType returns the most specific property type mentioned
func ExtractPropertyType(q string) *string {
	for _, rule := range propertyTypeRules {
		for _, p := range rule.patterns {
			if p.MatchString(q) {
				name := rule.name
				return &name
			}
		}
	}

	// A bedroom count or "units" implies apartments.
	if ExtractBedrooms(q) != nil || unitsPattern.MatchString(q) {
		name := "apartment"
		return &name
	}
	return nil
}

// ExtractBedrooms returns the bedroom count, trying numerals before words
func ExtractBedrooms(q string) *int {
	if m := bedroomNumeral.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}

	if m := bedroomWordNext.FindStringSubmatch(q); m != nil {
		n := bedroomWords[m[1]]
		return &n
	}

	if bedroomMention.MatchString(q) {
		if m := bedroomWord.FindStringSubmatch(q); m != nil {
			n := bedroomWords[m[1]]
			return &n
		}
	}

	return nil
}

// ExtractPriceRange recognizes "under $N" and "between $N1 and $N2"
func ExtractPriceRange(q string) *model.PriceRange {
	if m := priceUnder.FindStringSubmatch(q); m != nil {
		v, ok := parseAmount(m[1], m[2])
		if ok {
			return &model.PriceRange{Min: 0, Max: v}
		}
	}

	if m := priceBetween.FindStringSubmatch(q); m != nil {
		// A suffix on either bound applies to a bare bound as well.
		lowSuffix, highSuffix := m[2], m[4]
		if lowSuffix == "" {
			lowSuffix = highSuffix
		}
		if highSuffix == "" {
			highSuffix = lowSuffix
		}
		low, okLow := parseAmount(m[1], lowSuffix)
		high, okHigh := parseAmount(m[3], highSuffix)
		if okLow && okHigh {
			if low > high {
				low, high = high, low
			}
			return &model.PriceRange{Min: low, Max: high}
		}
	}

	return nil
}

func parseAmount(digits, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch suffix {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v, true
}

// ExtractYieldThreshold returns the percentage attached to yield vocabulary
func ExtractYieldThreshold(q string) *float64 {
	for _, p := range yieldPatterns {
		m := p.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return nil
}

// ExtractTimePeriod returns the look-back window in months, capped at
// model.MaxTimePeriodMonths
func ExtractTimePeriod(q string) *int {
	for _, rule := range timeRules {
		m := rule.pattern.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		if rule.pattern.NumSubexp() == 0 {
			months := rule.multiplier
			return &months
		}
		n, err := strconv.Atoi(m[1])
		if errors.Is(err, strconv.ErrRange) || (err == nil && n > model.MaxTimePeriodMonths/rule.multiplier) {
			months := model.MaxTimePeriodMonths
			return &months
		}
		if err != nil || n <= 0 {
			continue
		}
		months := n * rule.multiplier
		return &months
	}
	return nil
}
