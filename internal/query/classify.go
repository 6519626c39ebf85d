package query

import (
	"regexp"

	"marketinsights/internal/model"
)

// IntentPatterns pairs an intent with the expressions that select it
type IntentPatterns struct {
	Intent   model.Intent
	Patterns []*regexp.Regexp
}

// intentTable is traversed in order and the first matching expression decides
// the intent. Reordering entries changes classification results.
var intentTable = []IntentPatterns{
	{model.IntentMarketYield, compile(
		`\b(?:what(?:'s| is) the )?(?:average )?yields?\b.*\b(?:for|in|of)\b`,
		`\brental yields?\b`,
		`\breturn on investment\b`,
		`\broi\b.*\b(?:for|in|of)\b`,
		`\b(?:average|typical|current) (?:rental )?yields?\b`,
		`\bcap(?:italization)? rates?\b`,
	)},
	{model.IntentMarketTrends, compile(
		`\bmarket trends?\b`,
		`\bprice (?:trends?|movements?|history)\b`,
		`\bhow (?:has|have)\b.*\b(?:changed|moved|evolved|performed)\b`,
		`\bhistorical (?:data|prices|rents)\b`,
		`\b(?:rental|rent|price) trends?\b`,
		`\btrends?\b`,
	)},
	{model.IntentLocationComparison, compile(
		`\bcompar(?:e|ing|ison)\b`,
		`\b(?:which|what)\b.*\bbetter\b`,
		`\b(?:versus|vs)\b`,
		`\bdifferences?\b.*\bbetween\b`,
	)},
	{model.IntentInvestmentOpportunities, compile(
		`\binvestment opportunit`,
		`\bbest (?:investments?|properties|deals)\b`,
		`\bpropert(?:y|ies) (?:with|yielding|above|under)\b`,
		`\bfind\b.*\b(?:investments?|properties|deals)\b`,
		`\bwhere (?:should i|to) invest\b`,
	)},
	{model.IntentMarketSummary, compile(
		`\bmarket (?:summary|overview|analysis|report)\b`,
		`\btell me about\b.*\bmarket\b`,
		`\bhow is the\b.*\bmarket\b`,
		`\bmarket conditions?\b`,
		`\boverview\b`,
	)},
}

// Classify maps a lower-cased query to exactly one intent
func Classify(q string) model.Intent {
	for _, entry := range intentTable {
		for _, p := range entry.Patterns {
			if p.MatchString(q) {
				return entry.Intent
			}
		}
	}
	return model.IntentGeneralQuestion
}

// Patterns returns the intent table in traversal order
func Patterns() []IntentPatterns {
	out := make([]IntentPatterns, len(intentTable))
	copy(out, intentTable)
	return out
}
