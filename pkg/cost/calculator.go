// Package cost computes the dollar cost of an LLM call from its token
// counts and model name, and aggregates costs per tier.
package cost

import (
	"strings"

	"github.com/codeready-toolchain/tarsy/pkg/models"
)

// rate is a model family's price per million tokens, in USD.
type rate struct {
	inputPerMillion  float64
	outputPerMillion float64
}

// ratesByFamily maps a model family (matched case-insensitively by prefix/
// substring once well-known vendor prefixes are stripped) to its price.
// Unknown families and the "local" family cost zero.
var ratesByFamily = map[string]rate{
	"haiku":       {inputPerMillion: 0.80, outputPerMillion: 4.00},
	"sonnet":      {inputPerMillion: 3.00, outputPerMillion: 15.00},
	"opus":        {inputPerMillion: 15.00, outputPerMillion: 75.00},
	"gpt-4o-mini": {inputPerMillion: 0.15, outputPerMillion: 0.60},
	"gpt-4o":      {inputPerMillion: 2.50, outputPerMillion: 10.00},
	"gpt-4":       {inputPerMillion: 30.00, outputPerMillion: 60.00},
	"gpt-3.5":     {inputPerMillion: 0.50, outputPerMillion: 1.50},
	"gemini-flash": {inputPerMillion: 0.075, outputPerMillion: 0.30},
	"gemini-pro":   {inputPerMillion: 1.25, outputPerMillion: 5.00},
	"local":       {inputPerMillion: 0, outputPerMillion: 0},
	"ollama":      {inputPerMillion: 0, outputPerMillion: 0},
}

// knownPrefixes are vendor/date prefixes stripped before family matching so
// that e.g. "anthropic/claude-3-5-haiku-20241022" still resolves to "haiku".
var knownPrefixes = []string{
	"anthropic/", "anthropic.", "claude-3-5-", "claude-3-", "claude-",
	"openai/", "models/", "us.anthropic.",
}

// normalizeModel lowercases a model identifier and strips known vendor
// prefixes so the family substring match below is reliable.
func normalizeModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, p := range knownPrefixes {
		m = strings.TrimPrefix(m, p)
	}
	return m
}

// familyFor resolves a (possibly decorated) model identifier to a pricing
// family via substring match. When several families match (e.g.
// "gpt-4o-mini" contains "gpt-4o" and "gpt-4"), the longest one wins.
// Returns "" if no known family matches.
func familyFor(model string) string {
	m := normalizeModel(model)
	if m == "" {
		return ""
	}
	best := ""
	for family := range ratesByFamily {
		if strings.Contains(m, family) && len(family) > len(best) {
			best = family
		}
	}
	return best
}

// Calculate returns the USD cost of one LLM call given its model name and
// input/output token counts. Unknown models and the local family cost zero.
// Result precision is float64 (>= 6 decimal places of useful precision).
func Calculate(model string, inputTokens, outputTokens int) float64 {
	family := familyFor(model)
	if family == "" {
		return 0
	}
	r := ratesByFamily[family]
	inputCost := float64(inputTokens) / 1_000_000 * r.inputPerMillion
	outputCost := float64(outputTokens) / 1_000_000 * r.outputPerMillion
	return inputCost + outputCost
}

// TierEstimate is the fixed, estimated per-call cost the Router uses for
// admission-control purposes before a call is actually made.
var TierEstimate = map[models.Tier]float64{
	models.TierLocal:   0,
	models.TierCheap:   0.001,
	models.TierMid:     0.005,
	models.TierPremium: 0.04,
}

// TierTotals aggregates actual recorded cost per tier.
type TierTotals struct {
	Free    float64
	Cheap   float64
	Mid     float64
	Premium float64
}

// Add accumulates a cost into the tier bucket it belongs to.
func (t *TierTotals) Add(tier models.Tier, amount float64) {
	switch tier {
	case models.TierLocal:
		t.Free += amount
	case models.TierCheap:
		t.Cheap += amount
	case models.TierMid:
		t.Mid += amount
	case models.TierPremium:
		t.Premium += amount
	}
}

// Total returns the sum of all tier buckets.
func (t TierTotals) Total() float64 {
	return t.Free + t.Cheap + t.Mid + t.Premium
}
