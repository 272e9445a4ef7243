package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sdpower/ccledger/internal/types"
)

var perMillion = decimal.NewFromInt(1_000_000)

// ModelPricing holds per-token USD rates for one model.
type ModelPricing struct {
	InputCostPerToken         float64 `json:"input_cost_per_token"`
	OutputCostPerToken        float64 `json:"output_cost_per_token"`
	CacheCreationCostPerToken float64 `json:"cache_creation_input_token_cost"`
	CacheReadCostPerToken     float64 `json:"cache_read_input_token_cost"`
}

// Table maps a canonical model identifier to its rates.
type Table map[string]ModelPricing

// Clone returns a copy of t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Models returns the table keys in sorted order.
func (t Table) Models() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PerMillion converts a published USD-per-million-tokens price into a
// per-token rate. Every rate in the system goes through here exactly once.
func PerMillion(price float64) float64 {
	return decimal.NewFromFloat(price).Div(perMillion).InexactFloat64()
}

// FromPerMillion builds per-token pricing from published per-million prices.
func FromPerMillion(input, output, cacheCreation, cacheRead float64) ModelPricing {
	return ModelPricing{
		InputCostPerToken:         PerMillion(input),
		OutputCostPerToken:        PerMillion(output),
		CacheCreationCostPerToken: PerMillion(cacheCreation),
		CacheReadCostPerToken:     PerMillion(cacheRead),
	}
}

// Cost sums tokens times rate over the four token categories.
func (p ModelPricing) Cost(tokens types.TokenCounts) float64 {
	return float64(tokens.InputTokens)*p.InputCostPerToken +
		float64(tokens.OutputTokens)*p.OutputCostPerToken +
		float64(tokens.CacheCreationInputTokens)*p.CacheCreationCostPerToken +
		float64(tokens.CacheReadInputTokens)*p.CacheReadCostPerToken
}

// published prices in USD per million tokens: input, output, cache write, cache read
var builtinPerMillion = map[string][4]float64{
	"claude-opus-4-5-20251101":   {5, 25, 6.25, 0.5},
	"claude-opus-4-1-20250805":   {15, 75, 18.75, 1.5},
	"claude-opus-4-20250514":     {15, 75, 18.75, 1.5},
	"claude-sonnet-4-5-20250929": {3, 15, 3.75, 0.3},
	"claude-sonnet-4-20250514":   {3, 15, 3.75, 0.3},
	"claude-3-7-sonnet-20250219": {3, 15, 3.75, 0.3},
	"claude-3-5-sonnet-20241022": {3, 15, 3.75, 0.3},
	"claude-3-5-sonnet-20240620": {3, 15, 3.75, 0.3},
	"claude-haiku-4-5-20251001":  {1, 5, 1.25, 0.1},
	"claude-3-5-haiku-20241022":  {0.8, 4, 1, 0.08},
	"claude-3-haiku-20240307":    {0.25, 1.25, 0.3, 0.03},
	"claude-3-opus-20240229":     {15, 75, 18.75, 1.5},
}

// BuiltinAliases maps short or reordered model names onto built-in keys.
var BuiltinAliases = map[string]string{
	"opus":              "claude-opus-4-5-20251101",
	"opus-4-5":          "claude-opus-4-5-20251101",
	"claude-opus-4-5":   "claude-opus-4-5-20251101",
	"opus-4-1":          "claude-opus-4-1-20250805",
	"claude-opus-4-1":   "claude-opus-4-1-20250805",
	"opus-4":            "claude-opus-4-20250514",
	"claude-opus-4":     "claude-opus-4-20250514",
	"claude-4-opus":     "claude-opus-4-20250514",
	"sonnet":            "claude-sonnet-4-5-20250929",
	"sonnet-4-5":        "claude-sonnet-4-5-20250929",
	"claude-sonnet-4-5": "claude-sonnet-4-5-20250929",
	"sonnet-4":          "claude-sonnet-4-20250514",
	"claude-sonnet-4":   "claude-sonnet-4-20250514",
	"claude-4-sonnet":   "claude-sonnet-4-20250514",
	"sonnet-3-7":        "claude-3-7-sonnet-20250219",
	"claude-3-7-sonnet": "claude-3-7-sonnet-20250219",
	"sonnet-3-5":        "claude-3-5-sonnet-20241022",
	"claude-3-5-sonnet": "claude-3-5-sonnet-20241022",
	"haiku":             "claude-haiku-4-5-20251001",
	"haiku-4-5":         "claude-haiku-4-5-20251001",
	"claude-haiku-4-5":  "claude-haiku-4-5-20251001",
	"haiku-3-5":         "claude-3-5-haiku-20241022",
	"claude-3-5-haiku":  "claude-3-5-haiku-20241022",
	"claude-3-haiku":    "claude-3-haiku-20240307",
	"claude-3-opus":     "claude-3-opus-20240229",
}

// Builtin returns the embedded fallback pricing table.
func Builtin() Table {
	table := make(Table, len(builtinPerMillion))
	for model, p := range builtinPerMillion {
		table[model] = FromPerMillion(p[0], p[1], p[2], p[3])
	}
	return table
}
