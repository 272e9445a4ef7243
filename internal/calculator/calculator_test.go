package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdpower/ccledger/internal/types"
)

// flatResolver prices known models at one rate and reports the rest unpriced.
type flatResolver struct {
	known map[string]float64 // model -> USD per token
}

func (r flatResolver) Resolve(model string, tokens types.TokenCounts, reported *float64) types.CostResult {
	rate, ok := r.known[model]
	if !ok {
		if reported != nil {
			return types.CostResult{Cost: *reported, Source: types.CostSourceReported}
		}
		return types.CostResult{Source: types.CostSourceUnpriced}
	}
	cost := float64(tokens.GetTotal()) * rate
	res := types.CostResult{Cost: cost, Source: types.CostSourceComputed}
	if reported != nil && *reported != cost {
		res.Discrepancy = true
	}
	return res
}

func TestFoldPricesEvents(t *testing.T) {
	calc := New(flatResolver{known: map[string]float64{"m": 0.001}})
	reported := 0.5

	events := []types.UsageEvent{
		event("2024-01-01T10:00:00Z", "s", "m", 100, 0, 0),
		event("2024-01-01T11:00:00Z", "s", "unknown", 100, 0, 0),
		event("2024-01-01T12:00:00Z", "s", "m", 100, 0, 0),
	}
	events[1].CostSource = types.CostSourceUnpriced
	events[2].ReportedCost = &reported
	events = append(events, event("2024-01-01T13:00:00Z", "s", "", 100, 0, 0))
	events[3].UnpricedByModel = true
	events[3].ReportedCost = &reported

	p := NewPartial(time.UTC)
	diag := calc.Fold(p, events)

	assert.Equal(t, 1, diag.UnpricedEvents)
	assert.Equal(t, 1, diag.CostDiscrepancies)
	assert.Equal(t, 1, diag.MissingModel)
	assert.Equal(t, 4, p.Len())
	assert.InDelta(t, 0.7, p.Totals().TotalCost, 1e-12)
	assert.Equal(t, 1, p.Totals().UnpricedCount)
	assert.Equal(t, types.CostSourceComputed, events[0].CostSource)
}

func TestFoldDateFilter(t *testing.T) {
	calc := New(flatResolver{})
	filter, err := ParseDateFilter("20240102", "2024-01-03")
	require.NoError(t, err)
	calc.SetDateFilter(filter)

	p := NewPartial(time.UTC)
	calc.Fold(p, []types.UsageEvent{
		event("2024-01-01T23:59:59Z", "s", "", 1, 0, 0),
		event("2024-01-02T00:00:00Z", "s", "", 1, 0, 0),
		event("2024-01-03T23:59:59Z", "s", "", 1, 0, 0),
		event("2024-01-04T00:00:00Z", "s", "", 1, 0, 0),
	})
	assert.Equal(t, 2, p.Len())
}

func TestParseDateFilter(t *testing.T) {
	f, err := ParseDateFilter("", "")
	require.NoError(t, err)
	assert.True(t, f.Contains(time.Now()))

	_, err = ParseDateFilter("2024-13-01", "")
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = ParseDateFilter("2024-02-01", "2024-01-01")
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}
