package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdpower/ccledger/internal/types"
)

func TestBlockIndexBoundaries(t *testing.T) {
	tests := []struct {
		ts   string
		want int
	}{
		{"2024-01-01T00:00:00Z", 0},
		{"2024-01-01T04:59:59Z", 0},
		{"2024-01-01T05:00:00Z", 1},
		{"2024-01-01T09:59:59Z", 1},
		{"2024-01-01T10:00:00Z", 2},
		{"2024-01-01T15:00:00Z", 3},
		{"2024-01-01T20:00:00Z", 4},
		{"2024-01-01T23:59:59Z", 4},
		// 07:30 in UTC+3 is 04:30 UTC
		{"2024-01-01T07:30:00+03:00", 0},
	}
	for _, tt := range tests {
		t.Run(tt.ts, func(t *testing.T) {
			ts, err := time.Parse(time.RFC3339, tt.ts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, BlockIndex(ts))
		})
	}
}

func TestBlockStart(t *testing.T) {
	ts := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, ts, BlockStart(ts))
	assert.Equal(t, ts, BlockStart(ts.Add(4*time.Hour+59*time.Minute)))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), BlockStart(ts.Add(-time.Nanosecond)))
}

func TestBillingBlocks(t *testing.T) {
	p := fold(time.UTC, []types.UsageEvent{
		event("2024-01-01T05:00:00Z", "p/a", "m", 100, 0, 1),
		event("2024-01-01T10:00:00Z", "p/a", "m", 100, 100, 2),
		event("2024-01-01T12:00:00Z", "p/b", "m", 100, 100, 1),
		event("2024-01-01T14:59:59Z", "p/a", "m", 50, 0, 0),
		event("2024-01-02T10:30:00Z", "p/c", "m", 10, 0, 3),
	})

	report := p.BillingBlocks()
	require.Len(t, report.Blocks, 3)

	first := report.Blocks[0]
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "05:00-10:00", first.Label())
	assert.Equal(t, time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), first.StartTime)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), first.EndTime)

	mid := report.Blocks[1]
	assert.Equal(t, 2, mid.Index)
	assert.Equal(t, 3, mid.RecordCount)
	assert.Equal(t, 2, mid.SessionCount)
	assert.Equal(t, int64(450), mid.TotalTokens)
	assert.InDelta(t, 3.0, mid.TotalCost, 1e-12)

	// the 01-01 10:00 block and the 01-02 10:00 block both cost 3; earliest wins
	require.NotNil(t, report.Peak)
	assert.Equal(t, mid.StartTime, report.Peak.StartTime)
	assert.InDelta(t, 7.0/3.0, report.AverageCost, 1e-12)

	require.Len(t, report.ByIndex, types.BlocksPerDay)
	assert.Equal(t, 2, report.ByIndex[2].BlockCount)
	assert.Equal(t, 4, report.ByIndex[2].RecordCount)
	assert.InDelta(t, 6.0, report.ByIndex[2].TotalCost, 1e-12)
	assert.Equal(t, "10:00-15:00", report.ByIndex[2].Label)
	assert.Zero(t, report.ByIndex[0].BlockCount)
	assert.Equal(t, "20:00-01:00", report.ByIndex[4].Label)
}

func TestBillingBlocksEmpty(t *testing.T) {
	report := NewPartial(time.UTC).BillingBlocks()
	assert.Empty(t, report.Blocks)
	assert.Nil(t, report.Peak)
	assert.Zero(t, report.AverageCost)
	assert.Nil(t, report.Active(time.Now()))
}

func TestBlockReportActiveAndBetween(t *testing.T) {
	p := fold(time.UTC, []types.UsageEvent{
		event("2024-01-01T01:00:00Z", "s", "m", 1, 0, 0),
		event("2024-01-01T11:00:00Z", "s", "m", 1, 0, 0),
	})
	report := p.BillingBlocks()

	active := report.Active(time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC))
	require.NotNil(t, active)
	assert.Equal(t, 2, active.Index)
	assert.Nil(t, report.Active(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)))

	between := report.Between(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	require.Len(t, between, 1)
	assert.Equal(t, 0, between[0].Index)
	assert.Equal(t, int64(1), report.MaxTokens())
}

func TestBlockBurnRateAndProjection(t *testing.T) {
	p := fold(time.UTC, []types.UsageEvent{
		event("2024-01-01T10:00:00Z", "s", "m", 600, 0, 0.6),
		event("2024-01-01T11:00:00Z", "s", "m", 0, 600, 0.6),
	})
	block := p.BillingBlocks().Blocks[0]

	rate := BlockBurnRate(block)
	require.NotNil(t, rate)
	assert.InDelta(t, 20.0, rate.TokensPerMinute, 1e-9)
	assert.InDelta(t, 20.0, rate.TokensPerMinuteForIndicator, 1e-9)
	assert.InDelta(t, 1.2, rate.CostPerHour, 1e-9)

	proj := ProjectBlock(block, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC))
	require.NotNil(t, proj)
	assert.InDelta(t, 60.0, proj.RemainingMinutes, 1e-9)
	assert.Equal(t, int64(1200+1200), proj.TotalTokens)
	assert.InDelta(t, 2.4, proj.TotalCost, 1e-9)

	assert.Nil(t, ProjectBlock(block, time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)))
}

func TestBlockBurnRateSingleEvent(t *testing.T) {
	p := fold(time.UTC, []types.UsageEvent{event("2024-01-01T10:00:00Z", "s", "m", 600, 0, 0.6)})
	assert.Nil(t, BlockBurnRate(p.BillingBlocks().Blocks[0]))
}
