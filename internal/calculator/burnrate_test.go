package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdpower/ccledger/internal/types"
)

var forecastNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func testForecaster() *Forecaster {
	f := NewForecaster()
	f.Location = time.UTC
	f.Now = func() time.Time { return forecastNow }
	return f
}

func block(start time.Time, tokens int64, cost float64) types.BillingBlock {
	return types.BillingBlock{
		Date:        start.Format("2006-01-02"),
		Index:       BlockIndex(start),
		StartTime:   start,
		EndTime:     start.Add(types.BlockDuration),
		TotalTokens: tokens,
		TotalCost:   cost,
		RecordCount: 1,
	}
}

func TestSnapshotNoData(t *testing.T) {
	f := testForecaster()
	f.TokenLimit = 1000
	f.CostLimit = 10

	snap := f.Snapshot(nil, nil, 24*time.Hour)
	assert.True(t, snap.NoData)
	assert.Zero(t, snap.TokensPerMinute)
	assert.Zero(t, snap.TokensPerHour)
	assert.Zero(t, snap.CostPerHour)
	assert.Zero(t, snap.ProjectedMonthlyCost)
	assert.Equal(t, types.TrendFlat, snap.Trend)

	assert.Equal(t, types.LimitUnbounded, snap.TokenLimit.Status)
	assert.False(t, snap.TokenLimit.Alert())
	assert.Zero(t, snap.TokenLimit.TimeToLimit)
	assert.Equal(t, types.LimitUnbounded, snap.CostLimit.Status)
}

func TestSnapshotRatesUseActiveHours(t *testing.T) {
	f := testForecaster()
	blocks := []types.BillingBlock{
		block(time.Date(2024, 1, 9, 5, 0, 0, 0, time.UTC), 999, 99), // before the window
		block(time.Date(2024, 1, 9, 15, 0, 0, 0, time.UTC), 4000, 4),
		block(time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), 5000, 5),
	}

	snap := f.Snapshot(nil, blocks, 24*time.Hour)
	require.False(t, snap.NoData)
	assert.Equal(t, int64(9000), snap.WindowTokens)
	assert.InDelta(t, 9.0, snap.WindowCost, 1e-12)

	// 9000 tokens over one day of 9 active hours
	assert.InDelta(t, 1000.0, snap.TokensPerHour, 1e-9)
	assert.InDelta(t, 1000.0/60, snap.TokensPerMinute, 1e-9)
	assert.InDelta(t, 1.0, snap.CostPerHour, 1e-12)
	assert.InDelta(t, 9000.0, snap.ProjectedDailyTokens, 1e-9)
	assert.InDelta(t, 9.0, snap.ProjectedDailyCost, 1e-12)
	// January has 31 days
	assert.InDelta(t, 9000.0*31, snap.ProjectedMonthlyTokens, 1e-6)
	assert.InDelta(t, 9.0*31, snap.ProjectedMonthlyCost, 1e-9)
}

func TestSnapshotCountsBlockStartedBeforeWindow(t *testing.T) {
	f := testForecaster()
	now := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	f.Now = func() time.Time { return now }

	// the 10:00 block starts 24.5h back; its event is 22.5h back
	report := fold(time.UTC, []types.UsageEvent{
		event("2024-01-01T12:00:00Z", "s", "m", 900, 0, 0.9),
	}).BillingBlocks()

	snap := f.Snapshot(nil, report.Blocks, 24*time.Hour)
	require.False(t, snap.NoData)
	assert.Equal(t, int64(900), snap.WindowTokens)
	assert.InDelta(t, 0.9, snap.WindowCost, 1e-12)
	// the same block is not counted again in the prior window
	assert.Equal(t, types.TrendUp, snap.Trend)
	assert.InDelta(t, 100.0, snap.TrendPercent, 1e-9)
}

func TestSnapshotCustomActiveHours(t *testing.T) {
	f := testForecaster()
	f.ActiveHoursPerDay = 24
	blocks := []types.BillingBlock{block(time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), 2400, 0)}

	snap := f.Snapshot(nil, blocks, 24*time.Hour)
	assert.InDelta(t, 100.0, snap.TokensPerHour, 1e-9)
}

func TestSnapshotLimits(t *testing.T) {
	blocks := []types.BillingBlock{block(time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), 9000, 9)}
	daily := []types.DailyAggregate{
		{Date: "2024-01-10", TotalTokens: 9000, TotalCost: 9},
		{Date: "2024-01-02", TotalTokens: 1000, TotalCost: 2},
		{Date: "2023-12-31", TotalTokens: 50000, TotalCost: 500}, // previous month
	}

	t.Run("time to limit", func(t *testing.T) {
		f := testForecaster()
		f.CostLimit = 20
		f.TokenLimit = 20000

		snap := f.Snapshot(daily, blocks, 24*time.Hour)
		// 11 spent, 9 remaining at 1 per active hour
		assert.Equal(t, types.LimitOK, snap.CostLimit.Status)
		assert.InDelta(t, 11.0, snap.CostLimit.Current, 1e-12)
		assert.Equal(t, 9*time.Hour, snap.CostLimit.TimeToLimit)
		assert.InDelta(t, 55.0, snap.CostLimit.PercentUsed, 1e-9)
		assert.True(t, snap.CostLimit.Alert())

		// 10000 used, 10000 remaining at 1000 per active hour
		assert.Equal(t, types.LimitOK, snap.TokenLimit.Status)
		assert.Equal(t, 10*time.Hour, snap.TokenLimit.TimeToLimit)
	})

	t.Run("already exceeded", func(t *testing.T) {
		f := testForecaster()
		f.CostLimit = 5

		snap := f.Snapshot(daily, blocks, 24*time.Hour)
		assert.Equal(t, types.LimitExceeded, snap.CostLimit.Status)
		assert.Zero(t, snap.CostLimit.TimeToLimit)
		assert.Zero(t, snap.CostLimit.Remaining)
		assert.True(t, snap.CostLimit.Alert())
	})

	t.Run("exceeded with zero rate", func(t *testing.T) {
		f := testForecaster()
		f.CostLimit = 5

		snap := f.Snapshot(daily, nil, 24*time.Hour)
		assert.True(t, snap.NoData)
		assert.Equal(t, types.LimitExceeded, snap.CostLimit.Status)
	})

	t.Run("not configured", func(t *testing.T) {
		snap := testForecaster().Snapshot(daily, blocks, 24*time.Hour)
		assert.Equal(t, types.LimitNotConfigured, snap.CostLimit.Status)
		assert.False(t, snap.CostLimit.Alert())
	})
}

func TestSnapshotTrend(t *testing.T) {
	prior := time.Date(2024, 1, 9, 5, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 1, 10, 5, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		priorTokens  int64
		recentTokens int64
		want         types.TrendDirection
		percent      float64
	}{
		{"up", 1000, 2000, types.TrendUp, 100},
		{"down", 1000, 500, types.TrendDown, -50},
		{"flat within threshold", 1000, 1040, types.TrendFlat, 4},
		{"from nothing", 0, 10, types.TrendUp, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var blocks []types.BillingBlock
			if tt.priorTokens > 0 {
				blocks = append(blocks, block(prior, tt.priorTokens, 0))
			}
			blocks = append(blocks, block(recent, tt.recentTokens, 0))

			snap := testForecaster().Snapshot(nil, blocks, 24*time.Hour)
			assert.Equal(t, tt.want, snap.Trend)
			assert.InDelta(t, tt.percent, snap.TrendPercent, 1e-9)
		})
	}
}

func TestSnapshots(t *testing.T) {
	snaps := testForecaster().Snapshots(nil, nil)
	require.Len(t, snaps, 2)
	assert.Equal(t, 24*time.Hour, snaps[0].Window)
	assert.Equal(t, 7*24*time.Hour, snaps[1].Window)
}

func TestLimitForecastHugeDuration(t *testing.T) {
	lf := limitForecast(1e30, 0, 1e-9)
	assert.Equal(t, types.LimitUnbounded, lf.Status)
}
