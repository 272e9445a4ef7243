package calculator

import (
	"math"
	"strings"
	"time"

	"github.com/sdpower/ccledger/internal/types"
)

const (
	// DefaultActiveHoursPerDay is how many hours a day usage is assumed to
	// accrue. Rates are per active hour, not per wall-clock hour.
	DefaultActiveHoursPerDay = 9.0
	// DefaultTrendThreshold is the relative change below which a trend is flat.
	DefaultTrendThreshold = 0.05
)

// DefaultWindows are the lookback windows reported by Snapshots.
var DefaultWindows = []time.Duration{24 * time.Hour, 7 * 24 * time.Hour}

// Forecaster projects consumption from finalized aggregates.
type Forecaster struct {
	ActiveHoursPerDay float64
	TokenLimit        int64   // monthly; zero disables
	CostLimit         float64 // monthly USD; zero disables
	TrendThreshold    float64
	Location          *time.Location // calendar month for limit usage
	Now               func() time.Time
}

func NewForecaster() *Forecaster {
	return &Forecaster{
		ActiveHoursPerDay: DefaultActiveHoursPerDay,
		TrendThreshold:    DefaultTrendThreshold,
		Location:          time.Local,
		Now:               time.Now,
	}
}

// Snapshots computes one snapshot per default window.
func (f *Forecaster) Snapshots(daily []types.DailyAggregate, blocks []types.BillingBlock) []types.BurnRateSnapshot {
	out := make([]types.BurnRateSnapshot, 0, len(DefaultWindows))
	for _, w := range DefaultWindows {
		out = append(out, f.Snapshot(daily, blocks, w))
	}
	return out
}

// Snapshot measures the billing blocks that start within the window ending
// now and extrapolates. The rate denominator is active hours, so a 24h
// window divides by ActiveHoursPerDay. daily supplies month-to-date usage
// for the limit forecasts.
func (f *Forecaster) Snapshot(daily []types.DailyAggregate, blocks []types.BillingBlock, window time.Duration) types.BurnRateSnapshot {
	now := f.now()
	end := now
	start := end.Add(-window)

	snap := types.BurnRateSnapshot{
		Window:      window,
		WindowStart: start,
		WindowEnd:   end,
		Trend:       types.TrendFlat,
	}

	tokens, cost := sumBlocks(blocksActiveIn(blocks, start, end))
	snap.WindowTokens = tokens
	snap.WindowCost = cost

	activeHours := window.Hours() / 24 * f.activeHoursPerDay()
	if (tokens == 0 && cost == 0) || activeHours <= 0 {
		snap.NoData = true
	} else {
		snap.TokensPerHour = float64(tokens) / activeHours
		snap.TokensPerMinute = snap.TokensPerHour / 60
		snap.CostPerHour = cost / activeHours

		snap.ProjectedDailyTokens = snap.TokensPerHour * f.activeHoursPerDay()
		snap.ProjectedDailyCost = snap.CostPerHour * f.activeHoursPerDay()
		days := float64(daysInMonth(now.In(f.location())))
		snap.ProjectedMonthlyTokens = snap.ProjectedDailyTokens * days
		snap.ProjectedMonthlyCost = snap.ProjectedDailyCost * days
	}

	priorTokens, _ := sumBlocks(blocksActiveIn(blocks, start.Add(-window), start))
	snap.Trend, snap.TrendPercent = f.trend(tokens, priorTokens)

	monthTokens, monthCost := f.monthToDate(daily, now)
	snap.TokenLimit = limitForecast(float64(f.TokenLimit), float64(monthTokens), snap.TokensPerHour)
	snap.CostLimit = limitForecast(f.CostLimit, monthCost, snap.CostPerHour)
	return snap
}

func (f *Forecaster) trend(recent, prior int64) (types.TrendDirection, float64) {
	switch {
	case recent == 0 && prior == 0:
		return types.TrendFlat, 0
	case prior == 0:
		return types.TrendUp, 100
	}

	change := float64(recent-prior) / float64(prior)
	threshold := f.TrendThreshold
	if threshold <= 0 {
		threshold = DefaultTrendThreshold
	}
	switch {
	case change > threshold:
		return types.TrendUp, change * 100
	case change < -threshold:
		return types.TrendDown, change * 100
	default:
		return types.TrendFlat, change * 100
	}
}

func (f *Forecaster) monthToDate(daily []types.DailyAggregate, now time.Time) (int64, float64) {
	prefix := now.In(f.location()).Format("2006-01") + "-"
	var tokens int64
	var cost float64
	for _, d := range daily {
		if strings.HasPrefix(d.Date, prefix) {
			tokens += d.TotalTokens
			cost += d.TotalCost
		}
	}
	return tokens, cost
}

// limitForecast reports how long until current reaches limit at ratePerHour.
// Usage at or over the limit alerts immediately; a zero rate never alerts.
func limitForecast(limit, current, ratePerHour float64) types.LimitForecast {
	if limit <= 0 {
		return types.LimitForecast{Status: types.LimitNotConfigured, Current: current}
	}

	lf := types.LimitForecast{
		Limit:       limit,
		Current:     current,
		Remaining:   math.Max(limit-current, 0),
		PercentUsed: current / limit * 100,
	}
	switch {
	case current >= limit:
		lf.Status = types.LimitExceeded
	case ratePerHour <= 0:
		lf.Status = types.LimitUnbounded
	default:
		hours := lf.Remaining / ratePerHour
		if hours*float64(time.Hour) >= math.MaxInt64 {
			lf.Status = types.LimitUnbounded
			break
		}
		lf.Status = types.LimitOK
		lf.TimeToLimit = time.Duration(hours * float64(time.Hour))
	}
	return lf
}

func sumBlocks(blocks []types.BillingBlock) (int64, float64) {
	var tokens int64
	var cost float64
	for _, b := range blocks {
		tokens += b.TotalTokens
		cost += b.TotalCost
	}
	return tokens, cost
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func (f *Forecaster) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func (f *Forecaster) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

func (f *Forecaster) activeHoursPerDay() float64 {
	if f.ActiveHoursPerDay <= 0 {
		return DefaultActiveHoursPerDay
	}
	return f.ActiveHoursPerDay
}
