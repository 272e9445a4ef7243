package types

import "time"

// TrendDirection classifies how usage moved between two equal windows.
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// LimitStatus is the alert state of a configured limit.
type LimitStatus string

const (
	// LimitNotConfigured means no limit was set.
	LimitNotConfigured LimitStatus = "none"
	// LimitOK means the limit will be reached after TimeToLimit at the current rate.
	LimitOK LimitStatus = "ok"
	// LimitUnbounded means the rate is zero, so the limit is never reached.
	LimitUnbounded LimitStatus = "unbounded"
	// LimitExceeded means usage already meets or exceeds the limit.
	LimitExceeded LimitStatus = "exceeded"
)

// LimitForecast projects when a limit will be hit at the current rate.
type LimitForecast struct {
	Status      LimitStatus   `json:"status"`
	Limit       float64       `json:"limit"`
	Current     float64       `json:"current"`
	Remaining   float64       `json:"remaining"`
	PercentUsed float64       `json:"percent_used"`
	TimeToLimit time.Duration `json:"time_to_limit"` // active time
}

// Alert reports whether the limit is exceeded or will be hit.
func (l LimitForecast) Alert() bool {
	return l.Status == LimitExceeded || l.Status == LimitOK
}

// BurnRateSnapshot is a forecast derived from one lookback window.
type BurnRateSnapshot struct {
	Window      time.Duration `json:"window"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	// NoData is set when the window holds no tokens; every rate is zero.
	NoData bool `json:"no_data"`

	WindowTokens int64   `json:"window_tokens"`
	WindowCost   float64 `json:"window_cost"`

	TokensPerMinute float64 `json:"tokens_per_minute"`
	TokensPerHour   float64 `json:"tokens_per_hour"`
	CostPerHour     float64 `json:"cost_per_hour"`

	ProjectedDailyTokens   float64 `json:"projected_daily_tokens"`
	ProjectedDailyCost     float64 `json:"projected_daily_cost"`
	ProjectedMonthlyTokens float64 `json:"projected_monthly_tokens"`
	ProjectedMonthlyCost   float64 `json:"projected_monthly_cost"`

	Trend        TrendDirection `json:"trend"`
	TrendPercent float64        `json:"trend_percent"`

	TokenLimit LimitForecast `json:"token_limit"`
	CostLimit  LimitForecast `json:"cost_limit"`
}
