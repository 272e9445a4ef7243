package types

import "time"

// DailyAggregate represents aggregated usage for one calendar date in the report time zone
type DailyAggregate struct {
	Date          string      `json:"date"` // YYYY-MM-DD
	Tokens        TokenCounts `json:"tokens"`
	TotalTokens   int64       `json:"total_tokens"`
	TotalCost     float64     `json:"total_cost"`
	RecordCount   int         `json:"record_count"`
	UnpricedCount int         `json:"unpriced_count"`
	Models        []string    `json:"models"`
}

// SessionAggregate represents aggregated usage for one session file
type SessionAggregate struct {
	SessionKey    string      `json:"session_key"`
	ProjectPath   string      `json:"project_path"`
	SessionID     string      `json:"session_id"`
	Tokens        TokenCounts `json:"tokens"`
	TotalTokens   int64       `json:"total_tokens"`
	TotalCost     float64     `json:"total_cost"`
	RecordCount   int         `json:"record_count"`
	FirstActivity time.Time   `json:"first_activity"`
	LastActivity  time.Time   `json:"last_activity"`
	Models        []string    `json:"models"`
}

// MonthlyAggregate represents aggregated usage for one calendar month
type MonthlyAggregate struct {
	Year         int         `json:"year"`
	Month        int         `json:"month"`
	Tokens       TokenCounts `json:"tokens"`
	TotalTokens  int64       `json:"total_tokens"`
	TotalCost    float64     `json:"total_cost"`
	RecordCount  int         `json:"record_count"`
	ActiveDays   int         `json:"active_days"`
	AvgDailyCost float64     `json:"avg_daily_cost"`
}

// Key renders the month as YYYY-MM.
func (m MonthlyAggregate) Key() string {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Totals is the grand total over every folded event.
type Totals struct {
	Tokens        TokenCounts `json:"tokens"`
	TotalTokens   int64       `json:"total_tokens"`
	TotalCost     float64     `json:"total_cost"`
	RecordCount   int         `json:"record_count"`
	UnpricedCount int         `json:"unpriced_count"`
}
