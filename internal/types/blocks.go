package types

import (
	"fmt"
	"time"
)

// BlockDuration is the fixed length of a billing block.
const BlockDuration = 5 * time.Hour

// BlocksPerDay is the number of billing blocks in a UTC day.
const BlocksPerDay = 5

// TokenCounts represents aggregated token counts for different token types
type TokenCounts struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// GetTotal calculates the total number of tokens from TokenCounts
func (tc TokenCounts) GetTotal() int64 {
	return tc.InputTokens + tc.OutputTokens + tc.CacheCreationInputTokens + tc.CacheReadInputTokens
}

// Add returns the per-category sum of two token counts.
func (tc TokenCounts) Add(o TokenCounts) TokenCounts {
	return TokenCounts{
		InputTokens:              tc.InputTokens + o.InputTokens,
		OutputTokens:             tc.OutputTokens + o.OutputTokens,
		CacheCreationInputTokens: tc.CacheCreationInputTokens + o.CacheCreationInputTokens,
		CacheReadInputTokens:     tc.CacheReadInputTokens + o.CacheReadInputTokens,
	}
}

// BillingBlock is one fixed 5-hour UTC window (00, 05, 10, 15 and 20 UTC starts).
type BillingBlock struct {
	Date         string      `json:"date"`  // UTC date, YYYY-MM-DD
	Index        int         `json:"index"` // 0..4
	StartTime    time.Time   `json:"start_time"`
	EndTime      time.Time   `json:"end_time"`
	Tokens       TokenCounts `json:"tokens"`
	TotalTokens  int64       `json:"total_tokens"`
	TotalCost    float64     `json:"total_cost"`
	RecordCount  int         `json:"record_count"`
	SessionCount int         `json:"session_count"`

	FirstActivity time.Time `json:"first_activity"`
	LastActivity  time.Time `json:"last_activity"`
}

// Label renders the block's time-of-day range, e.g. "10:00-15:00".
func (b BillingBlock) Label() string {
	return BlockLabel(b.Index)
}

// BlockLabel renders the UTC time-of-day range of a block index.
func BlockLabel(index int) string {
	start := index * 5
	return fmt.Sprintf("%02d:00-%02d:00", start, (start+5)%24)
}

// BlockUsage groups usage by block index across all days.
type BlockUsage struct {
	Index       int         `json:"index"`
	Label       string      `json:"label"`
	Tokens      TokenCounts `json:"tokens"`
	TotalCost   float64     `json:"total_cost"`
	RecordCount int         `json:"record_count"`
	BlockCount  int         `json:"block_count"`
}

// BurnRate represents the in-block consumption rate of the active billing block
type BurnRate struct {
	TokensPerMinute             float64 `json:"tokens_per_minute"`
	TokensPerMinuteForIndicator float64 `json:"tokens_per_minute_for_indicator"` // Non-cache tokens for threshold indicators
	CostPerHour                 float64 `json:"cost_per_hour"`
}

// ProjectedUsage represents projected usage for remaining time in a billing block
type ProjectedUsage struct {
	TotalTokens      int64   `json:"total_tokens"`
	TotalCost        float64 `json:"total_cost"`
	RemainingMinutes float64 `json:"remaining_minutes"`
}
