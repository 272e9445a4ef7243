package types

import (
	"time"
)

// CostSource records where an event's cost came from.
type CostSource int

const (
	// CostSourceUnpriced means neither a pricing table entry nor a reported
	// cost was available. Cost is zero but the value is unknown, not free.
	CostSourceUnpriced CostSource = iota
	CostSourceComputed
	CostSourceReported
)

func (s CostSource) String() string {
	switch s {
	case CostSourceComputed:
		return "computed"
	case CostSourceReported:
		return "reported"
	default:
		return "unpriced"
	}
}

// MarshalText lets the source appear by name in JSON output.
func (s CostSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CostResult is the outcome of pricing a single event.
type CostResult struct {
	Cost      float64    `json:"cost"`
	Source    CostSource `json:"source"`
	Model     string     `json:"model,omitempty"`      // pricing table key that matched
	MatchedBy string     `json:"matched_by,omitempty"` // matcher name
	// Discrepancy is set when a computed cost and a reported cost disagree
	// by more than the tolerated relative difference. Totals use Cost.
	Discrepancy bool `json:"discrepancy,omitempty"`
}

// Unpriced reports whether the cost is unknown.
func (r CostResult) Unpriced() bool {
	return r.Source == CostSourceUnpriced
}

// UsageEvent is one normalized log record.
type UsageEvent struct {
	Timestamp       time.Time   `json:"timestamp"` // UTC
	Model           string      `json:"model,omitempty"`
	Tokens          TokenCounts `json:"tokens"`
	ReportedCost    *float64    `json:"reported_cost,omitempty"`
	SessionKey      string      `json:"session_key"`
	UnpricedByModel bool        `json:"unpriced_by_model,omitempty"`

	// Set by the pricing step.
	Cost       float64    `json:"cost"`
	CostSource CostSource `json:"cost_source"`
}

// ApplyCost copies a pricing result onto the event.
func (e *UsageEvent) ApplyCost(r CostResult) {
	e.Cost = r.Cost
	e.CostSource = r.Source
}
