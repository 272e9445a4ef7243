package calculator

import (
	"fmt"
	"time"

	"github.com/sdpower/ccledger/internal/types"
)

type Calculator struct {
	pricing PricingResolver
	filter  DateFilter
}

// PricingResolver prices a single event.
type PricingResolver interface {
	Resolve(model string, tokens types.TokenCounts, reported *float64) types.CostResult
}

func New(pricing PricingResolver) *Calculator {
	return &Calculator{
		pricing: pricing,
	}
}

// SetDateFilter restricts folding to events whose local date is in range.
func (c *Calculator) SetDateFilter(f DateFilter) {
	c.filter = f
}

// Price resolves the cost of e in place.
func (c *Calculator) Price(e *types.UsageEvent) types.CostResult {
	res := c.pricing.Resolve(e.Model, e.Tokens, e.ReportedCost)
	e.ApplyCost(res)
	return res
}

// Fold prices events and adds those inside the date filter to p. It reports
// unpriced events and cost discrepancies.
func (c *Calculator) Fold(p *Partial, events []types.UsageEvent) types.Diagnostics {
	var diag types.Diagnostics
	for i := range events {
		if !c.filter.Contains(events[i].Timestamp.In(p.Location())) {
			continue
		}
		if events[i].UnpricedByModel {
			diag.MissingModel++
		}
		res := c.Price(&events[i])
		if res.Unpriced() {
			diag.UnpricedEvents++
		}
		if res.Discrepancy {
			diag.CostDiscrepancies++
		}
		p.Add(events[i])
	}
	return diag
}

// DateFilter bounds local calendar dates, inclusive. Zero values are open.
type DateFilter struct {
	Since string // YYYY-MM-DD
	Until string // YYYY-MM-DD
}

// ParseDateFilter accepts YYYYMMDD or YYYY-MM-DD bounds.
func ParseDateFilter(since, until string) (DateFilter, error) {
	var f DateFilter
	var err error
	if f.Since, err = normalizeDate("since", since); err != nil {
		return f, err
	}
	if f.Until, err = normalizeDate("until", until); err != nil {
		return f, err
	}
	if f.Since != "" && f.Until != "" && f.Since > f.Until {
		return f, types.ValidationError{Field: "since", Message: "must not be after until"}
	}
	return f, nil
}

func normalizeDate(field, s string) (string, error) {
	if s == "" {
		return "", nil
	}
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", types.ValidationError{Field: field, Message: fmt.Sprintf("invalid date %q, want YYYYMMDD or YYYY-MM-DD", s)}
}

// Contains reports whether the calendar date of t is inside the filter.
func (f DateFilter) Contains(t time.Time) bool {
	if f.Since == "" && f.Until == "" {
		return true
	}
	date := t.Format("2006-01-02")
	if f.Since != "" && date < f.Since {
		return false
	}
	if f.Until != "" && date > f.Until {
		return false
	}
	return true
}
