package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sdpower/ccledger/internal/types"
)

// BlockIndex returns which of the five daily UTC windows t falls in.
func BlockIndex(t time.Time) int {
	return t.UTC().Hour() / 5
}

// BlockStart returns the start of the billing block containing t.
func BlockStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), BlockIndex(u)*5, 0, 0, 0, time.UTC)
}

type blockAcc struct {
	usage
	sessions    set
	first, last time.Time
}

func (p *Partial) addToBlock(e types.UsageEvent) {
	start := BlockStart(e.Timestamp).Unix()
	b := p.blocks[start]
	if b == nil {
		b = &blockAcc{sessions: make(set)}
		p.blocks[start] = b
	}
	b.add(e)
	b.sessions[e.SessionKey] = struct{}{}
	b.observe(e.Timestamp, e.Timestamp)
}

func (b *blockAcc) observe(first, last time.Time) {
	if b.first.IsZero() || first.Before(b.first) {
		b.first = first
	}
	if last.After(b.last) {
		b.last = last
	}
}

func (p *Partial) mergeBlocks(o *Partial) {
	for start, ob := range o.blocks {
		b := p.blocks[start]
		if b == nil {
			b = &blockAcc{sessions: make(set)}
			p.blocks[start] = b
		}
		b.merge(ob.usage)
		b.sessions.union(ob.sessions)
		b.observe(ob.first, ob.last)
	}
}

// BlockReport is the finalized billing-block view.
type BlockReport struct {
	Blocks      []types.BillingBlock `json:"blocks"` // chronological
	Peak        *types.BillingBlock  `json:"peak,omitempty"`
	AverageCost float64              `json:"average_cost"`
	ByIndex     []types.BlockUsage   `json:"by_index"`
}

// BillingBlocks finalizes the billing-block view. Only blocks with at least
// one event are listed; the peak is the most expensive block, the earliest
// one on ties.
func (p *Partial) BillingBlocks() BlockReport {
	starts := make([]int64, 0, len(p.blocks))
	for start := range p.blocks {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	report := BlockReport{
		Blocks:  make([]types.BillingBlock, 0, len(starts)),
		ByIndex: make([]types.BlockUsage, types.BlocksPerDay),
	}
	for i := range report.ByIndex {
		report.ByIndex[i] = types.BlockUsage{Index: i, Label: types.BlockLabel(i)}
	}

	var total decimal.Decimal
	var peakCost decimal.Decimal
	peak := -1
	byIndexCost := make([]decimal.Decimal, types.BlocksPerDay)

	for _, start := range starts {
		acc := p.blocks[start]
		startTime := time.Unix(start, 0).UTC()
		block := types.BillingBlock{
			Date:          startTime.Format("2006-01-02"),
			Index:         BlockIndex(startTime),
			StartTime:     startTime,
			EndTime:       startTime.Add(types.BlockDuration),
			Tokens:        acc.tokens,
			TotalTokens:   acc.tokens.GetTotal(),
			TotalCost:     acc.cost.InexactFloat64(),
			RecordCount:   acc.records,
			SessionCount:  len(acc.sessions),
			FirstActivity: acc.first,
			LastActivity:  acc.last,
		}
		report.Blocks = append(report.Blocks, block)

		total = total.Add(acc.cost)
		if peak < 0 || acc.cost.GreaterThan(peakCost) {
			peak = len(report.Blocks) - 1
			peakCost = acc.cost
		}

		u := &report.ByIndex[block.Index]
		u.Tokens = u.Tokens.Add(acc.tokens)
		u.RecordCount += acc.records
		u.BlockCount++
		byIndexCost[block.Index] = byIndexCost[block.Index].Add(acc.cost)
	}

	for i := range report.ByIndex {
		report.ByIndex[i].TotalCost = byIndexCost[i].InexactFloat64()
	}
	if peak >= 0 {
		pb := report.Blocks[peak]
		report.Peak = &pb
		report.AverageCost = total.Div(decimal.NewFromInt(int64(len(report.Blocks)))).InexactFloat64()
	}
	return report
}

// Active returns the block containing now, if it has any usage.
func (r BlockReport) Active(now time.Time) *types.BillingBlock {
	start := BlockStart(now)
	for i := len(r.Blocks) - 1; i >= 0; i-- {
		if r.Blocks[i].StartTime.Equal(start) {
			b := r.Blocks[i]
			return &b
		}
		if r.Blocks[i].StartTime.Before(start) {
			break
		}
	}
	return nil
}

// Between returns blocks overlapping [from, to).
func (r BlockReport) Between(from, to time.Time) []types.BillingBlock {
	var out []types.BillingBlock
	for _, b := range r.Blocks {
		if b.EndTime.After(from) && b.StartTime.Before(to) {
			out = append(out, b)
		}
	}
	return out
}

// blocksActiveIn returns the blocks whose last activity lies in [from, to).
// Each block lands in exactly one of a series of adjacent windows, so a block
// that began before from still counts when its usage reaches into the window.
func blocksActiveIn(blocks []types.BillingBlock, from, to time.Time) []types.BillingBlock {
	var out []types.BillingBlock
	for _, b := range blocks {
		at := b.LastActivity
		if at.IsZero() {
			at = b.StartTime
		}
		if !at.Before(from) && at.Before(to) {
			out = append(out, b)
		}
	}
	return out
}

// MaxTokens returns the largest token total of any block.
func (r BlockReport) MaxTokens() int64 {
	var max int64
	for _, b := range r.Blocks {
		if b.TotalTokens > max {
			max = b.TotalTokens
		}
	}
	return max
}

// BlockBurnRate calculates the consumption rate between the first and last
// activity of a block.
func BlockBurnRate(block types.BillingBlock) *types.BurnRate {
	if block.RecordCount == 0 {
		return nil
	}

	durationMinutes := block.LastActivity.Sub(block.FirstActivity).Minutes()
	if durationMinutes <= 0 {
		return nil
	}

	totalTokens := float64(block.Tokens.GetTotal())
	// the indicator ignores cache tokens
	nonCacheTokens := float64(block.Tokens.InputTokens + block.Tokens.OutputTokens)

	return &types.BurnRate{
		TokensPerMinute:             totalTokens / durationMinutes,
		TokensPerMinuteForIndicator: nonCacheTokens / durationMinutes,
		CostPerHour:                 (block.TotalCost / durationMinutes) * 60,
	}
}

// ProjectBlock projects the block's totals at its end if the current burn
// rate holds. Nil unless now lies inside the block.
func ProjectBlock(block types.BillingBlock, now time.Time) *types.ProjectedUsage {
	if now.Before(block.StartTime) || !now.Before(block.EndTime) {
		return nil
	}

	burnRate := BlockBurnRate(block)
	if burnRate == nil {
		return nil
	}

	remainingMinutes := block.EndTime.Sub(now).Minutes()

	additionalTokens := int64(burnRate.TokensPerMinute * remainingMinutes)
	additionalCost := (burnRate.CostPerHour / 60) * remainingMinutes

	return &types.ProjectedUsage{
		TotalTokens:      block.Tokens.GetTotal() + additionalTokens,
		TotalCost:        block.TotalCost + additionalCost,
		RemainingMinutes: remainingMinutes,
	}
}
