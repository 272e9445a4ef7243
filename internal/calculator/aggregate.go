package calculator

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/sdpower/ccledger/internal/types"
)

// SortOrder selects the direction of finalized reports.
type SortOrder int

const (
	// SortDesc is the default: newest date first, or highest cost first for sessions.
	SortDesc SortOrder = iota
	SortAsc
)

// ParseSortOrder accepts "asc" or "desc"; anything else is descending.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), "asc") {
		return SortAsc
	}
	return SortDesc
}

// usage is the additive core of every accumulator. Cost is summed in exact
// decimal so partials merge to the same value in any order.
type usage struct {
	tokens   types.TokenCounts
	cost     decimal.Decimal
	records  int
	unpriced int
}

func (u *usage) add(e types.UsageEvent) {
	u.tokens = u.tokens.Add(e.Tokens)
	u.cost = u.cost.Add(decimal.NewFromFloat(e.Cost))
	u.records++
	if e.CostSource == types.CostSourceUnpriced {
		u.unpriced++
	}
}

func (u *usage) merge(o usage) {
	u.tokens = u.tokens.Add(o.tokens)
	u.cost = u.cost.Add(o.cost)
	u.records += o.records
	u.unpriced += o.unpriced
}

type set map[string]struct{}

func (s set) union(o set) {
	for k := range o {
		s[k] = struct{}{}
	}
}

func (s set) sorted() []string {
	keys := lo.Keys(s)
	sort.Strings(keys)
	return keys
}

type dailyAcc struct {
	usage
	models set
}

type sessionAcc struct {
	usage
	first, last time.Time
	models      set
}

func (a *sessionAcc) observe(first, last time.Time) {
	if a.first.IsZero() || first.Before(a.first) {
		a.first = first
	}
	if last.After(a.last) {
		a.last = last
	}
}

type monthKey struct {
	year  int
	month time.Month
}

type monthlyAcc struct {
	usage
	days set
}

// Partial is a mergeable accumulator over usage events. Each worker folds
// its own Partial; partials are combined once with Merge. Merge is
// associative and commutative, so the finalized reports do not depend on
// how events were sharded.
type Partial struct {
	loc      *time.Location
	total    usage
	daily    map[string]*dailyAcc
	sessions map[string]*sessionAcc
	monthly  map[monthKey]*monthlyAcc
	blocks   map[int64]*blockAcc
}

// NewPartial returns an empty accumulator that groups dates in loc.
func NewPartial(loc *time.Location) *Partial {
	if loc == nil {
		loc = time.Local
	}
	return &Partial{
		loc:      loc,
		daily:    make(map[string]*dailyAcc),
		sessions: make(map[string]*sessionAcc),
		monthly:  make(map[monthKey]*monthlyAcc),
		blocks:   make(map[int64]*blockAcc),
	}
}

// Location is the zone used for calendar dates.
func (p *Partial) Location() *time.Location {
	return p.loc
}

// Add folds one priced event into every view.
func (p *Partial) Add(e types.UsageEvent) {
	p.total.add(e)

	local := e.Timestamp.In(p.loc)
	date := local.Format("2006-01-02")

	d := p.daily[date]
	if d == nil {
		d = &dailyAcc{models: make(set)}
		p.daily[date] = d
	}
	d.add(e)
	if e.Model != "" {
		d.models[e.Model] = struct{}{}
	}

	s := p.sessions[e.SessionKey]
	if s == nil {
		s = &sessionAcc{models: make(set)}
		p.sessions[e.SessionKey] = s
	}
	s.add(e)
	s.observe(e.Timestamp, e.Timestamp)
	if e.Model != "" {
		s.models[e.Model] = struct{}{}
	}

	mk := monthKey{year: local.Year(), month: local.Month()}
	m := p.monthly[mk]
	if m == nil {
		m = &monthlyAcc{days: make(set)}
		p.monthly[mk] = m
	}
	m.add(e)
	m.days[date] = struct{}{}

	p.addToBlock(e)
}

// Merge folds o into p. o is left unchanged.
func (p *Partial) Merge(o *Partial) {
	if o == nil {
		return
	}
	p.total.merge(o.total)

	for date, od := range o.daily {
		d := p.daily[date]
		if d == nil {
			d = &dailyAcc{models: make(set)}
			p.daily[date] = d
		}
		d.merge(od.usage)
		d.models.union(od.models)
	}

	for key, so := range o.sessions {
		s := p.sessions[key]
		if s == nil {
			s = &sessionAcc{models: make(set)}
			p.sessions[key] = s
		}
		s.merge(so.usage)
		s.observe(so.first, so.last)
		s.models.union(so.models)
	}

	for mk, om := range o.monthly {
		m := p.monthly[mk]
		if m == nil {
			m = &monthlyAcc{days: make(set)}
			p.monthly[mk] = m
		}
		m.merge(om.usage)
		m.days.union(om.days)
	}

	p.mergeBlocks(o)
}

// MergeAll combines parts into a fresh Partial.
func MergeAll(loc *time.Location, parts ...*Partial) *Partial {
	out := NewPartial(loc)
	for _, part := range parts {
		out.Merge(part)
	}
	return out
}

// Len is the number of folded events.
func (p *Partial) Len() int {
	return p.total.records
}

// Totals is the grand total over all folded events.
func (p *Partial) Totals() types.Totals {
	return types.Totals{
		Tokens:        p.total.tokens,
		TotalTokens:   p.total.tokens.GetTotal(),
		TotalCost:     p.total.cost.InexactFloat64(),
		RecordCount:   p.total.records,
		UnpricedCount: p.total.unpriced,
	}
}

// Daily finalizes per-date aggregates.
func (p *Partial) Daily(order SortOrder) []types.DailyAggregate {
	out := lo.MapToSlice(p.daily, func(date string, d *dailyAcc) types.DailyAggregate {
		return types.DailyAggregate{
			Date:          date,
			Tokens:        d.tokens,
			TotalTokens:   d.tokens.GetTotal(),
			TotalCost:     d.cost.InexactFloat64(),
			RecordCount:   d.records,
			UnpricedCount: d.unpriced,
			Models:        d.models.sorted(),
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if order == SortAsc {
			return out[i].Date < out[j].Date
		}
		return out[i].Date > out[j].Date
	})
	return out
}

// Monthly finalizes per-month aggregates.
func (p *Partial) Monthly(order SortOrder) []types.MonthlyAggregate {
	out := lo.MapToSlice(p.monthly, func(k monthKey, m *monthlyAcc) types.MonthlyAggregate {
		agg := types.MonthlyAggregate{
			Year:        k.year,
			Month:       int(k.month),
			Tokens:      m.tokens,
			TotalTokens: m.tokens.GetTotal(),
			TotalCost:   m.cost.InexactFloat64(),
			RecordCount: m.records,
			ActiveDays:  len(m.days),
		}
		if agg.ActiveDays > 0 {
			agg.AvgDailyCost = m.cost.Div(decimal.NewFromInt(int64(agg.ActiveDays))).InexactFloat64()
		}
		return agg
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Year*12+out[i].Month, out[j].Year*12+out[j].Month
		if order == SortAsc {
			return a < b
		}
		return a > b
	})
	return out
}

// Sessions finalizes per-session aggregates, ordered by cost.
func (p *Partial) Sessions(order SortOrder) []types.SessionAggregate {
	out := lo.MapToSlice(p.sessions, func(key string, s *sessionAcc) types.SessionAggregate {
		project, id := SplitSessionKey(key)
		return types.SessionAggregate{
			SessionKey:    key,
			ProjectPath:   project,
			SessionID:     id,
			Tokens:        s.tokens,
			TotalTokens:   s.tokens.GetTotal(),
			TotalCost:     s.cost.InexactFloat64(),
			RecordCount:   s.records,
			FirstActivity: s.first,
			LastActivity:  s.last,
			Models:        s.models.sorted(),
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCost != out[j].TotalCost {
			if order == SortAsc {
				return out[i].TotalCost < out[j].TotalCost
			}
			return out[i].TotalCost > out[j].TotalCost
		}
		return out[i].SessionKey < out[j].SessionKey
	})
	return out
}

// SplitSessionKey separates a session key into its project directory and
// session file name.
func SplitSessionKey(key string) (project, session string) {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}
