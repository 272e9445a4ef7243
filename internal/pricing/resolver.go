package pricing

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sdpower/ccledger/internal/logging"
	"github.com/sdpower/ccledger/internal/types"
)

// DefaultDiscrepancyTolerance is the relative difference between a computed
// and a reported cost above which the event is flagged.
const DefaultDiscrepancyTolerance = 0.10

// TableSource names where the active base table came from.
type TableSource string

const (
	SourceCache   TableSource = "cache"
	SourceBuiltin TableSource = "builtin"
)

type ResolverOptions struct {
	// Cache is consulted once at construction. Nil runs on built-in pricing.
	Cache     *Cache
	Overrides *Overrides
	// Matchers replaces the default exact/alias/family chain.
	Matchers             []Matcher
	DiscrepancyTolerance float64
	Logger               *slog.Logger
}

type match struct {
	key       string
	pricing   ModelPricing
	matchedBy string
	ok        bool
}

// Resolver prices events against one pricing table for the life of a run.
// It is safe for concurrent use.
type Resolver struct {
	table     Table
	source    TableSource
	matchers  []Matcher
	tolerance float64
	log       *slog.Logger

	cache       *Cache
	cacheStale  bool
	warnings    []string
	persistOnce sync.Once
	persistErr  error

	memo  sync.Map // model -> match
	group singleflight.Group
}

func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		source:    SourceBuiltin,
		tolerance: opts.DiscrepancyTolerance,
		log:       opts.Logger,
		cache:     opts.Cache,
	}
	if r.tolerance <= 0 {
		r.tolerance = DefaultDiscrepancyTolerance
	}
	if r.log == nil {
		r.log = logging.Discard()
	}

	base := Builtin()
	if r.cache != nil {
		entry, err := r.cache.Load()
		if err != nil {
			r.cacheStale = true
			if errors.Is(err, ErrNoCache) {
				r.log.Debug("pricing_cache_missing", "path", r.cache.Path())
			} else {
				r.warnings = append(r.warnings, err.Error())
				r.log.Debug("pricing_cache_fallback", "path", r.cache.Path(), "reason", err)
			}
		} else {
			base = entry.Entries
			r.source = SourceCache
			r.log.Debug("pricing_cache_hit", "path", r.cache.Path(), "entries", len(base))
		}
	}

	r.table = base.Clone()
	aliases := make(map[string]string, len(BuiltinAliases))
	for k, v := range BuiltinAliases {
		aliases[k] = v
	}
	if opts.Overrides != nil {
		for model, p := range opts.Overrides.Table {
			r.table[model] = p
		}
		for alias, model := range opts.Overrides.Aliases {
			aliases[alias] = model
		}
	}

	r.matchers = opts.Matchers
	if len(r.matchers) == 0 {
		r.matchers = DefaultMatchers(aliases)
	}
	return r
}

// Source reports whether the base table came from the cache or the built-ins.
func (r *Resolver) Source() TableSource {
	return r.source
}

// Table returns a copy of the active table, overrides included.
func (r *Resolver) Table() Table {
	return r.table.Clone()
}

// Warnings lists cache problems seen while building the resolver.
func (r *Resolver) Warnings() []string {
	out := make([]string, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Lookup runs the matcher chain for model. Results are memoized per model.
func (r *Resolver) Lookup(model string) (key string, p ModelPricing, matchedBy string, ok bool) {
	if model == "" {
		return "", ModelPricing{}, "", false
	}
	if v, hit := r.memo.Load(model); hit {
		m := v.(match)
		return m.key, m.pricing, m.matchedBy, m.ok
	}
	v, _, _ := r.group.Do(model, func() (interface{}, error) {
		m := r.lookup(model)
		r.memo.Store(model, m)
		return m, nil
	})
	m := v.(match)
	return m.key, m.pricing, m.matchedBy, m.ok
}

func (r *Resolver) lookup(model string) match {
	for _, matcher := range r.matchers {
		if key, p, ok := matcher.Match(model, r.table); ok {
			r.log.Debug("pricing_match", "model", model, "key", key, "matcher", matcher.Name())
			return match{key: key, pricing: p, matchedBy: matcher.Name(), ok: true}
		}
	}
	r.log.Debug("pricing_unmatched", "model", model)
	return match{}
}

// Resolve prices one event. A matched model yields the computed cost unless
// that cost is exactly zero and a reported cost exists. An unmatched model
// falls back to the reported cost, and failing that is marked unpriced.
func (r *Resolver) Resolve(model string, tokens types.TokenCounts, reported *float64) types.CostResult {
	key, p, matchedBy, ok := r.Lookup(model)
	if !ok {
		if reported != nil {
			return types.CostResult{Cost: *reported, Source: types.CostSourceReported}
		}
		return types.CostResult{Source: types.CostSourceUnpriced}
	}

	computed := p.Cost(tokens)
	res := types.CostResult{
		Cost:      computed,
		Source:    types.CostSourceComputed,
		Model:     key,
		MatchedBy: matchedBy,
	}
	if reported == nil {
		return res
	}
	if computed == 0 {
		res.Cost = *reported
		res.Source = types.CostSourceReported
		return res
	}
	if diff := math.Abs(computed - *reported); diff > r.tolerance*math.Max(math.Abs(computed), math.Abs(*reported)) {
		res.Discrepancy = true
	}
	return res
}

// Persist saves the built-in table to the cache when the cache could not be
// used at construction. It writes at most once per Resolver; later calls
// return the first result.
func (r *Resolver) Persist() error {
	r.persistOnce.Do(func() {
		if r.cache == nil || !r.cacheStale {
			return
		}
		if err := r.cache.Save(Builtin()); err != nil {
			r.persistErr = err
			r.log.Warn("pricing_cache_write", "path", r.cache.Path(), "err", err)
			return
		}
		r.log.Debug("pricing_cache_write", "path", r.cache.Path())
	})
	return r.persistErr
}
