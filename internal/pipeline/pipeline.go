// Package pipeline runs one report: scan, decode, price, fold and merge.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sdpower/ccledger/internal/calculator"
	"github.com/sdpower/ccledger/internal/loader"
	"github.com/sdpower/ccledger/internal/logging"
	"github.com/sdpower/ccledger/internal/pricing"
	"github.com/sdpower/ccledger/internal/types"
)

type Options struct {
	// Root is the directory scanned for .jsonl files. A projects
	// subdirectory is used when present.
	Root     string
	Workers  int
	Location *time.Location
	Filter   calculator.DateFilter
	Order    calculator.SortOrder
	// Resolver prices events; nil uses built-in pricing without a cache.
	Resolver *pricing.Resolver
	Logger   *slog.Logger
}

// Result holds every finalized view of one run.
type Result struct {
	RunID         string                   `json:"run_id"`
	Root          string                   `json:"root"`
	Totals        types.Totals             `json:"totals"`
	Daily         []types.DailyAggregate   `json:"daily"`
	Monthly       []types.MonthlyAggregate `json:"monthly"`
	Sessions      []types.SessionAggregate `json:"sessions"`
	Blocks        calculator.BlockReport   `json:"blocks"`
	PricingSource pricing.TableSource      `json:"pricing_source"`
	Diagnostics   types.Diagnostics        `json:"diagnostics"`
	Partial       *calculator.Partial      `json:"-"`
}

// Run executes the pipeline over a finite snapshot of opts.Root. Files are
// decoded and folded in parallel, one Partial per file, and merged in file
// order once every worker is done. A cancelled context discards all work
// and returns the context error with no result. Only a fatal configuration
// problem, such as an unreadable root, is returned as an error otherwise.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = pricing.NewResolver(pricing.ResolverOptions{Logger: log})
	}

	runID := uuid.NewString()
	root := loader.ResolveRoot(opts.Root)
	log = log.With("run_id", runID)
	log.Debug("run_start", "root", root, "workers", opts.Workers)

	l := loader.New()
	l.SetWorkers(opts.Workers)
	l.SetLogger(log)

	paths, err := l.FindFiles(root)
	if err != nil {
		return nil, err
	}

	calc := calculator.New(resolver)
	calc.SetDateFilter(opts.Filter)

	partials := make([]*calculator.Partial, len(paths))
	foldDiag := make([]types.Diagnostics, len(paths))
	diag, err := l.LoadParallel(ctx, root, paths, func(i int, res *loader.FileResult) {
		p := calculator.NewPartial(loc)
		foldDiag[i] = calc.Fold(p, res.Events)
		partials[i] = p
	})
	if err != nil {
		log.Debug("run_aborted", "err", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := calculator.MergeAll(loc, partials...)
	for _, d := range foldDiag {
		diag.Merge(d)
	}
	diag.CacheWarnings = append(diag.CacheWarnings, resolver.Warnings()...)

	if err := resolver.Persist(); err != nil {
		diag.CacheWarnings = append(diag.CacheWarnings, err.Error())
	}

	if diag.UnpricedEvents > 0 {
		log.Warn("unpriced_events", "count", diag.UnpricedEvents)
	}
	if diag.MissingModel > 0 {
		log.Debug("missing_model", "count", diag.MissingModel)
	}
	if diag.CostDiscrepancies > 0 {
		log.Debug("cost_discrepancies", "count", diag.CostDiscrepancies)
	}
	log.Debug("run_done", "files", len(paths), "events", merged.Len(), "skipped_lines", diag.SkippedLines)

	return &Result{
		RunID:         runID,
		Root:          root,
		Totals:        merged.Totals(),
		Daily:         merged.Daily(opts.Order),
		Monthly:       merged.Monthly(opts.Order),
		Sessions:      merged.Sessions(opts.Order),
		Blocks:        merged.BillingBlocks(),
		PricingSource: resolver.Source(),
		Diagnostics:   diag,
		Partial:       merged,
	}, nil
}

// Summary renders the diagnostics as one line, empty when the run was clean.
func (r *Result) Summary() string {
	d := r.Diagnostics
	if d.Clean() {
		return ""
	}
	return fmt.Sprintf("%d file(s) skipped, %d line(s) skipped, %d event(s) unpriced, %d cache warning(s)",
		len(d.SkippedFiles), d.SkippedLines, d.UnpricedEvents, len(d.CacheWarnings))
}
