package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sdpower/ccledger/internal/calculator"
	"github.com/sdpower/ccledger/internal/config"
	"github.com/sdpower/ccledger/internal/logging"
	"github.com/sdpower/ccledger/internal/output"
	"github.com/sdpower/ccledger/internal/pipeline"
	"github.com/sdpower/ccledger/internal/pricing"
)

// reportFlags are shared by every command that runs the pipeline.
type reportFlags struct {
	configPath  string
	format      string
	dataPath    string
	noColor     bool
	debug       bool
	timezone    string
	since       string
	until       string
	order       string
	workers     int
	pricingFile string
	cachePath   string
	noCache     bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/ccledger/config.yaml)")
	fs.StringVarP(&f.format, "format", "f", "table", "Output format (table, json)")
	fs.StringVar(&f.dataPath, "data-path", "", "Path to Claude data directory")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&f.debug, "debug", false, "Show debug information")
	fs.StringVarP(&f.timezone, "timezone", "z", "", "Timezone for date grouping (e.g., UTC, America/New_York, Asia/Tokyo). Default: system timezone")
	fs.StringVarP(&f.since, "since", "s", "", "Filter from date (YYYYMMDD or YYYY-MM-DD)")
	fs.StringVarP(&f.until, "until", "u", "", "Filter until date (YYYYMMDD or YYYY-MM-DD)")
	fs.StringVarP(&f.order, "order", "o", "desc", "Sort order (asc, desc)")
	fs.IntVar(&f.workers, "workers", 0, "Number of files read in parallel (default 10)")
	fs.StringVar(&f.pricingFile, "pricing-file", "", "YAML file with pricing overrides")
	fs.StringVar(&f.cachePath, "cache-path", "", "Pricing cache file")
	fs.BoolVar(&f.noCache, "no-cache", false, "Use built-in pricing and leave the cache untouched")
}

// env is everything a command needs after flags and config are resolved.
type env struct {
	settings  *config.Settings
	log       *slog.Logger
	loc       *time.Location
	formatter *output.Formatter
	pipeline  pipeline.Options
	stdout    io.Writer
	stderr    io.Writer
}

func loadSettings(configPath string) (*config.Settings, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

// setup loads the config file and lets explicitly set flags override it.
// lf may be nil for commands without forecasting.
func (f *reportFlags) setup(cmd *cobra.Command, lf *limitFlags) (*env, error) {
	settings, err := loadSettings(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("data-path") {
		settings.DataPath = f.dataPath
	}
	if changed("timezone") {
		settings.Timezone = f.timezone
	}
	if changed("workers") {
		settings.Workers = f.workers
	}
	if changed("pricing-file") {
		settings.PricingOverrides = f.pricingFile
	}
	if changed("cache-path") {
		settings.CachePath = f.cachePath
	}
	if lf != nil {
		if changed("token-limit") {
			settings.TokenLimit = lf.tokenLimit
		}
		if changed("cost-limit") {
			settings.CostLimit = lf.costLimit
		}
		if changed("active-hours") {
			settings.ActiveHoursPerDay = lf.activeHours
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}
	filter, err := calculator.ParseDateFilter(f.since, f.until)
	if err != nil {
		return nil, err
	}
	format, err := output.ParseFormat(f.format)
	if err != nil {
		return nil, err
	}

	e := &env{
		settings: settings,
		log:      logging.New(cmd.ErrOrStderr(), f.debug),
		loc:      loc,
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
	}
	e.formatter = output.NewFormatter(output.Options{
		Format:   format,
		NoColor:  f.noColor || !isTerminal(e.stdout),
		Location: loc,
	})

	resolver, err := f.resolver(settings, e.log)
	if err != nil {
		return nil, err
	}
	e.pipeline = pipeline.Options{
		Root:     settings.ResolveDataPath(),
		Workers:  settings.Workers,
		Location: loc,
		Filter:   filter,
		Order:    calculator.ParseSortOrder(f.order),
		Resolver: resolver,
		Logger:   e.log,
	}
	return e, nil
}

func (f *reportFlags) resolver(settings *config.Settings, log *slog.Logger) (*pricing.Resolver, error) {
	opts := pricing.ResolverOptions{Logger: log}
	if settings.PricingOverrides != "" {
		overrides, err := pricing.LoadOverrides(settings.PricingOverrides)
		if err != nil {
			return nil, err
		}
		opts.Overrides = overrides
	}
	if !f.noCache {
		ttl, _ := settings.CacheTTLDuration() // validated in setup
		cache, err := openCache(settings.CachePath, ttl)
		if err != nil {
			log.Warn("pricing_cache_path", "err", err)
		} else {
			opts.Cache = cache
		}
	}
	return pricing.NewResolver(opts), nil
}

func openCache(path string, ttl time.Duration) (*pricing.Cache, error) {
	if path == "" {
		var err error
		if path, err = pricing.DefaultCachePath(); err != nil {
			return nil, err
		}
	}
	return pricing.NewCache(path, pricing.WithTTL(ttl)), nil
}

// run executes the pipeline and reports diagnostics on stderr.
func (e *env) run(ctx context.Context) (*pipeline.Result, error) {
	res, err := pipeline.Run(ctx, e.pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage data: %w", err)
	}
	if note := e.formatter.DiagnosticsNote(res.Diagnostics); note != "" {
		fmt.Fprint(e.stderr, note)
	}
	return res, nil
}

func (e *env) forecaster() *calculator.Forecaster {
	f := calculator.NewForecaster()
	f.Location = e.loc
	f.ActiveHoursPerDay = e.settings.ActiveHoursPerDay
	f.TrendThreshold = e.settings.TrendThreshold
	f.TokenLimit = e.settings.TokenLimit
	f.CostLimit = e.settings.CostLimit
	return f
}

// limitFlags configure burn-rate forecasting.
type limitFlags struct {
	tokenLimit  int64
	costLimit   float64
	activeHours float64
}

func (l *limitFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Int64Var(&l.tokenLimit, "token-limit", 0, "Monthly token limit for forecasting (0 disables)")
	fs.Float64Var(&l.costLimit, "cost-limit", 0, "Monthly cost limit in USD for forecasting (0 disables)")
	fs.Float64Var(&l.activeHours, "active-hours", config.DefaultActiveHoursPerDay, "Active hours per day used for rate projection")
}

func (e *env) print(payload any, table func() string) error {
	out, err := e.formatter.Render(payload, table)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	_, err = fmt.Fprint(e.stdout, out)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
