package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdpower/ccledger/internal/logging"
	"github.com/sdpower/ccledger/internal/output"
	"github.com/sdpower/ccledger/internal/pricing"
)

type pricingFlags struct {
	configPath string
	cachePath  string
	format     string
	noColor    bool
	debug      bool
}

type pricingStatusReport struct {
	Cache        pricing.CacheStatus `json:"cache"`
	ActiveSource pricing.TableSource `json:"active_source"`
}

type pricingRefreshReport struct {
	Path    string              `json:"path"`
	Source  string              `json:"source"`
	Entries int                 `json:"entries"`
	Cache   pricing.CacheStatus `json:"cache"`
}

func NewPricingCommand() *cobra.Command {
	var flags pricingFlags

	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect and manage the pricing cache",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/ccledger/config.yaml)")
	pf.StringVar(&flags.cachePath, "cache-path", "", "Pricing cache file")
	pf.StringVarP(&flags.format, "format", "f", "table", "Output format (table, json)")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&flags.debug, "debug", false, "Show debug information")

	cmd.AddCommand(
		newPricingStatusCommand(&flags),
		newPricingClearCommand(&flags),
		newPricingRefreshCommand(&flags),
	)
	return cmd
}

// open resolves the cache path from flags and config and builds a formatter.
func (f *pricingFlags) open(cmd *cobra.Command) (*pricing.Cache, *output.Formatter, error) {
	settings, err := loadSettings(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	path := settings.CachePath
	if cmd.Flags().Changed("cache-path") {
		path = f.cachePath
	}
	ttl, err := settings.CacheTTLDuration()
	if err != nil {
		return nil, nil, err
	}
	cache, err := openCache(path, ttl)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate pricing cache: %w", err)
	}

	format, err := output.ParseFormat(f.format)
	if err != nil {
		return nil, nil, err
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, nil, err
	}
	formatter := output.NewFormatter(output.Options{
		Format:   format,
		NoColor:  f.noColor || !isTerminal(cmd.OutOrStdout()),
		Location: loc,
	})
	return cache, formatter, nil
}

func newPricingStatusCommand(flags *pricingFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pricing cache path, validity and age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, formatter, err := flags.open(cmd)
			if err != nil {
				return err
			}

			status := cache.Status()
			source := pricing.SourceBuiltin
			if status.Valid {
				source = pricing.SourceCache
			}
			out, err := formatter.Render(pricingStatusReport{Cache: status, ActiveSource: source}, func() string {
				return formatter.PricingStatusTable(status, source)
			})
			if err != nil {
				return fmt.Errorf("failed to format report: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
}

func newPricingClearCommand(flags *pricingFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the pricing cache file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, _, err := flags.open(cmd)
			if err != nil {
				return err
			}
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pricing cache cleared: %s\n", cache.Path())
			return nil
		},
	}
}

func newPricingRefreshCommand(flags *pricingFlags) *cobra.Command {
	var (
		remote bool
		url    string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rewrite the pricing cache from built-in or remote prices",
		Long: `Rewrite the pricing cache. By default the built-in table is written; with
--remote the current price list is downloaded first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, formatter, err := flags.open(cmd)
			if err != nil {
				return err
			}
			log := logging.New(cmd.ErrOrStderr(), flags.debug)

			table, source := pricing.Builtin(), string(pricing.SourceBuiltin)
			if remote {
				fetched, err := pricing.NewFetcher(nil, url).Fetch(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to fetch pricing: %w", err)
				}
				table, source = fetched, "remote"
			}
			log.Debug("pricing_refresh", "source", source, "entries", len(table), "path", cache.Path())

			if err := cache.Save(table); err != nil {
				return err
			}
			report := pricingRefreshReport{
				Path:    cache.Path(),
				Source:  source,
				Entries: len(table),
				Cache:   cache.Status(),
			}
			out, err := formatter.Render(report, func() string {
				return fmt.Sprintf("Pricing cache refreshed from %s: %d model(s) written to %s\n",
					source, report.Entries, report.Path)
			})
			if err != nil {
				return fmt.Errorf("failed to format report: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Download the current price list instead of using built-in prices")
	cmd.Flags().StringVar(&url, "url", "", "Price list URL (default LiteLLM model_prices_and_context_window.json)")
	return cmd
}
