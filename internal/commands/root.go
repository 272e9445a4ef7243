package commands

import "github.com/spf13/cobra"

// Version is overridden at build time with -ldflags.
var Version = "dev"

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ccledger",
		Short: "Claude Code usage and cost ledger",
		Long: `A CLI tool for analyzing Claude Code usage data from local JSONL files:
daily, monthly and per-session reports, 5-hour billing blocks, burn-rate
forecasts and a live monitor.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		NewDailyCommand(),
		NewMonthlyCommand(),
		NewSessionCommand(),
		NewBlocksCommand(),
		NewBurnRateCommand(),
		NewMonitorCommand(),
		NewPricingCommand(),
		NewConfigCommand(),
	)
	return root
}
