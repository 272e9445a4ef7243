package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdpower/ccledger/internal/monitor"
)

func NewMonitorCommand() *cobra.Command {
	var (
		flags      reportFlags
		limits     limitFlags
		interval   int
		blockLimit int64
		continuous bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor the active billing block in real time",
		Long: `Show a live dashboard of the active 5-hour billing block. Every refresh
re-reads the data directory and recomputes the block, its burn rate and the
24-hour forecast.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd, &limits)
			if err != nil {
				return err
			}
			mon := monitor.New(monitor.Options{
				Pipeline:        e.pipeline,
				Forecaster:      e.forecaster(),
				Interval:        time.Duration(interval) * time.Second,
				BlockTokenLimit: blockLimit,
				NoColor:         flags.noColor || !isTerminal(e.stdout),
				Continuous:      continuous,
				Out:             e.stdout,
			})
			if err := mon.Start(cmd.Context()); err != nil {
				return fmt.Errorf("failed to start monitor: %w", err)
			}
			return nil
		},
	}

	flags.register(cmd)
	limits.register(cmd)
	cmd.Flags().IntVar(&interval, "interval", 5, "Update interval in seconds")
	cmd.Flags().Int64Var(&blockLimit, "block-token-limit", 0, "Token limit per block for the usage bar (default: largest block seen)")
	cmd.Flags().BoolVar(&continuous, "continuous", true, "Run continuously (false prints one snapshot)")
	return cmd
}
