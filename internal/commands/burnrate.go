package commands

import (
	"github.com/spf13/cobra"

	"github.com/sdpower/ccledger/internal/types"
)

type burnRateReport struct {
	RunID       string                   `json:"run_id"`
	Snapshots   []types.BurnRateSnapshot `json:"snapshots"`
	Diagnostics types.Diagnostics        `json:"diagnostics"`
}

func NewBurnRateCommand() *cobra.Command {
	var (
		flags  reportFlags
		limits limitFlags
	)

	cmd := &cobra.Command{
		Use:   "burnrate",
		Short: "Forecast spend from recent billing blocks",
		Long: `Compute token and cost rates over the last 24 hours and 7 days, project daily
and monthly usage, compare each window with the one before it, and estimate
when configured monthly token or cost limits will be reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd, &limits)
			if err != nil {
				return err
			}
			res, err := e.run(cmd.Context())
			if err != nil {
				return err
			}

			snaps := e.forecaster().Snapshots(res.Daily, res.Blocks.Blocks)
			report := burnRateReport{
				RunID:       res.RunID,
				Snapshots:   snaps,
				Diagnostics: res.Diagnostics,
			}
			return e.print(report, func() string {
				return e.formatter.BurnRateTable(snaps)
			})
		},
	}

	flags.register(cmd)
	limits.register(cmd)
	return cmd
}
