package commands

import (
	"github.com/spf13/cobra"

	"github.com/sdpower/ccledger/internal/pipeline"
	"github.com/sdpower/ccledger/internal/types"
)

type dailyReport struct {
	RunID       string                 `json:"run_id"`
	Daily       []types.DailyAggregate `json:"daily"`
	Totals      types.Totals           `json:"totals"`
	Diagnostics types.Diagnostics      `json:"diagnostics"`
}

func NewDailyCommand() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show usage grouped by date",
		Long:  `Aggregate Claude Code usage by calendar date in the selected time zone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd, nil)
			if err != nil {
				return err
			}
			res, err := e.run(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(newDailyReport(res), func() string {
				return e.formatter.DailyTable(res.Daily, res.Totals)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newDailyReport(res *pipeline.Result) dailyReport {
	return dailyReport{
		RunID:       res.RunID,
		Daily:       res.Daily,
		Totals:      res.Totals,
		Diagnostics: res.Diagnostics,
	}
}
