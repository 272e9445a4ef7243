package commands

import (
	"github.com/spf13/cobra"

	"github.com/sdpower/ccledger/internal/types"
)

type monthlyReport struct {
	RunID       string                   `json:"run_id"`
	Monthly     []types.MonthlyAggregate `json:"monthly"`
	Totals      types.Totals             `json:"totals"`
	Diagnostics types.Diagnostics        `json:"diagnostics"`
}

func NewMonthlyCommand() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Show usage grouped by month",
		Long:  `Aggregate Claude Code usage by calendar month, with active days and average daily cost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd, nil)
			if err != nil {
				return err
			}
			res, err := e.run(cmd.Context())
			if err != nil {
				return err
			}
			report := monthlyReport{
				RunID:       res.RunID,
				Monthly:     res.Monthly,
				Totals:      res.Totals,
				Diagnostics: res.Diagnostics,
			}
			return e.print(report, func() string {
				return e.formatter.MonthlyTable(res.Monthly, res.Totals)
			})
		},
	}

	flags.register(cmd)
	return cmd
}
