package commands

import (
	"github.com/spf13/cobra"

	"github.com/sdpower/ccledger/internal/types"
)

type sessionReport struct {
	RunID       string                   `json:"run_id"`
	Sessions    []types.SessionAggregate `json:"sessions"`
	Totals      types.Totals             `json:"totals"`
	Diagnostics types.Diagnostics        `json:"diagnostics"`
}

func NewSessionCommand() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show usage grouped by session",
		Long:  `Aggregate Claude Code usage per session file, ordered by cost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd, nil)
			if err != nil {
				return err
			}
			res, err := e.run(cmd.Context())
			if err != nil {
				return err
			}
			report := sessionReport{
				RunID:       res.RunID,
				Sessions:    res.Sessions,
				Totals:      res.Totals,
				Diagnostics: res.Diagnostics,
			}
			return e.print(report, func() string {
				return e.formatter.SessionTable(res.Sessions, res.Totals)
			})
		},
	}

	flags.register(cmd)
	return cmd
}
