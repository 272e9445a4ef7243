package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdpower/ccledger/internal/calculator"
	"github.com/sdpower/ccledger/internal/output"
	"github.com/sdpower/ccledger/internal/types"
)

// recentWindow is how far back --recent looks.
const recentWindow = 3 * 24 * time.Hour

type blocksReport struct {
	RunID       string                 `json:"run_id"`
	Blocks      calculator.BlockReport `json:"blocks"`
	Active      *types.BillingBlock    `json:"active,omitempty"`
	BurnRate    *types.BurnRate        `json:"burn_rate,omitempty"`
	Projection  *types.ProjectedUsage  `json:"projection,omitempty"`
	Diagnostics types.Diagnostics      `json:"diagnostics"`
}

func NewBlocksCommand() *cobra.Command {
	var (
		flags      reportFlags
		active     bool
		recent     bool
		tokenLimit string
	)

	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Show usage in 5-hour billing blocks",
		Long: `Group usage into fixed 5-hour UTC billing blocks starting at 00:00, 05:00,
10:00, 15:00 and 20:00, with the peak block and usage by time of day.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd, nil)
			if err != nil {
				return err
			}
			res, err := e.run(cmd.Context())
			if err != nil {
				return err
			}

			report := res.Blocks
			limit, err := parseBlockTokenLimit(tokenLimit, report)
			if err != nil {
				return err
			}

			now := time.Now()
			out := blocksReport{RunID: res.RunID, Diagnostics: res.Diagnostics}
			if b := report.Active(now); b != nil {
				out.Active = b
				out.BurnRate = calculator.BlockBurnRate(*b)
				out.Projection = calculator.ProjectBlock(*b, now)
			}
			switch {
			case active:
				report.Blocks = nil
				if out.Active != nil {
					report.Blocks = []types.BillingBlock{*out.Active}
				}
			case recent:
				report.Blocks = report.Between(now.Add(-recentWindow), now.Add(types.BlockDuration))
			}
			out.Blocks = report

			formatter := output.NewFormatter(output.Options{
				Format:     e.formatter.Format(),
				NoColor:    flags.noColor || !isTerminal(e.stdout),
				Location:   e.loc,
				TokenLimit: limit,
			})
			text, err := formatter.Render(out, func() string {
				return formatter.BlocksTable(report, now)
			})
			if err != nil {
				return fmt.Errorf("failed to format report: %w", err)
			}
			_, err = fmt.Fprint(e.stdout, text)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&active, "active", "a", false, "Show only the block active now")
	cmd.Flags().BoolVarP(&recent, "recent", "r", false, "Show blocks from the last 3 days")
	cmd.Flags().StringVarP(&tokenLimit, "token-limit", "t", "", `Token limit per block for the percentage column, or "max" for the largest block seen`)
	return cmd
}

func parseBlockTokenLimit(s string, report calculator.BlockReport) (int64, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "max":
		return report.MaxTokens(), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, types.ValidationError{Field: "token-limit", Message: fmt.Sprintf("want a non-negative integer or max, got %q", s)}
	}
	return n, nil
}
