package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/sdpower/ccledger/internal/calculator"
	"github.com/sdpower/ccledger/internal/pricing"
	"github.com/sdpower/ccledger/internal/types"
)

var tokenHeaders = []string{"Input\n", "Output\n", "Cache\nCreate", "Cache\nRead", "Total\nTokens", "Cost\n(USD)"}

func newTable(buf *bytes.Buffer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewTable(buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignRight},
			},
		}),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	return table
}

func tokenCells(tc types.TokenCounts, cost float64) []string {
	return []string{
		formatTokens(tc.InputTokens),
		formatTokens(tc.OutputTokens),
		formatTokens(tc.CacheCreationInputTokens),
		formatTokens(tc.CacheReadInputTokens),
		formatTokens(tc.GetTotal()),
		formatCost(cost),
	}
}

// colorize paints borders gray, the header cyan and the total row yellow.
func (f *Formatter) colorize(table string) string {
	if f.opts.NoColor {
		return table
	}
	const (
		gray   = "\033[90m"
		cyan   = "\033[36m"
		yellow = "\033[33m"
		reset  = "\033[0m"
	)

	lines := strings.Split(table, "\n")
	var out strings.Builder
	for i, line := range lines {
		switch {
		case line == "":
		case strings.HasPrefix(line, "┌") || strings.HasPrefix(line, "├") || strings.HasPrefix(line, "└"):
			out.WriteString(gray + line + reset)
		case strings.Contains(line, "│"):
			total := strings.Contains(line, "Total")
			for j, part := range strings.Split(line, "│") {
				if j > 0 {
					out.WriteString(gray + "│" + reset)
				}
				switch {
				case strings.TrimSpace(part) == "":
					out.WriteString(part)
				case i <= 2:
					out.WriteString(cyan + part + reset)
				case total:
					out.WriteString(yellow + part + reset)
				default:
					out.WriteString(part)
				}
			}
		default:
			out.WriteString(line)
		}
		if i < len(lines)-1 {
			out.WriteString("\n")
		}
	}
	return out.String()
}

// DailyTable renders per-date usage with a total footer.
func (f *Formatter) DailyTable(daily []types.DailyAggregate, totals types.Totals) string {
	const title = "Token Usage Report - Daily"
	if len(daily) == 0 {
		return f.empty(title, "usage data")
	}

	var buf bytes.Buffer
	table := newTable(&buf, append([]string{"Date\n", "Models\n"}, tokenHeaders...)...)
	for _, d := range daily {
		table.Append(append([]string{formatDate(d.Date), formatModels(d.Models)}, tokenCells(d.Tokens, d.TotalCost)...))
	}
	table.Footer(append([]string{"Total", ""}, tokenCells(totals.Tokens, totals.TotalCost)...))
	table.Render()

	return f.title(title) + f.colorize(buf.String())
}

// MonthlyTable renders per-month usage with active days and average daily cost.
func (f *Formatter) MonthlyTable(monthly []types.MonthlyAggregate, totals types.Totals) string {
	const title = "Token Usage Report - Monthly"
	if len(monthly) == 0 {
		return f.empty(title, "usage data")
	}

	var buf bytes.Buffer
	headers := append([]string{"Month\n", "Active\nDays"}, tokenHeaders...)
	table := newTable(&buf, append(headers, "Avg/Day\n(USD)")...)
	for _, m := range monthly {
		row := append([]string{m.Key(), fmt.Sprintf("%d", m.ActiveDays)}, tokenCells(m.Tokens, m.TotalCost)...)
		table.Append(append(row, formatCost(m.AvgDailyCost)))
	}
	footer := append([]string{"Total", ""}, tokenCells(totals.Tokens, totals.TotalCost)...)
	table.Footer(append(footer, ""))
	table.Render()

	return f.title(title) + f.colorize(buf.String())
}

// SessionTable renders one row per session file.
func (f *Formatter) SessionTable(sessions []types.SessionAggregate, totals types.Totals) string {
	const title = "Token Usage Report - By Session"
	if len(sessions) == 0 {
		return f.empty(title, "session data")
	}

	var buf bytes.Buffer
	headers := append([]string{"Project\n", "Session\n", "Models\n"}, tokenHeaders...)
	table := newTable(&buf, append(headers, "Last\nActivity")...)
	for _, s := range sessions {
		row := append([]string{projectDisplayName(s.ProjectPath), shortSessionID(s.SessionID), formatModels(s.Models)}, tokenCells(s.Tokens, s.TotalCost)...)
		table.Append(append(row, s.LastActivity.In(f.opts.Location).Format("2006-01-02")))
	}
	footer := append([]string{"Total", "", ""}, tokenCells(totals.Tokens, totals.TotalCost)...)
	table.Footer(append(footer, ""))
	table.Render()

	return f.title(title) + f.colorize(buf.String())
}

func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// BlocksTable renders every billing block, then usage by time of day. The
// block active at now is marked.
func (f *Formatter) BlocksTable(report calculator.BlockReport, now time.Time) string {
	const title = "Token Usage Report - Billing Blocks (5h, UTC)"
	if len(report.Blocks) == 0 {
		return f.empty(title, "billing blocks")
	}

	headers := []string{"Block\nStart", "Window\n(UTC)", "Sessions\n", "Records\n", "Total\nTokens", "Cost\n(USD)"}
	if f.opts.TokenLimit > 0 {
		headers = append(headers, "% of\nLimit")
	}

	var buf bytes.Buffer
	table := newTable(&buf, headers...)
	var totalTokens int64
	var totalCost float64
	for _, b := range report.Blocks {
		start := b.StartTime.In(f.opts.Location).Format("2006-01-02 15:04")
		if !now.Before(b.StartTime) && now.Before(b.EndTime) {
			start += "\nACTIVE"
		}
		row := []string{
			start,
			b.Label(),
			fmt.Sprintf("%d", b.SessionCount),
			fmt.Sprintf("%d", b.RecordCount),
			formatTokens(b.TotalTokens),
			formatCost(b.TotalCost),
		}
		if f.opts.TokenLimit > 0 {
			pct := float64(b.TotalTokens) / float64(f.opts.TokenLimit) * 100
			cell := fmt.Sprintf("%.1f%%", pct)
			if pct >= 100 {
				cell = f.alert(cell)
			}
			row = append(row, cell)
		}
		table.Append(row)
		totalTokens += b.TotalTokens
		totalCost += b.TotalCost
	}
	footer := []string{"Total", "", "", "", formatTokens(totalTokens), formatCost(totalCost)}
	if f.opts.TokenLimit > 0 {
		footer = append(footer, "")
	}
	table.Footer(footer)
	table.Render()

	var out strings.Builder
	out.WriteString(f.title(title))
	out.WriteString(f.colorize(buf.String()))
	out.WriteString("\n")
	if report.Peak != nil {
		fmt.Fprintf(&out, "Peak block: %s %s UTC, %s\n", report.Peak.Date, report.Peak.Label(), formatCost(report.Peak.TotalCost))
	}
	fmt.Fprintf(&out, "Average cost per block: %s\n", formatCost(report.AverageCost))
	out.WriteString(f.blockUsageTable(report.ByIndex))
	return out.String()
}

func (f *Formatter) blockUsageTable(byIndex []types.BlockUsage) string {
	var buf bytes.Buffer
	table := newTable(&buf, append([]string{"Window\n(UTC)", "Blocks\n"}, tokenHeaders...)...)
	for _, u := range byIndex {
		table.Append(append([]string{u.Label, fmt.Sprintf("%d", u.BlockCount)}, tokenCells(u.Tokens, u.TotalCost)...))
	}
	table.Render()
	return "\nUsage by time of day:\n" + f.colorize(buf.String())
}

// BurnRateTable renders one row per lookback window plus limit forecasts
// from the first snapshot.
func (f *Formatter) BurnRateTable(snaps []types.BurnRateSnapshot) string {
	const title = "Burn Rate"
	var out strings.Builder
	out.WriteString(f.title(title))

	var buf bytes.Buffer
	table := newTable(&buf,
		"Window\n", "Tokens\n", "Tokens\n/min", "Tokens\n/hour", "Cost\n/hour",
		"Projected\nDaily", "Projected\nMonthly", "Trend\n")
	for _, s := range snaps {
		if s.NoData {
			table.Append([]string{formatWindow(s.Window), "-", "-", "-", "-", "-", "-", "no data"})
			continue
		}
		table.Append([]string{
			formatWindow(s.Window),
			formatTokens(s.WindowTokens),
			fmt.Sprintf("%.1f", s.TokensPerMinute),
			formatNumberWithCommas(int64(s.TokensPerHour)),
			fmt.Sprintf("$%.4f", s.CostPerHour),
			formatCost(s.ProjectedDailyCost),
			formatCost(s.ProjectedMonthlyCost),
			fmt.Sprintf("%s %+.1f%%", s.Trend, s.TrendPercent),
		})
	}
	table.Render()
	out.WriteString(f.colorize(buf.String()))

	if len(snaps) > 0 {
		out.WriteString("\n")
		out.WriteString(f.limitLine("Token limit", snaps[0].TokenLimit, func(v float64) string {
			return formatNumberWithCommas(int64(v))
		}))
		out.WriteString(f.limitLine("Cost limit", snaps[0].CostLimit, formatCost))
	}
	return out.String()
}

func (f *Formatter) limitLine(name string, lf types.LimitForecast, format func(float64) string) string {
	switch lf.Status {
	case types.LimitNotConfigured:
		return fmt.Sprintf("%s: not configured\n", name)
	case types.LimitExceeded:
		return f.alert(fmt.Sprintf("%s %s: EXCEEDED (%s used, %.1f%%)", name, format(lf.Limit), format(lf.Current), lf.PercentUsed)) + "\n"
	case types.LimitUnbounded:
		return fmt.Sprintf("%s %s: %s used (%.1f%%), not reached at the current rate\n", name, format(lf.Limit), format(lf.Current), lf.PercentUsed)
	}
	line := fmt.Sprintf("%s %s: %s used (%.1f%%), reached in %s of active use", name, format(lf.Limit), format(lf.Current), lf.PercentUsed, formatDuration(lf.TimeToLimit))
	return f.alert(line) + "\n"
}

func formatWindow(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "24h"
		}
		return fmt.Sprintf("%dd", days)
	}
	return d.String()
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// PricingStatusTable renders the pricing cache state.
func (f *Formatter) PricingStatusTable(status pricing.CacheStatus, source pricing.TableSource) string {
	var buf bytes.Buffer
	table := tablewriter.NewTable(&buf, tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header([]string{"Field", "Value"})

	reason := status.Reason
	if reason == "" {
		reason = "-"
	}
	lastUpdated := "-"
	age := "-"
	if !status.LastUpdated.IsZero() {
		lastUpdated = status.LastUpdated.In(f.opts.Location).Format(time.RFC3339)
		age = formatDuration(status.Age)
	}
	rows := [][]string{
		{"Path", status.Path},
		{"Exists", fmt.Sprintf("%t", status.Exists)},
		{"Valid", fmt.Sprintf("%t", status.Valid)},
		{"Reason", reason},
		{"Version", status.Version},
		{"Last updated", lastUpdated},
		{"Age", age},
		{"Entries", fmt.Sprintf("%d", status.Entries)},
		{"Active source", string(source)},
	}
	for _, r := range rows {
		table.Append(r)
	}
	table.Render()
	return f.title("Pricing Cache") + f.colorize(buf.String())
}
