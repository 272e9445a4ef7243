package monitor

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/sdpower/ccledger/internal/calculator"
	"github.com/sdpower/ccledger/internal/types"
)

// Burn rate thresholds for indicators, in non-cache tokens per minute.
const (
	BurnRateHigh     = 1000
	BurnRateModerate = 500
)

var (
	barGreen  = colorful.Color{R: 0.13, G: 0.77, B: 0.37}
	barYellow = colorful.Color{R: 0.98, G: 0.80, B: 0.08}
	barRed    = colorful.Color{R: 0.94, G: 0.27, B: 0.27}
)

// barColor blends green to yellow over 0-80% and yellow to red over 80-100%.
func barColor(percent float64) colorful.Color {
	switch {
	case percent <= 0:
		return barGreen
	case percent < 80:
		return barGreen.BlendLab(barYellow, percent/80).Clamped()
	case percent < 100:
		return barYellow.BlendLab(barRed, (percent-80)/20).Clamped()
	}
	return barRed
}

func progressBar(percent float64, width int, noColor bool) string {
	if percent < 0 {
		percent = 0
	}
	filled := int(percent * float64(width) / 100)
	if filled > width {
		filled = width
	}

	full := strings.Repeat("█", filled)
	empty := strings.Repeat("░", width-filled)
	if noColor {
		return "[" + full + empty + "]"
	}
	fill := lipgloss.NewStyle().Foreground(lipgloss.Color(barColor(percent).Hex()))
	rest := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	return "[" + fill.Render(full) + rest.Render(empty) + "]"
}

func barWidth(termWidth int) int {
	switch {
	case termWidth-2 >= 120:
		return 50
	case termWidth-2 >= 100:
		return 45
	}
	return 40
}

func section(icon, title string, percent float64, width int, noColor bool, right, info string) string {
	left := fmt.Sprintf("%s %-10s", icon, title)
	return fmt.Sprintf("\n%s %s %12s\n%s\n", left, progressBar(percent, barWidth(width), noColor), right, info)
}

func burnIndicator(rate *types.BurnRate) string {
	switch {
	case rate == nil:
		return ""
	case rate.TokensPerMinuteForIndicator > BurnRateHigh:
		return " ⚡ HIGH"
	case rate.TokensPerMinuteForIndicator > BurnRateModerate:
		return " ⚡ MODERATE"
	}
	return " ✓ NORMAL"
}

// render draws the dashboard for one snapshot.
func render(snap *Snapshot, width int, opts Options) string {
	loc := opts.Pipeline.Location
	if loc == nil {
		loc = time.Local
	}

	var buf bytes.Buffer
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
			Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
			Footer: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
		}),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	title := "LIVE TOKEN USAGE MONITOR"
	if !opts.NoColor {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}
	table.Header([]string{title})

	if block := snap.Active; block != nil {
		for _, row := range activeBlockRows(*block, snap, width, opts.NoColor, loc) {
			table.Append([]string{row})
		}
	} else {
		waiting := "No active billing block. Waiting for usage..."
		if !opts.NoColor {
			waiting = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true).Render(waiting)
		}
		table.Append([]string{waiting})
	}

	if len(snap.BurnRates) > 0 {
		table.Append([]string{forecastRow(snap.BurnRates[0])})
	}

	footer := fmt.Sprintf("↻ Refreshing every %s  •  Updated %s  •  Press q to quit",
		opts.Interval, snap.Taken.In(loc).Format("15:04:05"))
	if !opts.NoColor {
		footer = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(footer)
	}
	table.Footer([]string{footer})
	table.Render()

	out := buf.String()
	if width > 120 {
		pad := strings.Repeat(" ", (width-120)/2)
		lines := strings.Split(out, "\n")
		for i, line := range lines {
			if line != "" {
				lines[i] = pad + line
			}
		}
		out = strings.Join(lines, "\n")
	}
	return out
}

func activeBlockRows(block types.BillingBlock, snap *Snapshot, width int, noColor bool, loc *time.Location) []string {
	now := snap.Taken
	elapsed := now.Sub(block.StartTime)
	remaining := block.EndTime.Sub(now)
	elapsedPercent := float64(elapsed) / float64(types.BlockDuration) * 100

	rows := []string{section("⏱️", "BLOCK", elapsedPercent, width, noColor,
		fmt.Sprintf("%.1f%%", elapsedPercent),
		fmt.Sprintf("Window: %s UTC  Started: %s  Elapsed: %s  Remaining: %s",
			block.Label(),
			block.StartTime.In(loc).Format("03:04 PM"),
			formatDuration(elapsed),
			formatDuration(remaining)),
	)}

	rate := calculator.BlockBurnRate(block)
	var tpm float64
	if rate != nil {
		tpm = rate.TokensPerMinute
	}
	usagePercent := 0.0
	if snap.Limit > 0 {
		usagePercent = float64(block.TotalTokens) / float64(snap.Limit) * 100
	}
	rows = append(rows, section("🔥", "USAGE", usagePercent, width, noColor,
		fmt.Sprintf("%.1f%% (%s/%s)", usagePercent, formatTokensShort(block.TotalTokens), formatTokensShort(snap.Limit)),
		fmt.Sprintf("Tokens: %s (Burn Rate: %s token/min%s)  Sessions: %d  Cost: $%.2f",
			formatNumberWithCommas(block.TotalTokens),
			formatNumberWithCommas(int64(tpm)),
			burnIndicator(rate),
			block.SessionCount,
			block.TotalCost),
	))

	if proj := calculator.ProjectBlock(block, now); proj != nil && snap.Limit > 0 {
		projPercent := float64(proj.TotalTokens) / float64(snap.Limit) * 100
		status := "✅ WITHIN LIMIT"
		switch {
		case projPercent > 100:
			status = "🚨 EXCEEDS LIMIT"
		case projPercent > 90:
			status = "⚠️  APPROACHING LIMIT"
		}
		rows = append(rows, section("📈", "PROJECTION", projPercent, width, noColor,
			fmt.Sprintf("%.1f%% (%s/%s)", projPercent, formatTokensShort(proj.TotalTokens), formatTokensShort(snap.Limit)),
			fmt.Sprintf("Status: %s  Tokens: %s  Cost: $%.2f",
				status, formatNumberWithCommas(proj.TotalTokens), proj.TotalCost),
		))
	}
	return rows
}

func forecastRow(s types.BurnRateSnapshot) string {
	if s.NoData {
		return "📊 Last 24h: no usage"
	}
	line := fmt.Sprintf("📊 Last 24h: %s tokens/h  $%.2f/h  Monthly projection: $%.2f  Trend: %s %+.1f%%",
		formatNumberWithCommas(int64(s.TokensPerHour)), s.CostPerHour, s.ProjectedMonthlyCost, s.Trend, s.TrendPercent)
	if s.CostLimit.Status == types.LimitExceeded {
		line += "\n🚨 Monthly cost limit exceeded"
	} else if s.CostLimit.Status == types.LimitOK {
		line += fmt.Sprintf("\n⚠️  Monthly cost limit reached in %s of active use", formatDuration(s.CostLimit.TimeToLimit))
	}
	return line
}

// formatTokensShort formats tokens with k/M suffix.
func formatTokensShort(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func formatNumberWithCommas(n int64) string {
	if n < 0 {
		return "-" + formatNumberWithCommas(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return formatNumberWithCommas(n/1000) + "," + fmt.Sprintf("%03d", n%1000)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
