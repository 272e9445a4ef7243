package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sdpower/ccledger/internal/types"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat accepts "table" or "json"; empty means table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", types.ValidationError{Field: "format", Message: fmt.Sprintf("unknown output format %q (want table or json)", s)}
}

type Options struct {
	Format  Format
	NoColor bool
	// Location is used for every rendered timestamp. Nil means local time.
	Location *time.Location
	// TokenLimit adds a percent-of-limit column to block tables when set.
	TokenLimit int64
}

type Formatter struct {
	opts Options
}

func NewFormatter(opts Options) *Formatter {
	if opts.Format == "" {
		opts.Format = FormatTable
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Formatter{opts: opts}
}

func (f *Formatter) Format() Format {
	return f.opts.Format
}

// JSON renders v as indented JSON.
func (f *Formatter) JSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// Render is a convenience for commands: JSON renders payload, table calls table.
func (f *Formatter) Render(payload any, table func() string) (string, error) {
	if f.opts.Format == FormatJSON {
		return f.JSON(payload)
	}
	return table(), nil
}

func (f *Formatter) title(text string) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		MarginLeft(1)
	if !f.opts.NoColor {
		style = style.Bold(true).BorderForeground(lipgloss.Color("240"))
	}
	return "\n" + style.Render(text) + "\n\n"
}

func (f *Formatter) empty(title, what string) string {
	return f.title(title) + fmt.Sprintf("No %s found for the specified criteria.\n", what)
}

func (f *Formatter) alert(text string) string {
	if f.opts.NoColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Render(text)
}

func (f *Formatter) muted(text string) string {
	if f.opts.NoColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(text)
}

// DiagnosticsNote summarizes what a run skipped, for stderr. Empty when clean.
func (f *Formatter) DiagnosticsNote(d types.Diagnostics) string {
	if d.Clean() {
		return ""
	}
	var b strings.Builder
	if n := len(d.SkippedFiles); n > 0 {
		fmt.Fprintf(&b, "warning: %d file(s) could not be read\n", n)
		for _, w := range d.SkippedFiles {
			fmt.Fprintf(&b, "  %s: %s\n", w.Path, w.Reason)
		}
	}
	if d.SkippedLines > 0 {
		fmt.Fprintf(&b, "warning: %d malformed line(s) skipped\n", d.SkippedLines)
	}
	if d.UnpricedEvents > 0 {
		fmt.Fprintf(&b, "warning: %d event(s) have no price and count as $0\n", d.UnpricedEvents)
		if d.MissingModel > 0 {
			fmt.Fprintf(&b, "  %d event(s) have no model field\n", d.MissingModel)
		}
	}
	for _, w := range d.CacheWarnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return f.muted(strings.TrimRight(b.String(), "\n")) + "\n"
}
