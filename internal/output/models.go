package output

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// claude-{family}-{major}-{minor}-{date}
	minorVersionModel = regexp.MustCompile(`^claude-(\w+)-(\d+)-(\d+)-\d+`)
	// claude-{family}-{major}-{date}
	majorVersionModel = regexp.MustCompile(`^claude-(\w+)-(\d+)-\d+`)

	knownModels = map[string]string{
		"gpt-4o":        "gpt-4o",
		"gpt-4o-mini":   "gpt-4o-mini",
		"gpt-4":         "gpt-4",
		"gpt-3.5-turbo": "gpt-3.5",
	}
)

func title(s string) string {
	return cases.Title(language.English).String(s)
}

// ShortenModelName turns a model id into its display form, e.g.
// claude-sonnet-4-5-20250929 -> Sonnet-4.5 and claude-opus-4-20250514 -> Opus-4.
func ShortenModelName(model string) string {
	if m := minorVersionModel.FindStringSubmatch(model); m != nil {
		return fmt.Sprintf("%s-%s.%s", title(m[1]), m[2], m[3])
	}
	if m := majorVersionModel.FindStringSubmatch(model); m != nil {
		return fmt.Sprintf("%s-%s", title(m[1]), m[2])
	}
	if short, ok := knownModels[model]; ok {
		return short
	}
	if len(model) > 12 {
		return model[:12]
	}
	return model
}

// formatModels renders a bullet list of distinct short model names.
func formatModels(models []string) string {
	seen := make(map[string]bool, len(models))
	var short []string
	for _, m := range models {
		if m == "" {
			continue
		}
		s := ShortenModelName(m)
		if !seen[s] {
			seen[s] = true
			short = append(short, s)
		}
	}
	if len(short) == 0 {
		return "-"
	}
	sort.Strings(short)
	return "- " + strings.Join(short, "\n- ")
}

// formatNumberWithCommas formats a number with thousand separators.
func formatNumberWithCommas(n int64) string {
	if n < 0 {
		return "-" + formatNumberWithCommas(-n)
	}
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	return formatNumberWithCommas(n/1000) + "," + fmt.Sprintf("%03d", n%1000)
}

// formatTokens is formatNumberWithCommas with "-" for zero.
func formatTokens(n int64) string {
	if n == 0 {
		return "-"
	}
	return formatNumberWithCommas(n)
}

func formatCost(c float64) string {
	return fmt.Sprintf("$%.2f", c)
}

// formatDate splits YYYY-MM-DD over two lines to keep the column narrow.
func formatDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	return parts[0] + "\n" + parts[1] + "-" + parts[2]
}

var (
	srcProject    = regexp.MustCompile(`(?:^|-)(?:go_)?(?:src|react_src|python_src)[_-]([A-Za-z][A-Za-z0-9_-]+)`)
	systemSegment = regexp.MustCompile(`^(Volumes?|Users?|home|var|tmp|opt|usr|bin|lib|etc|root|[A-Z0-9]+_[A-Z0-9]+|\d+[A-Z]+)$`)
)

// projectDisplayName extracts a readable name from a project directory such
// as "-Users-alice-src-myapp", which encodes the original path with dashes.
func projectDisplayName(project string) string {
	if project == "" {
		return "unknown"
	}
	if i := strings.IndexByte(project, '/'); i >= 0 {
		project = project[:i]
	}
	project = strings.TrimPrefix(project, "-")

	if m := srcProject.FindStringSubmatch(project); m != nil {
		return "src-" + m[1]
	}

	segments := strings.Split(project, "-")
	var meaningful []string
	for i, s := range segments {
		if len(s) <= 2 || systemSegment.MatchString(s) {
			continue
		}
		// the user name follows Users or home
		if i > 0 && (segments[i-1] == "Users" || segments[i-1] == "home") {
			continue
		}
		meaningful = append(meaningful, s)
	}

	switch len(meaningful) {
	case 0:
		return segments[len(segments)-1]
	case 1:
		return meaningful[0]
	}
	return meaningful[len(meaningful)-2] + "-" + meaningful[len(meaningful)-1]
}
