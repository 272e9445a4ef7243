package pricing

import (
	"regexp"
	"sort"
	"strings"
)

// Matcher finds the table entry for a model identifier. Matchers are tried
// in order; the first that reports ok wins.
type Matcher interface {
	Name() string
	Match(model string, table Table) (key string, pricing ModelPricing, ok bool)
}

// DefaultMatchers is the resolution chain used when none is configured.
func DefaultMatchers(aliases map[string]string) []Matcher {
	return []Matcher{
		ExactMatch{},
		AliasMatch{Aliases: aliases},
		FamilyPrefixMatch{},
	}
}

// ExactMatch looks the identifier up verbatim.
type ExactMatch struct{}

func (ExactMatch) Name() string { return "exact" }

func (ExactMatch) Match(model string, table Table) (string, ModelPricing, bool) {
	p, ok := table[model]
	return model, p, ok
}

// AliasMatch rewrites the identifier through an alias map, then looks the
// canonical name up verbatim.
type AliasMatch struct {
	Aliases map[string]string
}

func (AliasMatch) Name() string { return "alias" }

func (m AliasMatch) Match(model string, table Table) (string, ModelPricing, bool) {
	canonical, ok := m.Aliases[normalizeModel(model)]
	if !ok {
		canonical, ok = m.Aliases[model]
	}
	if !ok {
		return "", ModelPricing{}, false
	}
	p, ok := table[canonical]
	return canonical, p, ok
}

// FamilyPrefixMatch compares identifiers with provider prefixes and date
// suffixes stripped. An identical family wins; otherwise the longest table
// family that prefixes the model on a '-' boundary wins.
type FamilyPrefixMatch struct{}

func (FamilyPrefixMatch) Name() string { return "family" }

func (FamilyPrefixMatch) Match(model string, table Table) (string, ModelPricing, bool) {
	want := normalizeModel(model)
	if want == "" {
		return "", ModelPricing{}, false
	}

	var equal, prefixed []string
	for key := range table {
		family := normalizeModel(key)
		switch {
		case family == want:
			equal = append(equal, key)
		case strings.HasPrefix(want, family+"-"):
			prefixed = append(prefixed, key)
		}
	}

	if len(equal) > 0 {
		// dated keys sort chronologically; take the newest
		sort.Strings(equal)
		key := equal[len(equal)-1]
		return key, table[key], true
	}
	if len(prefixed) > 0 {
		sort.Slice(prefixed, func(i, j int) bool {
			fi, fj := normalizeModel(prefixed[i]), normalizeModel(prefixed[j])
			if len(fi) != len(fj) {
				return len(fi) > len(fj)
			}
			return prefixed[i] > prefixed[j]
		})
		key := prefixed[0]
		return key, table[key], true
	}
	return "", ModelPricing{}, false
}

// FallbackConstant prices every model at one fixed rate. It is never part
// of the default chain: an unknown model falls through to the reported cost
// or is marked unpriced.
type FallbackConstant struct {
	Key     string
	Pricing ModelPricing
}

func (FallbackConstant) Name() string { return "fallback" }

func (m FallbackConstant) Match(model string, _ Table) (string, ModelPricing, bool) {
	if model == "" {
		return "", ModelPricing{}, false
	}
	return m.Key, m.Pricing, true
}

var (
	dateSuffix    = regexp.MustCompile(`-(\d{8}|\d{4}-\d{2}-\d{2})$`)
	versionSuffix = regexp.MustCompile(`(@|:).*$`)
)

// normalizeModel lowercases an identifier and strips provider prefixes,
// version tags and date suffixes.
func normalizeModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	m = strings.TrimPrefix(m, "anthropic.")
	m = versionSuffix.ReplaceAllString(m, "")
	m = dateSuffix.ReplaceAllString(m, "")
	m = strings.ReplaceAll(m, ".", "-")
	return m
}
