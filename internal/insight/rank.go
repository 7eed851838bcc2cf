package insight

import (
	"cmp"
	"slices"

	"github.com/wesm/teampulse/internal/analytics"
)

// Rank returns a copy sorted by severity (High first), then by
// descending confidence. Equal insights keep their input order.
func Rank(in []Insight) []Insight {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b Insight) int {
		if c := cmp.Compare(b.Severity.Rank(), a.Severity.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return out
}

// TopN ranks and truncates. n <= 0 keeps every insight.
func TopN(in []Insight, n int) []Insight {
	out := Rank(in)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Filter selects visible insights. Values within one dimension are
// OR-ed and dimensions are AND-ed; an empty dimension matches
// everything. Insights without a team always pass the team filter.
type Filter struct {
	Teams      []string
	Severities []analytics.RiskLevel
	Dismissed  map[string]bool
}

// Match reports whether it passes the filter.
func (f Filter) Match(it Insight) bool {
	if f.Dismissed[it.ID] {
		return false
	}
	if len(f.Teams) > 0 && it.Team != "" &&
		!slices.Contains(f.Teams, it.Team) {
		return false
	}
	return len(f.Severities) == 0 ||
		slices.Contains(f.Severities, it.Severity)
}

// Apply returns the matching insights without modifying them.
func (f Filter) Apply(in []Insight) []Insight {
	out := make([]Insight, 0, len(in))
	for _, it := range in {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}
