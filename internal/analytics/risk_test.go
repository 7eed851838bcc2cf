package analytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		avg  float64
		want RiskLevel
	}{
		{-1, RiskHigh},
		{-0.2001, RiskHigh},
		{-0.2, RiskMedium},
		{0, RiskMedium},
		{0.2, RiskMedium},
		{0.2001, RiskLow},
		{1, RiskLow},
	}
	for _, tt := range tests {
		if got := Classify(tt.avg); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.avg, got, tt.want)
		}
	}
}

func TestRiskRank(t *testing.T) {
	assert.Equal(t, 3, RiskHigh.Rank())
	assert.Equal(t, 2, RiskMedium.Rank())
	assert.Equal(t, 1, RiskLow.Rank())
	assert.Equal(t, 0, RiskLevel("Severe").Rank())
}

func TestParseRiskLevel(t *testing.T) {
	got, err := ParseRiskLevel(" high ")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, got)

	_, err = ParseRiskLevel("critical")
	assert.True(t, errors.Is(err, ErrInvalidSeverity))
}

func TestSentimentSumClampsAndRounds(t *testing.T) {
	var s sentimentSum
	assert.Equal(t, 0.0, s.mean())
	s.add(3)
	s.add(-0.5)
	assert.InDelta(t, 0.25, s.mean(), 1e-9)
	assert.Equal(t, 2, s.n)
}

func TestParseEnums(t *testing.T) {
	tests := []struct {
		name    string
		parse   func(string) error
		valid   []string
		invalid string
		sentinel error
	}{
		{
			name:     "range",
			parse:    func(s string) error { _, err := ParseTimeRange(s); return err },
			valid:    []string{"week", "Month", "quarter", "YEAR"},
			invalid:  "decade",
			sentinel: ErrInvalidRange,
		},
		{
			name:     "perspective",
			parse:    func(s string) error { _, err := ParsePerspective(s); return err },
			valid:    []string{"channel", "team", "employee"},
			invalid:  "people",
			sentinel: ErrInvalidPerspective,
		},
		{
			name:     "metric key",
			parse:    func(s string) error { _, err := ParseMetricKey(s); return err },
			valid:    []string{"messages", "threads", "responses", "emojis"},
			invalid:  "sentiment",
			sentinel: ErrInvalidMetric,
		},
		{
			name:     "heatmap metric",
			parse:    func(s string) error { _, err := ParseHeatmapMetric(s); return err },
			valid:    []string{"sentiment", "messages", "threads"},
			invalid:  "emojis",
			sentinel: ErrInvalidMetric,
		},
		{
			name:     "grouping",
			parse:    func(s string) error { _, err := ParseGrouping(s); return err },
			valid:    []string{"channels", "teams", "people"},
			invalid:  "team",
			sentinel: ErrInvalidGrouping,
		},
		{
			name:     "burnout grouping",
			parse:    func(s string) error { _, err := ParseBurnoutGrouping(s); return err },
			valid:    []string{"team", "person"},
			invalid:  "channels",
			sentinel: ErrInvalidGrouping,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.valid {
				assert.NoError(t, tt.parse(v), "parse %q", v)
			}
			err := tt.parse(tt.invalid)
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("parse(%q) = %v, want %v", tt.invalid, err, tt.sentinel)
			}
			assert.Error(t, tt.parse(""))
		})
	}
}

func TestRangeMultiplierMonotonic(t *testing.T) {
	ranges := []TimeRange{RangeWeek, RangeMonth, RangeQuarter, RangeYear}
	want := []int{1, 4, 12, 48}
	for i, r := range ranges {
		assert.Equal(t, want[i], r.Multiplier(), "multiplier for %s", r)
	}
}
