package analytics

import (
	"errors"
	"fmt"
	"strings"
)

// Caller errors are rejected at the query boundary; the
// aggregators never see an unknown enum value.
var (
	ErrInvalidRange       = errors.New("invalid range")
	ErrInvalidPerspective = errors.New("invalid perspective")
	ErrInvalidMetric      = errors.New("invalid metric")
	ErrInvalidGrouping    = errors.New("invalid grouping")
	ErrInvalidSeverity    = errors.New("invalid severity")

	// ErrDataUnavailable wraps store failures. Query services
	// degrade to the empty value instead of surfacing it.
	ErrDataUnavailable = errors.New("data unavailable")
)

// TimeRange selects bucket count and width.
type TimeRange string

const (
	RangeWeek    TimeRange = "week"
	RangeMonth   TimeRange = "month"
	RangeQuarter TimeRange = "quarter"
	RangeYear    TimeRange = "year"
)

// ParseTimeRange validates a range selector.
func ParseTimeRange(s string) (TimeRange, error) {
	switch r := TimeRange(strings.ToLower(s)); r {
	case RangeWeek, RangeMonth, RangeQuarter, RangeYear:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
}

// Multiplier is the fixed per-range scale applied to entity
// totals.
func (r TimeRange) Multiplier() int {
	switch r {
	case RangeMonth:
		return 4
	case RangeQuarter:
		return 12
	case RangeYear:
		return 48
	default:
		return 1
	}
}

// LookbackDays is the length of the range's trailing window.
func (r TimeRange) LookbackDays() int {
	switch r {
	case RangeMonth:
		return 30
	case RangeQuarter:
		return 90
	case RangeYear:
		return 365
	default:
		return 7
	}
}

// Perspective selects the entity type for entity totals.
type Perspective string

const (
	PerspectiveChannel  Perspective = "channel"
	PerspectiveTeam     Perspective = "team"
	PerspectiveEmployee Perspective = "employee"
)

// ParsePerspective validates a perspective.
func ParsePerspective(s string) (Perspective, error) {
	switch p := Perspective(strings.ToLower(s)); p {
	case PerspectiveChannel, PerspectiveTeam, PerspectiveEmployee:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPerspective, s)
}

// MetricKey selects the field used to rank entity totals.
type MetricKey string

const (
	MetricMessages  MetricKey = "messages"
	MetricThreads   MetricKey = "threads"
	MetricResponses MetricKey = "responses"
	MetricEmojis    MetricKey = "emojis"
)

// ParseMetricKey validates an entity-totals metric.
func ParseMetricKey(s string) (MetricKey, error) {
	switch k := MetricKey(strings.ToLower(s)); k {
	case MetricMessages, MetricThreads, MetricResponses, MetricEmojis:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMetric, s)
}

// Grouping selects heatmap rows.
type Grouping string

const (
	GroupChannels Grouping = "channels"
	GroupTeams    Grouping = "teams"
	GroupPeople   Grouping = "people"
)

// ParseGrouping validates a heatmap grouping.
func ParseGrouping(s string) (Grouping, error) {
	switch g := Grouping(strings.ToLower(s)); g {
	case GroupChannels, GroupTeams, GroupPeople:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGrouping, s)
}

// HeatmapMetric selects the heatmap cell value.
type HeatmapMetric string

const (
	HeatSentiment HeatmapMetric = "sentiment"
	HeatMessages  HeatmapMetric = "messages"
	HeatThreads   HeatmapMetric = "threads"
)

// ParseHeatmapMetric validates a heatmap metric.
func ParseHeatmapMetric(s string) (HeatmapMetric, error) {
	switch m := HeatmapMetric(strings.ToLower(s)); m {
	case HeatSentiment, HeatMessages, HeatThreads:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMetric, s)
}

// BurnoutGrouping selects burnout series entities.
type BurnoutGrouping string

const (
	BurnoutByTeam   BurnoutGrouping = "team"
	BurnoutByPerson BurnoutGrouping = "person"
)

// ParseBurnoutGrouping validates a burnout grouping.
func ParseBurnoutGrouping(s string) (BurnoutGrouping, error) {
	switch g := BurnoutGrouping(strings.ToLower(s)); g {
	case BurnoutByTeam, BurnoutByPerson:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGrouping, s)
}
