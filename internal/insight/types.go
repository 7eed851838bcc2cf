// Package insight synthesizes ranked, natural-language team health
// insights from period statistics, either with deterministic
// heuristics or by asking an agent CLI and filling any gaps with
// the heuristics.
package insight

import (
	"github.com/wesm/teampulse/internal/analytics"
)

// Scope is the level an insight applies to.
type Scope string

const (
	ScopeTeam    Scope = "team"
	ScopeChannel Scope = "channel"
	ScopeCompany Scope = "company"
)

// Category is the kind of signal an insight reports.
type Category string

const (
	CategoryBurnout       Category = "burnout"
	CategoryEngagement    Category = "engagement"
	CategoryCommunication Category = "communication"
	CategoryRecognition   Category = "recognition"
	CategoryWorkload      Category = "workload"
	CategorySentiment     Category = "sentiment"
)

// ValidCategories lists every known category.
var ValidCategories = map[Category]bool{
	CategoryBurnout:       true,
	CategoryEngagement:    true,
	CategoryCommunication: true,
	CategoryRecognition:   true,
	CategoryWorkload:      true,
	CategorySentiment:     true,
}

// MetricContext compares the current period to the one before it.
type MetricContext struct {
	AvgSentimentDelta  float64 `json:"avgSentimentDelta"`
	MessageVolumeDelta float64 `json:"messageVolumeDelta"`
}

// Insight is one recommendation card.
type Insight struct {
	ID             string              `json:"id"`
	Scope          Scope               `json:"scope"`
	Team           string              `json:"team,omitempty"`
	ChannelID      string              `json:"channelId,omitempty"`
	Title          string              `json:"title"`
	Summary        string              `json:"summary"`
	Recommendation string              `json:"recommendation"`
	Severity       analytics.RiskLevel `json:"severity"`
	Category       Category            `json:"category"`
	Confidence     float64             `json:"confidence"`
	Tags           []string            `json:"tags"`
	CreatedAt      string              `json:"createdAt"`
	MetricContext  *MetricContext      `json:"metricContext,omitempty"`
	Range          analytics.TimeRange `json:"range"`
}
