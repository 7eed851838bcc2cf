package analytics

import (
	"fmt"
	"math"
	"strings"
)

// RiskLevel is the ordered risk enum Low < Medium < High.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Rank orders risk levels: High=3, Medium=2, Low=1.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// ParseRiskLevel accepts any casing of Low, Medium, or High.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// riskBand is the half-width of the Medium band around zero.
const riskBand = 0.2

// Classify maps an average sentiment to a risk level. Both band
// edges belong to Medium.
func Classify(avg float64) RiskLevel {
	switch {
	case avg < -riskBand:
		return RiskHigh
	case avg > riskBand:
		return RiskLow
	default:
		return RiskMedium
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clampSentiment(s float64) float64 {
	return max(-1, min(1, s))
}

// sentimentSum accumulates a running mean of clamped scores.
type sentimentSum struct {
	total float64
	n     int
}

func (a *sentimentSum) add(s float64) {
	a.total += clampSentiment(s)
	a.n++
}

// mean returns the rounded average, or 0 when empty.
func (a sentimentSum) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return round2(a.total / float64(a.n))
}
