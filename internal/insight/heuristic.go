package insight

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/timeutil"
)

// Input is everything the generator needs for one evaluation
// pass. Previous covers the same-length window immediately before
// the current one.
type Input struct {
	Range           analytics.TimeRange
	Teams           []string
	Current         map[string]Stats
	Previous        map[string]Stats
	Company         Stats
	CompanyPrevious Stats
	Now             time.Time
}

// Category thresholds.
const (
	burnoutHighShare      = 0.25
	burnoutSevereShare    = 0.40
	sentimentDropDelta    = -0.10
	sentimentSevereDelta  = -0.25
	workloadRiseDelta     = 0.25
	workloadSevereDelta   = 0.75
	workloadSenderShare   = 0.50
	longThreadLength      = 6.0
	engagementDropDelta   = -0.25
	engagementSevereDelta = -0.50
	recognitionMinMsgs    = 10
	recognitionRate       = 0.10
)

// volumeDelta is the relative change in message count. A team that
// goes from silence to any activity counts as +100%.
func volumeDelta(cur, prev Stats) float64 {
	if prev.Messages == 0 {
		if cur.Messages > 0 {
			return 1
		}
		return 0
	}
	return round2(float64(cur.Messages-prev.Messages) / float64(prev.Messages))
}

// sentimentDelta is zero unless both periods have messages.
func sentimentDelta(cur, prev Stats) float64 {
	if cur.Messages == 0 || prev.Messages == 0 {
		return 0
	}
	return round2(cur.AvgSentiment - prev.AvgSentiment)
}

// categorize picks the first matching category in precedence
// order and its severity.
func categorize(cur, prev Stats) (Category, analytics.RiskLevel) {
	risk := analytics.Classify(cur.AvgSentiment)
	sd := sentimentDelta(cur, prev)
	vd := volumeDelta(cur, prev)

	switch {
	case cur.Messages == 0 && prev.Messages == 0:
		return CategoryEngagement, analytics.RiskLow
	case cur.Messages > 0 &&
		(cur.HighShare >= burnoutHighShare || risk == analytics.RiskHigh):
		if cur.HighShare >= burnoutSevereShare || risk == analytics.RiskHigh {
			return CategoryBurnout, analytics.RiskHigh
		}
		return CategoryBurnout, analytics.RiskMedium
	case sd <= sentimentDropDelta:
		if sd <= sentimentSevereDelta {
			return CategorySentiment, analytics.RiskHigh
		}
		return CategorySentiment, analytics.RiskMedium
	case vd >= workloadRiseDelta && cur.TopSenderShare >= workloadSenderShare:
		if vd >= workloadSevereDelta {
			return CategoryWorkload, analytics.RiskHigh
		}
		return CategoryWorkload, analytics.RiskMedium
	case cur.AvgThreadLength >= longThreadLength:
		return CategoryCommunication, analytics.RiskMedium
	case vd <= engagementDropDelta:
		if vd <= engagementSevereDelta {
			return CategoryEngagement, analytics.RiskMedium
		}
		return CategoryEngagement, analytics.RiskLow
	case cur.Messages >= recognitionMinMsgs &&
		cur.ReactionsPerMessage < recognitionRate:
		return CategoryRecognition, analytics.RiskLow
	default:
		return CategorySentiment, risk
	}
}

// confidence grows with evidence and saturates at 100 messages.
func confidence(messages int) float64 {
	return round2(0.3 + 0.6*min(1, float64(messages)/100))
}

func pct(x float64) string {
	return fmt.Sprintf("%.0f%%", x*100)
}

func summaryFor(
	who string, c Category, r analytics.TimeRange, cur, prev Stats,
) string {
	switch c {
	case CategoryBurnout:
		return fmt.Sprintf(
			"%s has %s of messages in high-risk sentiment this %s "+
				"(average %.2f), indicating potential burnout risk.",
			who, pct(cur.HighShare), r, cur.AvgSentiment,
		)
	case CategoryWorkload:
		return fmt.Sprintf(
			"%s has rising message volume (%+.0f%%) with one contributor "+
				"sending %s of messages, hinting at workload concentration.",
			who, volumeDelta(cur, prev)*100, pct(cur.TopSenderShare),
		)
	case CategoryCommunication:
		return fmt.Sprintf(
			"%s averages %.1f messages per thread this %s, pointing to "+
				"long back-and-forth and possible misalignment.",
			who, cur.AvgThreadLength, r,
		)
	case CategoryEngagement:
		if cur.Messages == 0 && prev.Messages == 0 {
			return fmt.Sprintf(
				"%s posted no messages this %s or the previous %s; "+
					"conversations may have moved elsewhere.",
				who, r, r,
			)
		}
		return fmt.Sprintf(
			"%s posted %d messages this %s, down %s from the previous %s, "+
				"suggesting lower day-to-day engagement.",
			who, cur.Messages, r, pct(-volumeDelta(cur, prev)), r,
		)
	case CategoryRecognition:
		return fmt.Sprintf(
			"%s shares few reactions and kudos this %s "+
				"(%.2f per message), which can precede lower engagement.",
			who, r, cur.ReactionsPerMessage,
		)
	default:
		if d := sentimentDelta(cur, prev); d < 0 {
			return fmt.Sprintf(
				"%s's average sentiment fell by %.2f compared to the "+
					"previous %s (now %.2f).",
				who, -d, r, cur.AvgSentiment,
			)
		}
		return fmt.Sprintf(
			"%s's average sentiment is %.2f this %s across %d messages.",
			who, cur.AvgSentiment, r, cur.Messages,
		)
	}
}

var recommendations = map[Category]string{
	CategoryEngagement: "Rotate facilitation duties and try a quick win demo Friday. " +
		"Ask each member to share a small win.",
	CategoryBurnout: "Plan a lighter sprint next cycle, stagger on-call, and " +
		"schedule 1:1s to check capacity.",
	CategoryCommunication: "Adopt a spec template with a clear decision owner and " +
		"open questions. Move to a 15-minute sync when threads run long.",
	CategoryWorkload: "Rebalance tasks by pairing senior contributors with juniors " +
		"on high-load areas and spread review duty.",
	CategorySentiment: "Acknowledge recent friction, recap what changed, and share " +
		"next steps. Invite anonymous feedback in the retro.",
	CategoryRecognition: "Add a weekly kudos thread and call out specific behaviors. " +
		"Encourage peers to nominate teammates.",
}

func titleCase(c Category) string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Generate builds one insight per team, plus a company-wide
// insight. A team silent in both periods gets a Low engagement
// insight. With no teams and no activity the result is empty.
// Output is in team order with the company insight last; use Rank
// for display order.
func Generate(in Input) []Insight {
	teams := in.Teams
	if len(teams) == 0 {
		for name := range in.Current {
			teams = append(teams, name)
		}
		for name := range in.Previous {
			if _, ok := in.Current[name]; !ok {
				teams = append(teams, name)
			}
		}
	}
	teams = slices.Clone(teams)
	slices.Sort(teams)
	teams = slices.Compact(teams)

	created := timeutil.Format(in.Now)
	out := make([]Insight, 0, len(teams)+1)
	for _, team := range teams {
		cur, prev := in.Current[team], in.Previous[team]
		cat, sev := categorize(cur, prev)
		out = append(out, Insight{
			ID:             fmt.Sprintf("insight-%s-%s", slug(team), in.Range),
			Scope:          ScopeTeam,
			Team:           team,
			Title:          fmt.Sprintf("%s: %s insight", team, titleCase(cat)),
			Summary:        summaryFor(team, cat, in.Range, cur, prev),
			Recommendation: recommendations[cat],
			Severity:       sev,
			Category:       cat,
			Confidence:     confidence(cur.Messages),
			Tags:           []string{team, string(cat), string(in.Range)},
			CreatedAt:      created,
			MetricContext: &MetricContext{
				AvgSentimentDelta:  sentimentDelta(cur, prev),
				MessageVolumeDelta: volumeDelta(cur, prev),
			},
			Range: in.Range,
		})
	}

	cur, prev := in.Company, in.CompanyPrevious
	if len(teams) == 0 && cur.Messages == 0 && prev.Messages == 0 {
		return out
	}
	cat, sev := categorize(cur, prev)
	out = append(out, Insight{
		ID:    fmt.Sprintf("insight-company-%s", in.Range),
		Scope: ScopeCompany,
		Title: fmt.Sprintf(
			"Org-wide %s signal in the last %s", cat, in.Range,
		),
		Summary:        summaryFor("The organization", cat, in.Range, cur, prev),
		Recommendation: recommendations[cat],
		Severity:       sev,
		Category:       cat,
		Confidence:     confidence(cur.Messages),
		Tags:           []string{"org", string(cat), string(in.Range)},
		CreatedAt:      created,
		MetricContext: &MetricContext{
			AvgSentimentDelta:  sentimentDelta(cur, prev),
			MessageVolumeDelta: volumeDelta(cur, prev),
		},
		Range: in.Range,
	})
	return out
}

func slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}
