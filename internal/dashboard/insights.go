package dashboard

import (
	"context"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/insight"
)

// InsightQuery selects and filters team insights.
type InsightQuery struct {
	Query
	Limit            int
	Teams            []string
	Severities       []analytics.RiskLevel
	IncludeDismissed bool
}

// insightInput collects current and previous period statistics.
// The previous period is the same-length window immediately
// before the current one.
func (s *Service) insightInput(
	ctx context.Context, q Query,
) (insight.Input, error) {
	r := q.rangeOrDefault()
	now := s.now(q)
	days := r.LookbackDays()
	cur := trailing(now, days)
	prev := analytics.Window{Start: cur.Start.AddDate(0, 0, -days), End: cur.Start}

	in := insight.Input{Range: r, Now: now}
	snap, err := s.snapshot(ctx, q, analytics.Window{Start: prev.Start, End: cur.End})
	if err != nil {
		return in, err
	}
	in.Teams = snap.TeamNames()
	in.Current, in.Company = insight.CollectStats(snap, cur)
	in.Previous, in.CompanyPrevious = insight.CollectStats(snap, prev)
	return in, nil
}

func (s *Service) insightFilter(
	ctx context.Context, iq InsightQuery,
) (insight.Filter, error) {
	f := insight.Filter{Teams: iq.Teams, Severities: iq.Severities}
	if iq.IncludeDismissed {
		return f, nil
	}
	dismissed, err := s.store.DismissedInsights(ctx)
	if err != nil {
		return f, unavailable("loading dismissed insights", err)
	}
	f.Dismissed = dismissed
	return f, nil
}

// Insights returns the heuristic insights for the scope, filtered
// and ranked. Limit <= 0 keeps every insight.
func (s *Service) Insights(
	ctx context.Context, iq InsightQuery,
) ([]insight.Insight, error) {
	in, err := s.insightInput(ctx, iq.Query)
	if err != nil {
		return []insight.Insight{}, degrade(ctx, "insights", err)
	}
	f, err := s.insightFilter(ctx, iq)
	if err != nil {
		return []insight.Insight{}, degrade(ctx, "insights", err)
	}
	return insight.TopN(f.Apply(insight.Generate(in)), iq.Limit), nil
}

// Synthesize asks the configured agent for insights, falling back
// to the heuristics. Filters apply before the list is cut to the
// limit.
func (s *Service) Synthesize(
	ctx context.Context, iq InsightQuery,
) (insight.Synthesis, error) {
	in, err := s.insightInput(ctx, iq.Query)
	if err != nil {
		empty := insight.Synthesis{Insights: []insight.Insight{}, Source: "heuristic"}
		return empty, degrade(ctx, "insight synthesis", err)
	}
	f, err := s.insightFilter(ctx, iq)
	if err != nil {
		if err := degrade(ctx, "insight synthesis", err); err != nil {
			return insight.Synthesis{}, err
		}
	}
	res := insight.Synthesize(
		ctx, s.opts.RunAgent, s.opts.AgentCommand, in, f, iq.Limit,
	)
	res.Insights = insight.Rank(res.Insights)
	return res, nil
}
