package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/timeutil"
)

// DefaultLimit is used when a caller does not bound the result.
const DefaultLimit = 5

const defaultConfidence = 0.7

const defaultRecommendation = "Schedule a short retro to identify one " +
	"process improvement and assign an owner."

// Synthesis is the outcome of one synthesis pass.
type Synthesis struct {
	Insights []Insight `json:"insights"`
	Source   string    `json:"source"` // agent|heuristic
	Agent    string    `json:"agent,omitempty"`
	Model    string    `json:"model,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type promptTeam struct {
	Team     string `json:"team"`
	Current  Stats  `json:"current"`
	Previous Stats  `json:"previous"`
}

// BuildPrompt renders per-team period statistics and the task for
// the agent.
func BuildPrompt(in Input, limit int) string {
	var teams []promptTeam
	for _, it := range Generate(in) {
		if it.Scope != ScopeTeam {
			continue
		}
		teams = append(teams, promptTeam{
			Team:     it.Team,
			Current:  in.Current[it.Team],
			Previous: in.Previous[it.Team],
		})
	}
	data, _ := json.Marshal(teams)

	var b strings.Builder
	b.WriteString(
		"You are an organizational coach creating concise, actionable " +
			"insights for team managers. Focus on communication patterns, " +
			"engagement, workload, recognition, sentiment, and burnout risk.\n\n",
	)
	fmt.Fprintf(&b, "Range: %s\n", in.Range)
	fmt.Fprintf(&b, "Team statistics (current vs previous %s): %s\n\n",
		in.Range, data)
	fmt.Fprintf(&b,
		"Task: produce at most %d team-level insights as a JSON array. "+
			"Each object has team, title, summary, recommendation, "+
			"severity (Low, Medium, High), category (one of burnout, "+
			"engagement, communication, recognition, workload, sentiment), "+
			"and confidence in [0,1]. Respond with JSON only.\n",
		limit,
	)
	return b.String()
}

// extractJSON trims code fences and prose around the first JSON
// array or object in s.
func extractJSON(s string) string {
	start := strings.IndexAny(s, "[{")
	end := strings.LastIndexAny(s, "]}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// parseDrafts accepts either a bare array or an object with an
// "insights" array.
func parseDrafts(content string) ([]gjson.Result, error) {
	js := extractJSON(content)
	if js == "" || !gjson.Valid(js) {
		return nil, fmt.Errorf("agent output is not JSON")
	}
	root := gjson.Parse(js)
	if root.IsObject() {
		root = root.Get("insights")
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("agent output has no insights array")
	}
	return root.Array(), nil
}

// normalize fills defaults and validates enums on one draft.
func normalize(d gjson.Result, idx int, in Input) Insight {
	channelID := d.Get("channelId").String()
	team := d.Get("team").String()
	if team == "" {
		team = channelID
	}
	if team == "" {
		team = "team"
	}

	cat := Category(strings.ToLower(d.Get("category").String()))
	if !ValidCategories[cat] {
		cat = CategorySentiment
	}
	sev, err := analytics.ParseRiskLevel(d.Get("severity").String())
	if err != nil {
		sev = analytics.RiskMedium
	}
	conf := defaultConfidence
	if c := d.Get("confidence"); c.Type == gjson.Number {
		conf = max(0, min(1, c.Float()))
	}

	orDefault := func(path, def string) string {
		if v := strings.TrimSpace(d.Get(path).String()); v != "" {
			return v
		}
		return def
	}

	var tags []string
	for _, t := range d.Get("tags").Array() {
		if s := t.String(); s != "" {
			tags = append(tags, s)
		}
	}
	if len(tags) == 0 {
		tags = []string{team, string(cat), string(in.Range)}
	}

	it := Insight{
		ID: orDefault("id", fmt.Sprintf(
			"insight-%s-%s-%d", slug(team), in.Range, idx,
		)),
		Scope:          ScopeTeam,
		Team:           team,
		ChannelID:      channelID,
		Title:          orDefault("title", fmt.Sprintf("%s: %s insight", team, titleCase(cat))),
		Summary:        orDefault("summary", fmt.Sprintf("%s shows notable patterns in %s this %s.", team, cat, in.Range)),
		Recommendation: orDefault("recommendation", defaultRecommendation),
		Severity:       sev,
		Category:       cat,
		Confidence:     conf,
		Tags:           tags,
		CreatedAt:      orDefault("createdAt", timeutil.Format(in.Now)),
		Range:          in.Range,
	}
	if cur, ok := in.Current[team]; ok {
		prev := in.Previous[team]
		it.MetricContext = &MetricContext{
			AvgSentimentDelta:  sentimentDelta(cur, prev),
			MessageVolumeDelta: volumeDelta(cur, prev),
		}
	}
	return it
}

// Synthesize asks the agent for up to limit insights, normalizes
// them, and tops up with heuristic insights. Only insights passing
// f are kept, so a filtered request still fills up to limit. Any
// agent failure falls back to the heuristic ranking.
func Synthesize(
	ctx context.Context, run GenerateFunc, command []string,
	in Input, f Filter, limit int,
) Synthesis {
	if limit <= 0 {
		limit = DefaultLimit
	}
	heuristic := TopN(f.Apply(Generate(in)), 0)
	fallback := func(err error) Synthesis {
		log.Printf("insight synthesis: using heuristics: %v", err)
		return Synthesis{
			Insights: truncate(heuristic, limit),
			Source:   "heuristic",
			Error:    err.Error(),
		}
	}
	if len(heuristic) == 0 {
		return Synthesis{Insights: []Insight{}, Source: "heuristic"}
	}
	if run == nil || len(command) == 0 {
		return fallback(fmt.Errorf("no agent configured"))
	}

	res, err := run(ctx, command, BuildPrompt(in, limit))
	if err != nil {
		return fallback(err)
	}
	drafts, err := parseDrafts(res.Content)
	if err != nil {
		return fallback(err)
	}

	out := make([]Insight, 0, limit)
	seen := make(map[string]bool)
	for i, d := range drafts {
		if len(out) >= limit {
			break
		}
		it := normalize(d, i, in)
		if seen[it.ID] || !f.Match(it) {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	for _, it := range heuristic {
		if len(out) >= limit {
			break
		}
		if !seen[it.ID] {
			seen[it.ID] = true
			out = append(out, it)
		}
	}
	return Synthesis{
		Insights: out,
		Source:   "agent",
		Agent:    res.Agent,
		Model:    res.Model,
	}
}

func truncate(in []Insight, n int) []Insight {
	return slices.Clone(in[:min(n, len(in))])
}
