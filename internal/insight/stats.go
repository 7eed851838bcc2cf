package insight

import (
	"math"

	"github.com/wesm/teampulse/internal/analytics"
)

// Stats summarizes one team's activity over one period.
type Stats struct {
	Messages            int     `json:"messages"`
	AvgSentiment        float64 `json:"avgSentiment"`
	HighShare           float64 `json:"highShare"`
	AvgThreadLength     float64 `json:"avgThreadLength"`
	ReactionsPerMessage float64 `json:"reactionsPerMessage"`
	TopSenderShare      float64 `json:"topSenderShare"`
}

type statsAcc struct {
	sum       float64
	n         int
	high      int
	reactions int
	senders   map[string]int
	threads   map[string]bool
}

func newStatsAcc() *statsAcc {
	return &statsAcc{
		senders: make(map[string]int),
		threads: make(map[string]bool),
	}
}

func (a *statsAcc) add(m analytics.Message, threadKey string) {
	s := max(-1, min(1, m.Sentiment))
	a.sum += s
	a.n++
	if analytics.Classify(s) == analytics.RiskHigh {
		a.high++
	}
	for _, r := range m.Reactions {
		a.reactions += r.Weight()
	}
	a.senders[m.UserID]++
	a.threads[threadKey] = true
}

func (a *statsAcc) stats(threadLen map[string]int) Stats {
	if a.n == 0 {
		return Stats{}
	}
	n := float64(a.n)
	top := 0
	for _, c := range a.senders {
		top = max(top, c)
	}
	total := 0
	for k := range a.threads {
		total += threadLen[k]
	}
	return Stats{
		Messages:            a.n,
		AvgSentiment:        round2(a.sum / n),
		HighShare:           round2(float64(a.high) / n),
		AvgThreadLength:     round2(float64(total) / float64(len(a.threads))),
		ReactionsPerMessage: round2(float64(a.reactions) / n),
		TopSenderShare:      round2(float64(top) / n),
	}
}

// CollectStats computes per-team statistics and the company-wide
// rollup over messages inside w. A team's thread length is the
// mean size of the threads its members posted in.
func CollectStats(
	snap analytics.Snapshot, w analytics.Window,
) (map[string]Stats, Stats) {
	threadLen := make(map[string]int)
	teams := make(map[string]*statsAcc)
	company := newStatsAcc()

	for _, ch := range snap.Channels {
		for _, th := range ch.Threads {
			key := ch.ID + "/" + th.ID
			for _, m := range th.Messages {
				if !w.Contains(m.Timestamp) {
					continue
				}
				threadLen[key]++
				team := snap.TeamOf(m.UserID)
				acc, ok := teams[team]
				if !ok {
					acc = newStatsAcc()
					teams[team] = acc
				}
				acc.add(m, key)
				company.add(m, key)
			}
		}
	}

	out := make(map[string]Stats, len(teams))
	for name, acc := range teams {
		out[name] = acc.stats(threadLen)
	}
	return out, company.stats(threadLen)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
