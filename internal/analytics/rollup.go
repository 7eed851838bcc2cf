package analytics

import (
	"time"

	"github.com/wesm/teampulse/internal/timeutil"
)

// ChannelRollups builds one summary row per channel, preserving
// snapshot order. A nil window counts every message and thread.
// Risk is classified on the reported, rounded average so the two
// fields never disagree.
func ChannelRollups(snap Snapshot, window *Window) []ChannelMetric {
	out := make([]ChannelMetric, 0, len(snap.Channels))
	for _, ch := range snap.Channels {
		var sum sentimentSum
		var last time.Time
		threads := 0
		for _, th := range ch.Threads {
			active := false
			for _, m := range th.Messages {
				if window != nil && !window.Contains(m.Timestamp) {
					continue
				}
				active = true
				sum.add(m.Sentiment)
				if m.Timestamp.After(last) {
					last = m.Timestamp
				}
			}
			if active || window == nil {
				threads++
			}
		}
		avg := sum.mean()
		out = append(out, ChannelMetric{
			ID:           ch.ID,
			Name:         ch.DisplayName(),
			AvgSentiment: avg,
			Messages:     sum.n,
			Threads:      threads,
			LastActivity: timeutil.Format(last),
			Risk:         Classify(avg),
		})
	}
	return out
}

// ComputeKPI reduces channel rows to the headline numbers. Each
// channel counts once regardless of volume.
func ComputeKPI(rows []ChannelMetric) KPI {
	if len(rows) == 0 {
		return KPI{}
	}
	var total float64
	high := 0
	for _, r := range rows {
		total += r.AvgSentiment
		if r.Risk == RiskHigh {
			high++
		}
	}
	return KPI{
		AvgSentiment:      round2(total / float64(len(rows))),
		BurnoutRiskCount:  high,
		MonitoredChannels: len(rows),
	}
}
