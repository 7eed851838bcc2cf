package analytics

import (
	"cmp"
	"slices"
)

// EntityTotals builds one row per entity of the perspective. The
// snapshot is the base (trailing week) window; every field is then
// multiplied by the range's fixed multiplier, so totals are
// non-decreasing in range length by construction. This normalizes
// to per-range magnitude rather than re-aggregating a longer
// lookback.
func EntityTotals(
	snap Snapshot, p Perspective, r TimeRange,
) []EntityTotalMetric {
	var rows []EntityTotalMetric
	switch p {
	case PerspectiveChannel:
		rows = channelTotals(snap)
	case PerspectiveEmployee:
		rows = employeeTotals(snap)
	case PerspectiveTeam:
		rows = teamTotals(snap)
	default:
		return []EntityTotalMetric{}
	}
	scale := r.Multiplier()
	for i := range rows {
		rows[i].Messages *= scale
		rows[i].Threads *= scale
		rows[i].Responses *= scale
		rows[i].Emojis *= scale
	}
	return rows
}

func reactionWeight(m Message) int {
	n := 0
	for _, r := range m.Reactions {
		n += r.Weight()
	}
	return n
}

func channelTotals(snap Snapshot) []EntityTotalMetric {
	rows := make([]EntityTotalMetric, 0, len(snap.Channels))
	for _, ch := range snap.Channels {
		row := EntityTotalMetric{
			ID:   ch.ID,
			Name: "#" + ch.DisplayName(),
		}
		for _, th := range ch.Threads {
			if len(th.Messages) > 0 {
				row.Threads++
			}
			for _, m := range th.Messages {
				row.Messages++
				if m.ID != th.RootMessageID {
					row.Responses++
				}
				row.Emojis += reactionWeight(m)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// employeeTotals attributes messages to their authors: threads
// counts roots they started, responses counts their replies, and
// emojis counts reactions their messages received.
func employeeTotals(snap Snapshot) []EntityTotalMetric {
	ids := snap.people()
	labels := snap.userLabels()
	index := make(map[string]int, len(ids))
	rows := make([]EntityTotalMetric, len(ids))
	for i, id := range ids {
		index[id] = i
		rows[i] = EntityTotalMetric{ID: id, Name: labelFor(labels, id)}
	}
	snap.eachMessage(func(_ Channel, th Thread, m Message) {
		i, ok := index[m.UserID]
		if !ok {
			return
		}
		rows[i].Messages++
		if m.ID == th.RootMessageID {
			rows[i].Threads++
		} else {
			rows[i].Responses++
		}
		rows[i].Emojis += reactionWeight(m)
	})
	return rows
}

// teamTotals sums employee rows by team, ordered by team name.
func teamTotals(snap Snapshot) []EntityTotalMetric {
	byTeam := make(map[string]*EntityTotalMetric)
	for _, emp := range employeeTotals(snap) {
		name := snap.TeamOf(emp.ID)
		row, ok := byTeam[name]
		if !ok {
			row = &EntityTotalMetric{ID: TeamID(name), Name: name}
			byTeam[name] = row
		}
		row.Messages += emp.Messages
		row.Threads += emp.Threads
		row.Responses += emp.Responses
		row.Emojis += emp.Emojis
	}
	rows := make([]EntityTotalMetric, 0, len(byTeam))
	for _, row := range byTeam {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b EntityTotalMetric) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return rows
}

// Value returns the field selected by key.
func (m EntityTotalMetric) Value(key MetricKey) int {
	switch key {
	case MetricThreads:
		return m.Threads
	case MetricResponses:
		return m.Responses
	case MetricEmojis:
		return m.Emojis
	default:
		return m.Messages
	}
}

// TopN returns the rows sorted descending by key, keeping input
// order for ties, truncated to n. n <= 0 keeps every row. The
// input slice is not modified.
func TopN(
	rows []EntityTotalMetric, key MetricKey, n int,
) []EntityTotalMetric {
	out := slices.Clone(rows)
	if out == nil {
		out = []EntityTotalMetric{}
	}
	slices.SortStableFunc(out, func(a, b EntityTotalMetric) int {
		return b.Value(key) - a.Value(key)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
