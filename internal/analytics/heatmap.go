package analytics

// heatmapRow is one entity row with the key used to match messages.
type heatmapRow struct {
	key   string
	label string
}

// heatmapRows returns rows in canonical order plus a function
// mapping a message to its row key.
func heatmapRows(
	snap Snapshot, g Grouping,
) ([]heatmapRow, func(Channel, Message) string) {
	switch g {
	case GroupTeams:
		names := snap.TeamNames()
		rows := make([]heatmapRow, len(names))
		for i, n := range names {
			rows[i] = heatmapRow{key: n, label: n}
		}
		return rows, func(_ Channel, m Message) string {
			return snap.TeamOf(m.UserID)
		}
	case GroupPeople:
		ids := snap.people()
		labels := snap.userLabels()
		rows := make([]heatmapRow, len(ids))
		for i, id := range ids {
			rows[i] = heatmapRow{key: id, label: labelFor(labels, id)}
		}
		return rows, func(_ Channel, m Message) string {
			return m.UserID
		}
	default:
		rows := make([]heatmapRow, len(snap.Channels))
		for i, ch := range snap.Channels {
			rows[i] = heatmapRow{key: ch.ID, label: ch.DisplayName()}
		}
		return rows, func(ch Channel, _ Message) string {
			return ch.ID
		}
	}
}

// heatCell accumulates one cell.
type heatCell struct {
	sentiment sentimentSum
	threads   map[string]struct{}
}

// BuildHeatmap builds a grouping × bucket matrix. Sentiment cells
// hold the bucket average (0 when empty). Messages and threads
// cells hold the bucket count divided by the row's busiest bucket,
// so 1 marks the peak and an all-zero row stays zero.
func BuildHeatmap(
	snap Snapshot, g Grouping, metric HeatmapMetric, buckets []Bucket,
) HeatmapMatrix {
	rows, keyOf := heatmapRows(snap, g)
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		index[r.key] = i
	}

	cells := make([][]heatCell, len(rows))
	for i := range cells {
		cells[i] = make([]heatCell, len(buckets))
	}
	snap.eachMessage(func(ch Channel, th Thread, m Message) {
		r, ok := index[keyOf(ch, m)]
		if !ok {
			return
		}
		c := bucketIndex(buckets, m.Timestamp)
		if c < 0 {
			return
		}
		cell := &cells[r][c]
		cell.sentiment.add(m.Sentiment)
		if cell.threads == nil {
			cell.threads = make(map[string]struct{})
		}
		cell.threads[ch.ID+"/"+th.ID] = struct{}{}
	})

	out := HeatmapMatrix{
		Rows:   make([]string, len(rows)),
		Cols:   Labels(buckets),
		Values: make([][]float64, len(rows)),
	}
	for i, r := range rows {
		out.Rows[i] = r.label
		out.Values[i] = cellValues(cells[i], metric)
	}
	return out
}

func cellValues(row []heatCell, metric HeatmapMetric) []float64 {
	vals := make([]float64, len(row))
	if metric == HeatSentiment {
		for j, c := range row {
			vals[j] = c.sentiment.mean()
		}
		return vals
	}

	counts := make([]int, len(row))
	peak := 0
	for j, c := range row {
		if metric == HeatThreads {
			counts[j] = len(c.threads)
		} else {
			counts[j] = c.sentiment.n
		}
		peak = max(peak, counts[j])
	}
	if peak == 0 {
		return vals
	}
	for j, n := range counts {
		vals[j] = round2(float64(n) / float64(peak))
	}
	return vals
}
