package analytics

// BurnoutSeries counts burnout warnings per entity and trend
// bucket. A warning is one message whose own sentiment classifies
// as High risk; teams and people use the same rule. Every series
// carries the same bucket labels.
func BurnoutSeries(
	snap Snapshot, g BurnoutGrouping, buckets []Bucket,
) BurnoutSeriesResponse {
	type entity struct {
		key  string
		name string
	}
	var entities []entity
	var keyOf func(Message) string
	label := "People"

	if g == BurnoutByTeam {
		label = "Teams"
		for _, n := range snap.TeamNames() {
			entities = append(entities, entity{key: n, name: n})
		}
		keyOf = func(m Message) string { return snap.TeamOf(m.UserID) }
	} else {
		labels := snap.userLabels()
		used := make(map[string]bool)
		for _, id := range snap.people() {
			name := labelFor(labels, id)
			// Series are keyed by name; two people can share one.
			if used[name] {
				name += " (" + id + ")"
			}
			used[name] = true
			entities = append(entities, entity{key: id, name: name})
		}
		keyOf = func(m Message) string { return m.UserID }
	}

	index := make(map[string]int, len(entities))
	counts := make([][]int, len(entities))
	for i, e := range entities {
		index[e.key] = i
		counts[i] = make([]int, len(buckets))
	}
	snap.eachMessage(func(_ Channel, _ Thread, m Message) {
		if Classify(clampSentiment(m.Sentiment)) != RiskHigh {
			return
		}
		i, ok := index[keyOf(m)]
		if !ok {
			return
		}
		if c := bucketIndex(buckets, m.Timestamp); c >= 0 {
			counts[i][c]++
		}
	})

	resp := BurnoutSeriesResponse{
		Label:  label,
		Series: make(map[string][]BurnoutPoint, len(entities)),
		Order:  make([]string, len(entities)),
	}
	for i, e := range entities {
		points := make([]BurnoutPoint, len(buckets))
		for j, b := range buckets {
			points[j] = BurnoutPoint{Label: b.Label, Value: counts[i][j]}
		}
		resp.Series[e.name] = points
		resp.Order[i] = e.name
	}
	return resp
}
