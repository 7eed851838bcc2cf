package analytics

// SentimentTrend averages message sentiment per trend bucket
// across every channel in the snapshot. Empty buckets report 0/0.
// A snapshot with no channels yields an empty series.
func SentimentTrend(snap Snapshot, buckets []Bucket) []SentimentPoint {
	if len(snap.Channels) == 0 {
		return []SentimentPoint{}
	}
	sums := make([]sentimentSum, len(buckets))
	snap.eachMessage(func(_ Channel, _ Thread, m Message) {
		if i := bucketIndex(buckets, m.Timestamp); i >= 0 {
			sums[i].add(m.Sentiment)
		}
	})

	out := make([]SentimentPoint, len(buckets))
	for i, b := range buckets {
		out[i] = SentimentPoint{
			Date:         b.End.Format("2006-01-02"),
			Label:        b.Label,
			AvgSentiment: sums[i].mean(),
			MessageCount: sums[i].n,
		}
	}
	return out
}
