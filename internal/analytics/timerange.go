package analytics

import (
	"sort"
	"strconv"
	"time"
)

// BucketPolicy names one of the two bucketing schemes. Trend
// buckets are fixed-width lookback steps ending at now; heatmap
// buckets are calendar aligned so the columns stay compact.
type BucketPolicy int

const (
	PolicyTrend BucketPolicy = iota
	PolicyHeatmap
)

func (p BucketPolicy) String() string {
	if p == PolicyHeatmap {
		return "heatmap"
	}
	return "trend"
}

// Resolve returns the ordered, contiguous buckets for a range
// under the given policy. Buckets are computed in now's location.
func Resolve(r TimeRange, p BucketPolicy, now time.Time) []Bucket {
	if p == PolicyHeatmap {
		return HeatmapBuckets(r, now)
	}
	return TrendBuckets(r, now)
}

type trendStep struct {
	count int
	days  int
	label func(time.Time) string
}

var trendSteps = map[TimeRange]trendStep{
	RangeWeek:    {count: 7, days: 1, label: weekdayLabel},
	RangeMonth:   {count: 30, days: 1, label: dayLabel},
	RangeQuarter: {count: 12, days: 7, label: monthLabel},
	RangeYear:    {count: 12, days: 30, label: monthLabel},
}

func weekdayLabel(t time.Time) string { return t.Format("Mon") }
func dayLabel(t time.Time) string     { return strconv.Itoa(t.Day()) }
func monthLabel(t time.Time) string   { return t.Format("Jan") }

// TrendBuckets returns the lookback steps for the trend and
// burnout views. The last bucket ends at now and each label is
// taken from the bucket's end.
func TrendBuckets(r TimeRange, now time.Time) []Bucket {
	st, ok := trendSteps[r]
	if !ok {
		return nil
	}
	out := make([]Bucket, st.count)
	for i := range st.count {
		end := now.AddDate(0, 0, -(st.count-1-i)*st.days)
		out[i] = Bucket{
			Label: st.label(end),
			Start: end.AddDate(0, 0, -st.days),
			End:   end,
		}
	}
	return out
}

// monthDayRanges are the heatmap columns for a month view.
var monthDayRanges = []struct {
	label string
	from  int
}{
	{"1–7", 1}, {"8–14", 8}, {"15–21", 15}, {"22–28", 22}, {"29–31", 29},
}

// HeatmapBuckets returns calendar-aligned heatmap columns.
func HeatmapBuckets(r TimeRange, now time.Time) []Bucket {
	loc := now.Location()
	y, m, d := now.Date()
	switch r {
	case RangeWeek:
		today := time.Date(y, m, d, 0, 0, 0, 0, loc)
		out := make([]Bucket, 7)
		for i := range 7 {
			start := today.AddDate(0, 0, i-6)
			out[i] = Bucket{
				Label: weekdayLabel(start),
				Start: start,
				End:   start.AddDate(0, 0, 1),
			}
		}
		return out
	case RangeMonth:
		first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next := first.AddDate(0, 1, 0)
		out := make([]Bucket, len(monthDayRanges))
		for i, dr := range monthDayRanges {
			start := time.Date(y, m, dr.from, 0, 0, 0, 0, loc)
			end := next
			if i+1 < len(monthDayRanges) {
				end = time.Date(
					y, m, monthDayRanges[i+1].from, 0, 0, 0, 0, loc,
				)
			}
			// In a 28-day February the day-29 bucket normalizes
			// to the first of March and is empty.
			out[i] = Bucket{Label: dr.label, Start: start, End: end}
		}
		return out
	case RangeQuarter:
		return calendarMonths(y, m, 3, loc)
	case RangeYear:
		return calendarMonths(y, m, 12, loc)
	}
	return nil
}

// calendarMonths returns n whole-month buckets ending with the
// month containing (y, m).
func calendarMonths(
	y int, m time.Month, n int, loc *time.Location,
) []Bucket {
	out := make([]Bucket, n)
	for i := range n {
		start := time.Date(y, m-time.Month(n-1-i), 1, 0, 0, 0, 0, loc)
		out[i] = Bucket{
			Label: monthLabel(start),
			Start: start,
			End:   start.AddDate(0, 1, 0),
		}
	}
	return out
}

// Span returns the window covering all buckets.
func Span(buckets []Bucket) Window {
	if len(buckets) == 0 {
		return Window{}
	}
	return Window{
		Start: buckets[0].Start,
		End:   buckets[len(buckets)-1].End,
	}
}

// Labels returns the bucket labels in order.
func Labels(buckets []Bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Label
	}
	return out
}

// bucketIndex finds the bucket containing t, or -1.
func bucketIndex(buckets []Bucket, t time.Time) int {
	i := sort.Search(len(buckets), func(i int) bool {
		return buckets[i].End.After(t)
	})
	if i < len(buckets) && buckets[i].Contains(t) {
		return i
	}
	return -1
}
