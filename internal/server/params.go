package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/dashboard"
)

// splitList splits a comma-separated parameter, trimming blanks.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseQuery reads the range, channel_ids and timezone parameters
// shared by the dashboard endpoints.
func parseQuery(v url.Values) (dashboard.Query, error) {
	var q dashboard.Query
	if raw := v.Get("range"); raw != "" {
		r, err := analytics.ParseTimeRange(raw)
		if err != nil {
			return q, err
		}
		q.Range = r
	}
	q.ChannelIDs = splitList(v.Get("channel_ids"))
	if tz := v.Get("timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return q, fmt.Errorf("invalid timezone: %q", tz)
		}
		q.Location = loc
	}
	return q, nil
}

// parseLimit returns the limit parameter or def when absent. Values
// outside [1, max] are rejected.
func parseLimit(v url.Values, def, maxLimit int) (int, error) {
	raw := v.Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return 0, fmt.Errorf(
			"invalid limit: must be an integer between 1 and %d", maxLimit,
		)
	}
	return n, nil
}

// query parses the shared parameters, defaulting the timezone to
// the configured one.
func (s *Server) query(v url.Values) (dashboard.Query, error) {
	q, err := parseQuery(v)
	if err != nil {
		return q, err
	}
	if q.Location == nil {
		q.Location = s.cfg.Location()
	}
	return q, nil
}
