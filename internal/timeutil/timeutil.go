// Package timeutil formats and parses the timestamps stored in
// the database and exchanged with exports.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format returns t as RFC3339Nano in UTC, or "" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Ptr is like Format but returns nil for the zero time.
func Ptr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := Format(t)
	return &s
}

// ParseSlackTS parses a Slack message timestamp such as
// "1718454645.000200" (seconds.micros since the epoch).
func ParseSlackTS(ts string) (time.Time, error) {
	secStr, fracStr, _ := strings.Cut(strings.TrimSpace(ts), ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing slack ts %q: %w", ts, err)
	}
	var nanos int64
	if fracStr != "" {
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		frac, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing slack ts %q: %w", ts, err)
		}
		for range 9 - len(fracStr) {
			frac *= 10
		}
		nanos = frac
	}
	return time.Unix(sec, nanos).UTC(), nil
}

// Parse accepts either RFC3339 or a Slack epoch timestamp.
func Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return ParseSlackTS(s)
}
