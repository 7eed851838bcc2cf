package server

import (
	"net/http"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/dashboard"
)

const (
	defaultEmojiLimit  = 10
	maxEmojiLimit      = 50
	maxEntityLimit     = 500
	defaultEntityLimit = 0 // all rows
)

func (s *Server) handleEntityTotals(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q, err := s.query(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tq := dashboard.TotalsQuery{Query: q}
	if raw := v.Get("perspective"); raw != "" {
		if tq.Perspective, err = analytics.ParsePerspective(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if raw := v.Get("metric"); raw != "" {
		if tq.Metric, err = analytics.ParseMetricKey(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if tq.Limit, err = parseLimit(v, defaultEntityLimit, maxEntityLimit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.dash.EntityTotals(r.Context(), tq)
	writeView(w, rows, err)
}

func (s *Server) handleTopEmojis(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q, err := s.query(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(v, defaultEmojiLimit, maxEmojiLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.dash.TopEmojis(r.Context(), q, limit)
	writeView(w, stats, err)
}
