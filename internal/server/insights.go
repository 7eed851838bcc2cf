package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/wesm/teampulse/internal/analytics"
	"github.com/wesm/teampulse/internal/dashboard"
)

const (
	maxInsightLimit = 100
	generateTimeout = 10 * time.Minute
)

// parseInsightQuery reads the shared scope plus the insight
// filters.
func (s *Server) parseInsightQuery(
	r *http.Request,
) (dashboard.InsightQuery, error) {
	v := r.URL.Query()
	q, err := s.query(v)
	if err != nil {
		return dashboard.InsightQuery{}, err
	}
	iq := dashboard.InsightQuery{
		Query: q,
		Teams: splitList(v.Get("teams")),
	}
	for _, raw := range splitList(v.Get("severities")) {
		sev, err := analytics.ParseRiskLevel(raw)
		if err != nil {
			return iq, err
		}
		iq.Severities = append(iq.Severities, sev)
	}
	switch strings.ToLower(v.Get("include_dismissed")) {
	case "1", "true", "yes":
		iq.IncludeDismissed = true
	}
	if iq.Limit, err = parseLimit(v, 0, maxInsightLimit); err != nil {
		return iq, err
	}
	return iq, nil
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	iq, err := s.parseInsightQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.dash.Insights(r.Context(), iq)
	writeView(w, items, err)
}

func (s *Server) handleGenerateInsights(
	w http.ResponseWriter, r *http.Request,
) {
	iq, err := s.parseInsightQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	res, err := s.dash.Synthesize(ctx, iq)
	if err != nil {
		if handleContextError(w, err) {
			writeError(w, http.StatusGatewayTimeout, "insight generation cancelled")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res.Error != "" {
		log.Printf("insight agent fell back to heuristics: %s", res.Error)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDismissInsight(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing insight id")
		return
	}
	if err := s.db.DismissInsight(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreInsight(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found, err := s.db.RestoreInsight(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "insight not dismissed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
