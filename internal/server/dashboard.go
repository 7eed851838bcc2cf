package server

import (
	"net/http"

	"github.com/wesm/teampulse/internal/analytics"
)

// writeView writes a dashboard result. Store failures have already
// been degraded to empty values, so err is a context error or a
// bug.
func writeView(w http.ResponseWriter, v any, err error) {
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pts, err := s.dash.Trend(r.Context(), q)
	writeView(w, pts, err)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.dash.Channels(r.Context(), q)
	writeView(w, rows, err)
}

func (s *Server) handleKPI(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kpi, err := s.dash.KPI(r.Context(), q)
	writeView(w, kpi, err)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ov, err := s.dash.Overview(r.Context(), q)
	writeView(w, ov, err)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q, err := s.query(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	grouping := analytics.GroupChannels
	if raw := v.Get("grouping"); raw != "" {
		if grouping, err = analytics.ParseGrouping(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	metric := analytics.HeatSentiment
	if raw := v.Get("metric"); raw != "" {
		if metric, err = analytics.ParseHeatmapMetric(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	m, err := s.dash.Heatmap(r.Context(), q, grouping, metric)
	writeView(w, m, err)
}

func (s *Server) handleBurnout(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q, err := s.query(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group := analytics.BurnoutByTeam
	if raw := v.Get("group"); raw != "" {
		if group, err = analytics.ParseBurnoutGrouping(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	series, err := s.dash.Burnout(r.Context(), q, group)
	writeView(w, series, err)
}
