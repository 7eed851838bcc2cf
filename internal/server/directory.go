package server

import (
	"net/http"

	"github.com/wesm/teampulse/internal/db"
)

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	chs, err := s.db.ListChannels(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chs == nil {
		chs = []db.Channel{}
	}
	writeJSON(w, http.StatusOK, chs)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.db.ListUsers(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if users == nil {
		users = []db.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type selectionBody struct {
	ChannelIDs []string `json:"channelIds"`
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	ids, err := s.db.SelectedChannels(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, selectionBody{ChannelIDs: ids})
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var body selectionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.SetSelectedChannels(body.ChannelIDs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ids, err := s.db.SelectedChannels(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.events.publish("selection_updated", selectionBody{ChannelIDs: ids})
	writeJSON(w, http.StatusOK, selectionBody{ChannelIDs: ids})
}

func (s *Server) handleSyncDirectory(w http.ResponseWriter, r *http.Request) {
	if s.dir == nil {
		writeError(w, http.StatusServiceUnavailable,
			"directory sync is not configured")
		return
	}
	res, err := s.dir.Sync(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.events.publish("data_updated", res)
	writeJSON(w, http.StatusOK, res)
}
