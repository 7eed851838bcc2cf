package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

// jsonError is the standard JSON error response.
type jsonError struct {
	Error string `json:"error"`
}

// withTimeout bounds a handler by the configured write timeout.
// A timed-out request gets a 503 with a JSON body.
func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	msgBytes, _ := json.Marshal(jsonError{Error: "request timed out"})

	inner := h
	if s.handlerDelay > 0 {
		delay := s.handlerDelay
		inner = func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(delay)
			h(w, r)
		}
	}
	timeout := s.cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	handler := http.TimeoutHandler(inner, timeout, string(msgBytes))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(&contentTypeWrapper{
			ResponseWriter: w,
			contentType:    "application/json",
			triggerStatus:  http.StatusServiceUnavailable,
		}, r)
	})
}

// contentTypeWrapper sets Content-Type when the trigger status is
// written without one.
type contentTypeWrapper struct {
	http.ResponseWriter
	contentType   string
	triggerStatus int
	wroteHeader   bool
}

func (w *contentTypeWrapper) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	if code == w.triggerStatus &&
		w.ResponseWriter.Header().Get("Content-Type") == "" {
		w.ResponseWriter.Header().Set("Content-Type", w.contentType)
	}
	w.ResponseWriter.WriteHeader(code)
	w.wroteHeader = true
}

func (w *contentTypeWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
