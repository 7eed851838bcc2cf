package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wesm/teampulse/internal/config"
	"github.com/wesm/teampulse/internal/dbtest"
	"github.com/wesm/teampulse/internal/ingest"
)

func withHandlerDelay(d time.Duration) Option {
	return func(s *Server) { s.handlerDelay = d }
}

// testServer creates a Server for internal tests with the given
// write timeout.
func testServer(t *testing.T, writeTimeout time.Duration) *Server {
	return testServerOpts(t, writeTimeout)
}

func testServerOpts(
	t *testing.T, writeTimeout time.Duration, opts ...Option,
) *Server {
	t.Helper()
	database := dbtest.OpenTestDB(t)
	cfg := config.Config{
		Host:         "127.0.0.1",
		WriteTimeout: writeTimeout,
	}
	engine := ingest.NewEngine(database, t.TempDir())
	return New(cfg, database, engine, opts...)
}

// assertTimeoutResponse checks for a 503 JSON "request timed out"
// response.
func assertTimeoutResponse(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf(
			"status = %d, want %d",
			resp.StatusCode, http.StatusServiceUnavailable,
		)
	}
	body, _ := io.ReadAll(resp.Body)
	var je jsonError
	if err := json.Unmarshal(body, &je); err != nil {
		t.Fatalf("body is not valid JSON: %v (body=%q)", err, string(body))
	}
	if je.Error != "request timed out" {
		t.Errorf("error = %q, want %q", je.Error, "request timed out")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// isTimeoutResponse returns true when the response is a 503
// JSON timeout.
func isTimeoutResponse(t *testing.T, resp *http.Response) bool {
	t.Helper()
	if resp.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	body, _ := io.ReadAll(resp.Body)
	var je jsonError
	if json.Unmarshal(body, &je) != nil {
		return false
	}
	return je.Error == "request timed out"
}

func assertRecorderStatus(
	t *testing.T, w *httptest.ResponseRecorder, code int,
) {
	t.Helper()
	if w.Code != code {
		t.Fatalf(
			"expected status %d, got %d: %s",
			code, w.Code, w.Body.String(),
		)
	}
}
