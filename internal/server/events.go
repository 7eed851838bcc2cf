package server

import (
	"net/http"
	gosync "sync"
	"time"

	"github.com/wesm/teampulse/internal/ingest"
)

const (
	heartbeatInterval = 30 * time.Second
	subscriberBuffer  = 8
)

type event struct {
	name string
	data any
}

// broker fans server events out to connected SSE clients. Slow
// clients miss events rather than blocking publishers.
type broker struct {
	mu       gosync.Mutex
	subs     map[chan event]struct{}
	done     chan struct{}
	stopOnce gosync.Once
}

func newBroker() *broker {
	return &broker{
		subs: make(map[chan event]struct{}),
		done: make(chan struct{}),
	}
}

func (b *broker) subscribe() (<-chan event, func()) {
	ch := make(chan event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
}

func (b *broker) publish(name string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event{name: name, data: data}:
		default:
		}
	}
}

func (b *broker) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// close ends every open stream.
func (b *broker) close() {
	b.stopOnce.Do(func() { close(b.done) })
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	stream, err := NewSSEStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	events, unsubscribe := s.events.subscribe()
	defer unsubscribe()

	if !stream.Send("ready", "{}") {
		return
	}
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.events.done:
			return
		case ev := <-events:
			if !stream.SendJSON(ev.name, ev.data) {
				return
			}
		case <-heartbeat.C:
			if !stream.Send("heartbeat", s.now().UTC().Format(time.RFC3339)) {
				return
			}
		}
	}
}

func (s *Server) handleTriggerImport(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "imports are disabled")
		return
	}
	stream, err := NewSSEStream(w)
	if err != nil {
		// Non-streaming fallback
		stats, err := s.engine.ImportAll(nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := s.engine.ImportAll(func(p ingest.Progress) {
		stream.SendJSON("progress", p)
	})
	if err != nil {
		stream.SendJSON("error", map[string]string{"message": err.Error()})
		return
	}
	stream.SendJSON("done", stats)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, _ *http.Request) {
	if s.engine == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	var last string
	if t := s.engine.LastImport(); !t.IsZero() {
		last = t.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":     true,
		"import_dir":  s.engine.ImportDirPath(),
		"last_import": last,
		"stats":       s.engine.LastStats(),
	})
}
