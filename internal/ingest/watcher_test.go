package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func startTestWatcher(
	t *testing.T, onChange func([]string),
) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWatcher(50*time.Millisecond, onChange)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if _, _, err := w.WatchRecursive(dir); err != nil {
		t.Fatalf("WatchRecursive: %v", err)
	}
	w.Start()
	t.Cleanup(w.Stop)
	return w, dir
}

func waitWithTimeout(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal(msg)
	}
}

// pollUntil polls fn until it returns true or the timeout expires.
func pollUntil(
	t *testing.T, timeout, interval time.Duration, msg string, fn func() bool,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(interval)
	}
	if fn() {
		return
	}
	t.Fatal(msg)
}

func newMockWatcher(
	debounce time.Duration, onChange func([]string),
) *Watcher {
	return &Watcher{
		debounce: debounce,
		pending:  make(map[string]time.Time),
		onChange: onChange,
		now:      time.Now,
	}
}

func setPending(w *Watcher, path string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = at
}

func pendingPaths(w *Watcher) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for p := range w.pending {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func TestWatcherReportsExportWrites(t *testing.T) {
	var gotPaths []string
	done := make(chan struct{})
	var once gosync.Once

	_, dir := startTestWatcher(t, func(paths []string) {
		once.Do(func() {
			gotPaths = paths
			close(done)
		})
	})

	path := filepath.Join(dir, "export.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitWithTimeout(t, done, 5*time.Second, "timed out waiting for onChange")

	if !slices.Contains(gotPaths, path) {
		t.Fatalf("onChange paths = %v, want %s", gotPaths, path)
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	var mu gosync.Mutex
	var all []string

	w, dir := startTestWatcher(t, func(paths []string) {
		mu.Lock()
		all = append(all, paths...)
		mu.Unlock()
	})

	sub := filepath.Join(dir, "batch")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	pollUntil(t, 5*time.Second, 10*time.Millisecond,
		"timed out waiting for watcher to add new directory",
		func() bool { return slices.Contains(w.watcher.WatchList(), sub) },
	)

	nested := filepath.Join(sub, "nested.jsonl")
	if err := os.WriteFile(nested, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pollUntil(t, 5*time.Second, 50*time.Millisecond,
		"timed out waiting for nested export",
		func() bool {
			mu.Lock()
			defer mu.Unlock()
			return slices.Contains(all, nested)
		},
	)
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, _ := startTestWatcher(t, func([]string) {})

	var wg gosync.WaitGroup
	for range 5 {
		wg.Go(w.Stop)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	waitWithTimeout(t, done, 5*time.Second, "concurrent Stop() timed out")
}

func TestHandleEventFiltersEvents(t *testing.T) {
	w := newMockWatcher(0, nil)

	w.handleEvent(fsnotify.Event{Name: "a.jsonl", Op: fsnotify.Chmod})
	w.handleEvent(fsnotify.Event{Name: "a.jsonl", Op: fsnotify.Remove})
	w.handleEvent(fsnotify.Event{Name: "notes.txt", Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: "b.jsonl", Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: "c.JSONL", Op: fsnotify.Create})

	got := pendingPaths(w)
	want := []string{"b.jsonl", "c.JSONL"}
	if !slices.Equal(got, want) {
		t.Errorf("pending = %v, want %v", got, want)
	}
}

func TestHandleEventQueuesExportsInNewDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "drop")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(sub, "x.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newMockWatcher(0, nil)
	w.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Create})

	if got := pendingPaths(w); !slices.Equal(got, []string{path}) {
		t.Errorf("pending = %v, want [%s]", got, path)
	}
}

func TestFlushRespectsDebounce(t *testing.T) {
	var called atomic.Bool
	w := newMockWatcher(100*time.Millisecond,
		func([]string) { called.Store(true) },
	)
	setPending(w, "/tmp/recent.jsonl", time.Now())
	w.flush()

	if called.Load() {
		t.Fatal("flush should not call onChange before debounce")
	}
	if n := len(pendingPaths(w)); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
}

func TestFlushSortsReadyPaths(t *testing.T) {
	var got []string
	w := newMockWatcher(10*time.Millisecond,
		func(paths []string) { got = paths },
	)
	old := time.Now().Add(-time.Second)
	setPending(w, "/tmp/b.jsonl", old)
	setPending(w, "/tmp/a.jsonl", old)
	setPending(w, "/tmp/new.jsonl", time.Now().Add(time.Hour))

	w.flush()

	if want := []string{"/tmp/a.jsonl", "/tmp/b.jsonl"}; !slices.Equal(got, want) {
		t.Errorf("flushed = %v, want %v", got, want)
	}
	if rest := pendingPaths(w); !slices.Equal(rest, []string{"/tmp/new.jsonl"}) {
		t.Errorf("pending after flush = %v", rest)
	}
}

func TestNewWatcherValidation(t *testing.T) {
	if _, err := NewWatcher(time.Second, nil); !errors.Is(err, os.ErrInvalid) {
		t.Errorf("nil onChange: err = %v, want os.ErrInvalid", err)
	}
	if _, err := NewWatcher(0, func([]string) {}); !errors.Is(err, os.ErrInvalid) {
		t.Errorf("zero debounce: err = %v, want os.ErrInvalid", err)
	}
}
