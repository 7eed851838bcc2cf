package ingest

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches an import directory tree and reports export
// files that were written, after they have been quiet for the
// debounce period.
type Watcher struct {
	onChange func(paths []string)
	watcher  *fsnotify.Watcher
	debounce time.Duration
	pending  map[string]time.Time
	mu       gosync.Mutex
	stop     chan struct{}
	done     chan struct{}
	stopOnce gosync.Once
	now      func() time.Time
}

// NewWatcher creates a watcher that calls onChange with the
// changed export paths.
func NewWatcher(
	debounce time.Duration, onChange func(paths []string),
) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is nil: %w", os.ErrInvalid)
	}
	if debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive: %w", os.ErrInvalid)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		onChange: onChange,
		watcher:  fsw,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}, nil
}

// WatchRecursive adds root and all of its subdirectories. It
// returns the number of directories watched and those that could
// not be added.
func (w *Watcher) WatchRecursive(root string) (watched, unwatched int, err error) {
	err = filepath.WalkDir(root,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if addErr := w.watcher.Add(path); addErr != nil {
					unwatched++
				} else {
					watched++
				}
			}
			return nil
		})
	return watched, unwatched, err
}

// Start processes events in a goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop stops the watcher and waits for the loop to exit. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

// handleEvent records writes to export files and starts watching
// newly created directories. Exports copied into a new directory
// before it was watched are picked up by the walk.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 && w.watchIfDir(event.Name) {
		return
	}
	if !isExport(event.Name) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = w.now()
	w.mu.Unlock()
}

func (w *Watcher) watchIfDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if w.watcher != nil {
		_, _, _ = w.WatchRecursive(path)
	}
	files, _ := Discover(path)
	now := w.now()
	w.mu.Lock()
	for _, f := range files {
		w.pending[f] = now
	}
	w.mu.Unlock()
	return true
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	now := w.now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if len(ready) > 0 {
		slices.Sort(ready)
		log.Printf("watcher: %d export(s) changed, importing", len(ready))
		w.onChange(ready)
	}
}
