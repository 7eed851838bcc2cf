package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/wesm/teampulse/internal/db"
)

const maxWorkers = 8

// Engine imports export files into the store. Runs are serialized;
// file parsing fans out across a small worker pool.
type Engine struct {
	db        *db.DB
	importDir string

	runMu     gosync.Mutex // serializes import runs
	mu        gosync.RWMutex
	lastRun   time.Time
	lastStats Stats
	listeners []func(Stats)

	// skipCache holds files that held no usable record, keyed by
	// path with the mtime at the time. The file is retried when
	// its mtime changes.
	skipMu    gosync.RWMutex
	skipCache map[string]int64
}

// NewEngine creates an import engine for importDir, pre-populating
// the skip cache from the database.
func NewEngine(database *db.DB, importDir string) *Engine {
	skipCache := make(map[string]int64)
	if loaded, err := database.LoadSkippedFiles(); err == nil {
		skipCache = loaded
	} else {
		log.Printf("loading skip cache: %v", err)
	}
	return &Engine{
		db:        database,
		importDir: importDir,
		skipCache: skipCache,
	}
}

// ImportDirPath returns the watched import directory.
func (e *Engine) ImportDirPath() string {
	return e.importDir
}

// OnImport registers fn to be called after every run that wrote
// at least one file.
func (e *Engine) OnImport(fn func(Stats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// LastImport returns the time of the last completed run.
func (e *Engine) LastImport() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRun
}

// LastStats returns statistics from the last run.
func (e *Engine) LastStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastStats
}

// isExport reports whether path looks like a JSONL export.
func isExport(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl")
}

// Discover lists export files under dir in lexical order. A
// missing directory yields no files.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir && os.IsNotExist(err) {
					return filepath.SkipDir
				}
				return nil // skip inaccessible entries
			}
			if !d.IsDir() && isExport(path) {
				files = append(files, path)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// ImportAll discovers and imports every export in the import
// directory.
func (e *Engine) ImportAll(onProgress ProgressFunc) (Stats, error) {
	if onProgress != nil {
		onProgress(Progress{Phase: PhaseDiscovering})
	}
	files, err := Discover(e.importDir)
	if err != nil {
		return Stats{}, err
	}
	return e.ImportPaths(files, onProgress), nil
}

// ImportPaths imports the given files. Paths that are not .jsonl
// exports are ignored.
func (e *Engine) ImportPaths(
	paths []string, onProgress ProgressFunc,
) Stats {
	var files []string
	for _, p := range paths {
		if isExport(p) {
			files = append(files, p)
		}
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	stats := Stats{BatchID: uuid.NewString(), Files: len(files)}
	if len(files) > 0 {
		stats = e.collect(e.startWorkers(files), stats, onProgress)
		e.persistSkipCache()
	} else if onProgress != nil {
		onProgress(Progress{Phase: PhaseDone})
	}

	e.mu.Lock()
	e.lastRun = time.Now()
	e.lastStats = stats
	listeners := slices.Clone(e.listeners)
	e.mu.Unlock()

	if stats.Imported > 0 {
		log.Printf(
			"import %s: %d file(s), %d message(s)",
			stats.BatchID, stats.Imported, stats.Messages,
		)
		for _, fn := range listeners {
			fn(stats)
		}
	}
	return stats
}

type fileResult struct {
	path  string
	exp   *Export
	size  int64
	mtime int64
	skip  bool
	err   error
}

// startWorkers fans out parsing across a worker pool and returns a
// channel of results.
func (e *Engine) startWorkers(files []string) <-chan fileResult {
	workers := min(max(runtime.NumCPU(), 2), maxWorkers, len(files))

	jobs := make(chan string, len(files))
	results := make(chan fileResult, len(files))

	for range workers {
		go func() {
			for path := range jobs {
				results <- e.processFile(path)
			}
		}()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	return results
}

func (e *Engine) processFile(path string) fileResult {
	info, err := os.Stat(path)
	if err != nil {
		return fileResult{path: path, err: fmt.Errorf("stat %s: %w", path, err)}
	}
	res := fileResult{
		path:  path,
		size:  info.Size(),
		mtime: info.ModTime().UnixNano(),
	}

	e.skipMu.RLock()
	cachedMtime, cached := e.skipCache[path]
	e.skipMu.RUnlock()
	if cached && cachedMtime == res.mtime {
		res.skip = true
		return res
	}
	if f, ok := e.db.ImportedFileInfo(path); ok &&
		f.Size == res.size && f.Mtime == res.mtime {
		res.skip = true
		return res
	}

	exp, err := ParseFile(path)
	if err != nil {
		res.err = err
		return res
	}
	res.exp = &exp
	return res
}

// collect drains results and writes each parsed export. Writes are
// sequential because the store has a single writer.
func (e *Engine) collect(
	results <-chan fileResult, stats Stats, onProgress ProgressFunc,
) Stats {
	progress := Progress{Phase: PhaseImporting, FilesTotal: stats.Files}
	report := func(path string) {
		progress.FilesDone++
		progress.CurrentFile = filepath.Base(path)
		if onProgress != nil {
			onProgress(progress)
		}
	}

	for range stats.Files {
		r := <-results
		switch {
		case r.err != nil:
			stats.Failed++
			stats.Warnings = append(stats.Warnings, r.err.Error())
			log.Printf("import error: %v", r.err)
		case r.skip:
			stats.Skipped++
		case empty(r.exp):
			stats.Failed++
			stats.BadLines += r.exp.Skipped
			e.cacheSkip(r.path, r.mtime)
		default:
			e.clearSkip(r.path)
			stats.BadLines += r.exp.Skipped
			if err := e.write(r); err != nil {
				stats.Failed++
				stats.Warnings = append(stats.Warnings, err.Error())
				log.Printf("import error: %v", err)
				break
			}
			stats.Imported++
			stats.Messages += r.exp.Messages
			progress.Messages += r.exp.Messages
		}
		report(r.path)
	}

	progress.Phase = PhaseDone
	if onProgress != nil {
		onProgress(progress)
	}
	return stats
}

func empty(exp *Export) bool {
	return len(exp.Channels) == 0 && len(exp.Users) == 0 &&
		len(exp.Teams) == 0 && exp.Messages == 0
}

// write stores users, channels, team assignments and threads of
// one export, then records the file so unchanged files are skipped
// next time.
func (e *Engine) write(r fileResult) error {
	exp := r.exp
	if err := e.db.UpsertUsers(exp.Users); err != nil {
		return fmt.Errorf("importing %s: %w", r.path, err)
	}
	if err := e.db.UpsertChannels(exp.Channels); err != nil {
		return fmt.Errorf("importing %s: %w", r.path, err)
	}
	if len(exp.Teams) > 0 {
		teams, err := e.db.TeamMembers(context.Background())
		if err != nil {
			return fmt.Errorf("importing %s: %w", r.path, err)
		}
		maps.Copy(teams, exp.Teams)
		if err := e.db.ReplaceTeams(teams); err != nil {
			return fmt.Errorf("importing %s: %w", r.path, err)
		}
	}
	for _, ch := range slices.Sorted(maps.Keys(exp.Threads)) {
		if _, err := e.db.ImportThreads(ch, exp.Threads[ch]); err != nil {
			return fmt.Errorf("importing %s: %w", r.path, err)
		}
	}
	return e.db.RecordImportedFile(r.path, db.ImportedFile{
		Size:         r.size,
		Mtime:        r.mtime,
		MessageCount: exp.Messages,
	})
}

func (e *Engine) cacheSkip(path string, mtime int64) {
	e.skipMu.Lock()
	e.skipCache[path] = mtime
	e.skipMu.Unlock()
}

func (e *Engine) clearSkip(path string) {
	e.skipMu.Lock()
	delete(e.skipCache, path)
	e.skipMu.Unlock()
}

// persistSkipCache writes the in-memory skip cache to the database
// so skipped files survive restarts.
func (e *Engine) persistSkipCache() {
	e.skipMu.RLock()
	snapshot := maps.Clone(e.skipCache)
	e.skipMu.RUnlock()

	if err := e.db.ReplaceSkippedFiles(snapshot); err != nil {
		log.Printf("persisting skip cache: %v", err)
	}
}
