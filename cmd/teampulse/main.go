package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/wesm/teampulse/internal/config"
	"github.com/wesm/teampulse/internal/db"
	"github.com/wesm/teampulse/internal/ingest"
	"github.com/wesm/teampulse/internal/server"
	"github.com/wesm/teampulse/internal/slackdir"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	periodicImportInterval = 15 * time.Minute
	watcherDebounce        = 500 * time.Millisecond
	shutdownTimeout        = 10 * time.Second
	maxLogSize             = 10 << 20
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "sync-directory":
			runSyncDirectory(os.Args[2:])
			return
		case "prune":
			runPrune(os.Args[2:])
			return
		case "assign-team":
			runAssignTeam(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("teampulse %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`teampulse %s - team communication health dashboard

Imports pre-scored chat exports into SQLite and serves sentiment
trends, channel risk, heatmaps, burnout warnings, and team
insights over a local HTTP API.

Usage:
  teampulse [flags]                  Start the server (default command)
  teampulse serve [flags]            Start the server (explicit)
  teampulse import [flags]           Import exports once and exit
  teampulse sync-directory           Mirror Slack channels and users
  teampulse prune [flags]            Delete messages older than a date
  teampulse assign-team USER TEAM    Override a user's team
  teampulse version                  Show version information
  teampulse help                     Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8080)
  -import-dir string  Directory watched for JSONL exports
  -timezone string    IANA timezone for dashboard buckets
  -no-watch           Don't watch the import directory

Import flags:
  -dir string         Import this directory instead of the configured one

Prune flags:
  -before string      Delete messages before this date (YYYY-MM-DD)
  -dry-run            Show what would be pruned without deleting
  -yes                Skip confirmation prompt

Assign-team flags:
  -remove             Remove the override for USER

Environment variables:
  TEAMPULSE_DATA_DIR       Data directory (database, config)
  TEAMPULSE_IMPORT_DIR     Export directory
  TEAMPULSE_TIMEZONE       Dashboard timezone
  TEAMPULSE_DEFAULT_TEAM   Team for users without a mapping
  TEAMPULSE_INSIGHT_AGENT  Agent command used for insight synthesis
  TEAMPULSE_PANEL_TIMEOUT  Per-panel overview timeout (e.g. 5s)
  SLACK_BOT_TOKEN          Enables Slack directory sync

Data is stored in ~/.teampulse/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)
	setupLogFile(cfg.DataDir)
	database := mustOpenDB(cfg)
	defer database.Close()

	if err := os.MkdirAll(cfg.ImportDir, 0o755); err != nil {
		log.Fatalf("creating import dir: %v", err)
	}
	engine := ingest.NewEngine(database, cfg.ImportDir)
	runInitialImport(engine)

	if !cfg.NoWatch {
		stopWatcher := startFileWatcher(cfg, engine)
		defer stopWatcher()
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()
	go startPeriodicImport(ctx, engine)

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	opts := []server.Option{
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	}
	if dir := newDirectory(cfg, database); dir != nil {
		opts = append(opts, server.WithDirectory(dir))
	}
	srv := server.New(cfg, database, engine, opts...)

	fmt.Printf("teampulse %s listening at http://%s\n", version, srv.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
		sctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("teampulse", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: teampulse [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func mustLoadMinimalConfig() config.Config {
	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func mustOpenDB(cfg config.Config) *db.DB {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	return database
}

// setupLogFile mirrors log output to debug.log in dir. The file
// is truncated at startup once it grows past maxLogSize.
func setupLogFile(dir string) {
	path := filepath.Join(dir, "debug.log")
	truncateLogFile(path, maxLogSize)
	f, err := os.OpenFile(
		path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
	)
	if err != nil {
		log.Printf("warning: cannot open log file %s: %v", path, err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
}

// truncateLogFile empties path when it exceeds limit. Symlinks
// are left alone.
func truncateLogFile(path string, limit int64) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if info.Size() > limit {
		_ = os.Truncate(path, 0)
	}
}

func runInitialImport(engine *ingest.Engine) {
	fmt.Println("Running initial import...")
	stats, err := engine.ImportAll(printImportProgress)
	if err != nil {
		log.Printf("initial import: %v", err)
		return
	}
	printImportSummary(stats)
}

func printImportSummary(stats ingest.Stats) {
	fmt.Printf(
		"\nImport complete: %d files (%d imported, %d skipped, %d failed), %d messages\n",
		stats.Files, stats.Imported, stats.Skipped, stats.Failed,
		stats.Messages,
	)
	for _, w := range stats.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func printImportProgress(p ingest.Progress) {
	if p.FilesTotal > 0 {
		fmt.Printf(
			"\r  %d/%d files (%.0f%%) · %d messages",
			p.FilesDone, p.FilesTotal, p.Percent(), p.Messages,
		)
	}
}

func startFileWatcher(
	cfg config.Config, engine *ingest.Engine,
) func() {
	onChange := func(paths []string) {
		engine.ImportPaths(paths, nil)
	}
	watcher, err := ingest.NewWatcher(watcherDebounce, onChange)
	if err != nil {
		log.Printf("warning: file watcher unavailable: %v", err)
		return func() {}
	}
	watched, unwatched, err := watcher.WatchRecursive(cfg.ImportDir)
	if err != nil {
		log.Printf("warning: watching %s: %v", cfg.ImportDir, err)
	}
	if unwatched > 0 {
		log.Printf(
			"warning: %d of %d directories could not be watched",
			unwatched, watched+unwatched,
		)
	}
	watcher.Start()
	return watcher.Stop
}

func startPeriodicImport(ctx context.Context, engine *ingest.Engine) {
	ticker := time.NewTicker(periodicImportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Println("Running scheduled import...")
			if _, err := engine.ImportAll(nil); err != nil {
				log.Printf("scheduled import: %v", err)
			}
		}
	}
}

// newDirectory returns a Slack directory syncer when a bot token
// is configured, else nil.
func newDirectory(cfg config.Config, database *db.DB) *slackdir.Directory {
	if cfg.SlackBotToken == "" {
		return nil
	}
	dir, err := slackdir.New(cfg.SlackBotToken, database)
	if err != nil {
		log.Printf("warning: slack directory disabled: %v", err)
		return nil
	}
	return dir
}
