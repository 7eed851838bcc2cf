package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wesm/teampulse/internal/ingest"
)

func parseImportFlags(args []string, defaultDir string) (string, error) {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dir := fs.String("dir", defaultDir, "Directory of JSONL exports")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *dir == "" {
		return "", fmt.Errorf("import directory is empty")
	}
	return *dir, nil
}

func runImport(args []string) {
	cfg := mustLoadMinimalConfig()
	dir, err := parseImportFlags(args, cfg.ImportDir)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	database := mustOpenDB(cfg)
	defer database.Close()

	engine := ingest.NewEngine(database, dir)
	stats, err := engine.ImportAll(printImportProgress)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	printImportSummary(stats)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
