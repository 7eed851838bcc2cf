package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/wesm/teampulse/internal/db"
)

// PruneConfig holds parsed CLI options for the prune command.
type PruneConfig struct {
	Before time.Time
	DryRun bool
	Yes    bool
}

func parsePruneFlags(args []string) (PruneConfig, error) {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	before := fs.String(
		"before", "",
		"Delete messages before this date (YYYY-MM-DD)",
	)
	dryRun := fs.Bool(
		"dry-run", false,
		"Show what would be pruned without deleting",
	)
	yes := fs.Bool("yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return PruneConfig{}, err
	}
	if *before == "" {
		return PruneConfig{}, fmt.Errorf(
			"--before is required (refusing to prune everything)",
		)
	}
	cutoff, err := time.Parse(time.DateOnly, *before)
	if err != nil {
		return PruneConfig{}, fmt.Errorf(
			"invalid --before %q: want YYYY-MM-DD", *before,
		)
	}
	return PruneConfig{Before: cutoff, DryRun: *dryRun, Yes: *yes}, nil
}

// Pruner executes the prune workflow against a database.
type Pruner struct {
	DB  *db.DB
	Out io.Writer
	In  io.Reader
}

// Prune counts messages older than the cutoff and deletes them
// after confirmation.
func (p *Pruner) Prune(cfg PruneConfig) error {
	if cfg.Before.IsZero() {
		return fmt.Errorf("a cutoff date is required")
	}
	n, err := p.DB.PruneBefore(cfg.Before, true)
	if err != nil {
		return fmt.Errorf("counting messages: %w", err)
	}
	day := cfg.Before.Format(time.DateOnly)
	if n == 0 {
		fmt.Fprintf(p.Out, "No messages before %s.\n", day)
		return nil
	}

	fmt.Fprintf(p.Out, "Found %d messages before %s\n", n, day)
	if cfg.DryRun {
		fmt.Fprintln(p.Out, "\nDry run: no changes made.")
		return nil
	}
	if !cfg.Yes {
		if !confirm(p.In, p.Out, fmt.Sprintf("\nDelete %d messages?", n)) {
			fmt.Fprintln(p.Out, "Aborted.")
			return nil
		}
	}

	deleted, err := p.DB.PruneBefore(cfg.Before, false)
	if err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	fmt.Fprintf(p.Out, "\nDeleted %d messages\n", deleted)
	return nil
}

func confirm(r io.Reader, w io.Writer, msg string) bool {
	fmt.Fprintf(w, "%s [y/N] ", msg)
	scanner := bufio.NewScanner(r)
	scanner.Scan()
	ans := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return ans == "y" || ans == "yes"
}

func runPrune(args []string) {
	cfg, err := parsePruneFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	appCfg := mustLoadMinimalConfig()
	database := mustOpenDB(appCfg)
	defer database.Close()

	pruner := &Pruner{DB: database, Out: os.Stdout, In: os.Stdin}
	if err := pruner.Prune(cfg); err != nil {
		log.Fatalf("prune: %v", err)
	}
}
