package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"strings"

	"github.com/wesm/teampulse/internal/config"
)

// AssignConfig holds parsed CLI options for assign-team.
type AssignConfig struct {
	User   string
	Team   string
	Remove bool
}

func parseAssignFlags(args []string) (AssignConfig, error) {
	fs := flag.NewFlagSet("assign-team", flag.ContinueOnError)
	remove := fs.Bool("remove", false, "Remove the override for USER")
	if err := fs.Parse(args); err != nil {
		return AssignConfig{}, err
	}

	rest := fs.Args()
	cfg := AssignConfig{Remove: *remove}
	switch {
	case cfg.Remove && len(rest) == 1:
		cfg.User = strings.TrimSpace(rest[0])
	case !cfg.Remove && len(rest) == 2:
		cfg.User = strings.TrimSpace(rest[0])
		cfg.Team = strings.TrimSpace(rest[1])
		if cfg.Team == "" {
			return AssignConfig{}, fmt.Errorf("team name is empty")
		}
	default:
		return AssignConfig{}, fmt.Errorf(
			"usage: assign-team USER TEAM | assign-team -remove USER",
		)
	}
	if cfg.User == "" {
		return AssignConfig{}, fmt.Errorf("user id is empty")
	}
	return cfg, nil
}

// assignTeam applies one override to the saved team map.
func assignTeam(cfg *config.Config, a AssignConfig, out io.Writer) error {
	teams := make(map[string]string, len(cfg.Teams)+1)
	maps.Copy(teams, cfg.Teams)
	if a.Remove {
		if _, ok := teams[a.User]; !ok {
			return fmt.Errorf("no team override for %s", a.User)
		}
		delete(teams, a.User)
	} else {
		teams[a.User] = a.Team
	}
	if err := cfg.SaveTeams(teams); err != nil {
		return err
	}
	if a.Remove {
		fmt.Fprintf(out, "Removed team override for %s\n", a.User)
	} else {
		fmt.Fprintf(out, "Assigned %s to %s\n", a.User, a.Team)
	}
	return nil
}

func runAssignTeam(args []string) {
	a, err := parseAssignFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	cfg := mustLoadMinimalConfig()
	if err := assignTeam(&cfg, a, os.Stdout); err != nil {
		log.Fatalf("assign-team: %v", err)
	}
}
