package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const configFileName = "config.json"

// Config holds all application configuration.
type Config struct {
	Host          string            `json:"host"`
	Port          int               `json:"port"`
	DataDir       string            `json:"data_dir"`
	DBPath        string            `json:"-"`
	ImportDir     string            `json:"import_dir"`
	NoWatch       bool              `json:"no_watch"`
	SlackBotToken string            `json:"slack_bot_token,omitempty"`
	DefaultTeam   string            `json:"default_team"`
	Teams         map[string]string `json:"teams,omitempty"`
	InsightAgent  string            `json:"insight_agent"`
	Timezone      string            `json:"timezone"`
	WriteTimeout  time.Duration     `json:"-"`
	PanelTimeout  time.Duration     `json:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".teampulse")
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "teampulse.db"),
		ImportDir:    filepath.Join(dataDir, "imports"),
		DefaultTeam:  "Unassigned",
		InsightAgent: "claude -p --output-format json",
		Timezone:     "UTC",
		WriteTimeout: 30 * time.Second,
		PanelTimeout: 5 * time.Second,
	}, nil
}

// Load builds a Config by layering:
// defaults < config file < .env < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, the config file, and
// the environment, without parsing CLI flags. Use this for
// subcommands that manage their own flag sets.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	if err := loadDotEnv(".env"); err != nil {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}
	if v := os.Getenv("TEAMPULSE_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.ImportDir = filepath.Join(v, "imports")
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	if err := cfg.loadEnv(); err != nil {
		return cfg, err
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, "teampulse.db")
	return cfg, cfg.validate()
}

// loadDotEnv reads KEY=VALUE pairs into the process environment.
// Variables already set in the real environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, configFileName)
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Host          string            `json:"host"`
		Port          int               `json:"port"`
		ImportDir     string            `json:"import_dir"`
		NoWatch       bool              `json:"no_watch"`
		SlackBotToken string            `json:"slack_bot_token"`
		DefaultTeam   string            `json:"default_team"`
		Teams         map[string]string `json:"teams"`
		InsightAgent  string            `json:"insight_agent"`
		Timezone      string            `json:"timezone"`
		PanelTimeout  string            `json:"panel_timeout"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Host != "" {
		c.Host = file.Host
	}
	if file.Port != 0 {
		c.Port = file.Port
	}
	if file.ImportDir != "" {
		c.ImportDir = file.ImportDir
	}
	c.NoWatch = c.NoWatch || file.NoWatch
	if file.SlackBotToken != "" {
		c.SlackBotToken = file.SlackBotToken
	}
	if file.DefaultTeam != "" {
		c.DefaultTeam = file.DefaultTeam
	}
	if len(file.Teams) > 0 {
		c.Teams = file.Teams
	}
	if file.InsightAgent != "" {
		c.InsightAgent = file.InsightAgent
	}
	if file.Timezone != "" {
		c.Timezone = file.Timezone
	}
	if file.PanelTimeout != "" {
		d, err := time.ParseDuration(file.PanelTimeout)
		if err != nil {
			return fmt.Errorf("parsing panel_timeout: %w", err)
		}
		c.PanelTimeout = d
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv("TEAMPULSE_IMPORT_DIR"); v != "" {
		c.ImportDir = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.SlackBotToken = v
	}
	if v := os.Getenv("TEAMPULSE_DEFAULT_TEAM"); v != "" {
		c.DefaultTeam = v
	}
	if v := os.Getenv("TEAMPULSE_INSIGHT_AGENT"); v != "" {
		c.InsightAgent = v
	}
	if v := os.Getenv("TEAMPULSE_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("TEAMPULSE_PANEL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing TEAMPULSE_PANEL_TIMEOUT: %w", err)
		}
		c.PanelTimeout = d
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.PanelTimeout <= 0 {
		return fmt.Errorf("panel timeout must be positive, got %s", c.PanelTimeout)
	}
	return nil
}

// Location returns the configured dashboard timezone, falling back
// to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8080, "Port to listen on")
	fs.String("import-dir", "", "Directory watched for JSONL exports")
	fs.String("timezone", "", "IANA timezone for dashboard buckets")
	fs.Bool("no-watch", false, "Don't watch the import directory")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "import-dir":
			cfg.ImportDir = f.Value.String()
		case "timezone":
			cfg.Timezone = f.Value.String()
		case "no-watch":
			cfg.NoWatch = f.Value.String() == "true"
		}
	})
}

// SaveTeams persists the user → team map to the config file,
// preserving any other keys already there.
func (c *Config) SaveTeams(teams map[string]string) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	existing["teams"] = teams
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	c.Teams = teams
	return nil
}
