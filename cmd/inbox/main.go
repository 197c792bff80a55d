package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/shopdesk/inbox"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.shopdesk/inbox.toml.
type Config struct {
	Default ConfigDefault `toml:"default"`
	Sync    ConfigSync    `toml:"sync"`
}

// ConfigDefault holds account settings.
type ConfigDefault struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	StoreRef string `toml:"store_ref"`
}

// ConfigSync holds polling and persistence settings.
type ConfigSync struct {
	PollInterval string `toml:"poll_interval"`
	Delimiter    string `toml:"delimiter"`
	SnapshotPath string `toml:"snapshot_path"`
	Timezone     string `toml:"timezone"`
}

const defaultSnapshotPath = "~/.shopdesk/inbox.db"

// Environment variables that override the config file.
const (
	envAPIKey   = "INBOX_API_KEY"
	envBaseURL  = "INBOX_BASE_URL"
	envStoreRef = "INBOX_STORE_REF"
)

// ============================================================================
// Config helpers
// ============================================================================

// configDir returns the path to ~/.shopdesk, creating it if needed.
func configDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".shopdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

// configPath returns the full path to the config file.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "inbox.toml"), nil
}

// loadConfig reads and parses the config file.
// If the file does not exist, it returns a zero-value Config.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// saveConfig writes the config struct back to disk as TOML.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// effectiveConfig loads the config file and applies environment overrides,
// reading a .env file in the working directory first if one exists. The result
// is for use only and is never saved.
func effectiveConfig() (*Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return withEnv(cfg), nil
}

// withEnv returns a copy of cfg with environment overrides applied.
func withEnv(cfg *Config) *Config {
	eff := *cfg
	_ = godotenv.Load(".env")
	applyEnv(&eff, os.Getenv)
	return &eff
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(envAPIKey); v != "" {
		cfg.Default.APIKey = v
	}
	if v := getenv(envBaseURL); v != "" {
		cfg.Default.BaseURL = v
	}
	if v := getenv(envStoreRef); v != "" {
		cfg.Default.StoreRef = v
	}
}

// setConfigValue sets a config field using dot notation (e.g. "default.api_key").
func setConfigValue(cfg *Config, key, value string) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("key must use dot notation: section.field (e.g. default.api_key)")
	}
	section, field := parts[0], parts[1]

	switch section {
	case "default":
		switch field {
		case "api_key":
			cfg.Default.APIKey = value
		case "base_url":
			cfg.Default.BaseURL = value
		case "store_ref":
			cfg.Default.StoreRef = value
		default:
			return fmt.Errorf("unknown field %q in section [default]", field)
		}
	case "sync":
		switch field {
		case "poll_interval":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid poll_interval %q: %w", value, err)
			}
			cfg.Sync.PollInterval = value
		case "delimiter":
			cfg.Sync.Delimiter = value
		case "snapshot_path":
			cfg.Sync.SnapshotPath = value
		case "timezone":
			if _, err := time.LoadLocation(value); err != nil {
				return fmt.Errorf("invalid timezone %q: %w", value, err)
			}
			cfg.Sync.Timezone = value
		default:
			return fmt.Errorf("unknown field %q in section [sync]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: default, sync)", section)
	}
	return nil
}

// pollInterval returns the configured poll interval, or the default.
func (c *Config) pollInterval() (time.Duration, error) {
	if c.Sync.PollInterval == "" {
		return inbox.DefaultPollInterval, nil
	}
	d, err := time.ParseDuration(c.Sync.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid sync.poll_interval: %w", err)
	}
	return d, nil
}

// location returns the zone used for zone-less server timestamps.
func (c *Config) location() (*time.Location, error) {
	if c.Sync.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid sync.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) snapshotPath() string {
	if c.Sync.SnapshotPath == "" {
		return defaultSnapshotPath
	}
	return c.Sync.SnapshotPath
}

// ============================================================================
// Root command
// ============================================================================

var (
	logFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "inbox",
	Short:        "Seller inbox CLI",
	Long:         "Command-line interface for the seller inbox.\nSync product and store conversations, read threads, and reply to customers.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file (rotated)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
