package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format    string `mapstructure:"format" json:"format"`
	Verbosity int    `mapstructure:"verbosity" json:"verbosity"`
	Quiet     bool   `mapstructure:"quiet" json:"quiet"`

	Relay   RelayConfig   `mapstructure:"relay" json:"relay"`
	Display DisplayConfig `mapstructure:"display" json:"display"`
	Console ConsoleConfig `mapstructure:"console" json:"console"`
}

// RelayConfig configures the log relay side channel
type RelayConfig struct {
	Port          int    `mapstructure:"port" json:"port"`
	RetryInterval string `mapstructure:"retry_interval" json:"retry_interval"`
	DialTimeout   string `mapstructure:"dial_timeout" json:"dial_timeout"`
	ChunkSize     int    `mapstructure:"chunk_size" json:"chunk_size"`

	// Marker bookkeeping: "file" (shared across processes) or "memory"
	MarkerStore string `mapstructure:"marker_store" json:"marker_store"`
	MarkerDir   string `mapstructure:"marker_dir" json:"marker_dir"`

	// Task actions that get a relay
	Actions []string `mapstructure:"actions" json:"actions"`

	// Host variable holding the address, and whether to fall back to the host name
	AddressVar      string `mapstructure:"address_var" json:"address_var"`
	AddressFallback bool   `mapstructure:"address_fallback" json:"address_fallback"`
}

// DisplayConfig controls progress rendering
type DisplayConfig struct {
	Args    bool `mapstructure:"args" json:"args"`
	Skipped bool `mapstructure:"skipped" json:"skipped"`
}

// ConsoleConfig configures the remote-side log server
type ConsoleConfig struct {
	Listen       string `mapstructure:"listen" json:"listen"`
	PollInterval string `mapstructure:"poll_interval" json:"poll_interval"`
}

const (
	MarkerStoreFile   = "file"
	MarkerStoreMemory = "memory"
)

// DefaultMarkerDir is where relay markers live unless configured otherwise
func DefaultMarkerDir() string {
	return filepath.Join(os.TempDir(), "hostlog")
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format: "text",
		Relay: RelayConfig{
			Port:          19885,
			RetryInterval: "100ms",
			DialTimeout:   "5s",
			ChunkSize:     4096,
			MarkerStore:   MarkerStoreFile,
			MarkerDir:     DefaultMarkerDir(),
			Actions:       []string{"command", "shell"},
			AddressVar:    "ansible_host",
		},
		Display: DisplayConfig{
			Skipped: true,
		},
		Console: ConsoleConfig{
			Listen:       ":19885",
			PollInterval: "250ms",
		},
	}
}

// Validate checks values viper cannot check while decoding
func (c *Config) Validate() error {
	var errs []error
	switch c.Format {
	case "text", "ndjson":
	default:
		errs = append(errs, fmt.Errorf("format: must be text or ndjson, got %q", c.Format))
	}
	if c.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("verbosity: must not be negative, got %d", c.Verbosity))
	}
	if c.Relay.Port < 1 || c.Relay.Port > 65535 {
		errs = append(errs, fmt.Errorf("relay.port: out of range: %d", c.Relay.Port))
	}
	if c.Relay.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("relay.chunk_size: must be positive, got %d", c.Relay.ChunkSize))
	}
	switch c.Relay.MarkerStore {
	case MarkerStoreFile:
		if c.Relay.MarkerDir == "" {
			errs = append(errs, errors.New("relay.marker_dir: required for the file marker store"))
		}
	case MarkerStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("relay.marker_store: must be file or memory, got %q", c.Relay.MarkerStore))
	}
	if c.Relay.AddressVar == "" && !c.Relay.AddressFallback {
		errs = append(errs, errors.New("relay.address_var: required unless address_fallback is set"))
	}
	for _, d := range []struct{ key, val string }{
		{"relay.retry_interval", c.Relay.RetryInterval},
		{"relay.dial_timeout", c.Relay.DialTimeout},
		{"console.poll_interval", c.Console.PollInterval},
	} {
		if _, err := parsePositive(d.val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.key, err))
		}
	}
	return errors.Join(errs...)
}

// RetryIntervalDuration returns the parsed retry interval, or 0 when unset or invalid
func (r RelayConfig) RetryIntervalDuration() time.Duration {
	d, _ := parsePositive(r.RetryInterval)
	return d
}

// DialTimeoutDuration returns the parsed dial timeout, or 0 when unset or invalid
func (r RelayConfig) DialTimeoutDuration() time.Duration {
	d, _ := parsePositive(r.DialTimeout)
	return d
}

// PollIntervalDuration returns the parsed poll interval, or 0 when unset or invalid
func (c ConsoleConfig) PollIntervalDuration() time.Duration {
	d, _ := parsePositive(c.PollInterval)
	return d
}

func parsePositive(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

// Load loads configuration from files and environment
// Config file search order (highest precedence first):
// 1. ./.hostlog.yaml, ./.hostlog.yml, ./hostlog.yaml or ./hostlog.yml
// 2. ~/.hostlog.yaml or ~/.hostlog.yml
// 3. $XDG_CONFIG_HOME/hostlog/config.yaml (or ~/.config/hostlog/config.yaml)
// 4. /etc/hostlog/config.yaml
func Load() (*Config, error) {
	cfg := Default()

	if configFile := findConfigFile(); configFile != "" {
		if err := readInto(configFile, cfg); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readInto(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	// mapstructure decodes into the existing slice; a shorter list would
	// keep default entries past its end
	if v.IsSet("relay.actions") {
		cfg.Relay.Actions = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// searchPaths lists the directories searched for a config file, highest
// precedence first
func searchPaths() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(configDir, "hostlog"))
	}
	return append(dirs, "/etc/hostlog")
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	return findConfigFileIn(searchPaths())
}

func findConfigFileIn(dirs []string) string {
	names := []string{".hostlog.yaml", ".hostlog.yml", "hostlog.yaml", "hostlog.yml"}

	for _, dir := range dirs {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		// Also check for config.yaml in subdirs
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HOSTLOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("HOSTLOG_QUIET"); v == "true" || v == "1" {
		cfg.Quiet = true
	}
	if v := os.Getenv("HOSTLOG_VERBOSE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOSTLOG_VERBOSE: %w", err)
		}
		cfg.Verbosity = n
	}
	if v := os.Getenv("HOSTLOG_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOSTLOG_PORT: %w", err)
		}
		cfg.Relay.Port = n
	}
	if v := os.Getenv("HOSTLOG_MARKER_DIR"); v != "" {
		cfg.Relay.MarkerDir = v
	}
	return nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := readInto(path, cfg); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	return findConfigFile()
}
