// Package config provides configuration management for the gendercode command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/gendercode/pkg/coding"
	"github.com/otherjamesbrown/gendercode/pkg/db"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is a human-readable table.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
	// OutputFormatCSV is comma-separated output, one row per name.
	OutputFormatCSV OutputFormat = "csv"
)

// SourceKind selects the dictionary backend.
type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourceSQLite   SourceKind = "sqlite"
	SourcePostgres SourceKind = "postgres"
)

// Default configuration values.
const (
	DefaultOutputFormat   = OutputFormatText
	DefaultConfigDir      = ".gendercode"
	DefaultConfigFile     = "config.yaml"
	DefaultDictionaryFile = "names.db"
	DefaultLogLevel       = "info"
	DefaultServeAddr      = ":8080"
	DefaultRedisTTL       = time.Hour
	DefaultMetricsPrefix  = "gendercode"
)

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json,omitempty"`
}

// DictionaryConfig selects where the name tables are read from.
type DictionaryConfig struct {
	// Source is file, sqlite or postgres.
	Source SourceKind `yaml:"source"`

	// Path is the dictionary file (yaml, toml or json) or SQLite database.
	// Supports ~ for home directory expansion. Unused for postgres.
	Path string `yaml:"path,omitempty"`

	// RefreshInterval reloads the tables periodically while serving.
	// Zero disables reloading.
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
}

// RedisConfig configures the optional dictionary cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
	Password string        `yaml:"-"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace,omitempty"`

	// Textfile, when set, receives the metrics of a batch run in the
	// node_exporter textfile format.
	Textfile string `yaml:"textfile,omitempty"`
}

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the complete gendercode configuration.
type Config struct {
	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	Log        LogConfig        `yaml:"log"`
	Dispatcher coding.Config    `yaml:"dispatcher"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Database   db.Config        `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Serve      ServeConfig      `yaml:"serve"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		OutputFormat: DefaultOutputFormat,
		Log:          LogConfig{Level: DefaultLogLevel},
		Dispatcher:   coding.DefaultConfig(),
		Dictionary: DictionaryConfig{
			Source: SourceSQLite,
			Path:   filepath.Join("~", DefaultConfigDir, DefaultDictionaryFile),
		},
		Database: *db.DefaultConfig(),
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  DefaultRedisTTL,
		},
		Metrics: MetricsConfig{Namespace: DefaultMetricsPrefix},
		Serve:   ServeConfig{Addr: DefaultServeAddr},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $GENDERCODE_CONFIG_DIR if set, otherwise ~/.gendercode
func ConfigDir() (string, error) {
	if dir := os.Getenv("GENDERCODE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the default path and the environment.
func LoadConfig() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads the configuration from path and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file at path, if it exists
// 3. Environment variables (GENDERCODE_*)
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ReadConfigFile returns the defaults overlaid with the file at path, without
// environment overrides or validation. A missing file yields the defaults.
// Use it to edit and save the file.
func ReadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg. Keys absent from the file keep
// their current values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("GENDERCODE_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv("GENDERCODE_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("GENDERCODE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GENDERCODE_LOG_JSON"); v != "" {
		cfg.Log.JSON = parseBool(v)
	}
	if v := os.Getenv("GENDERCODE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatcher.Workers = n
		}
	}
	if v := os.Getenv("GENDERCODE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dispatcher.PollInterval = d
		}
	}
	if v := os.Getenv("GENDERCODE_DICTIONARY_SOURCE"); v != "" {
		cfg.Dictionary.Source = SourceKind(strings.ToLower(v))
	}
	if v := os.Getenv("GENDERCODE_DICTIONARY_PATH"); v != "" {
		cfg.Dictionary.Path = v
	}
	if v := os.Getenv("GENDERCODE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("GENDERCODE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("GENDERCODE_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
	if v := os.Getenv("GENDERCODE_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	db.ApplyEnv(&cfg.Database)
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("%w: invalid output_format %q (must be text, json, yaml or csv)", gcerrors.ErrValidation, c.OutputFormat)
	}
	if c.Dispatcher.Workers < 0 {
		return fmt.Errorf("%w: dispatcher.workers must not be negative", gcerrors.ErrValidation)
	}
	if c.Dispatcher.PollInterval < 0 {
		return fmt.Errorf("%w: dispatcher.poll_interval must not be negative", gcerrors.ErrValidation)
	}
	if c.Dictionary.RefreshInterval < 0 {
		return fmt.Errorf("%w: dictionary.refresh_interval must not be negative", gcerrors.ErrValidation)
	}

	switch c.Dictionary.Source {
	case SourceFile, SourceSQLite:
		if c.Dictionary.Path == "" {
			return fmt.Errorf("%w: dictionary.path is required for source %q", gcerrors.ErrValidation, c.Dictionary.Source)
		}
	case SourcePostgres:
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("%w: database: %v", gcerrors.ErrValidation, err)
		}
	default:
		return fmt.Errorf("%w: invalid dictionary.source %q (must be file, sqlite or postgres)", gcerrors.ErrValidation, c.Dictionary.Source)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required when redis is enabled", gcerrors.ErrValidation)
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML, OutputFormatCSV:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// DictionaryPath returns the dictionary path with ~ expanded.
func (c *Config) DictionaryPath() (string, error) {
	return ExpandPath(c.Dictionary.Path)
}

// SaveConfig writes cfg to path, creating its directory if needed.
// Secrets are never written.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
