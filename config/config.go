// Package config provides configuration management for the grantqa service
// and CLI. It supports loading configuration from YAML files, environment
// variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/grantqa/pkg/db"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultListenAddress = ":8080"
	DefaultOutputFormat  = OutputFormatText
	DefaultLogLevel      = "info"
	DefaultConfigDir     = ".grantqa"
	DefaultConfigFile    = "config.yaml"
)

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `yaml:"level"`

	// JSON switches from console output to JSON lines.
	JSON bool `yaml:"json"`
}

// DatabaseConfig holds the database settings that may live in the config
// file. The DB_* environment variables are applied on top by DB().
type DatabaseConfig struct {
	URL          string        `yaml:"url,omitempty"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxConns     int32         `yaml:"max_conns,omitempty"`
	MinConns     int32         `yaml:"min_conns,omitempty"`
}

// RedisConfig holds the event publisher connection. An empty address
// disables publishing.
type RedisConfig struct {
	Address  string `yaml:"address,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// Config holds the grantqa configuration.
type Config struct {
	// ListenAddress is the HTTP listen address of `grantqa serve`.
	ListenAddress string `yaml:"listen_address"`

	// OutputFormat is the default CLI output format.
	OutputFormat OutputFormat `yaml:"output_format"`

	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		OutputFormat:  DefaultOutputFormat,
		Log:           LogConfig{Level: DefaultLogLevel},
		Database:      DatabaseConfig{QueryTimeout: db.DefaultQueryTimeout},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $GRANTQA_CONFIG_DIR if set, otherwise ~/.grantqa
func ConfigDir() (string, error) {
	if dir := os.Getenv("GRANTQA_CONFIG_DIR"); dir != "" {
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

// Load loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.grantqa/config.yaml or $GRANTQA_CONFIG_DIR/config.yaml)
// 3. Environment variables (GRANTQA_*)
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// configFile is the on-disk shape; durations are strings.
type configFile struct {
	ListenAddress string        `yaml:"listen_address,omitempty"`
	OutputFormat  OutputFormat  `yaml:"output_format,omitempty"`
	Log           *LogConfig    `yaml:"log,omitempty"`
	Database      *databaseFile `yaml:"database,omitempty"`
	Redis         *RedisConfig  `yaml:"redis,omitempty"`
}

type databaseFile struct {
	URL          string `yaml:"url,omitempty"`
	QueryTimeout string `yaml:"query_timeout,omitempty"`
	MaxConns     int32  `yaml:"max_conns,omitempty"`
	MinConns     int32  `yaml:"min_conns,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.ListenAddress != "" {
		cfg.ListenAddress = fileCfg.ListenAddress
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.Log != nil {
		if fileCfg.Log.Level != "" {
			cfg.Log.Level = fileCfg.Log.Level
		}
		cfg.Log.JSON = fileCfg.Log.JSON
	}
	if d := fileCfg.Database; d != nil {
		if d.URL != "" {
			cfg.Database.URL = d.URL
		}
		if d.QueryTimeout != "" {
			timeout, err := time.ParseDuration(d.QueryTimeout)
			if err != nil {
				return fmt.Errorf("parsing database.query_timeout: %w", err)
			}
			cfg.Database.QueryTimeout = timeout
		}
		cfg.Database.MaxConns = d.MaxConns
		cfg.Database.MinConns = d.MinConns
	}
	if fileCfg.Redis != nil {
		cfg.Redis = *fileCfg.Redis
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
// Malformed values are reported rather than silently ignored.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("GRANTQA_LISTEN_ADDRESS"); v != "" {
		cfg.ListenAddress = v
	}

	if v := os.Getenv("GRANTQA_QUERY_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GRANTQA_QUERY_TIMEOUT: %w", err)
		}
		cfg.Database.QueryTimeout = timeout
	}

	if v := os.Getenv("GRANTQA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("GRANTQA_LOG_JSON"); v == "true" || v == "1" {
		cfg.Log.JSON = true
	}

	if v := os.Getenv("GRANTQA_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("GRANTQA_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}

	if v := os.Getenv("GRANTQA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("GRANTQA_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRANTQA_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}

	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	switch logging.Level(c.Log.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("invalid log.level: %q (must be debug, info, warn, or error)", c.Log.Level)
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive")
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}

	return nil
}

// DB builds the database connection config: defaults, then the config
// file's database section, then the DATABASE_URL and DB_* environment.
func (c *Config) DB() *db.Config {
	cfg := db.DefaultConfig()
	if c.Database.URL != "" {
		cfg.URL = c.Database.URL
	}
	if c.Database.MaxConns > 0 {
		cfg.MaxConns = c.Database.MaxConns
	}
	if c.Database.MinConns > 0 {
		cfg.MinConns = c.Database.MinConns
	}
	if c.Database.QueryTimeout > 0 {
		cfg.QueryTimeout = c.Database.QueryTimeout
	}
	db.ApplyEnv(cfg)
	return cfg
}

// Logging builds the logger config.
func (c *Config) Logging() *logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Log.Level)
	cfg.JSONFormat = c.Log.JSON
	if c.Log.JSON {
		cfg.Environment = "production"
	}
	return cfg
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Marshal renders cfg in the config file format. The Redis password is
// never written.
func Marshal(cfg *Config) ([]byte, error) {
	fileCfg := configFile{
		ListenAddress: cfg.ListenAddress,
		OutputFormat:  cfg.OutputFormat,
		Log:           &LogConfig{Level: cfg.Log.Level, JSON: cfg.Log.JSON},
	}
	fileCfg.Database = &databaseFile{
		URL:          cfg.Database.URL,
		QueryTimeout: cfg.Database.QueryTimeout.String(),
		MaxConns:     cfg.Database.MaxConns,
		MinConns:     cfg.Database.MinConns,
	}
	if cfg.Redis.Enabled() {
		fileCfg.Redis = &RedisConfig{Address: cfg.Redis.Address, DB: cfg.Redis.DB}
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}
