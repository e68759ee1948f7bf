package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv isolates a test from the caller's GRANTQA_* and DB_* settings.
func clearEnv(t *testing.T) string {
	t.Helper()
	for _, key := range []string{
		"GRANTQA_LISTEN_ADDRESS", "GRANTQA_QUERY_TIMEOUT", "GRANTQA_LOG_LEVEL",
		"GRANTQA_LOG_JSON", "GRANTQA_OUTPUT_FORMAT", "GRANTQA_REDIS_ADDRESS",
		"GRANTQA_REDIS_PASSWORD", "GRANTQA_REDIS_DB",
		"DATABASE_URL", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"DB_SSLMODE", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_QUERY_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Setenv("GRANTQA_CONFIG_DIR", dir)
	return dir
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %v, want %v", cfg.ListenAddress, DefaultListenAddress)
	}
	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, DefaultOutputFormat)
	}
	if cfg.Database.QueryTimeout != 5*time.Second {
		t.Errorf("QueryTimeout = %v, want 5s", cfg.Database.QueryTimeout)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{OutputFormatText, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"invalid", false},
		{"", false},
		{"JSON", false},
	}

	for _, tc := range tests {
		if got := tc.format.IsValid(); got != tc.valid {
			t.Errorf("OutputFormat(%q).IsValid() = %v, want %v", tc.format, got, tc.valid)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty listen address", func(c *Config) { c.ListenAddress = "" }, "listen_address"},
		{"bad output format", func(c *Config) { c.OutputFormat = "xml" }, "output_format"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"zero query timeout", func(c *Config) { c.Database.QueryTimeout = 0 }, "query_timeout"},
		{"negative redis db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

// TestLoad_NoFile verifies that defaults apply without a config file.
func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %v, want default", cfg.ListenAddress)
	}
}

// TestLoad_FileThenEnv verifies precedence: file overrides defaults, env overrides file.
func TestLoad_FileThenEnv(t *testing.T) {
	dir := clearEnv(t)
	writeConfig(t, dir, `
listen_address: ":9090"
output_format: json
log:
  level: debug
database:
  url: postgres://file@localhost/grants
  query_timeout: 2s
  max_conns: 20
redis:
  address: localhost:6379
  db: 2
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddress != ":9090" {
		t.Errorf("ListenAddress = %v, want :9090", cfg.ListenAddress)
	}
	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.Database.QueryTimeout != 2*time.Second {
		t.Errorf("QueryTimeout = %v, want 2s", cfg.Database.QueryTimeout)
	}
	if !cfg.Redis.Enabled() || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v, want localhost:6379 db 2", cfg.Redis)
	}

	t.Setenv("GRANTQA_LISTEN_ADDRESS", ":7070")
	t.Setenv("GRANTQA_QUERY_TIMEOUT", "750ms")
	t.Setenv("GRANTQA_LOG_JSON", "true")

	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddress != ":7070" {
		t.Errorf("ListenAddress = %v, want :7070", cfg.ListenAddress)
	}
	if cfg.Database.QueryTimeout != 750*time.Millisecond {
		t.Errorf("QueryTimeout = %v, want 750ms", cfg.Database.QueryTimeout)
	}
	if !cfg.Log.JSON {
		t.Error("Log.JSON should be set from env")
	}
}

func TestLoad_InvalidInputsFailFast(t *testing.T) {
	t.Run("bad env duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GRANTQA_QUERY_TIMEOUT", "soon")
		if _, err := Load(); err == nil {
			t.Error("expected error for malformed GRANTQA_QUERY_TIMEOUT")
		}
	})

	t.Run("bad file duration", func(t *testing.T) {
		dir := clearEnv(t)
		writeConfig(t, dir, "database:\n  query_timeout: forever\n")
		if _, err := Load(); err == nil {
			t.Error("expected error for malformed database.query_timeout")
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		dir := clearEnv(t)
		writeConfig(t, dir, "listen_address: [unterminated\n")
		if _, err := Load(); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("invalid output format", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GRANTQA_OUTPUT_FORMAT", "xml")
		if _, err := Load(); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestDB_Precedence(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.Database.URL = "postgres://file@localhost/grants"
	cfg.Database.QueryTimeout = 3 * time.Second
	cfg.Database.MaxConns = 15

	dbCfg := cfg.DB()
	if dbCfg.URL != "postgres://file@localhost/grants" {
		t.Errorf("URL = %v, want file value", dbCfg.URL)
	}
	if dbCfg.QueryTimeout != 3*time.Second {
		t.Errorf("QueryTimeout = %v, want 3s", dbCfg.QueryTimeout)
	}
	if dbCfg.MaxConns != 15 {
		t.Errorf("MaxConns = %v, want 15", dbCfg.MaxConns)
	}

	t.Setenv("DATABASE_URL", "postgres://env@db/grants")
	if got := cfg.DB().URL; got != "postgres://env@db/grants" {
		t.Errorf("URL = %v, want env value", got)
	}
}

func TestLogging(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "warn"
	cfg.Log.JSON = true

	lc := cfg.Logging()
	if lc.Level != "warn" {
		t.Errorf("Level = %v, want warn", lc.Level)
	}
	if !lc.JSONFormat {
		t.Error("JSONFormat should follow Log.JSON")
	}
}

// TestSave_RoundTrip verifies that a saved config loads back.
func TestSave_RoundTrip(t *testing.T) {
	dir := clearEnv(t)

	cfg := DefaultConfig()
	cfg.ListenAddress = ":8181"
	cfg.Database.QueryTimeout = 1500 * time.Millisecond
	cfg.Redis = RedisConfig{Address: "redis:6379", Password: "secret", DB: 1}

	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DefaultConfigFile))
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("saved config must not contain the Redis password")
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ListenAddress != ":8181" {
		t.Errorf("ListenAddress = %v, want :8181", loaded.ListenAddress)
	}
	if loaded.Database.QueryTimeout != 1500*time.Millisecond {
		t.Errorf("QueryTimeout = %v, want 1.5s", loaded.Database.QueryTimeout)
	}
	if loaded.Redis.Address != "redis:6379" {
		t.Errorf("Redis.Address = %v, want redis:6379", loaded.Redis.Address)
	}
}
