package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the taskforgemcp server.
// Precedence: environment variables > config file > defaults.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Cache     CacheConfig     `toml:"cache"`
	Events    EventsConfig    `toml:"events"`
	Engine    EngineConfig    `toml:"engine"`
	Completer CompleterConfig `toml:"completer"`
}

// CompleterConfig points the story decomposer's TextCompleter at an
// OpenAI-compatible chat completions endpoint. APIKey is never read from
// the config file, only from TASKFORGEMCP_COMPLETER_API_KEY, so it never
// lands in a committed taskforgemcp.toml.
type CompleterConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"-"`
}

// StoreConfig holds the SQLite database location.
type StoreConfig struct {
	Path string `toml:"path"` // file path, or ":memory:" for an ephemeral store
}

// ServerConfig holds MCP server metadata.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// CacheConfig holds in-memory cache TTLs. Load starts from 300, 900 and 60
// seconds; a zero set explicitly is passed to internal/cache unchanged,
// where a zero default TTL means entries never expire, a zero knowledge TTL
// falls back to the default TTL, and a zero cleanup interval disables the
// expiry sweep.
type CacheConfig struct {
	DefaultTTLSeconds   int `toml:"default_ttl_seconds"`
	KnowledgeTTLSeconds int `toml:"knowledge_ttl_seconds"` // templates, patterns, guidelines
	CleanupIntervalSeconds int `toml:"cleanup_interval_seconds"`
}

// EventsConfig holds event-queue purge scheduling.
type EventsConfig struct {
	PurgeEnabled         bool `toml:"purge_enabled"`
	PurgeIntervalMinutes int  `toml:"purge_interval_minutes"`
	RetainProcessedHours int  `toml:"retain_processed_hours"`
}

// EngineConfig holds task-engine tuning values not fixed by spec.md as
// hard constants.
type EngineConfig struct {
	// AutoAnalysisEnabled is loaded from the config file and the environment,
	// but nothing in the server reads it: prepare_task_for_execution emits
	// auto_analysis_started regardless of its value.
	AutoAnalysisEnabled bool `toml:"auto_analysis_enabled"`
}

func (c *EventsConfig) purgeInterval() time.Duration {
	return time.Duration(c.PurgeIntervalMinutes) * time.Minute
}

// PurgeInterval exposes the configured purge cadence as a time.Duration.
func (c *Config) PurgeInterval() time.Duration {
	return c.Events.purgeInterval()
}

// RetainProcessed exposes how long processed events are kept before purge.
func (c *Config) RetainProcessed() time.Duration {
	return time.Duration(c.Events.RetainProcessedHours) * time.Hour
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via the configPath parameter, when non-empty
//  2. TASKFORGEMCP_CONFIG environment variable
//  3. ./taskforgemcp.toml (current directory)
//  4. ~/.config/taskforgemcp/taskforgemcp.toml (XDG-style)
//
// All fields are optional in the config file. Environment variables always
// override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Path: "taskforgemcp.db",
		},
		Server: ServerConfig{
			Name:    "taskforgemcp",
			Version: "0.1.0",
		},
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			DefaultTTLSeconds:      300,
			KnowledgeTTLSeconds:    900,
			CleanupIntervalSeconds: 60,
		},
		Events: EventsConfig{
			PurgeEnabled:         true,
			PurgeIntervalMinutes: 60,
			RetainProcessedHours: 24,
		},
		Engine: EngineConfig{
			AutoAnalysisEnabled: true,
		},
		Completer: CompleterConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the TOML config file. If no file is found,
// this is a no-op (config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil // no config file found; rely on defaults + env
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

// resolveConfigPath determines which config file to use. Returns empty string
// if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit // caller wants this file; let DecodeFile report if missing
	}

	if p := os.Getenv("TASKFORGEMCP_CONFIG"); p != "" {
		return p
	}

	if _, err := os.Stat("taskforgemcp.toml"); err == nil {
		return "taskforgemcp.toml"
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/taskforgemcp/taskforgemcp.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnv overlays environment variables on top of existing config values.
// An env var only takes effect if it is non-empty; an integer value must
// also parse as a positive number.
func (c *Config) applyEnv() {
	envOverride("TASKFORGEMCP_STORE_PATH", &c.Store.Path)
	envOverride("TASKFORGEMCP_LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("TASKFORGEMCP_CACHE_DEFAULT_TTL_SECONDS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			c.Cache.DefaultTTLSeconds = n
		}
	}
	if v := os.Getenv("TASKFORGEMCP_EVENTS_PURGE_ENABLED"); v != "" {
		c.Events.PurgeEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TASKFORGEMCP_EVENTS_PURGE_INTERVAL_MINUTES"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			c.Events.PurgeIntervalMinutes = n
		}
	}
	if v := os.Getenv("TASKFORGEMCP_ENGINE_AUTO_ANALYSIS_ENABLED"); v != "" {
		c.Engine.AutoAnalysisEnabled = v == "true" || v == "1"
	}
	envOverride("TASKFORGEMCP_COMPLETER_BASE_URL", &c.Completer.BaseURL)
	envOverride("TASKFORGEMCP_COMPLETER_MODEL", &c.Completer.Model)
	envOverride("TASKFORGEMCP_COMPLETER_API_KEY", &c.Completer.APIKey)
}

// Validate checks that required fields are present and internally consistent.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Events.PurgeEnabled && c.Events.PurgeIntervalMinutes <= 0 {
		return fmt.Errorf("events.purge_interval_minutes must be positive when purge is enabled")
	}
	return nil
}

// envOverride sets *dst to the value of the named env var, if it is non-empty.
func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
