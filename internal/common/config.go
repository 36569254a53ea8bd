package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration loaded from TOML.
// This covers server-level settings only; the hot-reloadable runtime
// settings store (API keys, model pools, watchlist defaults) lives in
// internal/services/settings and is managed through its own backend.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Settings    SettingsConfig  `toml:"settings"`
	Analysis    AnalysisConfig  `toml:"analysis"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Providers   ProvidersConfig `toml:"providers"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// SettingsConfig selects the runtime settings backend. Read once at
// startup; switching backends requires a restart.
type SettingsConfig struct {
	Backend string `toml:"backend"`  // "file" (dotenv) or "badger"
	EnvFile string `toml:"env_file"` // Path to dotenv file when backend = "file"
}

// AnalysisConfig contains tuning for the analysis pipeline
type AnalysisConfig struct {
	Workers         int           `toml:"workers"`           // Task queue worker pool size (default: 2)
	PanelWorkers    int           `toml:"panel_workers"`     // Expert panel fan-out cap (default: 3)
	KLineDays       int           `toml:"kline_days"`        // History bars fetched for context (default: 60)
	NewsResults     int           `toml:"news_results"`      // Search results attached to context (default: 5)
	NewsDays        int           `toml:"news_days"`         // Search recency window in days (default: 7)
	HTTPTimeout     time.Duration `toml:"http_timeout"`      // Provider HTTP timeout (default: 30s)
	LLMTimeout      time.Duration `toml:"llm_timeout"`       // Per-endpoint LLM call ceiling (default: 4m)
	TaskRetention   int           `toml:"task_retention"`    // Terminal tasks kept queryable in memory (default: 1000)
	SubscriberQueue int           `toml:"subscriber_queue"`  // Per-subscriber event buffer (default: 64)
	PromptTemplates string        `toml:"prompt_templates"`  // Directory with analyst prompt templates
}

// SchedulerConfig controls the cron-driven watchlist batch analysis
type SchedulerConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"` // Cron expression; overridden by SCHEDULE_CRON setting when set
}

// ProvidersConfig contains data-provider tuning shared by all adapters
type ProvidersConfig struct {
	SpotCacheTTL   time.Duration `toml:"spot_cache_ttl"`   // Bulk realtime cache TTL (default: 20m)
	SearchCacheTTL time.Duration `toml:"search_cache_ttl"` // Search result cache TTL (default: 10m)
	SleepMin       time.Duration `toml:"sleep_min"`        // Scraper-style provider inter-request floor (default: 1s)
	SleepMax       time.Duration `toml:"sleep_max"`        // Scraper-style provider inter-request ceiling (default: 3s)
	AKShareBaseURL string        `toml:"akshare_base_url"` // akshare proxy service base URL
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in augur.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Settings: SettingsConfig{
			Backend: "file",
			EnvFile: ".env",
		},
		Analysis: AnalysisConfig{
			Workers:         2,
			PanelWorkers:    3,
			KLineDays:       60,
			NewsResults:     5,
			NewsDays:        7,
			HTTPTimeout:     30 * time.Second,
			LLMTimeout:      4 * time.Minute,
			TaskRetention:   1000,
			SubscriberQueue: 64,
			PromptTemplates: "./prompts",
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
			Cron:    "0 30 17 * * 1-5", // Weekdays after A-share close
		},
		Providers: ProvidersConfig{
			SpotCacheTTL:   20 * time.Minute,
			SearchCacheTTL: 10 * time.Minute,
			SleepMin:       1 * time.Second,
			SleepMax:       3 * time.Second,
			AKShareBaseURL: "http://localhost:8888",
		},
	}
}

// LoadFromFiles loads configuration from default values, then applies
// config files in order (later files override earlier ones), then
// environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("AUGUR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("AUGUR_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("AUGUR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("AUGUR_DATA_DIR"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("AUGUR_ENV_FILE"); v != "" {
		config.Settings.EnvFile = v
	}
	if v := os.Getenv("AUGUR_SETTINGS_BACKEND"); v != "" {
		config.Settings.Backend = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// validateConfig checks configuration invariants that would otherwise
// surface as confusing runtime failures.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch strings.ToLower(config.Settings.Backend) {
	case "file", "badger":
	default:
		return fmt.Errorf("invalid settings backend %q (expected \"file\" or \"badger\")", config.Settings.Backend)
	}

	if config.Analysis.Workers <= 0 {
		config.Analysis.Workers = 2
	}
	if config.Analysis.Workers > 8 {
		return fmt.Errorf("analysis workers %d exceeds maximum of 8", config.Analysis.Workers)
	}
	if config.Analysis.PanelWorkers <= 0 {
		config.Analysis.PanelWorkers = 3
	}

	return nil
}

// IsDevelopment returns true when running in development mode
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) != "production"
}
