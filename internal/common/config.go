package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Polling bounds. The floor exists so a misconfigured client cannot hammer
// the backend; the default matches the backend's own progress cadence.
const (
	DefaultPollInterval = 4 * time.Second
	MinPollInterval     = 1 * time.Second
	DefaultHideDelay    = 2 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second
)

// Config represents the tracker configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Backend     BackendConfig `toml:"backend"`
	Poller      PollerConfig  `toml:"poller"`
	Tracker     TrackerConfig `toml:"tracker"`
	Push        PushConfig    `toml:"push"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
}

// BackendConfig describes the job backend this client talks to.
type BackendConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"`
	RequestTimeout string `toml:"request_timeout"` // e.g. "30s"
}

// PollerConfig controls the job-activity polling loop.
type PollerConfig struct {
	Interval string `toml:"interval"` // e.g. "4s" - floored at 1s
}

// TrackerConfig controls reconciler behavior.
type TrackerConfig struct {
	HideDelay     string `toml:"hide_delay"`     // confirmation window after a live cancel, e.g. "2s"
	ActivityLimit int    `toml:"activity_limit"` // entries kept per active job
}

// PushConfig controls the optional WebSocket status stream.
type PushConfig struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`             // ws:// or wss:// status stream endpoint
	Throttle       string `toml:"throttle"`        // min spacing between applied frames, e.g. "1s"
	ReconnectDelay string `toml:"reconnect_delay"` // e.g. "5s"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration for the
// session-scoped suppressor store.
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig returns the built-in defaults. File and environment
// values are layered on top.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8085",
			RequestTimeout: "30s",
		},
		Poller: PollerConfig{
			Interval: "4s",
		},
		Tracker: TrackerConfig{
			HideDelay:     "2s",
			ActivityLimit: 5,
		},
		Push: PushConfig{
			Enabled:        false,
			URL:            "",
			Throttle:       "1s", // Max 1 applied progress frame per second
			ReconnectDelay: "5s",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/session",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> environment. Later files override
// earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SPECTO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if baseURL := os.Getenv("SPECTO_BACKEND_URL"); baseURL != "" {
		config.Backend.BaseURL = baseURL
	}
	if timeout := os.Getenv("SPECTO_BACKEND_TIMEOUT"); timeout != "" {
		config.Backend.RequestTimeout = timeout
	}
	if interval := os.Getenv("SPECTO_POLL_INTERVAL"); interval != "" {
		config.Poller.Interval = interval
	}
	if pushURL := os.Getenv("SPECTO_PUSH_URL"); pushURL != "" {
		config.Push.URL = pushURL
		config.Push.Enabled = true
	}
	if badgerPath := os.Getenv("SPECTO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if level := os.Getenv("SPECTO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SPECTO_LOG_OUTPUT"); output != "" {
		parts := strings.Split(output, ",")
		outputs := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// Validate validates the configuration using go-playground/validator plus
// duration-format checks for the string durations.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	for name, value := range map[string]string{
		"backend.request_timeout": c.Backend.RequestTimeout,
		"poller.interval":         c.Poller.Interval,
		"tracker.hide_delay":      c.Tracker.HideDelay,
		"push.throttle":           c.Push.Throttle,
		"push.reconnect_delay":    c.Push.ReconnectDelay,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, value, err)
		}
	}

	if c.Push.Enabled && c.Push.URL == "" {
		return fmt.Errorf("push.url is required when push is enabled")
	}

	return nil
}

// PollInterval returns the configured poll interval, defaulted and floored.
func (c *Config) PollInterval() time.Duration {
	return parseDurationOr(c.Poller.Interval, DefaultPollInterval, MinPollInterval)
}

// HideDelay returns the cancellation confirmation window.
func (c *Config) HideDelay() time.Duration {
	return parseDurationOr(c.Tracker.HideDelay, DefaultHideDelay, 0)
}

// RequestTimeout returns the HTTP client timeout.
func (c *Config) RequestTimeout() time.Duration {
	return parseDurationOr(c.Backend.RequestTimeout, DefaultHTTPTimeout, 0)
}

// PushThrottle returns the minimum spacing between applied push frames.
func (c *Config) PushThrottle() time.Duration {
	return parseDurationOr(c.Push.Throttle, time.Second, 0)
}

// PushReconnectDelay returns the wait before a push reconnect attempt.
func (c *Config) PushReconnectDelay() time.Duration {
	return parseDurationOr(c.Push.ReconnectDelay, 5*time.Second, 0)
}

// ActivityLimit returns the per-job activity cap.
func (c *Config) ActivityLimit() int {
	if c.Tracker.ActivityLimit > 0 {
		return c.Tracker.ActivityLimit
	}
	return 5
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func parseDurationOr(value string, fallback, floor time.Duration) time.Duration {
	d := fallback
	if value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			d = parsed
		}
	}
	if floor > 0 && d < floor {
		d = floor
	}
	return d
}
