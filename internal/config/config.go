package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Search SearchConfig `toml:"search"`
	Scroll ScrollConfig `toml:"scroll"`
	Log    LogConfig    `toml:"log"`
	Stats  StatsConfig  `toml:"stats"`
}

// SearchConfig configures the search sessions and the upstream API
type SearchConfig struct {
	BaseURL        string   `toml:"base_url"`
	Debounce       Duration `toml:"debounce"`
	RequestTimeout Duration `toml:"request_timeout"`
	RateLimit      float64  `toml:"rate_limit"` // requests per second, 0 disables pacing
	Burst          int      `toml:"burst"`
}

// ScrollConfig configures the scroll panes
type ScrollConfig struct {
	Throttle Duration `toml:"throttle"`
	Items    int      `toml:"items"`
}

// LogConfig configures the log file
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	Path  string `toml:"path"`
}

// StatsConfig configures the optional Redis mirror of the counters
type StatsConfig struct {
	RedisAddr     string   `toml:"redis_addr"` // empty keeps counters in memory only
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	Prefix        string   `toml:"prefix"`
	TTL           Duration `toml:"ttl"`
	Bucket        string   `toml:"bucket"` // "minute" or "none"
}

// Duration is a time.Duration written as "300ms" in TOML
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			BaseURL:        "https://jsonplaceholder.typicode.com",
			Debounce:       Duration{300 * time.Millisecond},
			RequestTimeout: Duration{10 * time.Second},
			RateLimit:      10,
			Burst:          5,
		},
		Scroll: ScrollConfig{
			Throttle: Duration{100 * time.Millisecond},
			Items:    50,
		},
		Log: LogConfig{
			Level: "info",
			Path:  "ratelab.log",
		},
		Stats: StatsConfig{
			Prefix: "ratelab:stats",
			TTL:    Duration{24 * time.Hour},
			Bucket: "minute",
		},
	}
}

// DefaultPath returns the per-user config file location
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			configDir = "."
		}
		configDir = filepath.Join(configDir, ".config")
	}
	return filepath.Join(configDir, "ratelab", "config.toml")
}

// Load reads path over the defaults and applies RATELAB_* environment
// overrides. An empty path means DefaultPath, which may be absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment. All malformed values are
// reported together.
func (c *Config) applyEnv(getenv func(string) string) error {
	var problems []string

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) {
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			return
		}
		v, err := time.ParseDuration(raw)
		if err != nil || v < 0 {
			problems = append(problems, fmt.Sprintf("%s must be a non-negative duration, got %q", key, raw))
			return
		}
		dst.Duration = v
	}
	integer := func(key string, dst *int) {
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			return
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			problems = append(problems, fmt.Sprintf("%s must be a non-negative integer, got %q", key, raw))
			return
		}
		*dst = v
	}

	str("RATELAB_BASE_URL", &c.Search.BaseURL)
	dur("RATELAB_DEBOUNCE", &c.Search.Debounce)
	dur("RATELAB_REQUEST_TIMEOUT", &c.Search.RequestTimeout)
	if raw := strings.TrimSpace(getenv("RATELAB_RATE_LIMIT")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			problems = append(problems, fmt.Sprintf("RATELAB_RATE_LIMIT must be a non-negative number, got %q", raw))
		} else {
			c.Search.RateLimit = v
		}
	}
	integer("RATELAB_BURST", &c.Search.Burst)
	dur("RATELAB_THROTTLE", &c.Scroll.Throttle)
	integer("RATELAB_SCROLL_ITEMS", &c.Scroll.Items)
	str("RATELAB_LOG_LEVEL", &c.Log.Level)
	str("RATELAB_LOG_PATH", &c.Log.Path)
	str("RATELAB_REDIS_ADDR", &c.Stats.RedisAddr)
	str("RATELAB_REDIS_PASSWORD", &c.Stats.RedisPassword)
	integer("RATELAB_REDIS_DB", &c.Stats.RedisDB)
	str("RATELAB_STATS_PREFIX", &c.Stats.Prefix)
	dur("RATELAB_STATS_TTL", &c.Stats.TTL)
	str("RATELAB_STATS_BUCKET", &c.Stats.Bucket)

	if len(problems) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Search.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("search.base_url must be an http(s) URL, got %q", c.Search.BaseURL)
	}
	if c.Search.Debounce.Duration < 0 {
		return fmt.Errorf("search.debounce must not be negative")
	}
	if c.Search.RequestTimeout.Duration < 0 {
		return fmt.Errorf("search.request_timeout must not be negative")
	}
	if c.Search.RateLimit < 0 {
		return fmt.Errorf("search.rate_limit must not be negative")
	}
	if c.Search.Burst < 0 {
		return fmt.Errorf("search.burst must not be negative")
	}
	if c.Scroll.Throttle.Duration < 0 {
		return fmt.Errorf("scroll.throttle must not be negative")
	}
	if c.Scroll.Items <= 0 {
		return fmt.Errorf("scroll.items must be positive")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Stats.TTL.Duration < 0 {
		return fmt.Errorf("stats.ttl must not be negative")
	}
	switch strings.ToLower(c.Stats.Bucket) {
	case "minute", "none":
	default:
		return fmt.Errorf("stats.bucket must be minute or none, got %q", c.Stats.Bucket)
	}
	return nil
}

// SlogLevel parses Log.Level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", l.Level)
	}
	return level, nil
}

// Save writes the configuration to path as TOML
func (c *Config) Save(path string) error {
	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
