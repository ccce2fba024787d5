// Package config provides configuration management for workoutdiary.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
	"github.com/tailscale/hujson"
)

const (
	// DefaultWorkerPort is the port the worker listens on.
	DefaultWorkerPort = 37880
	// DefaultRemoteURL is the base URL of the exercise record API.
	DefaultRemoteURL = "http://localhost:8080/"
	// SourceRemote reads exercises and records from the remote API.
	SourceRemote = "remote"
	// SourceLocal reads exercises and records from the local database.
	SourceLocal = "local"
)

// Source modes accepted in WORKOUT_SOURCE.
var SourceModes = []string{SourceRemote, SourceLocal}

var errInvalidSource = errors.New("invalid source mode")

// Config holds the workoutdiary settings.
type Config struct {
	RemoteURL      string  `json:"WORKOUT_REMOTE_URL"`
	Username       string  `json:"WORKOUT_USERNAME"`
	Source         string  `json:"WORKOUT_SOURCE"`
	DBPath         string  `json:"WORKOUT_DB_PATH"`
	DSN            string  `json:"WORKOUT_DSN"`
	CatalogPath    string  `json:"WORKOUT_CATALOG_PATH"`
	DefaultFilters string  `json:"WORKOUT_DEFAULT_MUSCLE_GROUPS"`
	RateLimit      float64 `json:"WORKOUT_REMOTE_RATE_LIMIT"`
	WorkerPort     int     `json:"WORKOUT_WORKER_PORT"`
	MaxConns       int     `json:"WORKOUT_DB_MAX_CONNS"`
	ListPageSize   int     `json:"WORKOUT_LIST_PAGE_SIZE"`
	ListCapacity   int     `json:"WORKOUT_LIST_CAPACITY"`
	ChartPageSize  int     `json:"WORKOUT_CHART_PAGE_SIZE"`
	ChartCapacity  int     `json:"WORKOUT_CHART_CAPACITY"`
	ChartWindow    int     `json:"WORKOUT_CHART_WINDOW"`
	DebounceMS     int     `json:"WORKOUT_DEBOUNCE_MS"`
	FetchTimeoutMS int     `json:"WORKOUT_FETCH_TIMEOUT_MS"`
	RateBurst      int     `json:"WORKOUT_REMOTE_RATE_BURST"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		WorkerPort:     DefaultWorkerPort,
		RemoteURL:      DefaultRemoteURL,
		Username:       "user",
		Source:         SourceRemote,
		DBPath:         DBPath(),
		MaxConns:       4,
		ListPageSize:   20,
		ListCapacity:   500,
		ChartPageSize:  5,
		ChartCapacity:  10,
		ChartWindow:    5,
		DebounceMS:     300,
		FetchTimeoutMS: 10000,
		RateLimit:      10,
		RateBurst:      5,
	}
}

// DataDir returns the data directory path.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".workoutdiary")
}

// DBPath returns the default local database path.
func DBPath() string {
	return filepath.Join(DataDir(), "workoutdiary.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// CatalogPath returns the default muscle-group catalog path.
func CatalogPath() string {
	return filepath.Join(DataDir(), "muscle-groups.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes the default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Save(Default(), path)
}

// EnsureAll creates the data directory and default settings.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := EnsureSettings(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Save writes cfg to path atomically.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Load reads the settings file over the defaults. A missing or malformed
// file leaves the defaults in place. Environment overrides apply last.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		if perr := parseSettings(data, cfg); perr != nil {
			log.Warn().Err(perr).Str("path", SettingsPath()).Msg("Ignoring malformed settings file")
			cfg = Default()
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read settings: %w", err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseSettings decodes JSON with comments and trailing commas onto cfg.
func parseSettings(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	if err := json.Unmarshal(standardized, cfg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WORKOUT_REMOTE_URL"); v != "" {
		cfg.RemoteURL = v
	}
	if v := os.Getenv("WORKOUT_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("WORKOUT_SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := os.Getenv("WORKOUT_DSN"); v != "" {
		cfg.DSN = v
	}
	if port, ok := envPort(); ok {
		cfg.WorkerPort = port
	}
}

func envPort() (int, bool) {
	port, err := strconv.Atoi(os.Getenv("WORKOUT_WORKER_PORT"))
	if err != nil || port <= 0 {
		return 0, false
	}
	return port, true
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	for _, m := range SourceModes {
		if c.Source == m {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (want one of %s)", errInvalidSource, c.Source, strings.Join(SourceModes, ", "))
}

// Debounce returns the search quiescence interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// FetchTimeout returns the per-request timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// MuscleGroupFilters returns the configured default muscle-group filters.
func (c *Config) MuscleGroupFilters() []string {
	return splitTrim(c.DefaultFilters)
}

// DatabaseDSN returns the DSN for the local store, falling back to the
// SQLite database path.
func (c *Config) DatabaseDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return c.DBPath
}

var (
	global     *Config
	globalOnce sync.Once
)

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Using default configuration")
			cfg = Default()
		}
		global = cfg
	})
	return global
}

// GetWorkerPort returns the worker port, preferring WORKOUT_WORKER_PORT.
func GetWorkerPort() int {
	if port, ok := envPort(); ok {
		return port
	}
	return Get().WorkerPort
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
