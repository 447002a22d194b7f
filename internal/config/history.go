package config

import (
	"fmt"
	"os"
	"strconv"
)

// HistoryConfig controls the SQLite run history written by validate and
// coverage.
type HistoryConfig struct {
	// Enabled controls whether runs are recorded
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the database file, relative to the project root
	// Default: .gen/history.db
	Path string `yaml:"path"`

	// MaxRuns is how many runs to keep; older runs are pruned after each
	// record. 0 keeps everything.
	// Default: 200, Range: 0-100000
	MaxRuns int `yaml:"max_runs"`
}

// DefaultHistoryConfig returns the default history configuration
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled: true,
		Path:    ".gen/history.db",
		MaxRuns: 200,
	}
}

// Validate checks if the configuration has valid values
func (c HistoryConfig) Validate() error {
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("history.path must be set when history is enabled")
	}
	if c.MaxRuns < 0 || c.MaxRuns > 100000 {
		return fmt.Errorf("history.max_runs must be between 0 and 100000 (got %d)", c.MaxRuns)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c HistoryConfig) String() string {
	return fmt.Sprintf("HistoryConfig{Enabled: %t, Path: %s, MaxRuns: %d}", c.Enabled, c.Path, c.MaxRuns)
}

// applyEnv overrides fields from the environment.
//
// Environment variables:
//   - CPT_HISTORY_ENABLED: record runs (default: true)
//   - CPT_HISTORY_PATH: database file (default: .gen/history.db)
func (c *HistoryConfig) applyEnv() error {
	if err := parseEnvBool("CPT_HISTORY_ENABLED", &c.Enabled); err != nil {
		return err
	}
	return parseEnvString("CPT_HISTORY_PATH", &c.Path)
}

// lookupEnv parses key with parse and stores the result in dest. An unset
// or empty variable leaves dest untouched.
func lookupEnv[T any](key string, dest *T, parse func(string) (T, error)) error {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return nil
	}
	v, err := parse(raw)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = v
	return nil
}

func parseEnvInt(key string, dest *int) error {
	return lookupEnv(key, dest, strconv.Atoi)
}

func parseEnvFloat(key string, dest *float64) error {
	return lookupEnv(key, dest, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func parseEnvBool(key string, dest *bool) error {
	return lookupEnv(key, dest, strconv.ParseBool)
}

func parseEnvString(key string, dest *string) error {
	return lookupEnv(key, dest, func(s string) (string, error) { return s, nil })
}
