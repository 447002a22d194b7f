package config

import (
	"fmt"
	"runtime"
)

// ScanConfig controls codebase scanning and the coverage gate.
type ScanConfig struct {
	// Workers is the number of files parsed concurrently
	// Default: number of CPUs, Range: 1-256
	Workers int `yaml:"workers"`

	// MinCoverage is the minimum coverage percentage for `cpt coverage`
	// 0 disables the check. Range: 0-100
	MinCoverage float64 `yaml:"min_coverage"`

	// MinGranularity is the minimum aggregate granularity score
	// 0 disables the check. Range: 0-1
	MinGranularity float64 `yaml:"min_granularity"`
}

// DefaultScanConfig returns the default scan configuration
func DefaultScanConfig() ScanConfig {
	workers := runtime.NumCPU()
	if workers > 256 {
		workers = 256
	}
	return ScanConfig{
		Workers:        workers,
		MinCoverage:    0,
		MinGranularity: 0,
	}
}

// Validate checks if the configuration has valid values
func (c ScanConfig) Validate() error {
	if c.Workers < 1 || c.Workers > 256 {
		return fmt.Errorf("scan.workers must be between 1 and 256 (got %d)", c.Workers)
	}
	if c.MinCoverage < 0 || c.MinCoverage > 100 {
		return fmt.Errorf("scan.min_coverage must be between 0 and 100 (got %g)", c.MinCoverage)
	}
	if c.MinGranularity < 0 || c.MinGranularity > 1 {
		return fmt.Errorf("scan.min_granularity must be between 0 and 1 (got %g)", c.MinGranularity)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c ScanConfig) String() string {
	return fmt.Sprintf(
		"ScanConfig{Workers: %d, MinCoverage: %g, MinGranularity: %g}",
		c.Workers, c.MinCoverage, c.MinGranularity,
	)
}

// applyEnv overrides fields from the environment.
//
// Environment variables:
//   - CPT_SCAN_WORKERS: concurrent file parsers (default: number of CPUs)
//   - CPT_MIN_COVERAGE: coverage gate in percent (default: 0, off)
//   - CPT_MIN_GRANULARITY: granularity gate, 0-1 (default: 0, off)
func (c *ScanConfig) applyEnv() error {
	if err := parseEnvInt("CPT_SCAN_WORKERS", &c.Workers); err != nil {
		return err
	}
	if err := parseEnvFloat("CPT_MIN_COVERAGE", &c.MinCoverage); err != nil {
		return err
	}
	return parseEnvFloat("CPT_MIN_GRANULARITY", &c.MinGranularity)
}
