// Package config defines scan settings, risk weights and their defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is returned by Validate for any rejected setting.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults.
const (
	DefaultPatternProfile     = "vuln"
	DefaultStaleDays          = 365
	DefaultConcurrencyLimit   = 32
	DefaultBatchSize          = 50
	DefaultProbeTimeout       = 30
	DefaultMaxFilesPerCommit  = 20
	DefaultLargeRepoThreshold = 20000
)

// ScanConfig controls a single history scan.
type ScanConfig struct {
	// PatternProfile selects the pattern subset (see patterns.Profiles).
	PatternProfile string `mapstructure:"pattern_profile"`
	// StaleThresholdDays is the age after which an untouched file is stale.
	StaleThresholdDays int `mapstructure:"stale_threshold_days"`
	// CommitCap limits how many recent commits are processed. 0 means no cap.
	CommitCap int `mapstructure:"commit_cap"`
	// ConcurrencyLimit is the number of changed-file probes in flight.
	ConcurrencyLimit int `mapstructure:"concurrency_limit"`
	// BatchSize is the number of commits read per batch.
	BatchSize int `mapstructure:"batch_size"`
	// ProbeTimeoutSeconds bounds every changed-file probe.
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds"`
	// MaxFilesPerCommit truncates probe results.
	MaxFilesPerCommit int `mapstructure:"max_files_per_commit"`
	// LargeRepoThreshold is the reachable commit count above which history is sampled.
	LargeRepoThreshold int `mapstructure:"large_repo_threshold"`
	// PatternWorkers bounds parallel pattern evaluation. 0 uses GOMAXPROCS.
	PatternWorkers int `mapstructure:"pattern_workers"`
}

// DefaultScanConfig returns the stock scan settings.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		PatternProfile:      DefaultPatternProfile,
		StaleThresholdDays:  DefaultStaleDays,
		ConcurrencyLimit:    DefaultConcurrencyLimit,
		BatchSize:           DefaultBatchSize,
		ProbeTimeoutSeconds: DefaultProbeTimeout,
		MaxFilesPerCommit:   DefaultMaxFilesPerCommit,
		LargeRepoThreshold:  DefaultLargeRepoThreshold,
	}
}

// ProbeTimeout returns the per-probe deadline.
func (c ScanConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// StaleThreshold returns the staleness window.
func (c ScanConfig) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdDays) * 24 * time.Hour
}

// SampleLimit returns how many of the most recent commits may be processed.
func (c ScanConfig) SampleLimit() int {
	if c.CommitCap > 0 && c.CommitCap < c.LargeRepoThreshold {
		return c.CommitCap
	}
	return c.LargeRepoThreshold
}

// Validate rejects non-positive limits and an empty profile.
// Profile names are checked against the catalog when the pattern engine is built.
func (c ScanConfig) Validate() error {
	var problems []string
	if strings.TrimSpace(c.PatternProfile) == "" {
		problems = append(problems, "pattern_profile must be set")
	}
	positive := []struct {
		name  string
		value int
	}{
		{"stale_threshold_days", c.StaleThresholdDays},
		{"concurrency_limit", c.ConcurrencyLimit},
		{"batch_size", c.BatchSize},
		{"probe_timeout_seconds", c.ProbeTimeoutSeconds},
		{"max_files_per_commit", c.MaxFilesPerCommit},
		{"large_repo_threshold", c.LargeRepoThreshold},
	}
	for _, p := range positive {
		if p.value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %d", p.name, p.value))
		}
	}
	if c.CommitCap < 0 {
		problems = append(problems, fmt.Sprintf("commit_cap must not be negative, got %d", c.CommitCap))
	}
	if c.PatternWorkers < 0 {
		problems = append(problems, fmt.Sprintf("pattern_workers must not be negative, got %d", c.PatternWorkers))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
