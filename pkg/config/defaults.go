package config

import (
	"strings"
	"time"

	"github.com/marmos91/filehandle/pkg/lockwait"
)

// Default values used when a field is not configured.
const (
	DefaultFilePath     = "test.txt"
	DefaultPermissions  = "0644"
	DefaultHoldDuration = 30 * time.Second
	DefaultHoldText     = "It's a locked file"
	DefaultPollTimeout  = "30s"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Strategy-specific defaults are filled for every strategy so that a
//     generated config file documents all of them
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyFileDefaults(&cfg.File)
	applyLockDefaults(&cfg.Lock)
	applyHoldDefaults(&cfg.Hold)

	// Metrics.Enabled defaults to false
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyFileDefaults sets target file defaults.
func applyFileDefaults(cfg *FileConfig) {
	if cfg.Path == "" {
		cfg.Path = DefaultFilePath
	}
	if cfg.Permissions == "" {
		cfg.Permissions = DefaultPermissions
	}
}

// applyLockDefaults sets lock strategy defaults.
func applyLockDefaults(cfg *LockConfig) {
	if cfg.Strategy == "" {
		cfg.Strategy = lockwait.StrategyBlock
	}
	cfg.Strategy = strings.ToLower(cfg.Strategy)

	// Initialize map if nil
	if cfg.Poll == nil {
		cfg.Poll = make(map[string]any)
	}

	if _, ok := cfg.Poll["rate"]; !ok {
		cfg.Poll["rate"] = lockwait.DefaultPollRate
	}
	if _, ok := cfg.Poll["burst"]; !ok {
		cfg.Poll["burst"] = lockwait.DefaultPollBurst
	}
	if _, ok := cfg.Poll["timeout"]; !ok {
		cfg.Poll["timeout"] = DefaultPollTimeout
	}
}

// applyHoldDefaults sets hold command defaults.
func applyHoldDefaults(cfg *HoldConfig) {
	if cfg.Duration == 0 {
		cfg.Duration = DefaultHoldDuration
	}
	if cfg.Text == "" {
		cfg.Text = DefaultHoldText
	}

	// Stamp defaults to false
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Lock: LockConfig{
			Poll: make(map[string]any),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
