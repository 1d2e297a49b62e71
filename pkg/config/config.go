package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete flockctl configuration.
//
// This structure captures all configurable aspects of flockctl including:
//   - Logging configuration
//   - The target file and the mode it is created with
//   - The lock acquisition strategy (strategy-specific options)
//   - The behavior of the hold command
//   - Metrics collection
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FLOCKCTL_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// File selects the file every command operates on
	File FileConfig `mapstructure:"file" yaml:"file"`

	// Lock selects how advisory locks are acquired
	Lock LockConfig `mapstructure:"lock" yaml:"lock"`

	// Hold configures the hold command
	Hold HoldConfig `mapstructure:"hold" yaml:"hold"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// FileConfig selects the target file.
type FileConfig struct {
	// Path is the file to operate on; it is created when missing
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// Permissions is the octal mode applied to the file (e.g. "0644")
	Permissions string `mapstructure:"permissions" validate:"required,octalmode" yaml:"permissions"`
}

// LockConfig specifies the lock acquisition strategy.
//
// The Strategy field determines which lockwait.Acquirer is used.
// Only the corresponding strategy-specific section is used.
type LockConfig struct {
	// Strategy specifies how locks are acquired
	// Valid values: block, try, poll
	Strategy string `mapstructure:"strategy" validate:"required,oneof=block try poll" yaml:"strategy"`

	// Poll contains poll-specific configuration (rate, burst, timeout)
	// Only used when Strategy = "poll"
	Poll map[string]any `mapstructure:"poll" yaml:"poll"`
}

// HoldConfig configures the hold command.
type HoldConfig struct {
	// Duration is how long the exclusive lock is held
	Duration time.Duration `mapstructure:"duration" validate:"gte=0" yaml:"duration"`

	// Text is written at offset 0 when no text argument is given
	Text string `mapstructure:"text" yaml:"text"`

	// Stamp appends a "holder <id> pid <pid>" line after the text
	Stamp bool `mapstructure:"stamp" yaml:"stamp"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Enabled turns on Prometheus collection and the exit summary
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// envKeys lists the keys that can be overridden from the environment.
//
// viper only consults the environment for keys it already knows about, so
// keys missing from the config file must be bound explicitly.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"file.path",
	"file.permissions",
	"lock.strategy",
	"hold.duration",
	"hold.text",
	"hold.stamp",
	"metrics.enabled",
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FLOCKCTL_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	// Read configuration file if it exists
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) error {
	// Set up environment variable support
	// Environment variables use FLOCKCTL_ prefix and underscores
	// Example: FLOCKCTL_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FLOCKCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/flockctl/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	return nil
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		// An explicit path that does not exist is also acceptable
		if configPath != "" && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		// Other errors are problems
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flockctl")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "flockctl")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
