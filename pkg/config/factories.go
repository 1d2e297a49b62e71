package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/filehandle/internal/logger"
	"github.com/marmos91/filehandle/pkg/filehandle"
	"github.com/marmos91/filehandle/pkg/lockwait"
)

// CreateAcquirer creates a lock acquisition strategy based on configuration.
//
// This factory function uses the Strategy field to determine which
// implementation to create, then decodes the strategy-specific configuration
// from the corresponding map.
//
// Supported strategies:
//   - "block": lockwait.Blocking (wait without timeout)
//   - "try":   lockwait.Try (single non-blocking attempt)
//   - "poll":  lockwait.Poller (paced non-blocking attempts with timeout)
//
// Parameters:
//   - cfg: Lock configuration
//
// Returns:
//   - lockwait.Acquirer: The configured strategy
//   - error: Configuration error
func CreateAcquirer(cfg *LockConfig) (lockwait.Acquirer, error) {
	switch cfg.Strategy {
	case lockwait.StrategyBlock:
		return lockwait.Blocking{}, nil
	case lockwait.StrategyTry:
		return lockwait.Try{}, nil
	case lockwait.StrategyPoll:
		return createPoller(cfg.Poll)
	default:
		return nil, fmt.Errorf("unknown lock strategy: %q", cfg.Strategy)
	}
}

// createPoller creates a rate-paced polling strategy.
func createPoller(options map[string]any) (lockwait.Acquirer, error) {
	pollCfg, err := decodePollerConfig(options)
	if err != nil {
		return nil, err
	}

	logger.Debug("lock strategy: poll (rate=%.1f/s burst=%d timeout=%v)",
		pollCfg.Rate, pollCfg.Burst, pollCfg.Timeout)

	return lockwait.NewPoller(pollCfg), nil
}

// decodePollerConfig decodes poll options into a lockwait.PollerConfig.
//
// Durations may be given as strings ("30s", "250ms"). Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func decodePollerConfig(options map[string]any) (lockwait.PollerConfig, error) {
	var pollCfg lockwait.PollerConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &pollCfg,
	})
	if err != nil {
		return pollCfg, fmt.Errorf("failed to create poll config decoder: %w", err)
	}

	if err := decoder.Decode(options); err != nil {
		return pollCfg, fmt.Errorf("failed to decode poll config: %w", err)
	}

	return pollCfg, nil
}

// CreateFileHandle creates a handle for the configured file.
//
// The handle is not opened. The configured permissions are used when the
// file has to be created.
//
// Parameters:
//   - cfg: File configuration
//   - metrics: Metrics sink, nil for none
//
// Returns:
//   - *filehandle.FileHandle: The unopened handle
//   - error: Invalid or zero permission string
func CreateFileHandle(cfg *FileConfig, metrics filehandle.Metrics) (*filehandle.FileHandle, error) {
	mode, err := parseFileMode(cfg.Permissions)
	if err != nil {
		return nil, fmt.Errorf("file.permissions: %w", err)
	}

	return filehandle.NewWithOptions(cfg.Path, filehandle.Options{
		Permissions: mode,
		Metrics:     metrics,
	}), nil
}
