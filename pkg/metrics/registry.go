// Package metrics collects Prometheus metrics for file handles.
//
// Collection is off until InitRegistry is called. While it is off,
// NewFileHandleMetrics returns nil and handles fall back to their no-op
// recorder. flockctl enables it from the metrics.enabled setting and logs a
// Summarize report on exit:
//
//	reg := metrics.InitRegistry()
//	h := filehandle.NewWithOptions(path, filehandle.Options{
//		Metrics: metrics.NewFileHandleMetrics(),
//	})
//	...
//	lines, _ := metrics.Summarize(reg)
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// registry holds the process-wide registry once collection is enabled.
var registry atomic.Pointer[prometheus.Registry]

// InitRegistry enables collection and returns the process-wide registry.
// The first call creates it; later calls return the same one.
func InitRegistry() *prometheus.Registry {
	if reg := registry.Load(); reg != nil {
		return reg
	}
	registry.CompareAndSwap(nil, prometheus.NewRegistry())
	return registry.Load()
}

// GetRegistry returns the registry, or nil while collection is disabled.
func GetRegistry() *prometheus.Registry {
	return registry.Load()
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry.Load() != nil
}
