package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/marmos91/filehandle/internal/logger"
)

// Summarize gathers every metric from g and renders one line per series.
//
// Counters and gauges render their value, histograms their sample count and
// sum:
//
//	filehandle_bytes_total{direction="write"} 42
//	filehandle_lock_wait_seconds{mode="exclusive",status="granted"} count=1 sum=0.000021s
func Summarize(g prometheus.Gatherer) ([]string, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName() + formatLabels(m.GetLabel())

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case dto.MetricType_GAUGE:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetGauge().GetValue()))
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%.6fs", name, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	return lines, nil
}

// LogSummary logs the summary of the global registry at INFO level.
// It does nothing when metrics are disabled.
func LogSummary() {
	if !IsEnabled() {
		return
	}

	lines, err := Summarize(GetRegistry())
	if err != nil {
		logger.Warn("metrics: %v", err)
		return
	}

	logger.Info("metrics summary (%d series)", len(lines))
	for _, line := range lines {
		logger.Info("  %s", line)
	}
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}
