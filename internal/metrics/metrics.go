package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nhle/mailsort/internal/model"
)

// Metrics holds the fetch run instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal *prometheus.CounterVec

	ClassifiedTotal *prometheus.CounterVec

	SkippedTotal prometheus.Counter

	RunDuration prometheus.Histogram

	LastRunTimestamp prometheus.Gauge
}

// New registers the instruments on a private registry so tests and
// repeated runs in one process never collide with the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsort_runs_total",
				Help: "Fetch runs by outcome",
			},
			[]string{"outcome"},
		),
		ClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsort_messages_classified_total",
				Help: "Messages classified, by category",
			},
			[]string{"category"},
		),
		SkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsort_messages_skipped_total",
				Help: "Selected messages dropped because their fetch failed",
			},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailsort_run_duration_seconds",
				Help:    "Wall time of a fetch run from login to result",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			},
		),
		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailsort_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(run model.Run) {
	if m == nil {
		return
	}

	m.RunsTotal.WithLabelValues(string(run.Outcome)).Inc()
	for _, s := range run.Summaries {
		m.ClassifiedTotal.WithLabelValues(string(s.Category)).Inc()
	}
	m.SkippedTotal.Add(float64(run.Skipped))
	m.RunDuration.Observe(run.Duration().Seconds())
	m.LastRunTimestamp.Set(float64(run.FinishedAt.Unix()))
}

// WriteTextfile writes the registry in the node-exporter textfile format,
// creating parent directories if needed.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
