package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Plugin outcomes used as the "outcome" label
const (
	OutcomePackaged = "packaged"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Metrics holds the build metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PluginsTotal       *prometheus.CounterVec
	BuildDuration      prometheus.Histogram
	InstallDuration    prometheus.Histogram
	ArchiveSizeBytes   prometheus.Histogram
	ManifestPlugins    prometheus.Gauge
	LastBuildTimestamp prometheus.Gauge
	LastBuildSuccess   prometheus.Gauge
}

// NewMetrics creates and registers all build metrics. A nil registry gets a
// fresh private one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		PluginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repobuilder_plugins_total",
				Help: "Total number of plugins processed, by outcome",
			},
			[]string{"outcome"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "repobuilder_build_duration_seconds",
				Help:    "Repository build duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		InstallDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "repobuilder_install_duration_seconds",
				Help:    "Dependency installation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		ArchiveSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "repobuilder_archive_size_bytes",
				Help:    "Size of written plugin archives in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		ManifestPlugins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "repobuilder_manifest_plugins",
				Help: "Number of plugins listed in the generated manifest",
			},
		),
		LastBuildTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "repobuilder_last_build_timestamp_seconds",
				Help: "Unix time of the last completed build",
			},
		),
		LastBuildSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "repobuilder_last_build_success",
				Help: "1 if the last build succeeded, 0 otherwise",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.PluginsTotal,
		m.BuildDuration,
		m.InstallDuration,
		m.ArchiveSizeBytes,
		m.ManifestPlugins,
		m.LastBuildTimestamp,
		m.LastBuildSuccess,
	)

	return m
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordPlugin counts one plugin outcome
func (m *Metrics) RecordPlugin(outcome string) {
	if m == nil {
		return
	}
	m.PluginsTotal.WithLabelValues(outcome).Inc()
}

// RecordInstall records one installer run
func (m *Metrics) RecordInstall(duration time.Duration) {
	if m == nil {
		return
	}
	m.InstallDuration.Observe(duration.Seconds())
}

// RecordArchive records the size of a written archive
func (m *Metrics) RecordArchive(sizeBytes int64) {
	if m == nil {
		return
	}
	m.ArchiveSizeBytes.Observe(float64(sizeBytes))
}

// RecordBuild records a finished build
func (m *Metrics) RecordBuild(duration time.Duration, manifestPlugins int, success bool) {
	if m == nil {
		return
	}
	m.BuildDuration.Observe(duration.Seconds())
	m.ManifestPlugins.Set(float64(manifestPlugins))
	m.LastBuildTimestamp.SetToCurrentTime()
	if success {
		m.LastBuildSuccess.Set(1)
	} else {
		m.LastBuildSuccess.Set(0)
	}
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
