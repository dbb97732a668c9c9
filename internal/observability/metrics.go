package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_radar"

// Metrics holds the Prometheus counters, histograms, and gauges for the radar service.
type Metrics struct {
	// Acquisition metrics.
	FetchAttempts  *prometheus.CounterVec // labels: source, outcome={success,empty,error}
	PointsAcquired *prometheus.CounterVec // labels: source
	DecodeErrors   *prometheus.CounterVec // labels: stage
	StationLookups *prometheus.CounterVec // labels: outcome={success,error,skipped}
	ForecastCache  *prometheus.CounterVec // labels: result={hit,miss}

	// Cycle metrics.
	CycleDuration   prometheus.Histogram
	Cycles          *prometheus.CounterVec // labels: outcome={stored,failed,skipped}
	PipelineRunning prometheus.Gauge
	SnapshotPoints  prometheus.Gauge

	RetentionDeleted prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Source strategy attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		PointsAcquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_acquired_total",
			Help:      "Radar points returned by the winning source.",
		}, []string{"source"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Grid decode failures by stage.",
		}, []string{"stage"}),
		StationLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_lookups_total",
			Help:      "Per-station forecast lookups by outcome.",
		}, []string{"outcome"}),
		ForecastCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_cache_total",
			Help:      "Forecast URL cache lookups by result.",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete acquire-store cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Fetch cycles by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the scheduler is active, 0 when shut down.",
		}),
		SnapshotPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_points",
			Help:      "Point count of the most recently stored snapshot.",
		}),
		RetentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_total",
			Help:      "Snapshots removed by the retention job.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchAttempts,
		m.PointsAcquired,
		m.DecodeErrors,
		m.StationLookups,
		m.ForecastCache,
		m.CycleDuration,
		m.Cycles,
		m.PipelineRunning,
		m.SnapshotPoints,
		m.RetentionDeleted,
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
