package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "outage_dashboard"

// Metrics holds the Prometheus counters and gauges for the dashboard.
type Metrics struct {
	Imports         *prometheus.CounterVec // labels: format={csv,json,yaml}
	RowsImported    prometheus.Counter
	RowsDropped     prometheus.Counter
	Toggles         *prometheus.CounterVec // labels: kind={feeder,station}
	SnapshotPublish *prometheus.CounterVec // labels: outcome={success,malformed,error}
	SnapshotReads   *prometheus.CounterVec // labels: outcome={hit,empty,error}
	NotifyFailures  prometheus.Counter
	RemoteDuration  *prometheus.HistogramVec // labels: method={fetch,publish}

	// Current dashboard state.
	Stations          prometheus.Gauge
	AffectedConsumers prometheus.Gauge
	TotalConsumers    prometheus.Gauge
	AffectedPct       prometheus.Gauge
	FeedersOff        prometheus.Gauge
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Imports,
		m.RowsImported,
		m.RowsDropped,
		m.Toggles,
		m.SnapshotPublish,
		m.SnapshotReads,
		m.NotifyFailures,
		m.RemoteDuration,
		m.Stations,
		m.AffectedConsumers,
		m.TotalConsumers,
		m.AffectedPct,
		m.FeedersOff,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Station list imports by source format.",
		}, []string{"format"}),
		RowsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_imported_total",
			Help:      "Rows accepted as stations across all imports.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows rejected during normalization.",
		}),
		Toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggles_total",
			Help:      "Operator toggles by kind.",
		}, []string{"kind"}),
		SnapshotPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_publish_total",
			Help:      "Snapshot publish attempts by outcome.",
		}, []string{"outcome"}),
		SnapshotReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_reads_total",
			Help:      "Snapshot reads by outcome.",
		}, []string{"outcome"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_notify_failures_total",
			Help:      "Snapshot notifications that could not be delivered.",
		}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_store_duration_seconds",
			Help:      "Remote snapshot store request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		Stations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations",
			Help:      "Stations currently loaded.",
		}),
		AffectedConsumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "affected_consumers",
			Help:      "Consumers on stations that are effectively out.",
		}),
		TotalConsumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_consumers",
			Help:      "Consumers across all loaded stations.",
		}),
		AffectedPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "affected_pct",
			Help:      "Affected consumers as a percentage of the total.",
		}),
		FeedersOff: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feeders_off",
			Help:      "Feeders with an active operator override.",
		}),
	}
}
