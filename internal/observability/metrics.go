package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// sentinel core.
type Metrics struct {
	PollsTotal    *prometheus.CounterVec // labels: source, outcome={success,failure,skipped}
	EventsEmitted *prometheus.CounterVec // labels: source
	SourceStatus  *prometheus.GaugeVec   // labels: source; 0=healthy 1=degraded 2=offline

	ScoringPasses   prometheus.Counter
	ScoringDuration prometheus.Histogram
	ActiveHucs      prometheus.Gauge
	TopScore        prometheus.Gauge

	GeoExtractMisses  prometheus.Counter
	PersistenceErrors *prometheus.CounterVec // labels: document

	AnnouncedEvents prometheus.Counter
	AnnounceErrors  prometheus.Counter
}

// NewMetrics creates and registers all sentinel metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PollsTotal,
		m.EventsEmitted,
		m.SourceStatus,
		m.ScoringPasses,
		m.ScoringDuration,
		m.ActiveHucs,
		m.TopScore,
		m.GeoExtractMisses,
		m.PersistenceErrors,
		m.AnnouncedEvents,
		m.AnnounceErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "polls_total",
			Help:      "Adapter polls by source and outcome.",
		}, []string{"source", "outcome"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "events_emitted_total",
			Help:      "Change events emitted by source.",
		}, []string{"source"}),
		SourceStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "source_status",
			Help:      "Source health: 0 healthy, 1 degraded, 2 offline.",
		}, []string{"source"}),
		ScoringPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "scoring_passes_total",
			Help:      "Completed scoring passes.",
		}),
		ScoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "scoring_duration_seconds",
			Help:      "Duration of a full scoring pass.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ActiveHucs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "active_hucs",
			Help:      "Watershed units with at least one queryable event.",
		}),
		TopScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "top_score",
			Help:      "Highest basin score from the last pass.",
		}),
		GeoExtractMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "geo_extract_misses_total",
			Help:      "Records whose free-text geography extraction found nothing.",
		}),
		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "persistence_errors_total",
			Help:      "Durable save/load failures by document.",
		}, []string{"document"}),
		AnnouncedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "announced_events_total",
			Help:      "Change events published to the announcer topic.",
		}),
		AnnounceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "announce_errors_total",
			Help:      "Failed announcer publishes.",
		}),
	}
}
