package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Suppression reasons reported on the events_suppressed counter.
const (
	SuppressDebounce  = "debounce"
	SuppressDuplicate = "duplicate"
	SuppressMalformed = "malformed"
)

// Metrics holds the engine's Prometheus instrumentation. Register on a
// dedicated registry in tests to avoid collisions.
type Metrics struct {
	EventsIngested   prometheus.Counter
	EventsSuppressed *prometheus.CounterVec
	PulsesExpired    prometheus.Counter
	Refreshes        *prometheus.CounterVec
	FetchFailures    *prometheus.CounterVec
	FeedSize         prometheus.Gauge
	PulseCount       prometheus.Gauge
	DebounceKeys     prometheus.Gauge
}

// NewMetrics builds and registers the engine metric set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "livepulse",
			Name:      "events_ingested_total",
			Help:      "Activity events admitted into the live views.",
		}),
		EventsSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepulse",
			Name:      "events_suppressed_total",
			Help:      "Activity events dropped before reaching any view.",
		}, []string{"reason"}),
		PulsesExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "livepulse",
			Name:      "pulses_expired_total",
			Help:      "Pulses removed by TTL expiry or capacity pressure.",
		}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepulse",
			Name:      "refreshes_total",
			Help:      "Completed refresh cycles per derived view.",
		}, []string{"view"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepulse",
			Name:      "fetch_failures_total",
			Help:      "Upstream reads that failed and left the view unchanged.",
		}, []string{"view"}),
		FeedSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "livepulse",
			Name:      "feed_entries",
			Help:      "Entries currently held in the recent-activity feed.",
		}),
		PulseCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "livepulse",
			Name:      "active_pulses",
			Help:      "Pulses currently alive in the TTL set.",
		}),
		DebounceKeys: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "livepulse",
			Name:      "debounce_keys",
			Help:      "Keys currently tracked by the deduplicator.",
		}),
	}
}
