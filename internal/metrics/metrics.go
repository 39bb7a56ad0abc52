// Package metrics exports Prometheus gauges and counters for the tick
// scheduler, lease churn, and viewer/observer subscriptions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/tickworld/internal/logging"
)

// Exporter owns the Prometheus collectors for one running server.
type Exporter struct {
	tickDuration   prometheus.Histogram
	ticksCompleted prometheus.Counter
	lateIntents    prometheus.Counter

	leasesActive  prometheus.Gauge
	leasesExpired prometheus.Counter

	viewersConnected    prometheus.Gauge
	observersSubscribed prometheus.Gauge

	log *logging.Logger
}

func NewExporter() *Exporter {
	e := &Exporter{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tickworld",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one OPEN->BROADCAST cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		ticksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickworld",
			Name:      "ticks_completed_total",
			Help:      "Total ticks that reached BROADCAST.",
		}),
		lateIntents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickworld",
			Name:      "intents_rejected_late_total",
			Help:      "Intents rejected for arriving after the admission deadline.",
		}),
		leasesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tickworld",
			Name:      "leases_active",
			Help:      "Currently held, unexpired leases.",
		}),
		leasesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickworld",
			Name:      "leases_expired_total",
			Help:      "Leases swept by cleanup_expired.",
		}),
		viewersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tickworld",
			Name:      "viewers_connected",
			Help:      "Connected viewer websocket clients.",
		}),
		observersSubscribed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tickworld",
			Name:      "observation_subscribers",
			Help:      "Agents currently subscribed to StreamObservations.",
		}),
		log: logging.GetComponentLogger("metrics"),
	}

	prometheus.MustRegister(
		e.tickDuration, e.ticksCompleted, e.lateIntents,
		e.leasesActive, e.leasesExpired,
		e.viewersConnected, e.observersSubscribed,
	)
	return e
}

// StartHTTP serves /metrics on addr in a background goroutine.
func (e *Exporter) StartHTTP(addr string) {
	go func() {
		e.log.Info("Prometheus /metrics available at %s", addr)
		if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
			e.log.Error("metrics HTTP server error: %v", err)
		}
	}()
}

// ObserveTick records one completed cycle's duration and late-intent count.
func (e *Exporter) ObserveTick(durationSeconds float64, lateIntents int) {
	e.tickDuration.Observe(durationSeconds)
	e.ticksCompleted.Inc()
	e.lateIntents.Add(float64(lateIntents))
}

func (e *Exporter) SetLeasesActive(n int)     { e.leasesActive.Set(float64(n)) }
func (e *Exporter) AddLeasesExpired(n int)    { e.leasesExpired.Add(float64(n)) }
func (e *Exporter) SetViewersConnected(n int) { e.viewersConnected.Set(float64(n)) }
func (e *Exporter) SetObserversSubscribed(n int) {
	e.observersSubscribed.Set(float64(n))
}
