// Package metrics exposes query-engine and worker metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thebtf/workoutdiary/internal/query"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	InFlight      *prometheus.GaugeVec

	// Cache metrics
	CacheItems *prometheus.GaugeVec

	// Worker metrics
	Dispatches      *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
	ChartsOpen      prometheus.Gauge
	EventClients    prometheus.Gauge
	EventsPublished *prometheus.CounterVec
}

// New creates metrics registered on a private registry that also carries
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workoutdiary_fetches_total",
				Help: "Total number of page fetches by stream kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workoutdiary_fetch_duration_seconds",
				Help:    "Duration of page fetches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "workoutdiary_fetches_in_flight",
				Help: "Page fetches currently outstanding",
			},
			[]string{"kind"},
		),

		CacheItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "workoutdiary_cache_items",
				Help: "Items held by the most recently updated page cache",
			},
			[]string{"kind"},
		),

		Dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workoutdiary_search_dispatches_total",
				Help: "Debounced search queries dispatched",
			},
			[]string{"outcome"},
		),

		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workoutdiary_record_submissions_total",
				Help: "Record submissions by result",
			},
			[]string{"result"},
		),

		ChartsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "workoutdiary_charts_open",
				Help: "Exercise history charts currently open",
			},
		),

		EventClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "workoutdiary_event_clients",
				Help: "Connected server-sent event clients",
			},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workoutdiary_events_published_total",
				Help: "Server-sent events published by type",
			},
			[]string{"type"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FetchStarted implements query.Recorder.
func (m *Metrics) FetchStarted(kind string) {
	m.InFlight.WithLabelValues(kind).Inc()
}

// FetchFinished implements query.Recorder.
func (m *Metrics) FetchFinished(kind string, outcome query.Outcome, elapsed time.Duration) {
	m.InFlight.WithLabelValues(kind).Dec()
	m.FetchesTotal.WithLabelValues(kind, outcome.String()).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// CacheSize implements query.Recorder.
func (m *Metrics) CacheSize(kind string, n int) {
	m.CacheItems.WithLabelValues(kind).Set(float64(n))
}

var _ query.Recorder = (*Metrics)(nil)
