// Package metrics holds the Prometheus collectors shared by the loader and
// the API servers.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once
	shared   *Metrics
)

type Metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	viewErrors  *prometheus.CounterVec
	loads       *prometheus.CounterVec
	loadSeconds prometheus.Histogram
	regions     prometheus.Gauge
	days        prometheus.Gauge
}

// Default returns the process-wide collectors, registered with the
// default Prometheus registry on first use.
func Default() *Metrics {
	initOnce.Do(func() {
		shared = New()
		prometheus.MustRegister(shared.Collectors()...)
	})
	return shared
}

// New returns unregistered collectors, for tests and custom registries.
func New() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covidash_requests_total",
			Help: "Requests served by route, transport and status.",
		}, []string{"transport", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "covidash_request_duration_seconds",
			Help:    "Request latency by route and transport.",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport", "route"}),
		viewErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covidash_view_errors_total",
			Help: "Derived-view requests that failed, by view and error kind.",
		}, []string{"view", "kind"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covidash_dataset_loads_total",
			Help: "Dataset load attempts by source and result.",
		}, []string{"source", "result"}),
		loadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "covidash_dataset_load_seconds",
			Help:    "Time to fetch, parse and normalize the dataset.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		regions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "covidash_dataset_regions",
			Help: "Regions in the current table.",
		}),
		days: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "covidash_dataset_days",
			Help: "Day columns in the current table.",
		}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.latency, m.viewErrors, m.loads, m.loadSeconds, m.regions, m.days}
}

func (m *Metrics) ObserveRequest(transport, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(transport, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(transport, route).Observe(d.Seconds())
}

func (m *Metrics) ViewError(view, kind string) {
	if m == nil {
		return
	}
	m.viewErrors.WithLabelValues(view, kind).Inc()
}

func (m *Metrics) LoadAttempt(source string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.loads.WithLabelValues(source, result).Inc()
}

func (m *Metrics) Loaded(regions, days int, d time.Duration) {
	if m == nil {
		return
	}
	m.regions.Set(float64(regions))
	m.days.Set(float64(days))
	m.loadSeconds.Observe(d.Seconds())
}
