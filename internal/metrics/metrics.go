package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	admissions   *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	calendarSync *prometheus.CounterVec
	slotQueries  prometheus.Histogram
	requests     *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "admissions_total",
			Help:      "Booking requests by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "transitions_total",
			Help:      "Booking state transitions by kind and outcome.",
		}, []string{"transition", "outcome"}),
		calendarSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "calendar_sync_total",
			Help:      "Calendar sync attempts by result.",
		}, []string{"result"}),
		slotQueries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Name:      "slot_generation_seconds",
			Help:      "Time spent generating slots.",
			Buckets:   prometheus.DefBuckets,
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.admissions, m.transitions, m.calendarSync, m.slotQueries, m.requests,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Admission(outcome string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(transition, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, outcome).Inc()
}

func (m *Metrics) CalendarSync(result string) {
	if m == nil {
		return
	}
	m.calendarSync.WithLabelValues(result).Inc()
}

func (m *Metrics) SlotGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.slotQueries.Observe(d.Seconds())
}

func (m *Metrics) Request(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
