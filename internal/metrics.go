package internal

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "redbot"

// Metrics holds the Prometheus collectors updated by the client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	listingPages prometheus.Counter
	listingItems prometheus.Counter
	logins       *prometheus.CounterVec
}

// NewMetrics creates the client collectors and registers them with reg.
// Collectors already registered by another client on the same registry are reused.
// A nil reg leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "API requests sent, by method and response status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Round-trip latency of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		listingPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "listing_pages_total",
			Help:      "Listing pages fetched by the pagination loop.",
		}),
		listingItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "listing_items_total",
			Help:      "Listing children accumulated by the pagination loop.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
	}

	if reg == nil {
		return m
	}

	m.requests = register(reg, m.requests)
	m.duration = register(reg, m.duration)
	m.listingPages = register(reg, m.listingPages)
	m.listingItems = register(reg, m.listingItems)
	m.logins = register(reg, m.logins)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// ObserveRequest records one completed round trip. code is 0 when the
// transport failed before a response arrived.
func (m *Metrics) ObserveRequest(method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(method, label).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObservePage records a decoded listing page and the number of children it held.
func (m *Metrics) ObservePage(items int) {
	if m == nil {
		return
	}
	m.listingPages.Inc()
	m.listingItems.Add(float64(items))
}

// ObserveLogin records the outcome of a login attempt.
func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}
