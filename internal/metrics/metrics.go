// Package metrics exposes Prometheus collectors for the HTTP API, the GraphQL
// resolvers and the realtime channel. A nil *Metrics records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "ocxers"

type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	resolvers *prometheus.CounterVec
	pushes    prometheus.Counter
}

// New builds a registry with the Go and process collectors plus the
// service collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		resolvers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_resolver_calls_total",
			Help:      "GraphQL root field resolutions by field and outcome.",
		}, []string{"field", "outcome"}),
		pushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_login_required_pushes_total",
			Help:      "Login-required events delivered to realtime connections.",
		}),
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(took.Seconds())
}

// ObserveResolver records one root field resolution.
func (m *Metrics) ObserveResolver(field string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.resolvers.WithLabelValues(field, outcome).Inc()
}

// AddPushes counts delivered login-required events.
func (m *Metrics) AddPushes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pushes.Add(float64(n))
}

// GaugeFunc exposes a value sampled at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Gatherer returns the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the exposition format on fasthttp.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
