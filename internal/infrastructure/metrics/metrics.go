// Package metrics exposes Prometheus counters for HTTP traffic and bill
// lifecycle events.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/expense-capture/internal/application/dispatcher"
	"github.com/garyjia/expense-capture/internal/domain/event"
)

const namespace = "expense_capture"

// Metrics owns a registry and the collectors registered on it
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	events       *prometheus.CounterVec
	committed    *prometheus.CounterVec
	amount       prometheus.Counter
}

// New creates collectors on a fresh registry, including Go runtime and
// process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events by type.",
		}, []string{"type"}),
		committed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_committed_total",
			Help:      "Committed bills by source.",
		}, []string{"source"}),
		amount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_committed_amount_total",
			Help:      "Sum of total amounts of committed bills.",
		}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. Routes are labelled by
// their pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Subscribe counts every domain event published on d
func (m *Metrics) Subscribe(d dispatcher.Dispatcher) {
	for _, t := range event.AllTypes() {
		d.Subscribe(t, "metrics", m.record)
	}
}

func (m *Metrics) record(ctx context.Context, evt *event.Event) error {
	m.events.WithLabelValues(string(evt.Type)).Inc()
	if evt.Type == event.TypeBillCommitted {
		source := evt.GetPayloadString(event.KeySource)
		if source == "" {
			source = "unknown"
		}
		m.committed.WithLabelValues(source).Inc()
		if amt := evt.GetPayloadFloat(event.KeyTotalAmount); amt > 0 {
			m.amount.Add(amt)
		}
	}
	return nil
}
