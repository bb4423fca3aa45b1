package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector exported on /metrics. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	OrdersCreatedTotal prometheus.Counter
	OrdersClosedTotal  prometheus.Counter
	OrderNumberRetries prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
	RegistryLookups    *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
	OffersExpiredTotal prometheus.Counter
}

// New builds collectors on a private registry so several instances can
// coexist in one process.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		OrdersCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_created_total",
				Help:      "Orders successfully created",
			},
		),
		OrdersClosedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_closed_total",
				Help:      "Orders closed with commission",
			},
		),
		OrderNumberRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_number_retries_total",
				Help:      "Order creations retried after an order number collision",
			},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification emails by event and result",
			},
			[]string{"event", "result"},
		),
		RegistryLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_lookups_total",
				Help:      "Company registry lookups by result",
			},
			[]string{"result"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Domain events published by routing key and result",
			},
			[]string{"routing_key", "result"},
		),
		OffersExpiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "offers_expired_total",
				Help:      "Published offers archived after their validity window ended",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count, latency and in-flight gauge. The route
// template is used as the path label to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) OrderCreated() {
	if m != nil {
		m.OrdersCreatedTotal.Inc()
	}
}

func (m *Metrics) OrderClosed() {
	if m != nil {
		m.OrdersClosedTotal.Inc()
	}
}

func (m *Metrics) OrderNumberRetried() {
	if m != nil {
		m.OrderNumberRetries.Inc()
	}
}

func (m *Metrics) Notification(event string, ok bool) {
	if m != nil {
		m.NotificationsTotal.WithLabelValues(event, result(ok)).Inc()
	}
}

func (m *Metrics) RegistryLookup(outcome string) {
	if m != nil {
		m.RegistryLookups.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) EventPublished(routingKey string, ok bool) {
	if m != nil {
		m.EventsPublished.WithLabelValues(routingKey, result(ok)).Inc()
	}
}

func (m *Metrics) OffersExpired(n int64) {
	if m != nil && n > 0 {
		m.OffersExpiredTotal.Add(float64(n))
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
