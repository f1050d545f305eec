package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notification_fanout"

// Metrics stores Prometheus collectors used by the API, dispatcher and worker.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	deliveriesTotal      *prometheus.CounterVec
	deliverySendDuration *prometheus.HistogramVec
	dispatchTotal        *prometheus.CounterVec
	workerInflight       prometheus.Gauge
	retryScheduledTotal  prometheus.Counter
	deadLetteredTotal    prometheus.Counter
	sweptTotal           prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Delivery attempt outcomes recorded, by channel and resulting status.",
			},
			[]string{"channel", "status"},
		),
		deliverySendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_send_duration_seconds",
				Help:      "Sender call duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Dispatch procedure invocations by outcome.",
			},
			[]string{"outcome"},
		),
		workerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_inflight",
				Help:      "Dispatch jobs currently being processed.",
			},
		),
		retryScheduledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_scheduled_total",
				Help:      "Dispatch jobs republished with a delay after a transport failure.",
			},
		),
		deadLetteredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_lettered_total",
				Help:      "Dispatch jobs dead-lettered after exhausting the retry budget.",
			},
		),
		sweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_swept_total",
				Help:      "Stale pending notifications re-enqueued by the sweeper.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.deliveriesTotal,
		m.deliverySendDuration,
		m.dispatchTotal,
		m.workerInflight,
		m.retryScheduledTotal,
		m.deadLetteredTotal,
		m.sweptTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDelivery(channel string, status string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(status)).Inc()
}

func (m *Metrics) ObserveSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	m.deliverySendDuration.WithLabelValues(normalizeLabel(channel)).Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncDispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Inc()
}

func (m *Metrics) DecWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Dec()
}

func (m *Metrics) IncRetryScheduled() {
	if m == nil {
		return
	}
	m.retryScheduledTotal.Inc()
}

func (m *Metrics) IncDeadLettered() {
	if m == nil {
		return
	}
	m.deadLetteredTotal.Inc()
}

func (m *Metrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTotal.Add(float64(n))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
