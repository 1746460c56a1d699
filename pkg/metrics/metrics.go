package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/funnelsync/pkg/ledger"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Push metrics
	PushesTotal   *prometheus.CounterVec
	PushDuration  *prometheus.HistogramVec
	KeysProcessed *prometheus.CounterVec
	PushesRunning prometheus.Gauge

	// CRM client metrics
	CRMRequestsTotal   *prometheus.CounterVec
	CRMRequestDuration *prometheus.HistogramVec
	CRMInFlight        prometheus.Gauge

	// Lease metrics
	LeaseRejections prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Push metrics
		PushesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnelsync_pushes_total",
				Help: "Total number of push operations by final status",
			},
			[]string{"status", "cached"},
		),
		PushDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "funnelsync_push_duration_seconds",
				Help:    "Push operation duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		KeysProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnelsync_push_keys_total",
				Help: "Total number of custom value keys processed by action",
			},
			[]string{"action"}, // created, updated, skipped, failed
		),
		PushesRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "funnelsync_pushes_running",
			Help: "Number of pushes currently running",
		}),

		// CRM client metrics
		CRMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnelsync_crm_requests_total",
				Help: "Total number of requests sent to the CRM",
			},
			[]string{"code", "method"},
		),
		CRMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "funnelsync_crm_request_duration_seconds",
				Help:    "CRM request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"code", "method"},
		),
		CRMInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "funnelsync_crm_requests_in_flight",
			Help: "Number of CRM requests in flight",
		}),

		LeaseRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "funnelsync_push_lease_rejections_total",
			Help: "Total number of pushes rejected because the funnel was already pushing",
		}),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, e.g. /api/v1/funnels/:funnel_id/push

			if req.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(req.Method, path).Observe(float64(req.ContentLength))
			}

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// InstrumentCRM wraps the transport used for CRM calls
func (m *Metrics) InstrumentCRM(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.CRMInFlight,
		promhttp.InstrumentRoundTripperCounter(m.CRMRequestsTotal,
			promhttp.InstrumentRoundTripperDuration(m.CRMRequestDuration, next),
		),
	)
}

// RecordPush records the outcome of a finished push
func (m *Metrics) RecordPush(op *ledger.Operation) {
	m.PushesTotal.WithLabelValues(string(op.Status), strconv.FormatBool(op.Cached)).Inc()
	m.PushDuration.WithLabelValues(string(op.Status)).Observe(float64(op.DurationMS) / 1000)

	m.KeysProcessed.WithLabelValues("created").Add(float64(len(op.Pushed.Created)))
	m.KeysProcessed.WithLabelValues("updated").Add(float64(len(op.Pushed.Updated)))
	m.KeysProcessed.WithLabelValues("skipped").Add(float64(len(op.Pushed.Skipped)))
	m.KeysProcessed.WithLabelValues("failed").Add(float64(len(op.Pushed.Failed)))
}

// PushStarted increments the running pushes gauge
func (m *Metrics) PushStarted() {
	m.PushesRunning.Inc()
}

// PushEnded decrements the running pushes gauge
func (m *Metrics) PushEnded() {
	m.PushesRunning.Dec()
}

// RecordLeaseRejected counts a push refused because one was already running
func (m *Metrics) RecordLeaseRejected() {
	m.LeaseRejections.Inc()
}
