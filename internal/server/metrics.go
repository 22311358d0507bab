package server

import (
	"bytes"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
	"github.com/Brownie44l1/minihttp/internal/router"
	"github.com/Brownie44l1/minihttp/internal/session"
)

const metricsNamespace = "minihttp"

// textContentType is the Prometheus text exposition format
const textContentType = "text/plain; version=0.0.4; charset=utf-8"

// Metrics holds server runtime metrics
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	duration          prometheus.Histogram
	activeConnections prometheus.Gauge
	acceptErrors      prometheus.Counter
	panics            prometheus.Counter
}

// NewMetrics creates the server metrics on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Responses written, by status code",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time from accepting a connection until its response is ready",
			Buckets:   prometheus.DefBuckets,
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_connections",
			Help:      "Connections currently being served",
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "accept_errors_total",
			Help:      "Failed accept calls on the listener",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "panics_total",
			Help:      "Panics recovered from handlers and middleware",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.activeConnections,
		m.acceptErrors,
		m.panics,
	)
	return m
}

// Registry returns the registry the metrics are registered with, so callers
// can add their own collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// trackSessions exposes the number of live sessions in store
func (m *Metrics) trackSessions(store *session.Store) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "sessions",
		Help:      "Sessions held in memory",
	}, func() float64 {
		return float64(store.Count())
	}))
}

// RecordRequest records a completed exchange
func (m *Metrics) RecordRequest(code response.StatusCode, duration time.Duration) {
	m.requests.WithLabelValues(strconv.Itoa(int(code))).Inc()
	m.duration.Observe(duration.Seconds())
}

// Render gathers every registered metric in the text exposition format
func (m *Metrics) Render() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Handler returns a route handler exposing the metrics
func (m *Metrics) Handler() router.Handler {
	return func(req *request.Request, params router.Params) *response.Response {
		body, err := m.Render()
		if err != nil {
			return response.Text(response.StatusInternalServerError, err.Error())
		}
		return response.New(response.StatusOK, body, textContentType)
	}
}
