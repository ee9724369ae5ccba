package monitoring

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame directions and kinds used as label values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	KindInput   = "input"
	KindControl = "control"
	KindOutput  = "output"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can run without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	SessionsRejected prometheus.Counter
	SpawnFailures    prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Wire metrics
	Frames     *prometheus.CounterVec
	FrameBytes *prometheus.CounterVec

	// Listener metrics
	PortFallbacks prometheus.Counter

	startTime time.Time
	snapshot  snapshotCounters
}

type snapshotCounters struct {
	active        atomic.Int64
	total         atomic.Int64
	rejected      atomic.Int64
	spawnFailures atomic.Int64
}

// Snapshot holds current metric values for the JSON API.
type Snapshot struct {
	ActiveSessions   int64   `json:"active_sessions"`
	TotalSessions    int64   `json:"total_sessions"`
	RejectedSessions int64   `json:"rejected_sessions"`
	SpawnFailures    int64   `json:"spawn_failures"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWithRegistry(reg)
}

// NewMetricsWithRegistry registers all metrics against reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ptyd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptyd_sessions_active",
				Help: "Number of active terminal sessions",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyd_sessions_total",
				Help: "Total number of terminal sessions opened",
			},
		),
		SessionsRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyd_sessions_rejected_total",
				Help: "Connections refused because the session cap was reached",
			},
		),
		SpawnFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyd_spawn_failures_total",
				Help: "Total number of shell processes that failed to start",
			},
		),
		SessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ptyd_session_duration_seconds",
				Help:    "Lifetime of terminal sessions in seconds",
				Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400, 86400},
			},
		),

		Frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyd_frames_total",
				Help: "Total number of WebSocket frames relayed",
			},
			[]string{"direction", "kind"},
		),
		FrameBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyd_frame_bytes_total",
				Help: "Total payload bytes relayed",
			},
			[]string{"direction"},
		),

		PortFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyd_port_fallbacks_total",
				Help: "Times the preferred port was taken and a higher port was used",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ptyd_uptime_seconds",
			Help: "Broker uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SessionOpened records a session reaching Active.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
	m.snapshot.active.Add(1)
	m.snapshot.total.Add(1)
}

// SessionClosed records a session reaching Closed after living for d.
func (m *Metrics) SessionClosed(d time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(d.Seconds())
	m.snapshot.active.Add(-1)
}

// SessionRejected records a connection refused at capacity.
func (m *Metrics) SessionRejected() {
	if m == nil {
		return
	}
	m.SessionsRejected.Inc()
	m.snapshot.rejected.Add(1)
}

// SpawnFailed records a shell that could not be started.
func (m *Metrics) SpawnFailed() {
	if m == nil {
		return
	}
	m.SpawnFailures.Inc()
	m.snapshot.spawnFailures.Add(1)
}

// RecordFrame records one relayed frame of n payload bytes.
func (m *Metrics) RecordFrame(direction, kind string, n int) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(direction, kind).Inc()
	m.FrameBytes.WithLabelValues(direction).Add(float64(n))
}

// PortFallback records a listener that moved off its preferred port.
func (m *Metrics) PortFallback() {
	if m == nil {
		return
	}
	m.PortFallbacks.Inc()
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		ActiveSessions:   m.snapshot.active.Load(),
		TotalSessions:    m.snapshot.total.Load(),
		RejectedSessions: m.snapshot.rejected.Load(),
		SpawnFailures:    m.snapshot.spawnFailures.Load(),
		UptimeSeconds:    time.Since(m.startTime).Seconds(),
	}
}
