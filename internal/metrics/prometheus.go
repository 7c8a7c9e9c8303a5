package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the smart house server
type Metrics struct {
	// STP session metrics
	SessionsAccepted  prometheus.Counter
	SessionsRejected  prometheus.Counter
	HandshakeFailures prometheus.Counter
	SessionErrors     prometheus.Counter
	ActiveSessions    prometheus.Gauge

	// Request dispatch metrics
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Streaming metrics
	ActiveStreams    prometheus.Gauge
	StreamsStarted   prometheus.Counter
	StreamsReplaced  prometheus.Counter
	StreamsCancelled prometheus.Counter
	ReportsSent      prometheus.Counter
	ReportsSkipped   prometheus.Counter
	DatagramErrors   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_sessions_accepted_total",
			Help: "Total number of TCP connections accepted",
		}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_sessions_rejected_total",
			Help: "Total number of connections dropped by the accept rate limiter",
		}),
		HandshakeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_handshake_failures_total",
			Help: "Total number of connections that failed the STP handshake",
		}),
		SessionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_session_errors_total",
			Help: "Total number of sessions that failed while receiving or sending",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stp_active_sessions",
			Help: "Current number of sessions being served",
		}),

		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stp_requests_total",
			Help: "Total number of requests dispatched",
		}, []string{"command", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stp_request_duration_seconds",
			Help:    "Time spent resolving a request in the processor chain",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}, []string{"command"}),

		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stp_active_streams",
			Help: "Current number of registered device report streams",
		}),
		StreamsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_streams_started_total",
			Help: "Total number of device report streams started",
		}),
		StreamsReplaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_streams_replaced_total",
			Help: "Total number of streams cancelled because a new subscription took their name",
		}),
		StreamsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_streams_cancelled_total",
			Help: "Total number of streams cancelled on request or at shutdown",
		}),
		ReportsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_stream_reports_sent_total",
			Help: "Total number of device report datagrams sent",
		}),
		ReportsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_stream_reports_skipped_total",
			Help: "Total number of stream ticks skipped because the report could not be rendered",
		}),
		DatagramErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stp_stream_datagram_errors_total",
			Help: "Total number of report datagrams that failed to send",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stp_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stp_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stp_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionAccepted counts an accepted connection and marks it active
func (m *Metrics) RecordSessionAccepted() {
	if m == nil {
		return
	}
	m.SessionsAccepted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionClosed marks a session as finished
func (m *Metrics) RecordSessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// RecordSessionRejected counts a connection refused by the rate limiter
func (m *Metrics) RecordSessionRejected() {
	if m == nil {
		return
	}
	m.SessionsRejected.Inc()
}

// RecordHandshakeFailure counts a failed handshake
func (m *Metrics) RecordHandshakeFailure() {
	if m == nil {
		return
	}
	m.HandshakeFailures.Inc()
}

// RecordSessionError counts a receive or send failure
func (m *Metrics) RecordSessionError() {
	if m == nil {
		return
	}
	m.SessionErrors.Inc()
}

// RecordRequest records one dispatched request
func (m *Metrics) RecordRequest(command, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(command, status).Inc()
	m.RequestDuration.WithLabelValues(command).Observe(durationSeconds)
}

// SetActiveStreams sets the current number of registered streams
func (m *Metrics) SetActiveStreams(count int) {
	if m == nil {
		return
	}
	m.ActiveStreams.Set(float64(count))
}

// RecordStreamStarted counts a new stream task
func (m *Metrics) RecordStreamStarted() {
	if m == nil {
		return
	}
	m.StreamsStarted.Inc()
}

// RecordStreamReplaced counts a stream displaced by a newer subscription
func (m *Metrics) RecordStreamReplaced() {
	if m == nil {
		return
	}
	m.StreamsReplaced.Inc()
}

// RecordStreamCancelled counts an explicitly cancelled stream
func (m *Metrics) RecordStreamCancelled() {
	if m == nil {
		return
	}
	m.StreamsCancelled.Inc()
}

// RecordReportSent counts a delivered report datagram
func (m *Metrics) RecordReportSent() {
	if m == nil {
		return
	}
	m.ReportsSent.Inc()
}

// RecordReportSkipped counts a tick whose report could not be rendered
func (m *Metrics) RecordReportSkipped() {
	if m == nil {
		return
	}
	m.ReportsSkipped.Inc()
}

// RecordDatagramError counts a failed datagram write
func (m *Metrics) RecordDatagramError() {
	if m == nil {
		return
	}
	m.DatagramErrors.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
