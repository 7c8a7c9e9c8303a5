package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordSessionAccepted()
		m.RecordSessionClosed()
		m.RecordSessionRejected()
		m.RecordHandshakeFailure()
		m.RecordSessionError()
		m.RecordRequest("hello", "ok", 0.001)
		m.SetActiveStreams(3)
		m.RecordStreamStarted()
		m.RecordStreamReplaced()
		m.RecordStreamCancelled()
		m.RecordReportSent()
		m.RecordReportSkipped()
		m.RecordDatagramError()
		m.RecordHTTPRequest("GET", "/health", "200", 0.01)
		m.RecordHTTPError("GET", "/health", "server_error")
	})
}

func TestSessionGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSessionAccepted()
	m.RecordSessionAccepted()
	m.RecordSessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestRequestsByCommandAndStatus(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest("hello", "ok", 0.0001)
	m.RecordRequest("hello", "ok", 0.0001)
	m.RecordRequest("device_report", "error", 0.0002)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("hello", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("device_report", "error")))
}

func TestStreamCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStreamStarted()
	m.RecordStreamStarted()
	m.RecordStreamReplaced()
	m.SetActiveStreams(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamsReplaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveStreams))
}

func TestIndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
