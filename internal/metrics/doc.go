// Package metrics exposes Prometheus instrumentation for the STP server,
// the streaming registry and the monitoring API. A nil *Metrics is a valid
// no-op receiver.
package metrics
