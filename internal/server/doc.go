// Package server runs the STP request server and the HTTP monitoring API.
//
// Server accepts TCP connections, upgrades each one to an STP session in
// its own goroutine and serves exactly one request on it. HTTPServer exposes
// health, stream and statistics endpoints plus Prometheus metrics.
package server
