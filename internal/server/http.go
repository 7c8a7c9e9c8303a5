package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/denisbaic/smarthouse/internal/config"
	"github.com/denisbaic/smarthouse/internal/house"
	"github.com/denisbaic/smarthouse/internal/metrics"
)

// Version is reported by the HTTP API
var Version = "dev"

// HTTPServer provides HTTP API endpoints for monitoring
type HTTPServer struct {
	server    *http.Server
	handler   http.Handler
	logger    *slog.Logger
	config    *config.Config
	stp       *Server
	streams   StreamRegistry
	house     *house.Guard
	metrics   *metrics.Metrics
	startTime time.Time
	listener  net.Listener
}

// NewHTTPServer creates a new HTTP API server. gatherer backs /metrics; m may be nil.
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, stp *Server, streams StreamRegistry,
	guard *house.Guard, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		stp:       stp,
		streams:   streams,
		house:     guard,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux, gatherer)
	h.handler = mux

	h.server = &http.Server{
		Addr:         appConfig.HTTP.GetAddress(),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	mux.HandleFunc("/streams", h.withMetrics("/streams", h.handleStreams))
	mux.HandleFunc("/streams/", h.withMetrics("/streams/{name}", h.handleStreamDetail))

	mux.HandleFunc("/house", h.withMetrics("/house", h.handleHouse))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// no request metrics for the metrics endpoint itself
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the route multiplexer
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// Start binds the HTTP listener and serves in the background
func (h *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}
	h.listener = listener

	h.logger.Info("Starting HTTP API server",
		slog.String("address", listener.Addr().String()),
	)

	go func() {
		if err := h.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start
func (h *HTTPServer) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.stp.GetStatistics()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "smarthouse",
			"version": Version,
		},
		"components": map[string]interface{}{
			"stp_server": map[string]interface{}{
				"status":             "running",
				"address":            addrString(h.stp.Addr()),
				"active_sessions":    stats.ActiveSessions,
				"handshake_failures": stats.HandshakeFailures,
			},
			"stream_registry": map[string]interface{}{
				"status":         "running",
				"active_streams": h.streams.Len(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStreams implements the /streams endpoint
func (h *HTTPServer) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tasks := h.streams.Tasks()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_streams": len(tasks),
		"timestamp":     time.Now().UTC(),
		"streams":       tasks,
	})
}

// handleStreamDetail implements the /streams/{name} endpoint
func (h *HTTPServer) handleStreamDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Path[len("/streams/"):]
	if name == "" {
		http.Error(w, "Stream name required", http.StatusBadRequest)
		return
	}

	info, exists := h.streams.Task(name)
	if !exists {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

type deviceView struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	On   bool   `json:"is_on"`
}

type roomView struct {
	Name    string       `json:"name"`
	Devices []deviceView `json:"devices"`
}

// handleHouse implements the /house endpoint
func (h *HTTPServer) handleHouse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms := []roomView{}
	_ = h.house.With(func(hs *house.House) error {
		for _, room := range hs.Rooms() {
			view := roomView{Name: room.Name(), Devices: []deviceView{}}
			for _, d := range room.Devices() {
				view.Devices = append(view.Devices, deviceView{Name: d.Name(), Kind: house.KindOf(d), On: d.IsOn()})
			}
			rooms = append(rooms, view)
		}
		return nil
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_rooms": len(rooms),
		"timestamp":   time.Now().UTC(),
		"rooms":       rooms,
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": map[string]interface{}{
			"tcp_address":         h.config.Server.TCPAddress,
			"udp_address":         h.config.Server.UDPAddress,
			"max_message_size":    h.config.Server.MaxMessageSize,
			"handshake_timeout":   h.config.Server.HandshakeTimeout,
			"read_timeout":        h.config.Server.ReadTimeout,
			"write_timeout":       h.config.Server.WriteTimeout,
			"sessions_per_second": h.config.Server.SessionsPerSecond,
			"session_burst":       h.config.Server.SessionBurst,
		},
		"streaming": map[string]interface{}{
			"default_request_delay": h.config.Streaming.DefaultRequestDelay,
			"delay_unit_ms":         h.config.Streaming.DelayUnitMs,
			"max_streams":           h.config.Streaming.MaxStreams,
			"shutdown_timeout":      h.config.Streaming.ShutdownTimeout,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"stp":       h.stp.GetStatistics(),
		"streams": map[string]interface{}{
			"active_count": h.streams.Len(),
		},
	})
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Smart House STP Server",
		"version": Version,
		"endpoints": map[string]interface{}{
			"GET /":               "API documentation",
			"GET /health":         "Service health check",
			"GET /streams":        "List active device report streams",
			"GET /streams/{name}": "Get one stream, e.g. /streams/Kitchen-Therm1",
			"GET /house":          "List rooms and devices with power state",
			"GET /config":         "Get service configuration",
			"GET /stats":          "Get server statistics",
			"GET /metrics":        "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
