package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/denisbaic/smarthouse/internal/cancellation"
	"github.com/denisbaic/smarthouse/internal/metrics"
	"github.com/denisbaic/smarthouse/internal/protocol"
	"github.com/denisbaic/smarthouse/internal/stream"
)

// acceptRetryDelay is the pause after a failed Accept so a persistent error
// (e.g. out of file descriptors) does not spin the loop
const acceptRetryDelay = 50 * time.Millisecond

// Handler turns a request line into a response line
type Handler interface {
	Handle(request string) string
}

// StreamRegistry is the view of the stream registry the servers need
type StreamRegistry interface {
	Len() int
	Task(name string) (stream.TaskInfo, bool)
	Tasks() []stream.TaskInfo
	Shutdown(ctx context.Context) error
}

// Config contains STP server settings
type Config struct {
	Address           string
	Options           protocol.Options
	SessionsPerSecond float64 // 0 disables the accept limiter
	SessionBurst      int
}

// Server accepts STP sessions and answers one request per session
type Server struct {
	config   Config
	logger   *slog.Logger
	handler  Handler
	streams  StreamRegistry
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	listener *protocol.Listener

	acceptCanceller cancellation.Canceller
	acceptDone      chan struct{}
	sessions        sync.WaitGroup

	// Basic counters, also exported as Prometheus metrics
	sessionsAccepted  uint64
	sessionsRejected  uint64
	sessionsServed    uint64
	handshakeFailures uint64
	sessionErrors     uint64
	active            map[net.Conn]struct{}
	mu                sync.RWMutex
}

// NewServer creates a server instance. m may be nil.
func NewServer(cfg Config, logger *slog.Logger, handler Handler, streams StreamRegistry, m *metrics.Metrics) *Server {
	limit := rate.Inf
	if cfg.SessionsPerSecond > 0 {
		limit = rate.Limit(cfg.SessionsPerSecond)
	}
	burst := cfg.SessionBurst
	if burst < 1 {
		burst = 1
	}

	return &Server{
		config:  cfg,
		logger:  logger,
		handler: handler,
		streams: streams,
		metrics: m,
		limiter: rate.NewLimiter(limit, burst),
		active:  make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting sessions
func (s *Server) Start() error {
	listener, err := protocol.Listen(s.config.Address, s.config.Options)
	if err != nil {
		return err
	}
	s.listener = listener

	canceller, token := cancellation.New()
	s.acceptCanceller = canceller
	s.acceptDone = make(chan struct{})

	s.logger.Info("STP server started",
		slog.String("address", listener.Addr().String()),
		slog.Uint64("max_message_size", uint64(s.config.Options.Limits.MaxMessageBytes)),
	)

	go s.acceptLoop(token)

	return nil
}

// Addr returns the bound listener address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop cancels the accept loop, waits for in-flight sessions and then shuts
// the stream registry down. Sessions still running when ctx expires have
// their connections closed.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping STP server...")

	if s.listener != nil {
		s.acceptCanceller.Cancel()
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("Error closing STP listener", slog.String("error", err.Error()))
		}
		<-s.acceptDone
	}

	var errs []error
	if err := s.waitSessions(ctx); err != nil {
		errs = append(errs, err)
	}

	if s.streams != nil {
		if err := s.streams.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	stats := s.GetStatistics()
	s.logger.Info("STP server stopped",
		slog.Uint64("sessions_accepted", stats.SessionsAccepted),
		slog.Uint64("sessions_served", stats.SessionsServed),
		slog.Uint64("handshake_failures", stats.HandshakeFailures),
		slog.Uint64("session_errors", stats.SessionErrors),
	)

	return errors.Join(errs...)
}

func (s *Server) waitSessions(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	open := len(s.active)
	for conn := range s.active {
		conn.Close()
	}
	s.mu.Unlock()

	s.logger.Warn("Closed sessions still open at shutdown deadline", slog.Int("sessions", open))
	<-finished
	return fmt.Errorf("waiting for sessions: %w", ctx.Err())
}

// acceptLoop is the main connection accepting loop
func (s *Server) acceptLoop(token cancellation.Token) {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if token.Cancelled() || errors.Is(err, net.ErrClosed) {
				s.logger.Info("Accept loop stopping")
				return
			}

			s.logger.Error("Failed to accept connection", slog.String("error", err.Error()))
			if !token.Sleep(acceptRetryDelay) {
				return
			}
			continue
		}

		if !s.limiter.Allow() {
			s.mu.Lock()
			s.sessionsRejected++
			s.mu.Unlock()
			s.metrics.RecordSessionRejected()

			s.logger.Warn("Session rate limit exceeded, dropping connection",
				slog.String("remote_addr", conn.RemoteAddr().String()),
			)
			conn.Close()
			continue
		}

		s.mu.Lock()
		s.sessionsAccepted++
		s.active[conn] = struct{}{}
		s.mu.Unlock()

		s.sessions.Add(1)
		go s.serveSession(conn)
	}
}

// serveSession performs the handshake and one request/response exchange
func (s *Server) serveSession(conn net.Conn) {
	defer s.sessions.Done()
	defer func() {
		s.mu.Lock()
		delete(s.active, conn)
		s.mu.Unlock()
	}()

	s.metrics.RecordSessionAccepted()
	defer s.metrics.RecordSessionClosed()

	logger := s.logger.With(
		slog.String("session_id", uuid.NewString()),
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)
	start := time.Now()

	session, err := s.listener.Upgrade(conn)
	if err != nil {
		s.mu.Lock()
		s.handshakeFailures++
		s.mu.Unlock()
		s.metrics.RecordHandshakeFailure()

		logger.Warn("Handshake failed", slog.String("error", err.Error()))
		return
	}

	var command string
	err = session.ProcessRequest(func(request string) string {
		command = protocol.CommandOf(request)
		logger.Debug("Request received", slog.String("command", command))
		return s.handler.Handle(request)
	})
	if err != nil {
		s.mu.Lock()
		s.sessionErrors++
		s.mu.Unlock()
		s.metrics.RecordSessionError()

		logger.Warn("Session failed",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.sessionsServed++
	s.mu.Unlock()

	logger.Debug("Session served",
		slog.String("command", command),
		slog.Duration("duration", time.Since(start)),
	)
}

// GetStatistics returns current server statistics
func (s *Server) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := ServerStatistics{
		SessionsAccepted:  s.sessionsAccepted,
		SessionsRejected:  s.sessionsRejected,
		SessionsServed:    s.sessionsServed,
		HandshakeFailures: s.handshakeFailures,
		SessionErrors:     s.sessionErrors,
		ActiveSessions:    uint64(len(s.active)),
	}
	if s.streams != nil {
		stats.ActiveStreams = uint64(s.streams.Len())
	}
	return stats
}

// ServerStatistics represents server counters
type ServerStatistics struct {
	SessionsAccepted  uint64 `json:"sessions_accepted"`
	SessionsRejected  uint64 `json:"sessions_rejected"`
	SessionsServed    uint64 `json:"sessions_served"`
	HandshakeFailures uint64 `json:"handshake_failures"`
	SessionErrors     uint64 `json:"session_errors"`
	ActiveSessions    uint64 `json:"active_sessions"`
	ActiveStreams     uint64 `json:"active_streams"`
}
