package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/denisbaic/smarthouse/internal/config"
	"github.com/denisbaic/smarthouse/internal/house"
	"github.com/denisbaic/smarthouse/internal/metrics"
	"github.com/denisbaic/smarthouse/internal/processor"
	"github.com/denisbaic/smarthouse/internal/protocol"
	"github.com/denisbaic/smarthouse/internal/server"
	"github.com/denisbaic/smarthouse/internal/stream"
)

const serviceName = "smarthouse-server"

var serviceVersion = "1.0.0"

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to configuration file (.yaml, .yml or .toml)")
	tcpAddr := pflag.String("tcp", "", "STP listen address, overrides server.tcp_address")
	udpAddr := pflag.String("udp", "", "Report stream source address, overrides server.udp_address")
	logLevel := pflag.String("log-level", "", "Log level (debug, info, warn, error), overrides logging.level")
	showVersion := pflag.BoolP("version", "v", false, "Print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", serviceName, serviceVersion)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *tcpAddr != "" {
		cfg.Server.TCPAddress = *tcpAddr
	}
	if *udpAddr != "" {
		cfg.Server.UDPAddress = *udpAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	server.Version = serviceVersion

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("tcp_address", cfg.Server.TCPAddress),
		slog.String("udp_address", cfg.Server.UDPAddress),
		slog.Int("max_message_size", cfg.Server.MaxMessageSize),
		slog.Uint64("default_request_delay", cfg.Streaming.DefaultRequestDelay),
		slog.Duration("delay_unit", cfg.Streaming.GetDelayUnit()),
		slog.Int("max_streams", cfg.Streaming.MaxStreams),
		slog.Bool("http_enabled", cfg.HTTP.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Service stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	h, err := cfg.House.BuildHouse()
	if err != nil {
		return fmt.Errorf("failed to build house: %w", err)
	}
	logger.Info("House initialized", slog.Any("rooms", h.RoomNames()))

	udpConn, err := net.ListenPacket("udp", cfg.Server.UDPAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP %s: %w", cfg.Server.UDPAddress, err)
	}
	defer udpConn.Close()

	streams := stream.NewRegistry(udpConn, logger, appMetrics, stream.Config{
		DefaultDelay: cfg.Streaming.DefaultRequestDelay,
		DelayUnit:    cfg.Streaming.GetDelayUnit(),
		MaxStreams:   cfg.Streaming.MaxStreams,
	})
	logger.Info("Stream registry initialized",
		slog.String("source_address", udpConn.LocalAddr().String()),
	)

	guard := house.NewGuard(h)
	dispatcher := processor.NewDispatcher(processor.DefaultChain(), guard, streams, logger, appMetrics)

	stpServer := server.NewServer(server.Config{
		Address: cfg.Server.TCPAddress,
		Options: protocol.Options{
			Limits:           protocol.Limits{MaxMessageBytes: uint32(cfg.Server.MaxMessageSize)},
			HandshakeTimeout: cfg.Server.GetHandshakeTimeoutDuration(),
			ReadTimeout:      cfg.Server.GetReadTimeoutDuration(),
			WriteTimeout:     cfg.Server.GetWriteTimeoutDuration(),
		},
		SessionsPerSecond: cfg.Server.SessionsPerSecond,
		SessionBurst:      cfg.Server.SessionBurst,
	}, logger, dispatcher, streams, appMetrics)

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg, logger, stpServer, streams, guard, appMetrics, registry)
	}

	if err := stpServer.Start(); err != nil {
		return fmt.Errorf("failed to start STP server: %w", err)
	}

	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			stopAfterFailedStart(logger, stpServer, cfg.Streaming.GetShutdownTimeoutDuration())
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("tcp_address", stpServer.Addr().String()),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Streaming.GetShutdownTimeoutDuration())
	defer shutdownCancel()

	g, gctx := errgroup.WithContext(shutdownCtx)
	if httpServer != nil {
		g.Go(func() error {
			if err := httpServer.Stop(gctx); err != nil {
				return fmt.Errorf("stopping HTTP server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := stpServer.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("stopping STP server: %w", err)
		}
		return nil
	})
	shutdownErr := g.Wait()

	stats := stpServer.GetStatistics()
	logger.Info("Final server statistics",
		slog.Uint64("sessions_accepted", stats.SessionsAccepted),
		slog.Uint64("sessions_served", stats.SessionsServed),
		slog.Uint64("sessions_rejected", stats.SessionsRejected),
		slog.Uint64("handshake_failures", stats.HandshakeFailures),
		slog.Uint64("session_errors", stats.SessionErrors),
	)

	return shutdownErr
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopAfterFailedStart stops an already running server when a later
// component fails to start. Stop errors are logged since the start error
// is the one returned.
func stopAfterFailedStart(logger *slog.Logger, s stopper, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Stop(ctx); err != nil {
		logger.Error("Failed to stop STP server after startup failure", slog.String("error", err.Error()))
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
