package processor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/denisbaic/smarthouse/internal/house"
	"github.com/denisbaic/smarthouse/internal/metrics"
	"github.com/denisbaic/smarthouse/internal/protocol"
)

// Request outcome labels for metrics
const (
	StatusOK           = "ok"
	StatusError        = "error"
	StatusUnrecognized = "unrecognized"
)

// Dispatcher resolves request lines with exclusive access to the house
type Dispatcher struct {
	chain   *Chain
	guard   *house.Guard
	streams Streams
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(chain *Chain, guard *house.Guard, streams Streams, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		chain:   chain,
		guard:   guard,
		streams: streams,
		logger:  logger,
		metrics: m,
	}
}

// Resolve runs line through the chain while holding the house guard
func (d *Dispatcher) Resolve(line string) (string, error) {
	req := protocol.NewRequest(line)
	start := time.Now()

	var response string
	err := d.guard.With(func(h *house.House) error {
		var err error
		response, err = d.chain.Dispatch(req, &Env{House: h, Guard: d.guard, Streams: d.streams})
		return err
	})

	command := req.Command()
	status := StatusOK
	switch {
	case errors.Is(err, ErrUnrecognizedCommand):
		status = StatusUnrecognized
		command = "unknown"
	case err != nil:
		status = StatusError
	}
	d.metrics.RecordRequest(command, status, time.Since(start).Seconds())

	return response, err
}

// Handle resolves line and always returns response text; failures become
// an error response line
func (d *Dispatcher) Handle(line string) string {
	response, err := d.Resolve(line)
	if err != nil {
		d.logger.Warn("Request failed",
			slog.String("command", protocol.CommandOf(line)),
			slog.String("error", err.Error()),
		)
		return ErrorResponse(err)
	}

	d.logger.Debug("Request processed",
		slog.String("command", protocol.CommandOf(line)),
		slog.Int("response_bytes", len(response)),
	)
	return response
}
