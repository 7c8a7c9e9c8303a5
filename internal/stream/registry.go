package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/denisbaic/smarthouse/internal/cancellation"
	"github.com/denisbaic/smarthouse/internal/metrics"
)

var (
	ErrTooManyStreams = errors.New("too many active streams")
	ErrBadAddress     = errors.New("bad stream address")
	ErrClosed         = errors.New("stream registry is shut down")
)

// Config controls task timing and limits
type Config struct {
	DefaultDelay uint64        // ticks used when a subscription gives no delay
	DelayUnit    time.Duration // length of one tick
	MaxStreams   int           // cap on distinct live names, 0 for no cap
}

// DefaultConfig returns a five second default interval and room for 1000 streams
func DefaultConfig() Config {
	return Config{
		DefaultDelay: 5,
		DelayUnit:    time.Second,
		MaxStreams:   1000,
	}
}

// RenderFunc produces one report. Errors skip the current tick.
type RenderFunc func() (string, error)

// Subscription is a request to stream one device's reports to Addr
type Subscription struct {
	Room   string
	Device string
	Delay  uint64 // ticks between reports, 0 for the configured default
	Addr   string // numeric ip:port of the UDP receiver
	Render RenderFunc
}

// TaskInfo is a snapshot of a registered task for monitoring
type TaskInfo struct {
	Name        string        `json:"name"`
	ID          string        `json:"id"`
	Addr        string        `json:"addr"`
	Interval    time.Duration `json:"interval"`
	StartTime   time.Time     `json:"start_time"`
	ReportsSent uint64        `json:"reports_sent"`
}

type task struct {
	id        string
	name      string
	addr      *net.UDPAddr
	interval  time.Duration
	render    RenderFunc
	startTime time.Time

	canceller cancellation.Canceller
	token     cancellation.Token

	reportsSent atomic.Uint64
	done        chan struct{}
}

func (t *task) info() TaskInfo {
	return TaskInfo{
		Name:        t.name,
		ID:          t.id,
		Addr:        t.addr.String(),
		Interval:    t.interval,
		StartTime:   t.startTime,
		ReportsSent: t.reportsSent.Load(),
	}
}

// Registry owns every stream task and the datagram socket they share
type Registry struct {
	conn    net.PacketConn
	logger  *slog.Logger
	metrics *metrics.Metrics
	config  Config

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool

	wg sync.WaitGroup
}

// NewRegistry creates an empty registry sending through conn
func NewRegistry(conn net.PacketConn, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Registry {
	if cfg.DelayUnit <= 0 {
		cfg.DelayUnit = time.Second
	}
	if cfg.DefaultDelay == 0 {
		cfg.DefaultDelay = DefaultConfig().DefaultDelay
	}

	return &Registry{
		conn:    conn,
		logger:  logger,
		metrics: m,
		config:  cfg,
		tasks:   make(map[string]*task),
	}
}

// TaskName returns the registry key for a device stream
func TaskName(room, device string) string {
	return room + "-" + device
}

// ParseAddr parses a numeric ip:port receiver address. Host names are
// rejected so Subscribe never blocks on a resolver.
func ParseAddr(s string) (*net.UDPAddr, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadAddress, s, err)
	}
	if ap.Port() == 0 {
		return nil, fmt.Errorf("%w %q: port 0", ErrBadAddress, s)
	}
	return net.UDPAddrFromAddrPort(ap), nil
}

// Subscribe starts a task for sub and returns its name. A live task with the
// same name is cancelled and replaced; its receiver is not notified.
func (r *Registry) Subscribe(sub Subscription) (string, error) {
	addr, err := ParseAddr(sub.Addr)
	if err != nil {
		return "", err
	}

	delay := sub.Delay
	if delay == 0 {
		delay = r.config.DefaultDelay
	}

	canceller, token := cancellation.New()
	t := &task{
		id:        uuid.NewString(),
		name:      TaskName(sub.Room, sub.Device),
		addr:      addr,
		interval:  time.Duration(delay) * r.config.DelayUnit,
		render:    sub.Render,
		startTime: time.Now(),
		canceller: canceller,
		token:     token,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	previous, exists := r.tasks[t.name]
	if !exists && r.config.MaxStreams > 0 && len(r.tasks) >= r.config.MaxStreams {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: limit %d", ErrTooManyStreams, r.config.MaxStreams)
	}
	if exists {
		previous.canceller.Cancel()
	}
	r.tasks[t.name] = t
	active := len(r.tasks)
	r.wg.Add(1)
	r.mu.Unlock()

	if exists {
		r.metrics.RecordStreamReplaced()
		r.logger.Warn("Stream replaced by new subscription",
			slog.String("stream_name", t.name),
			slog.String("previous_task_id", previous.id),
			slog.String("previous_addr", previous.addr.String()),
			slog.String("task_id", t.id),
			slog.String("addr", addr.String()),
		)
	}
	r.metrics.RecordStreamStarted()
	r.metrics.SetActiveStreams(active)

	r.logger.Info("Stream started",
		slog.String("stream_name", t.name),
		slog.String("task_id", t.id),
		slog.String("addr", addr.String()),
		slog.Duration("interval", t.interval),
	)

	go r.run(t)

	return t.name, nil
}

// Cancel signals and removes the named task. It reports whether one existed.
func (r *Registry) Cancel(name string) bool {
	r.mu.Lock()
	t, exists := r.tasks[name]
	if exists {
		delete(r.tasks, name)
	}
	active := len(r.tasks)
	r.mu.Unlock()

	if !exists {
		return false
	}

	t.canceller.Cancel()
	r.metrics.RecordStreamCancelled()
	r.metrics.SetActiveStreams(active)

	r.logger.Info("Stream cancelled",
		slog.String("stream_name", name),
		slog.String("task_id", t.id),
		slog.Uint64("reports_sent", t.reportsSent.Load()),
	)
	return true
}

// CancelAll signals and removes every task, returning how many were registered
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = make(map[string]*task)
	r.mu.Unlock()

	for _, t := range tasks {
		t.canceller.Cancel()
		r.metrics.RecordStreamCancelled()
	}
	r.metrics.SetActiveStreams(0)

	return len(tasks)
}

// Shutdown refuses new subscriptions, cancels every task and waits for all
// task goroutines (including replaced ones) to exit or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	cancelled := r.CancelAll()
	r.logger.Info("Stopping stream registry...", slog.Int("cancelled_streams", cancelled))

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		r.logger.Info("Stream registry stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Stream tasks still running at shutdown deadline",
			slog.String("error", ctx.Err().Error()),
		)
		return fmt.Errorf("waiting for stream tasks: %w", ctx.Err())
	}
}

// Len returns the number of registered tasks
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Names returns registered task names in sorted order
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Task returns a snapshot of the named task
func (r *Registry) Task(name string) (TaskInfo, bool) {
	r.mu.Lock()
	t, exists := r.tasks[name]
	r.mu.Unlock()

	if !exists {
		return TaskInfo{}, false
	}
	return t.info(), true
}

// Tasks returns snapshots of every registered task sorted by name
func (r *Registry) Tasks() []TaskInfo {
	r.mu.Lock()
	infos := make([]TaskInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		infos = append(infos, t.info())
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// run is the task loop: check, sleep, check, render, send. A cancel landing
// between the second check and the send still lets that one datagram out.
func (r *Registry) run(t *task) {
	defer r.wg.Done()
	defer close(t.done)

	for {
		if t.token.Cancelled() {
			break
		}
		if !t.token.Sleep(t.interval) {
			break
		}
		if t.token.Cancelled() {
			break
		}

		report, err := t.render()
		if err != nil {
			r.metrics.RecordReportSkipped()
			r.logger.Debug("Skipping stream tick, report unavailable",
				slog.String("stream_name", t.name),
				slog.String("task_id", t.id),
				slog.String("error", err.Error()),
			)
			continue
		}

		if _, err := r.conn.WriteTo([]byte(report), t.addr); err != nil {
			r.metrics.RecordDatagramError()
			r.logger.Warn("Failed to send stream report",
				slog.String("stream_name", t.name),
				slog.String("task_id", t.id),
				slog.String("addr", t.addr.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		t.reportsSent.Add(1)
		r.metrics.RecordReportSent()
	}

	r.logger.Debug("Stream task exited",
		slog.String("stream_name", t.name),
		slog.String("task_id", t.id),
		slog.Uint64("reports_sent", t.reportsSent.Load()),
	)
}
