package protocol

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Options configures deadlines and limits of STP connections
type Options struct {
	Limits           Limits
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// DefaultOptions returns limits and timeouts suitable for loopback and LAN use
func DefaultOptions() Options {
	return Options{
		Limits:           DefaultLimits(),
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
	}
}

// Listener accepts TCP connections that are upgraded to STP sessions
type Listener struct {
	ln   net.Listener
	opts Options
}

// Listen binds a TCP listener on addr
func Listen(addr string, opts Options) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Listener{ln: ln, opts: opts}, nil
}

// Accept returns the next raw connection. The handshake is left to Upgrade
// so callers can track the connection while it runs.
func (l *Listener) Accept() (net.Conn, error) {
	return l.ln.Accept()
}

// Upgrade runs the server handshake on conn with the listener's options
func (l *Listener) Upgrade(conn net.Conn) (*Session, error) {
	return Upgrade(conn, l.opts)
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops the listener; a blocked Accept returns an error
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Upgrade runs the server handshake on conn. On failure conn is closed.
func Upgrade(conn net.Conn, opts Options) (*Session, error) {
	if opts.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(opts.HandshakeTimeout))
	}
	if err := ServerHandshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &Session{conn: conn, opts: opts}, nil
}

// Session is a handshake-validated server-side connection that serves exactly
// one request/response exchange.
type Session struct {
	conn net.Conn
	opts Options
}

// RemoteAddr returns the peer address
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// ProcessRequest receives one request, answers it with handler's result and
// closes the connection. The session is unusable afterwards.
func (s *Session) ProcessRequest(handler func(request string) string) error {
	defer s.conn.Close()

	setReadDeadline(s.conn, s.opts.ReadTimeout)
	request, err := Recv(s.conn, s.opts.Limits)
	if err != nil {
		return err
	}

	response := handler(request)

	setWriteDeadline(s.conn, s.opts.WriteTimeout)
	return Send(s.conn, response, s.opts.Limits)
}

// Close releases the connection without processing a request
func (s *Session) Close() error {
	return s.conn.Close()
}

// ClientConn is the client side of an STP session
type ClientConn struct {
	conn net.Conn
	opts Options
}

// Dial connects to addr and performs the client handshake
func Dial(ctx context.Context, addr string, opts Options) (*ClientConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if opts.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(opts.HandshakeTimeout))
	}
	if err := ClientHandshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &ClientConn{conn: conn, opts: opts}, nil
}

// SendRequest sends request and waits for the response
func (c *ClientConn) SendRequest(request string) (string, error) {
	setWriteDeadline(c.conn, c.opts.WriteTimeout)
	if err := Send(c.conn, request, c.opts.Limits); err != nil {
		return "", err
	}

	setReadDeadline(c.conn, c.opts.ReadTimeout)
	return Recv(c.conn, c.opts.Limits)
}

// Close closes the underlying connection
func (c *ClientConn) Close() error {
	return c.conn.Close()
}

func setReadDeadline(conn net.Conn, timeout time.Duration) {
	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
}

func setWriteDeadline(conn net.Conn, timeout time.Duration) {
	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
}
