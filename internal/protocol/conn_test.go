package protocol

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.HandshakeTimeout = time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return opts
}

// acceptSession accepts one connection on ln and upgrades it
func acceptSession(ln *Listener) (*Session, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	return ln.Upgrade(conn)
}

func TestListenerDialExchange(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", testOptions())
	require.NoError(t, err)
	defer ln.Close()

	serverErr := make(chan error, 1)
	go func() {
		session, err := acceptSession(ln)
		if err != nil {
			serverErr <- err
			return
		}
		serverErr <- session.ProcessRequest(strings.ToUpper)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Dial(ctx, ln.Addr().String(), testOptions())
	require.NoError(t, err)
	defer client.Close()

	response, err := client.SendRequest("hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", response)
	require.NoError(t, <-serverErr)
}

func TestSessionClosesAfterOneExchange(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", testOptions())
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		session, err := acceptSession(ln)
		if err != nil {
			return
		}
		_ = session.ProcessRequest(func(req string) string { return req })
	}()

	client, err := Dial(context.Background(), ln.Addr().String(), testOptions())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.SendRequest("first")
	require.NoError(t, err)

	_, err = client.SendRequest("second")
	assert.Error(t, err, "no keep-alive: the second exchange must fail")
}

func TestAcceptRejectsBadHandshake(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", testOptions())
	require.NoError(t, err)
	defer ln.Close()

	acceptErr := make(chan error, 1)
	go func() {
		session, err := acceptSession(ln)
		if session != nil {
			session.Close()
		}
		acceptErr <- err
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\n"))
	require.NoError(t, err)

	err = <-acceptErr
	assert.ErrorIs(t, err, ErrBadHandshake)

	// the server must drop the connection without answering
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4)
	n, _ := conn.Read(buf)
	assert.Zero(t, n)
}

func TestDialRejectsNonSTPServer(t *testing.T) {
	raw, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer raw.Close()

	go func() {
		conn, err := raw.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, MagicSize)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte("nope"))
	}()

	_, err = Dial(context.Background(), raw.Addr().String(), testOptions())
	assert.ErrorIs(t, err, ErrBadHandshake)
}

func TestHandshakeTimeout(t *testing.T) {
	opts := testOptions()
	opts.HandshakeTimeout = 50 * time.Millisecond

	ln, err := Listen("127.0.0.1:0", opts)
	require.NoError(t, err)
	defer ln.Close()

	acceptErr := make(chan error, 1)
	go func() {
		_, err := acceptSession(ln)
		acceptErr <- err
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case err := <-acceptErr:
		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout())
	case <-time.After(2 * time.Second):
		t.Fatal("silent client was never timed out")
	}
}
