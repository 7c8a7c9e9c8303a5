package protocol

import (
	"fmt"
	"io"
)

const (
	// MagicSize is the length of both handshake literals
	MagicSize = 4

	ClientMagic = "clnt"
	ServerMagic = "serv"
)

// ServerHandshake expects the client magic and answers with the server magic
func ServerHandshake(rw io.ReadWriter) error {
	if err := expectMagic(rw, ClientMagic); err != nil {
		return err
	}
	if _, err := io.WriteString(rw, ServerMagic); err != nil {
		return &Error{Op: OpHandshake, Err: err}
	}
	return nil
}

// ClientHandshake sends the client magic and expects the server magic back
func ClientHandshake(rw io.ReadWriter) error {
	if _, err := io.WriteString(rw, ClientMagic); err != nil {
		return &Error{Op: OpHandshake, Err: err}
	}
	return expectMagic(rw, ServerMagic)
}

func expectMagic(r io.Reader, want string) error {
	var buf [MagicSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return &Error{Op: OpHandshake, Err: err}
	}
	if string(buf[:]) != want {
		return &Error{Op: OpHandshake, Err: fmt.Errorf("%w: got %q", ErrBadHandshake, buf[:])}
	}
	return nil
}
