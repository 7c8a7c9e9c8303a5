package protocol

import (
	"errors"
	"fmt"
)

// Operations reported in Error.Op
const (
	OpHandshake = "handshake"
	OpSend      = "send"
	OpRecv      = "recv"
)

var (
	ErrBadHandshake    = errors.New("bad handshake")
	ErrBadEncoding     = errors.New("bad encoding")
	ErrMessageTooLarge = errors.New("message too large")
	ErrBadRequestParam = errors.New("bad request parameter")
)

// Error is a failure of one protocol operation on one connection
type Error struct {
	Op  string // OpHandshake, OpSend or OpRecv
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stp %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
