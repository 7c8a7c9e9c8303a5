package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

const (
	// LengthPrefixSize is the size of the big-endian u32 length that precedes every payload
	LengthPrefixSize = 4

	// DefaultMaxMessageBytes caps a single payload unless configured otherwise
	DefaultMaxMessageBytes = 1 << 20
)

// Limits constrains message sizes in both directions
type Limits struct {
	// MaxMessageBytes is the largest accepted payload. Zero disables the cap.
	MaxMessageBytes uint32
}

// DefaultLimits returns the limits used when nothing is configured
func DefaultLimits() Limits {
	return Limits{MaxMessageBytes: DefaultMaxMessageBytes}
}

func (l Limits) allows(n uint64) bool {
	if n > math.MaxUint32 {
		return false
	}
	return l.MaxMessageBytes == 0 || n <= uint64(l.MaxMessageBytes)
}

// Send writes text as a 4-byte big-endian length followed by its UTF-8 bytes
func Send(w io.Writer, text string, limits Limits) error {
	size := uint64(len(text))
	if !limits.allows(size) {
		return &Error{Op: OpSend, Err: fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)}
	}

	buf := make([]byte, LengthPrefixSize+len(text))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(size))
	copy(buf[LengthPrefixSize:], text)

	if _, err := w.Write(buf); err != nil {
		return &Error{Op: OpSend, Err: err}
	}
	return nil
}

// Recv reads one length-prefixed message and decodes it as UTF-8
func Recv(r io.Reader, limits Limits) (string, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return "", &Error{Op: OpRecv, Err: err}
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if !limits.allows(uint64(size)) {
		return "", &Error{Op: OpRecv, Err: fmt.Errorf("%w: %d bytes (limit %d)",
			ErrMessageTooLarge, size, limits.MaxMessageBytes)}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", &Error{Op: OpRecv, Err: err}
	}

	if !utf8.Valid(payload) {
		return "", &Error{Op: OpRecv, Err: ErrBadEncoding}
	}

	return string(payload), nil
}
