package cancellation

import (
	"sync"
	"sync/atomic"
	"time"
)

// latch is the state shared by a Canceller and its Tokens
type latch struct {
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// Canceller is the issuing half of a cancellation pair
type Canceller struct {
	l *latch
}

// Token is the observing half of a cancellation pair
type Token struct {
	l *latch
}

// New returns a linked Canceller/Token pair in the not-cancelled state
func New() (Canceller, Token) {
	l := &latch{done: make(chan struct{})}
	return Canceller{l: l}, Token{l: l}
}

// Cancel sets the flag. It is one-way and safe to call any number of times.
func (c Canceller) Cancel() {
	if c.l == nil {
		return
	}
	c.l.cancelled.Store(true)
	c.l.once.Do(func() { close(c.l.done) })
}

// Token returns an observer bound to the same flag
func (c Canceller) Token() Token {
	return Token{l: c.l}
}

// Cancelled reports whether the paired Canceller has fired.
// A zero Token is never cancelled.
func (t Token) Cancelled() bool {
	if t.l == nil {
		return false
	}
	return t.l.cancelled.Load()
}

// Sleep pauses for d and returns true, or returns false as soon as the
// token is cancelled. Callers still poll Cancelled at their own check points.
func (t Token) Sleep(d time.Duration) bool {
	if t.l == nil {
		time.Sleep(d)
		return true
	}
	if d <= 0 {
		return !t.Cancelled()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-t.l.done:
		return false
	}
}
