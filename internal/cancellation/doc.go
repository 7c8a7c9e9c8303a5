// Package cancellation provides a two-handle cooperative cancellation latch.
// A Canceller flips a shared flag once; every Token observing the same flag
// sees the change at its next poll point. There is no forced termination.
package cancellation
