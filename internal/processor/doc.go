// Package processor resolves STP request lines against the house.
//
// A Chain holds processors in insertion order. Each processor owns exactly
// one command token and answers ErrNotHandled for every other command, so the
// chain tries the next one. Any other error ends dispatch and is reported to
// the client by the Dispatcher as an error response line.
package processor
