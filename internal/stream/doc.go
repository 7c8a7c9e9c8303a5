// Package stream runs device report streams: background tasks that
// periodically render a device report and send it as a UDP datagram to a
// subscriber address. Tasks are keyed by "<room>-<device>"; a new
// subscription for a live key cancels and replaces the previous task.
package stream
