package core

import "errors"

// Frame is a raw text payload as written to or read from the wire.
type Frame []byte

// ConnID identifies one live connection. Generated at accept time.
type ConnID string

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrBackpressure = errors.New("backpressure")
)

// SignalConnection abstracts a client messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() ConnID
	// TrySend queues f without blocking. It returns ErrConnClosed after Close
	// and ErrBackpressure when the outbound queue is full.
	TrySend(f Frame) error
	Close()
}

// Drop records a delivery that was skipped during a fan-out.
type Drop struct {
	ID  ConnID
	Err error
}

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SentTo  int
	Dropped []Drop
}
