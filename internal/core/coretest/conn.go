// Package coretest provides an in-memory core.SignalConnection for tests.
package coretest

import (
	"sync"

	"github.com/dkeye/devicefarm/internal/core"
)

// Conn records every frame it accepts. Capacity bounds the queue; zero
// means unbounded.
type Conn struct {
	id       core.ConnID
	capacity int

	mu     sync.Mutex
	frames []core.Frame
	closed bool
	closes int
}

func NewConn(id string) *Conn {
	return &Conn{id: core.ConnID(id)}
}

// NewBoundedConn returns a Conn that reports backpressure once it holds
// capacity frames.
func NewBoundedConn(id string, capacity int) *Conn {
	return &Conn{id: core.ConnID(id), capacity: capacity}
}

func (c *Conn) ID() core.ConnID { return c.id }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.capacity > 0 && len(c.frames) >= c.capacity {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closes++
}

func (c *Conn) Frames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.frames...)
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}
