package core

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Membership is the threadsafe set of live connections.
// It never closes adapter-owned resources.
type Membership struct {
	mu    sync.RWMutex
	conns map[ConnID]SignalConnection
}

func NewMembership() *Membership {
	return &Membership{conns: make(map[ConnID]SignalConnection)}
}

// Add inserts conn. It reports false if the id was already present.
func (m *Membership) Add(conn SignalConnection) bool {
	id := conn.ID()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conns[id]; ok {
		return false
	}
	m.conns[id] = conn
	log.Debug().Str("module", "core.membership").Str("conn", string(id)).Int("members", len(m.conns)).Msg("member added")
	return true
}

// Remove deletes id and returns the removed connection. Only the first call
// for a given id reports ok.
func (m *Membership) Remove(id ConnID) (SignalConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[id]
	if !ok {
		return nil, false
	}
	delete(m.conns, id)
	log.Debug().Str("module", "core.membership").Str("conn", string(id)).Int("members", len(m.conns)).Msg("member removed")
	return conn, true
}

func (m *Membership) Get(id ConnID) (SignalConnection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[id]
	return conn, ok
}

func (m *Membership) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

func (m *Membership) IDs() []ConnID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.conns)
}

// Snapshot copies the current members. The result is safe to iterate after
// the set has changed.
func (m *Membership) Snapshot() []SignalConnection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Values(m.conns)
}

// Broadcast sends data to every member present when it is called, skipping
// from when excludeSender is set. The lock is not held while sending.
func (m *Membership) Broadcast(from ConnID, data Frame, excludeSender bool) PublishResult {
	targets := m.Snapshot()
	if excludeSender {
		targets = lo.Reject(targets, func(c SignalConnection, _ int) bool {
			return c.ID() == from
		})
	}

	res := PublishResult{}
	for _, c := range targets {
		if err := c.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, Drop{ID: c.ID(), Err: err})
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.membership").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
