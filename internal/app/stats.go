package app

import (
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/dkeye/devicefarm/internal/domain"
)

// Stats counts relay events. The routed map is filled once at construction
// and only its counters change afterwards.
type Stats struct {
	accepted     atomic.Uint64
	disconnected atomic.Uint64
	malformed    atomic.Uint64
	unknown      atomic.Uint64
	dropped      atomic.Uint64
	kicked       atomic.Uint64
	routed       map[domain.Kind]*atomic.Uint64
}

func NewStats() *Stats {
	s := &Stats{routed: make(map[domain.Kind]*atomic.Uint64, len(domain.KnownKinds))}
	for _, k := range domain.KnownKinds {
		s.routed[k] = new(atomic.Uint64)
	}
	return s
}

func (s *Stats) route(k domain.Kind) {
	if c, ok := s.routed[k]; ok {
		c.Add(1)
	}
}

type StatsSnapshot struct {
	Members      int               `json:"members"`
	Accepted     uint64            `json:"accepted"`
	Disconnected uint64            `json:"disconnected"`
	Malformed    uint64            `json:"malformed"`
	Unknown      uint64            `json:"unknown"`
	Dropped      uint64            `json:"dropped"`
	Kicked       uint64            `json:"kicked"`
	Routed       map[string]uint64 `json:"routed"`
}

func (s *Stats) snapshot(members int) StatsSnapshot {
	return StatsSnapshot{
		Members:      members,
		Accepted:     s.accepted.Load(),
		Disconnected: s.disconnected.Load(),
		Malformed:    s.malformed.Load(),
		Unknown:      s.unknown.Load(),
		Dropped:      s.dropped.Load(),
		Kicked:       s.kicked.Load(),
		Routed: lo.MapEntries(s.routed, func(k domain.Kind, v *atomic.Uint64) (string, uint64) {
			return string(k), v.Load()
		}),
	}
}
