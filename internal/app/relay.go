package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/devicefarm/internal/core"
	"github.com/dkeye/devicefarm/internal/domain"
)

// Relay owns the membership set and routes envelopes between members.
//
// Routing rules:
//   - message: every member, sender included
//   - offer, answer, ice: every member except the sender
//   - snapshot: an ok acknowledgement to the sender only
//   - anything else: logged and dropped
//
// Per-connection failures never leave Dispatch; they are logged and counted.
type Relay struct {
	members *core.Membership
	policy  Policy
	clock   *Clock
	stats   *Stats
}

func NewRelay(policy Policy, clock *Clock) *Relay {
	if policy == nil {
		policy = DropPolicy{}
	}
	if clock == nil {
		clock = NewClock()
	}
	return &Relay{
		members: core.NewMembership(),
		policy:  policy,
		clock:   clock,
		stats:   NewStats(),
	}
}

// Accept registers an upgraded connection.
func (r *Relay) Accept(conn core.SignalConnection) core.ConnID {
	id := conn.ID()
	if !r.members.Add(conn) {
		log.Warn().Str("module", "app.relay").Str("conn", string(id)).Msg("connection already registered")
		return id
	}
	r.stats.accepted.Add(1)
	log.Info().Str("module", "app.relay").Str("conn", string(id)).Int("members", r.members.Len()).Msg("client connected")
	return id
}

// Disconnect removes id from the membership set and closes its transport.
// It is safe to call any number of times; only the first call reports true.
func (r *Relay) Disconnect(id core.ConnID, cause error) bool {
	conn, ok := r.members.Remove(id)
	if !ok {
		return false
	}
	conn.Close()
	r.stats.disconnected.Add(1)

	ev := log.Info()
	if cause != nil {
		ev = log.Warn().Err(cause)
	}
	ev.Str("module", "app.relay").Str("conn", string(id)).Int("members", r.members.Len()).Msg("client disconnected")
	return true
}

// Dispatch decodes one inbound frame from a member and routes it.
func (r *Relay) Dispatch(from core.ConnID, data core.Frame) core.PublishResult {
	env, err := domain.Decode(data)
	if err != nil {
		r.stats.malformed.Add(1)
		log.Error().Err(err).Str("module", "app.relay").Str("conn", string(from)).Int("size", len(data)).Msg("invalid message")
		return core.PublishResult{}
	}
	return r.route(from, env)
}

func (r *Relay) route(from core.ConnID, env domain.Envelope) core.PublishResult {
	switch e := env.(type) {
	case domain.ChatMessage:
		return r.broadcast(from, e, false)
	case domain.Offer, domain.Answer, domain.ICECandidate:
		return r.broadcast(from, e, true)
	case domain.SnapshotRequest:
		return r.ackSnapshot(from, e)
	case domain.Unrecognized:
		r.stats.unknown.Add(1)
		log.Warn().Str("module", "app.relay").Str("conn", string(from)).Str("type", e.Type).Msg("unknown type")
		return core.PublishResult{}
	default:
		log.Error().Str("module", "app.relay").Str("conn", string(from)).Str("type", string(env.Kind())).Msg("unhandled envelope variant")
		return core.PublishResult{}
	}
}

func (r *Relay) broadcast(from core.ConnID, env domain.Envelope, excludeSender bool) core.PublishResult {
	frame, err := domain.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("conn", string(from)).Msg("encode broadcast")
		return core.PublishResult{}
	}
	r.stats.route(env.Kind())
	res := r.members.Broadcast(from, frame, excludeSender)
	r.handleDrops(res.Dropped)
	return res
}

func (r *Relay) ackSnapshot(from core.ConnID, req domain.SnapshotRequest) core.PublishResult {
	received := r.clock.Now()
	log.Info().Str("module", "app.relay").Str("conn", string(from)).RawJSON("payload", rawOrNull(req.Raw)).Msg("snapshot")

	ack, err := domain.NewSnapshotAck(received).Envelope()
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("build snapshot ack")
		return core.PublishResult{}
	}
	frame, err := domain.Encode(ack)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("encode snapshot ack")
		return core.PublishResult{}
	}
	r.stats.route(domain.KindSnapshot)

	conn, ok := r.members.Get(from)
	if !ok {
		return core.PublishResult{Dropped: []core.Drop{{ID: from, Err: core.ErrConnClosed}}}
	}
	if err := conn.TrySend(frame); err != nil {
		drops := []core.Drop{{ID: from, Err: err}}
		r.handleDrops(drops)
		return core.PublishResult{Dropped: drops}
	}
	return core.PublishResult{SentTo: 1}
}

func (r *Relay) handleDrops(drops []core.Drop) {
	for _, d := range drops {
		r.stats.dropped.Add(1)
		if !errors.Is(d.Err, core.ErrBackpressure) {
			log.Debug().Err(d.Err).Str("module", "app.relay").Str("conn", string(d.ID)).Msg("delivery skipped")
			continue
		}
		log.Warn().Str("module", "app.relay").Str("conn", string(d.ID)).Msg("send queue full, frame dropped")
		if r.policy.OnBackPressure(d.ID) == KickMember && r.Disconnect(d.ID, core.ErrBackpressure) {
			r.stats.kicked.Add(1)
		}
	}
}

// Members returns the number of live connections.
func (r *Relay) Members() int { return r.members.Len() }

// MemberIDs returns the ids of live connections in no particular order.
func (r *Relay) MemberIDs() []core.ConnID { return r.members.IDs() }

func (r *Relay) Stats() StatsSnapshot { return r.stats.snapshot(r.members.Len()) }

// Now exposes the relay clock for the health endpoint.
func (r *Relay) Now() int64 { return r.clock.UnixMilli() }

func rawOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
