// Package domain contains the wire entities exchanged by the relay, without transport logic.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

type Kind string

const (
	KindMessage  Kind = "message"
	KindSnapshot Kind = "snapshot"
	KindOffer    Kind = "offer"
	KindAnswer   Kind = "answer"
	KindICE      Kind = "ice"
)

// KnownKinds lists every kind with a dedicated Envelope variant.
var KnownKinds = []Kind{KindMessage, KindSnapshot, KindOffer, KindAnswer, KindICE}

var ErrMalformed = errors.New("malformed envelope")

// Envelope is a decoded frame. The set of implementations is closed:
// ChatMessage, SnapshotRequest, Offer, Answer, ICECandidate and Unrecognized.
type Envelope interface {
	Kind() Kind
	// Payload is the raw payload as received, nil when the frame had none.
	Payload() json.RawMessage
	envelope()
}

type ChatMessage struct{ Raw json.RawMessage }

type SnapshotRequest struct{ Raw json.RawMessage }

type Offer struct{ Raw json.RawMessage }

type Answer struct{ Raw json.RawMessage }

type ICECandidate struct{ Raw json.RawMessage }

// Unrecognized carries a frame whose type the relay does not route.
type Unrecognized struct {
	Type string
	Raw  json.RawMessage
}

func (ChatMessage) Kind() Kind     { return KindMessage }
func (SnapshotRequest) Kind() Kind { return KindSnapshot }
func (Offer) Kind() Kind           { return KindOffer }
func (Answer) Kind() Kind          { return KindAnswer }
func (ICECandidate) Kind() Kind    { return KindICE }
func (u Unrecognized) Kind() Kind  { return Kind(u.Type) }

func (m ChatMessage) Payload() json.RawMessage     { return m.Raw }
func (s SnapshotRequest) Payload() json.RawMessage { return s.Raw }
func (o Offer) Payload() json.RawMessage           { return o.Raw }
func (a Answer) Payload() json.RawMessage          { return a.Raw }
func (i ICECandidate) Payload() json.RawMessage    { return i.Raw }
func (u Unrecognized) Payload() json.RawMessage    { return u.Raw }

func (ChatMessage) envelope()     {}
func (SnapshotRequest) envelope() {}
func (Offer) envelope()           {}
func (Answer) envelope()          {}
func (ICECandidate) envelope()    {}
func (Unrecognized) envelope()    {}

type wireEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses a text frame of shape {"type": ..., "payload": ...}.
// Anything that is not a UTF-8 JSON object with a string type yields
// ErrMalformed. Payloads are relayed in text frames, which must be UTF-8.
func Decode(data []byte) (Envelope, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: invalid utf-8", ErrMalformed)
	}
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch Kind(w.Type) {
	case KindMessage:
		return ChatMessage{Raw: w.Payload}, nil
	case KindSnapshot:
		return SnapshotRequest{Raw: w.Payload}, nil
	case KindOffer:
		return Offer{Raw: w.Payload}, nil
	case KindAnswer:
		return Answer{Raw: w.Payload}, nil
	case KindICE:
		return ICECandidate{Raw: w.Payload}, nil
	default:
		return Unrecognized{Type: w.Type, Raw: w.Payload}, nil
	}
}

// Encode builds the outbound frame for an envelope. Top-level fields other
// than type and payload are not carried over.
func Encode(e Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wireEnvelope{Type: string(e.Kind()), Payload: e.Payload()}); err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", e.Kind(), err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
