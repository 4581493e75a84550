package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const SnapshotStatusOK = "ok"

// SnapshotAck is the payload sent back to a device that asked for a snapshot.
// Nothing is stored; the status is always ok.
type SnapshotAck struct {
	Status  string    `json:"status"`
	SavedAt time.Time `json:"savedAt"`
}

func NewSnapshotAck(savedAt time.Time) SnapshotAck {
	return SnapshotAck{Status: SnapshotStatusOK, SavedAt: savedAt.UTC()}
}

// Envelope wraps the ack as a snapshot envelope ready for Encode.
func (a SnapshotAck) Envelope() (Envelope, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot ack: %w", err)
	}
	return SnapshotRequest{Raw: raw}, nil
}

// Health is the body of the health endpoint.
type Health struct {
	OK bool  `json:"ok"`
	TS int64 `json:"ts"`
}
