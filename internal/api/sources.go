// Package api projects the live session store into consumer-facing REST
// records and hosts the WebSocket and health endpoints. Handlers read
// state only through the narrow interfaces below, so they are testable
// against fakes and can never mutate the store.
package api

import (
	"github.com/pitwall/lt-relay/internal/state"
)

// StateSource is the read surface of the session store. *state.Store
// implements it.
type StateSource interface {
	Get(feed string) any
	Snapshot() map[string]any
	LapHistory() []state.LapRecord
	PitHistory() []state.PitRecord
	LapCounter() state.LapCount
	SessionKeys() (sessionKey, meetingKey *int)
	TimingLines() map[string]any
}

// LiveSource provides real-time pipeline status to the health endpoint.
// The ingest pipeline implements it.
type LiveSource interface {
	Mode() string
	Connected() bool
	FramesProcessed() int64
}

// SubscriberSource reports fan-out occupancy. *ws.Hub implements it.
type SubscriberSource interface {
	Count() int
}
