package es

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event represents an immutable domain event.
// Events are value objects without identity in the log until appended
// and assigned a revision.
type Event struct {
	// CreatedAt is when the event was created
	CreatedAt time.Time

	// Type identifies the kind of event and selects the reducer branch
	Type string

	// Version is the schema version of this event type.
	// It selects the migration entry point during replay.
	Version int

	// Data contains the event payload as structured JSON.
	// Payloads stay opaque to the runtime; they are decoded into
	// concrete types only inside reducers and migration functions.
	Data json.RawMessage

	// Metadata contains additional event metadata as JSON (optional)
	Metadata json.RawMessage

	// ID is a unique identifier for this event
	ID uuid.UUID
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType string, version int, data json.RawMessage) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Version:   version,
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// RecordedEvent is an event that has been appended to a stream.
type RecordedEvent struct {
	Event

	// StreamID is the stream this event was read from
	StreamID string

	// Revision is the zero-based position within the stream,
	// assigned by the log
	Revision uint64
}

// Snapshot is a cached (state, version) pair used to shortcut replay.
// Snapshots are derived and disposable: deleting every snapshot must not
// change reconstructed state, only its cost.
type Snapshot struct {
	// State is the aggregate state at Version, serialized as JSON
	State json.RawMessage

	// Version is the number of events folded into State
	Version int64

	// TakenAt is when the snapshot was persisted
	TakenAt time.Time
}
