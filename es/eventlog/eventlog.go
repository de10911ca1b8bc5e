// Package eventlog defines the client interface to the append-only event
// log and the sentinel errors every implementation must surface.
//
// The log engine itself (durability, replication, indexing) is an external
// collaborator; streamfold consumes it through Client and nothing else.
package eventlog

import (
	"context"
	"errors"

	"github.com/streamfold/streamfold/es"
)

var (
	// ErrStreamNotFound indicates a read of a stream that has never been
	// written. Callers distinguish it from other failures: on the primary
	// reconstruction path it means "does not exist yet", on the snapshot
	// path it means "no snapshot yet".
	ErrStreamNotFound = errors.New("stream not found")

	// ErrConcurrencyConflict indicates an expected-revision mismatch
	// during append. It is surfaced verbatim and never retried.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrNoEvents indicates an attempt to append zero events.
	ErrNoEvents = errors.New("no events to append")
)

// Client is the interface to an append-only, revision-ordered event log.
// Revisions are zero-based per stream and assigned by the log.
type Client interface {
	// ReadStream reads events from the given stream starting at
	// fromRevision (inclusive), in revision order, terminating at the
	// current end of the stream. It is a bounded scan, not a
	// subscription. Returns ErrStreamNotFound for a stream that has
	// never been written.
	ReadStream(ctx context.Context, streamID string, fromRevision uint64) ([]es.RecordedEvent, error)

	// ReadLast reads the single most recent event of the stream.
	// Returns ErrStreamNotFound for a stream that has never been
	// written.
	ReadLast(ctx context.Context, streamID string) (es.RecordedEvent, error)

	// AppendToStream appends events to the stream after validating the
	// expected revision. It returns the revision assigned to the last
	// appended event. Returns ErrConcurrencyConflict on an
	// expected-revision mismatch and ErrNoEvents for an empty batch.
	AppendToStream(ctx context.Context, streamID string, expected es.ExpectedRevision, events []es.Event) (uint64, error)
}
