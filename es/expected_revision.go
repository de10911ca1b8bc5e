package es

import "fmt"

// ExpectedRevision declares the revision a stream is expected to be at when
// appending, for optimistic concurrency control. The check is performed by
// the event log at append time; a mismatch surfaces as a concurrency
// conflict and is never retried by this layer.
type ExpectedRevision struct {
	value int64
}

const (
	// expectedRevisionAny indicates no revision check should be performed
	expectedRevisionAny = -1
	// expectedRevisionNoStream indicates the stream must not exist
	expectedRevisionNoStream = -2
)

// Any returns an ExpectedRevision that skips the revision check.
func Any() ExpectedRevision {
	return ExpectedRevision{value: expectedRevisionAny}
}

// NoStream returns an ExpectedRevision that enforces the stream must not
// exist yet. Use this when appending the first event of a new stream.
func NoStream() ExpectedRevision {
	return ExpectedRevision{value: expectedRevisionNoStream}
}

// Exact returns an ExpectedRevision that enforces the stream's last event
// must be at exactly the given zero-based revision.
func Exact(revision uint64) ExpectedRevision {
	return ExpectedRevision{value: int64(revision)}
}

// IsAny returns true if no revision check should be performed.
func (er ExpectedRevision) IsAny() bool {
	return er.value == expectedRevisionAny
}

// IsNoStream returns true if the stream must not exist.
func (er ExpectedRevision) IsNoStream() bool {
	return er.value == expectedRevisionNoStream
}

// IsExact returns true if the stream must be at a specific revision.
func (er ExpectedRevision) IsExact() bool {
	return er.value >= 0
}

// Value returns the exact revision if IsExact, and 0 otherwise.
func (er ExpectedRevision) Value() uint64 {
	if er.value >= 0 {
		return uint64(er.value)
	}
	return 0
}

// String returns a string representation of the ExpectedRevision.
func (er ExpectedRevision) String() string {
	if er.IsAny() {
		return "Any"
	}
	if er.IsNoStream() {
		return "NoStream"
	}
	return fmt.Sprintf("Exact(%d)", er.value)
}
