// Package memory provides an in-memory event log client.
//
// It implements the full eventlog.Client contract, including
// expected-revision validation, and is intended for tests and examples.
// Nothing is persisted.
package memory

import (
	"context"
	"sync"

	"github.com/streamfold/streamfold/es"
	"github.com/streamfold/streamfold/es/eventlog"
)

// Client is a mutex-guarded in-memory event log.
type Client struct {
	mu      sync.RWMutex
	streams map[string][]es.RecordedEvent
}

// NewClient creates an empty in-memory event log.
func NewClient() *Client {
	return &Client{
		streams: make(map[string][]es.RecordedEvent),
	}
}

// ReadStream implements eventlog.Client.
func (c *Client) ReadStream(_ context.Context, streamID string, fromRevision uint64) ([]es.RecordedEvent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stream, ok := c.streams[streamID]
	if !ok {
		return nil, eventlog.ErrStreamNotFound
	}

	if fromRevision >= uint64(len(stream)) {
		return nil, nil
	}

	// Copy so callers cannot mutate the log.
	out := make([]es.RecordedEvent, len(stream)-int(fromRevision))
	copy(out, stream[fromRevision:])
	return out, nil
}

// ReadLast implements eventlog.Client.
func (c *Client) ReadLast(_ context.Context, streamID string) (es.RecordedEvent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stream, ok := c.streams[streamID]
	if !ok || len(stream) == 0 {
		return es.RecordedEvent{}, eventlog.ErrStreamNotFound
	}
	return stream[len(stream)-1], nil
}

// AppendToStream implements eventlog.Client.
func (c *Client) AppendToStream(_ context.Context, streamID string, expected es.ExpectedRevision, events []es.Event) (uint64, error) {
	if len(events) == 0 {
		return 0, eventlog.ErrNoEvents
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stream, exists := c.streams[streamID]

	switch {
	case expected.IsNoStream():
		if exists {
			return 0, eventlog.ErrConcurrencyConflict
		}
	case expected.IsExact():
		if !exists || uint64(len(stream)-1) != expected.Value() {
			return 0, eventlog.ErrConcurrencyConflict
		}
	}

	next := uint64(len(stream))
	for _, event := range events {
		stream = append(stream, es.RecordedEvent{
			Event:    event,
			StreamID: streamID,
			Revision: next,
		})
		next++
	}
	c.streams[streamID] = stream

	return next - 1, nil
}

// StreamLen reports the number of events in a stream. It exists for test
// assertions; zero means the stream was never written.
func (c *Client) StreamLen(streamID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.streams[streamID])
}
