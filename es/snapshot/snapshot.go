// Package snapshot persists and retrieves aggregate snapshots.
//
// Each aggregate gets a derived stream (the aggregate's stream id plus a
// suffix) holding snapshot records. Only the last record of that stream
// is ever read; older records may remain in the log but are dead weight.
// Snapshots are non-authoritative: a lost or failed snapshot changes the
// cost of reconstruction, never its result.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/streamfold/streamfold/es"
	"github.com/streamfold/streamfold/es/eventlog"
)

// DefaultStreamSuffix is appended to a stream id to form its snapshot
// stream id.
const DefaultStreamSuffix = "-snapshot"

// snapshotEventType is the event type snapshot records are stored under.
const snapshotEventType = "$snapshot"

// ShouldSnapshot reports whether a snapshot is due at the given version.
// A frequency of 0 disables snapshotting entirely.
func ShouldSnapshot(version, frequency int64) bool {
	return frequency > 0 && version > 0 && version%frequency == 0
}

// StoreConfig contains configuration for a snapshot Store.
type StoreConfig struct {
	// Logger is an optional logger for observability.
	Logger es.Logger

	// StreamSuffix is appended to the aggregate stream id to form the
	// snapshot stream id.
	StreamSuffix string
}

// DefaultStoreConfig returns the default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		StreamSuffix: DefaultStreamSuffix,
	}
}

// Store reads and writes snapshots through the event log client.
type Store struct {
	client eventlog.Client
	config StoreConfig
}

// NewStore creates a snapshot store over the given log client.
func NewStore(client eventlog.Client, config StoreConfig) *Store {
	if config.StreamSuffix == "" {
		config.StreamSuffix = DefaultStreamSuffix
	}
	return &Store{
		client: client,
		config: config,
	}
}

// StreamID returns the snapshot stream id for an aggregate stream.
func (s *Store) StreamID(streamID string) string {
	return streamID + s.config.StreamSuffix
}

// Load returns the latest snapshot for the stream, or nil when no
// snapshot exists yet. A missing snapshot stream is not an error.
func (s *Store) Load(ctx context.Context, streamID string) (*es.Snapshot, error) {
	record, err := s.client.ReadLast(ctx, s.StreamID(streamID))
	if err != nil {
		if errors.Is(err, eventlog.ErrStreamNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot for %s: %w", streamID, err)
	}

	var snap es.Snapshot
	if err := json.Unmarshal(record.Data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", streamID, err)
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "snapshot loaded",
			"stream_id", streamID,
			"snapshot_version", snap.Version)
	}

	return &snap, nil
}

// Save appends a new snapshot record for the stream.
// Older records are left in place; readers only ever take the last one.
func (s *Store) Save(ctx context.Context, streamID string, snap es.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", streamID, err)
	}

	_, err = s.client.AppendToStream(ctx, s.StreamID(streamID), es.Any(), []es.Event{
		es.NewEvent(snapshotEventType, 1, data),
	})
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", streamID, err)
	}

	if s.config.Logger != nil {
		s.config.Logger.Info(ctx, "snapshot saved",
			"stream_id", streamID,
			"snapshot_version", snap.Version)
	}

	return nil
}
