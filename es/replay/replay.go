// Package replay reconstructs aggregate state from event streams.
//
// Reconstruction follows one fixed protocol: look up the latest snapshot,
// replay the stream from the snapshot's version forward, upgrade each
// event through the migration chain, fold it into state via the caller's
// reducer, and finally re-snapshot when the configured cadence is
// crossed. Every read is a bounded, terminating scan; there are no
// subscriptions and no background work.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streamfold/streamfold/es"
	"github.com/streamfold/streamfold/es/eventlog"
	"github.com/streamfold/streamfold/es/migrate"
	"github.com/streamfold/streamfold/es/snapshot"
)

// ApplyFunc folds one event into the prior state and returns the next
// state. It is caller-owned and must be pure. state is nil for the first
// event of a fresh stream; the reducer is expected to create the initial
// state from its creation event and may reject anything else with a
// domain error. Reducer errors propagate unmodified and abort the
// reconstruction.
type ApplyFunc[S any] func(state *S, event es.Event) (*S, error)

// Result is the outcome of a reconstruction pass.
type Result[S any] struct {
	// State is the reconstructed aggregate state. It is nil for a
	// stream that has never been written; that is the canonical
	// "does not exist" signal, not an error.
	State *S

	// Version is the number of events folded into State. It advances by
	// exactly one per applied event, only inside the fold step.
	Version int64
}

// Config contains configuration for a Reconstructor.
// Configuration is immutable after construction.
type Config struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger

	// Migrations is the upcasting chain applied to every replayed
	// event. Nil means no migrations.
	Migrations *migrate.Chain

	// SnapshotFrequency is the event-count cadence for re-snapshotting.
	// 0 disables snapshotting entirely; every reconstruction then
	// replays from the beginning of the stream.
	SnapshotFrequency int64

	// SnapshotSuffix is appended to a stream id to form its snapshot
	// stream id. Defaults to snapshot.DefaultStreamSuffix.
	SnapshotSuffix string

	// Now supplies snapshot timestamps. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default configuration: no logger, no
// migrations, snapshotting disabled.
func DefaultConfig() Config {
	return Config{
		SnapshotSuffix: snapshot.DefaultStreamSuffix,
		Now:            time.Now,
	}
}

// Option is a functional option for configuring a Reconstructor.
type Option func(*Config)

// WithLogger sets a logger.
func WithLogger(logger es.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMigrations sets the migration chain applied during replay.
func WithMigrations(chain *migrate.Chain) Option {
	return func(c *Config) {
		c.Migrations = chain
	}
}

// WithSnapshotFrequency sets the snapshot cadence. 0 disables snapshots.
func WithSnapshotFrequency(frequency int64) Option {
	return func(c *Config) {
		c.SnapshotFrequency = frequency
	}
}

// WithSnapshotSuffix sets the snapshot stream suffix.
func WithSnapshotSuffix(suffix string) Option {
	return func(c *Config) {
		c.SnapshotSuffix = suffix
	}
}

// WithClock sets the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}

// NewConfig creates a configuration with functional options applied on
// top of the defaults.
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Reconstructor rebuilds aggregate state of type S from a stream.
// The zero value is not usable; construct with New.
type Reconstructor[S any] struct {
	client    eventlog.Client
	snapshots *snapshot.Store
	config    Config
}

// New creates a Reconstructor over the given log client.
func New[S any](client eventlog.Client, config Config) *Reconstructor[S] {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Reconstructor[S]{
		client: client,
		snapshots: snapshot.NewStore(client, snapshot.StoreConfig{
			Logger:       config.Logger,
			StreamSuffix: config.SnapshotSuffix,
		}),
		config: config,
	}
}

// GetCurrentState reconstructs the stream's state by folding its events
// into apply, starting from the latest snapshot if one exists.
//
// An empty stream yields a nil State and Version 0 without error.
// Reducer and migration errors abort the reconstruction; no partial
// state is returned.
func (r *Reconstructor[S]) GetCurrentState(ctx context.Context, streamID string, apply ApplyFunc[S]) (Result[S], error) {
	snap, err := r.snapshots.Load(ctx, streamID)
	if err != nil {
		return Result[S]{}, err
	}

	var state *S
	var version int64
	if snap != nil {
		restored := new(S)
		if err := json.Unmarshal(snap.State, restored); err != nil {
			return Result[S]{}, fmt.Errorf("restore snapshot state for %s: %w", streamID, err)
		}
		state = restored
		version = snap.Version
	}

	// The snapshot version counts applied events, so with zero-based
	// revisions it is also the revision of the next unseen event.
	events, err := r.client.ReadStream(ctx, streamID, uint64(version))
	if err != nil {
		if errors.Is(err, eventlog.ErrStreamNotFound) {
			// Never written: the canonical "does not exist" signal.
			return Result[S]{State: state, Version: version}, nil
		}
		return Result[S]{}, err
	}

	for _, record := range events {
		event, err := r.config.Migrations.Apply(record.Event)
		if err != nil {
			return Result[S]{}, err
		}

		state, err = apply(state, event)
		if err != nil {
			// Domain invariant violations belong to the caller;
			// surface them untouched.
			return Result[S]{}, err
		}
		version++
	}

	if snapshot.ShouldSnapshot(version, r.config.SnapshotFrequency) {
		if err := r.saveSnapshot(ctx, streamID, state, version); err != nil {
			// Snapshots are an optimization; a failed write must not
			// fail the read path.
			if r.config.Logger != nil {
				r.config.Logger.Error(ctx, "snapshot write failed",
					"stream_id", streamID,
					"version", version,
					"error", err)
			}
		}
	}

	if r.config.Logger != nil {
		r.config.Logger.Debug(ctx, "state reconstructed",
			"stream_id", streamID,
			"version", version,
			"replayed", len(events),
			"from_snapshot", snap != nil)
	}

	return Result[S]{State: state, Version: version}, nil
}

func (r *Reconstructor[S]) saveSnapshot(ctx context.Context, streamID string, state *S, version int64) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state for %s: %w", streamID, err)
	}
	return r.snapshots.Save(ctx, streamID, es.Snapshot{
		State:   data,
		Version: version,
		TakenAt: r.config.Now(),
	})
}

// AppendEvent writes one event to the stream, optionally guarded by an
// expected revision. A concurrency conflict is surfaced verbatim and
// never retried here.
func (r *Reconstructor[S]) AppendEvent(ctx context.Context, streamID string, event es.Event, expected es.ExpectedRevision) error {
	_, err := r.client.AppendToStream(ctx, streamID, expected, []es.Event{event})
	return err
}

// GetLatestSnapshot returns the latest snapshot for the stream, or nil
// when none exists.
func (r *Reconstructor[S]) GetLatestSnapshot(ctx context.Context, streamID string) (*es.Snapshot, error) {
	return r.snapshots.Load(ctx, streamID)
}
