// Package transaction coordinates multi-stream writes for an aggregate
// root and its dependent entities.
//
// A transaction is ephemeral and in-memory, keyed by aggregate id. It
// batches events destined for the aggregate's stream together with the
// entity streams each event references, then applies them sequentially
// on commit.
//
// # Consistency level
//
// Commit is best-effort sequential, not all-or-nothing. On a write
// failure mid-commit the in-memory pending state is discarded, but
// appends that already succeeded are not undone; there is no
// compensating-write rollback against the log. Callers must treat
// entity-stream writes as idempotent or tolerant of duplication on
// retry. The log's optimistic-revision check remains the only true
// concurrency-safety mechanism for the underlying data.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/streamfold/streamfold/es"
	"github.com/streamfold/streamfold/es/eventlog"
)

// ErrNoActiveTransaction indicates AddEvent or Commit was called for an
// aggregate id without a prior Begin.
var ErrNoActiveTransaction = errors.New("no active transaction")

// EntityRef points from an aggregate-scoped event to a dependent stream
// that must also receive a copy of that event.
//
// The claimed Version is recorded, not validated: true optimistic
// concurrency enforcement happens at the log append if the caller
// supplies an expected revision there.
type EntityRef struct {
	// ID identifies the entity
	ID string

	// Type selects the entity stream prefix
	Type string

	// Version is the entity version the caller believes is current
	Version int64
}

// Config contains configuration for a Coordinator.
// Configuration is immutable after construction.
type Config struct {
	// Logger is an optional logger for observability.
	Logger es.Logger

	// AggregatePrefix is prepended to the aggregate id to form the
	// aggregate root stream id.
	AggregatePrefix string

	// EntityPrefixes maps an entity type to its stream id prefix.
	// Unmapped types fall back to "<type>-".
	EntityPrefixes map[string]string
}

// DefaultConfig returns the default configuration: no prefixes, no
// logger.
func DefaultConfig() Config {
	return Config{}
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Config)

// WithLogger sets a logger.
func WithLogger(logger es.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithAggregatePrefix sets the aggregate root stream prefix.
func WithAggregatePrefix(prefix string) Option {
	return func(c *Config) {
		c.AggregatePrefix = prefix
	}
}

// WithEntityPrefix maps an entity type to a stream id prefix.
func WithEntityPrefix(entityType, prefix string) Option {
	return func(c *Config) {
		if c.EntityPrefixes == nil {
			c.EntityPrefixes = make(map[string]string)
		}
		c.EntityPrefixes[entityType] = prefix
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

// pendingEvent pairs an event with the entity streams that must also
// observe it.
type pendingEvent struct {
	event es.Event
	refs  []EntityRef
}

// state is the per-aggregate transaction state machine. Presence in the
// coordinator's map means OPEN; absence means NO_TRANSACTION.
type state struct {
	pending        []pendingEvent
	entityVersions map[string]int64
}

// Coordinator batches events for an aggregate root and its dependent
// entity streams with begin/add/commit/rollback semantics.
//
// The internal map is guarded for map integrity only. Interleaving
// AddEvent and Commit for the same aggregate id from multiple goroutines
// is not supported; callers serialize per aggregate id.
type Coordinator struct {
	client eventlog.Client
	config Config

	mu   sync.Mutex
	open map[string]*state
}

// NewCoordinator creates a Coordinator over the given log client.
func NewCoordinator(client eventlog.Client, config Config) *Coordinator {
	return &Coordinator{
		client: client,
		config: config,
		open:   make(map[string]*state),
	}
}

// Begin opens a transaction for the aggregate id with an empty pending
// list. Beginning while a transaction is already open resets it: the
// last call wins.
func (c *Coordinator) Begin(ctx context.Context, aggregateID string) {
	c.mu.Lock()
	c.open[aggregateID] = &state{
		entityVersions: make(map[string]int64),
	}
	c.mu.Unlock()

	if c.config.Logger != nil {
		c.config.Logger.Debug(ctx, "transaction began", "aggregate_id", aggregateID)
	}
}

// AddEvent appends an event to the pending list of the aggregate's open
// transaction, together with the entity streams that must receive a copy
// on commit. Each ref's claimed version is recorded; the last write per
// entity id wins.
//
// Returns ErrNoActiveTransaction when no transaction is open for the
// aggregate id.
func (c *Coordinator) AddEvent(ctx context.Context, aggregateID string, event es.Event, refs []EntityRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	txn, ok := c.open[aggregateID]
	if !ok {
		return fmt.Errorf("add event for aggregate %s: %w", aggregateID, ErrNoActiveTransaction)
	}

	txn.pending = append(txn.pending, pendingEvent{event: event, refs: refs})
	for _, ref := range refs {
		txn.entityVersions[ref.ID] = ref.Version
	}

	if c.config.Logger != nil {
		c.config.Logger.Debug(ctx, "event added to transaction",
			"aggregate_id", aggregateID,
			"event_type", event.Type,
			"entity_refs", len(refs),
			"pending", len(txn.pending))
	}

	return nil
}

// ClaimedVersion returns the version the open transaction last recorded
// for an entity id, if any.
func (c *Coordinator) ClaimedVersion(aggregateID, entityID string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	txn, ok := c.open[aggregateID]
	if !ok {
		return 0, false
	}
	version, ok := txn.entityVersions[entityID]
	return version, ok
}

// Commit resolves the aggregate's open transaction by writing every
// pending event to each referenced entity stream and then the full batch
// to the aggregate root stream. An empty transaction commits as a no-op.
//
// Whatever the outcome, the transaction is closed: on failure the
// pending state is discarded (an implicit rollback) and the write error
// propagates, but appends performed before the failure remain in the
// log. A subsequent AddEvent without a new Begin fails.
func (c *Coordinator) Commit(ctx context.Context, aggregateID string) error {
	c.mu.Lock()
	txn, ok := c.open[aggregateID]
	if ok {
		// Close the transaction before writing; a failed commit must
		// leave no residue.
		delete(c.open, aggregateID)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("commit for aggregate %s: %w", aggregateID, ErrNoActiveTransaction)
	}
	if len(txn.pending) == 0 {
		return nil
	}

	rootStream := c.config.AggregatePrefix + aggregateID
	batch := make([]es.Event, 0, len(txn.pending))

	for _, p := range txn.pending {
		for _, ref := range p.refs {
			entityStream := c.entityStreamID(ref)
			if _, err := c.client.AppendToStream(ctx, entityStream, es.Any(), []es.Event{p.event}); err != nil {
				if c.config.Logger != nil {
					c.config.Logger.Error(ctx, "commit failed on entity stream",
						"aggregate_id", aggregateID,
						"entity_stream", entityStream,
						"error", err)
				}
				return fmt.Errorf("commit for aggregate %s: write entity stream %s: %w",
					aggregateID, entityStream, err)
			}
		}
		batch = append(batch, p.event)
	}

	if _, err := c.client.AppendToStream(ctx, rootStream, es.Any(), batch); err != nil {
		if c.config.Logger != nil {
			c.config.Logger.Error(ctx, "commit failed on aggregate stream",
				"aggregate_id", aggregateID,
				"stream_id", rootStream,
				"error", err)
		}
		return fmt.Errorf("commit for aggregate %s: write aggregate stream: %w", aggregateID, err)
	}

	if c.config.Logger != nil {
		c.config.Logger.Info(ctx, "transaction committed",
			"aggregate_id", aggregateID,
			"event_count", len(batch))
	}

	return nil
}

// Rollback discards the aggregate's pending state without writing
// anything. It always succeeds, including when no transaction is open.
func (c *Coordinator) Rollback(ctx context.Context, aggregateID string) {
	c.mu.Lock()
	_, ok := c.open[aggregateID]
	delete(c.open, aggregateID)
	c.mu.Unlock()

	if ok && c.config.Logger != nil {
		c.config.Logger.Debug(ctx, "transaction rolled back", "aggregate_id", aggregateID)
	}
}

func (c *Coordinator) entityStreamID(ref EntityRef) string {
	if prefix, ok := c.config.EntityPrefixes[ref.Type]; ok {
		return prefix + ref.ID
	}
	return ref.Type + "-" + ref.ID
}
