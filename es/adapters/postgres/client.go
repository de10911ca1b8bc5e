// Package postgres provides a PostgreSQL-backed event log client.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamfold/streamfold/es"
	"github.com/streamfold/streamfold/es/eventlog"
)

// ClientConfig contains configuration for the PostgreSQL event log client.
// Configuration is immutable after construction.
type ClientConfig struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger

	// EventsTable is the name of the events table
	EventsTable string

	// StreamHeadsTable is the name of the stream head tracking table
	StreamHeadsTable string
}

// DefaultClientConfig returns the default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		EventsTable:      "events",
		StreamHeadsTable: "stream_heads",
	}
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*ClientConfig)

// WithLogger sets a logger for the client.
func WithLogger(logger es.Logger) ClientOption {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// WithEventsTable sets a custom events table name.
func WithEventsTable(tableName string) ClientOption {
	return func(c *ClientConfig) {
		c.EventsTable = tableName
	}
}

// WithStreamHeadsTable sets a custom stream heads table name.
func WithStreamHeadsTable(tableName string) ClientOption {
	return func(c *ClientConfig) {
		c.StreamHeadsTable = tableName
	}
}

// NewClientConfig creates a client configuration with functional options
// applied on top of the defaults.
func NewClientConfig(opts ...ClientOption) ClientConfig {
	config := DefaultClientConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Client is a PostgreSQL-backed event log client.
//
// Each append runs in its own database transaction; the unique constraint
// on (stream_id, revision) turns a racing append into
// eventlog.ErrConcurrencyConflict.
type Client struct {
	db     *sql.DB
	config ClientConfig
}

// NewClient creates a PostgreSQL event log client over the given database.
func NewClient(db *sql.DB, config ClientConfig) *Client {
	return &Client{
		db:     db,
		config: config,
	}
}

// AppendToStream implements eventlog.Client.
func (c *Client) AppendToStream(ctx context.Context, streamID string, expected es.ExpectedRevision, events []es.Event) (uint64, error) {
	if len(events) == 0 {
		return 0, eventlog.ErrNoEvents
	}

	if c.config.Logger != nil {
		c.config.Logger.Debug(ctx, "append starting",
			"stream_id", streamID,
			"event_count", len(events),
			"expected_revision", expected.String())
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the head row for the duration of the append
	var head sql.NullInt64
	query := fmt.Sprintf(`
		SELECT revision
		FROM %s
		WHERE stream_id = $1
		FOR UPDATE
	`, c.config.StreamHeadsTable)

	err = tx.QueryRowContext(ctx, query, streamID).Scan(&head)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to check stream head: %w", err)
	}

	if err := validateExpected(expected, head); err != nil {
		if c.config.Logger != nil {
			c.config.Logger.Error(ctx, "expected revision validation failed",
				"stream_id", streamID,
				"expected_revision", expected.String())
		}
		return 0, err
	}

	var next uint64
	if head.Valid {
		next = uint64(head.Int64) + 1
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (
			stream_id, revision, event_id, event_type, event_version,
			data, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.config.EventsTable)

	for i := range events {
		event := &events[i]
		revision := next + uint64(i)

		_, execErr := tx.ExecContext(ctx, insertQuery,
			streamID,
			int64(revision),
			event.ID,
			event.Type,
			event.Version,
			[]byte(event.Data),
			[]byte(event.Metadata),
			event.CreatedAt.UTC(),
		)
		if execErr != nil {
			if isUniqueViolation(execErr) {
				if c.config.Logger != nil {
					c.config.Logger.Error(ctx, "concurrent append detected",
						"stream_id", streamID,
						"revision", revision)
				}
				return 0, eventlog.ErrConcurrencyConflict
			}
			return 0, fmt.Errorf("failed to insert event %d: %w", i, execErr)
		}
	}

	last := next + uint64(len(events)) - 1
	upsertQuery := fmt.Sprintf(`
		INSERT INTO %s (stream_id, revision, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (stream_id)
		DO UPDATE SET revision = EXCLUDED.revision, updated_at = EXCLUDED.updated_at
	`, c.config.StreamHeadsTable)

	if _, err := tx.ExecContext(ctx, upsertQuery, streamID, int64(last)); err != nil {
		return 0, fmt.Errorf("failed to update stream head: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit append: %w", err)
	}

	if c.config.Logger != nil {
		c.config.Logger.Info(ctx, "events appended",
			"stream_id", streamID,
			"event_count", len(events),
			"revision_range", fmt.Sprintf("%d-%d", next, last))
	}

	return last, nil
}

func validateExpected(expected es.ExpectedRevision, head sql.NullInt64) error {
	switch {
	case expected.IsNoStream():
		if head.Valid {
			return eventlog.ErrConcurrencyConflict
		}
	case expected.IsExact():
		if !head.Valid || uint64(head.Int64) != expected.Value() {
			return eventlog.ErrConcurrencyConflict
		}
	}
	return nil
}

// ReadStream implements eventlog.Client.
func (c *Client) ReadStream(ctx context.Context, streamID string, fromRevision uint64) ([]es.RecordedEvent, error) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(ctx, "reading stream",
			"stream_id", streamID,
			"from_revision", fromRevision)
	}

	exists, err := c.streamExists(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, eventlog.ErrStreamNotFound
	}

	query := fmt.Sprintf(`
		SELECT
			stream_id, revision, event_id, event_type, event_version,
			data, metadata, created_at
		FROM %s
		WHERE stream_id = $1 AND revision >= $2
		ORDER BY revision ASC
	`, c.config.EventsTable)

	rows, err := c.db.QueryContext(ctx, query, streamID, int64(fromRevision))
	if err != nil {
		return nil, fmt.Errorf("failed to query stream: %w", err)
	}
	defer rows.Close()

	var events []es.RecordedEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if c.config.Logger != nil {
		c.config.Logger.Debug(ctx, "stream read", "stream_id", streamID, "count", len(events))
	}

	return events, nil
}

// ReadLast implements eventlog.Client.
func (c *Client) ReadLast(ctx context.Context, streamID string) (es.RecordedEvent, error) {
	query := fmt.Sprintf(`
		SELECT
			stream_id, revision, event_id, event_type, event_version,
			data, metadata, created_at
		FROM %s
		WHERE stream_id = $1
		ORDER BY revision DESC
		LIMIT 1
	`, c.config.EventsTable)

	row := c.db.QueryRowContext(ctx, query, streamID)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return es.RecordedEvent{}, eventlog.ErrStreamNotFound
		}
		return es.RecordedEvent{}, err
	}
	return event, nil
}

func (c *Client) streamExists(ctx context.Context, streamID string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT 1 FROM %s WHERE stream_id = $1
	`, c.config.StreamHeadsTable)

	var one int
	err := c.db.QueryRowContext(ctx, query, streamID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check stream existence: %w", err)
	}
	return true, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (es.RecordedEvent, error) {
	var e es.RecordedEvent
	var revision int64
	var eventID string
	var data, metadata []byte
	var createdAt time.Time

	err := row.Scan(
		&e.StreamID,
		&revision,
		&eventID,
		&e.Type,
		&e.Version,
		&data,
		&metadata,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return es.RecordedEvent{}, err
		}
		return es.RecordedEvent{}, fmt.Errorf("failed to scan event: %w", err)
	}

	e.Revision = uint64(revision)
	e.Data = data
	e.Metadata = metadata
	e.CreatedAt = createdAt

	e.ID, err = uuid.Parse(eventID)
	if err != nil {
		return es.RecordedEvent{}, fmt.Errorf("failed to parse event ID: %w", err)
	}

	return e, nil
}

// isUniqueViolation checks if an error is a PostgreSQL unique constraint
// violation (SQLSTATE 23505) without depending on a specific driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "23505") ||
		strings.Contains(errMsg, "duplicate key value violates unique constraint")
}
