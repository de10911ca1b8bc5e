// Package sqlite provides a SQLite-backed event log client.
package sqlite

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

const (
	// sqliteDateTimeFormat is the format used for timestamp storage/parsing in SQLite
	sqliteDateTimeFormat = "2006-01-02 15:04:05.999999"
)

// ClientConfig contains configuration for the SQLite event log client.
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

// Client is a SQLite-backed event log client.
//
// Each append runs in its own database transaction: the revision
// assignment, the event inserts, and the stream head update commit or
// fail together. The unique constraint on (stream_id, revision) is the
// safety net if two appends race between the head check and the insert.
type Client struct {
	db     *sql.DB
	config ClientConfig
}

// NewClient creates a SQLite event log client over the given database.
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

	// Fetch the current head revision for the stream
	var head sql.NullInt64
	query := fmt.Sprintf(`
		SELECT revision
		FROM %s
		WHERE stream_id = ?
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.config.EventsTable)

	for i := range events {
		event := &events[i]
		revision := next + uint64(i)

		_, execErr := tx.ExecContext(ctx, insertQuery,
			streamID,
			revision,
			event.ID.String(),
			event.Type,
			event.Version,
			[]byte(event.Data),
			[]byte(event.Metadata),
			event.CreatedAt.UTC().Format(sqliteDateTimeFormat),
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

	// Update the stream head (UPSERT pattern for SQLite)
	last := next + uint64(len(events)) - 1
	upsertQuery := fmt.Sprintf(`
		INSERT INTO %s (stream_id, revision, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (stream_id)
		DO UPDATE SET revision = ?, updated_at = datetime('now')
	`, c.config.StreamHeadsTable)

	if _, err := tx.ExecContext(ctx, upsertQuery, streamID, int64(last), int64(last)); err != nil {
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

// validateExpected checks an ExpectedRevision against the current head.
// head is invalid when the stream has never been written.
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
		WHERE stream_id = ? AND revision >= ?
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
		WHERE stream_id = ?
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
		SELECT 1 FROM %s WHERE stream_id = ?
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
	var eventID, createdAt string
	var data, metadata []byte

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

	e.ID, err = uuid.Parse(eventID)
	if err != nil {
		return es.RecordedEvent{}, fmt.Errorf("failed to parse event ID: %w", err)
	}

	e.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return es.RecordedEvent{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return e, nil
}

// isUniqueViolation checks if an error is a SQLite unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "UNIQUE constraint failed") ||
		strings.Contains(errMsg, "unique constraint")
}

// sqliteDateTimeFormats lists common SQLite datetime formats for parsing
var sqliteDateTimeFormats = []string{
	sqliteDateTimeFormat,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp parses SQLite datetime strings to time.Time
func parseTimestamp(s string) (time.Time, error) {
	for _, format := range sqliteDateTimeFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}
