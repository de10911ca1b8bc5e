package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config configures schema generation.
type Config struct {
	// OutputFolder is the directory where the schema file will be written
	OutputFolder string

	// OutputFilename is the name of the schema file
	OutputFilename string

	// EventsTable is the name of the events table
	EventsTable string

	// StreamHeadsTable is the name of the stream head tracking table
	StreamHeadsTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:     "migrations",
		OutputFilename:   fmt.Sprintf("%s_init_event_log.sql", timestamp),
		EventsTable:      "events",
		StreamHeadsTable: "stream_heads",
	}
}

// GeneratePostgres generates a PostgreSQL schema file.
func GeneratePostgres(config *Config) error {
	return write(config, generatePostgresSQL(config))
}

// GenerateSQLite generates a SQLite schema file.
func GenerateSQLite(config *Config) error {
	return write(config, generateSQLiteSQL(config))
}

func write(config *Config, sql string) error {
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	return nil
}

func generatePostgresSQL(config *Config) string {
	return fmt.Sprintf(`-- Event Log Schema
-- Generated: %s

-- Events table stores every stream's events in append-only fashion.
-- revision is zero-based per stream; the unique constraint is the
-- optimistic concurrency safety net.
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT NOT NULL,
    revision BIGINT NOT NULL,
    event_id UUID NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    event_version INT NOT NULL DEFAULT 1,
    data JSONB NOT NULL,
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (stream_id, revision)
);

-- Index for stream reads
CREATE INDEX IF NOT EXISTS idx_%s_stream
    ON %s (stream_id, revision);

-- Stream heads table tracks the last revision of each stream.
-- Provides O(1) head lookup for append operations.
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT PRIMARY KEY,
    revision BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Index for observability
CREATE INDEX IF NOT EXISTS idx_%s_updated
    ON %s (updated_at);
`,
		time.Now().Format(time.RFC3339),
		config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.StreamHeadsTable,
		config.StreamHeadsTable, config.StreamHeadsTable,
	)
}

func generateSQLiteSQL(config *Config) string {
	return fmt.Sprintf(`-- Event Log Schema for SQLite
-- Generated: %s

-- Events table stores every stream's events in append-only fashion.
-- revision is zero-based per stream; the unique constraint is the
-- optimistic concurrency safety net.
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT NOT NULL,
    revision INTEGER NOT NULL,
    event_id TEXT NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    event_version INTEGER NOT NULL DEFAULT 1,
    data BLOB NOT NULL,
    metadata BLOB,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE (stream_id, revision)
);

-- Index for stream reads
CREATE INDEX IF NOT EXISTS idx_%s_stream
    ON %s (stream_id, revision);

-- Stream heads table tracks the last revision of each stream.
-- Provides O(1) head lookup for append operations.
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT PRIMARY KEY,
    revision INTEGER NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Index for observability
CREATE INDEX IF NOT EXISTS idx_%s_updated
    ON %s (updated_at);
`,
		time.Now().Format(time.RFC3339),
		config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.StreamHeadsTable,
		config.StreamHeadsTable, config.StreamHeadsTable,
	)
}
