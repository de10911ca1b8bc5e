// Package integration_test contains integration tests for the Postgres adapter.
// These tests require a running PostgreSQL instance.
//
// Run with: go test -tags=integration ./es/adapters/postgres/integration_test/...
//
//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/streamfold/streamfold/es"
	"github.com/streamfold/streamfold/es/adapters/postgres"
	"github.com/streamfold/streamfold/es/eventlog"
	"github.com/streamfold/streamfold/es/schema"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Default to localhost, but allow override via env var for CI
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		dbname = "streamfold_test"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "connect to database")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, db.PingContext(ctx), "ping database")

	return db
}

func setupTestTables(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
		DROP TABLE IF EXISTS stream_heads CASCADE;
		DROP TABLE IF EXISTS events CASCADE;
	`)
	require.NoError(t, err, "drop tables")

	tmpDir := t.TempDir()
	config := schema.Config{
		OutputFolder:     tmpDir,
		OutputFilename:   "test.sql",
		EventsTable:      "events",
		StreamHeadsTable: "stream_heads",
	}

	require.NoError(t, schema.GeneratePostgres(&config), "generate schema")

	schemaSQL, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	require.NoError(t, err, "read schema")

	_, err = db.Exec(string(schemaSQL))
	require.NoError(t, err, "execute schema")
}

func testEvent(eventType string) es.Event {
	return es.NewEvent(eventType, 1, []byte(`{"test":"data"}`))
}

func TestAppendToStream(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	setupTestTables(t, db)

	ctx := context.Background()
	client := postgres.NewClient(db, postgres.DefaultClientConfig())

	revision, err := client.AppendToStream(ctx, "account-1", es.NoStream(), []es.Event{
		testEvent("opened"),
		testEvent("deposited"),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), revision, "head revision after two events")

	revision, err = client.AppendToStream(ctx, "account-1", es.Exact(1), []es.Event{
		testEvent("withdrawn"),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), revision)
}

func TestAppendToStream_OptimisticConcurrency(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	setupTestTables(t, db)

	ctx := context.Background()
	client := postgres.NewClient(db, postgres.DefaultClientConfig())

	_, err := client.AppendToStream(ctx, "account-1", es.NoStream(), []es.Event{testEvent("opened")})
	require.NoError(t, err)

	// NoStream against an existing stream conflicts.
	_, err = client.AppendToStream(ctx, "account-1", es.NoStream(), []es.Event{testEvent("opened")})
	require.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)

	// Stale exact revision conflicts.
	_, err = client.AppendToStream(ctx, "account-1", es.Exact(5), []es.Event{testEvent("deposited")})
	require.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)

	// Exact against a missing stream conflicts.
	_, err = client.AppendToStream(ctx, "missing", es.Exact(0), []es.Event{testEvent("opened")})
	require.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)
}

func TestAppendToStream_ConcurrentWriters(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	setupTestTables(t, db)

	ctx := context.Background()
	client := postgres.NewClient(db, postgres.DefaultClientConfig())

	// Racing appends with Any must serialize through the head lock:
	// every event lands, revisions stay dense.
	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = client.AppendToStream(ctx, "account-1", es.Any(), []es.Event{testEvent("deposited")})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	recorded, err := client.ReadStream(ctx, "account-1", 0)
	require.NoError(t, err)
	require.Len(t, recorded, writers)
	for i, rec := range recorded {
		require.Equal(t, uint64(i), rec.Revision, "event %d revision", i)
	}
}

func TestReadStream(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	setupTestTables(t, db)

	ctx := context.Background()
	client := postgres.NewClient(db, postgres.DefaultClientConfig())

	events := []es.Event{
		testEvent("opened"),
		testEvent("deposited"),
		testEvent("withdrawn"),
	}
	_, err := client.AppendToStream(ctx, "account-1", es.NoStream(), events)
	require.NoError(t, err)

	recorded, err := client.ReadStream(ctx, "account-1", 1)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	require.Equal(t, uint64(1), recorded[0].Revision)
	require.Equal(t, uint64(2), recorded[1].Revision)
	require.Equal(t, events[1].ID, recorded[0].ID, "event id preserved through the round trip")

	_, err = client.ReadStream(ctx, "missing", 0)
	require.ErrorIs(t, err, eventlog.ErrStreamNotFound)
}

func TestReadLast(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	setupTestTables(t, db)

	ctx := context.Background()
	client := postgres.NewClient(db, postgres.DefaultClientConfig())

	_, err := client.AppendToStream(ctx, "account-1", es.NoStream(), []es.Event{
		testEvent("opened"),
		testEvent("deposited"),
	})
	require.NoError(t, err)

	last, err := client.ReadLast(ctx, "account-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), last.Revision)
	require.Equal(t, "deposited", last.Type)

	_, err = client.ReadLast(ctx, "missing")
	require.ErrorIs(t, err, eventlog.ErrStreamNotFound)
}
