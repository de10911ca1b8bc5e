// Package es provides the core types for the streamfold event sourcing
// runtime.
//
// # Overview
//
// streamfold reconstructs aggregate state from append-only, revision-ordered
// event streams. The packages split along the runtime's seams:
//
//   - es: Event, RecordedEvent, Snapshot, ExpectedRevision, Logger
//   - es/eventlog: the event log client interface and its sentinel errors
//   - es/adapters: log client implementations (memory, sqlite, postgres)
//   - es/migrate: chained upcasting of old event shapes
//   - es/snapshot: the snapshot store and cadence policy
//   - es/replay: the stream reconstructor
//   - es/transaction: the multi-stream transaction coordinator
//
// # Design Philosophy
//
// Opaque payloads: Event.Data is structured JSON that the runtime never
// inspects. Payloads are decoded into concrete types only inside the
// caller's reducer and migration functions.
//
// Explicit dependencies: every component receives its log client through
// its constructor. There is no ambient or global client handle.
//
// Snapshots are an optimization, never a correctness dependency. Deleting
// every snapshot changes the cost of reconstruction, not its result.
//
// # Quick Start
//
// 1. Generate the log schema and apply it to your database:
//
//	go run github.com/streamfold/streamfold/cmd/migrate-gen -dialect sqlite -output migrations
//
// 2. Create a log client and a reconstructor:
//
//	client := sqlite.NewClient(db, sqlite.DefaultClientConfig())
//	rec := replay.New[Account](client, replay.NewConfig(
//	    replay.WithSnapshotFrequency(100),
//	))
//
// 3. Append events and read state back:
//
//	err := rec.AppendEvent(ctx, "account-42", es.NewEvent("account-opened", 1, payload), es.NoStream())
//
//	result, err := rec.GetCurrentState(ctx, "account-42", applyAccountEvent)
//	// result.State is nil and result.Version is 0 for a stream that was
//	// never written.
//
// # Optimistic Concurrency
//
// Appends may carry an ExpectedRevision (Any, NoStream, or Exact). The log
// client validates it at append time and reports a concurrency conflict on
// mismatch. streamfold never retries conflicts on its own.
//
// # Consistency of multi-stream commits
//
// transaction.Coordinator batches events for an aggregate root and its
// dependent entity streams. Commits are sequential and best-effort: a
// failure mid-commit leaves earlier appends in place and discards only the
// in-memory pending state. See the transaction package for the full
// contract.
package es
