// Package streamfold provides an event sourcing persistence runtime for
// Go applications.
//
// This package serves as the main entry point for the streamfold library.
// For the core functionality, see the es package and its subpackages:
//
//	es             - Core types and interfaces
//	es/eventlog    - Event log client interface
//	es/adapters    - Log client implementations (memory, sqlite, postgres)
//	es/migrate     - Event schema migration chains
//	es/snapshot    - Snapshot store and cadence policy
//	es/replay      - Stream reconstruction
//	es/transaction - Multi-stream transaction coordination
//	es/schema      - Event log SQL schema generation
//
// Quick Start:
//
//  1. Generate the log schema:
//     go run github.com/streamfold/streamfold/cmd/migrate-gen -dialect sqlite -output migrations
//
//  2. Create a client and a reconstructor:
//     client := sqlite.NewClient(db, sqlite.DefaultClientConfig())
//     rec := replay.New[Account](client, replay.NewConfig(replay.WithSnapshotFrequency(100)))
//
//  3. Append events and reconstruct state:
//     err := rec.AppendEvent(ctx, streamID, event, es.Any())
//     result, err := rec.GetCurrentState(ctx, streamID, applyAccountEvent)
//
// See the examples directory for complete working examples.
package streamfold

// Version returns the current version of the library.
func Version() string {
	return "0.1.0-dev"
}
