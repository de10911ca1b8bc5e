// Package schema provides SQL schema generation.
//
// To generate the event log schema, use the migrate-gen command:
//
//	go run github.com/streamfold/streamfold/cmd/migrate-gen -output migrations
//
// Or add a go generate directive to your code:
//
//	//go:generate go run github.com/streamfold/streamfold/cmd/migrate-gen -output ../../migrations
//
// Then run:
//
//	go generate ./...
package schema
