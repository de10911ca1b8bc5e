// Command migrate-gen generates the SQL schema for the event log tables.
//
// Usage:
//
//	go run github.com/streamfold/streamfold/cmd/migrate-gen -output migrations -filename init.sql
//
// Generate the schema for different database dialects:
//
//	go run github.com/streamfold/streamfold/cmd/migrate-gen -dialect postgres -output migrations
//	go run github.com/streamfold/streamfold/cmd/migrate-gen -dialect sqlite -output migrations
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/streamfold/streamfold/es/schema"
)

func main() {
	var (
		dialect          = flag.String("dialect", "postgres", "Database dialect: postgres or sqlite")
		outputFolder     = flag.String("output", "migrations", "Output folder for schema file")
		outputFilename   = flag.String("filename", "", "Output filename (default: timestamp-based)")
		eventsTable      = flag.String("events-table", "events", "Name of events table")
		streamHeadsTable = flag.String("stream-heads-table", "stream_heads", "Name of stream heads table")
	)

	flag.Parse()

	config := schema.DefaultConfig()
	config.OutputFolder = *outputFolder
	config.EventsTable = *eventsTable
	config.StreamHeadsTable = *streamHeadsTable

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	var err error
	switch *dialect {
	case "postgres":
		err = schema.GeneratePostgres(&config)
	case "sqlite":
		err = schema.GenerateSQLite(&config)
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported dialect '%s'. Supported dialects are: postgres, sqlite\n", *dialect)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s schema: %s/%s\n", *dialect, config.OutputFolder, config.OutputFilename)
}
