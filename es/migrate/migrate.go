// Package migrate upgrades older event shapes to the current schema
// version during replay.
//
// Migrations are pure functions: given the same input event they always
// produce the same output, with no I/O and no side effects. They form a
// chain keyed by (event type, from version); chains of arbitrary length
// compose automatically within a single replay pass.
package migrate

import (
	"fmt"

	"github.com/streamfold/streamfold/es"
)

// Migration upgrades one versioned event shape to the next.
type Migration struct {
	// EventType is the event type this migration applies to
	EventType string

	// FromVersion is the schema version this migration upgrades from
	FromVersion int

	// ToVersion is the schema version this migration upgrades to.
	// It must be strictly greater than FromVersion.
	ToVersion int

	// Migrate transforms the event. Implementations must set the
	// returned event's Version to ToVersion.
	Migrate func(es.Event) (es.Event, error)
}

type chainKey struct {
	eventType   string
	fromVersion int
}

// Chain is a validated set of migrations, looked up by
// (event type, from version) during replay.
type Chain struct {
	migrations map[chainKey]Migration
}

// NewChain builds a chain from the given migrations.
// It rejects duplicate (event type, from version) entries and migrations
// that do not strictly increase the version, which together guarantee
// that applying the chain terminates.
func NewChain(migrations []Migration) (*Chain, error) {
	byKey := make(map[chainKey]Migration, len(migrations))
	for _, m := range migrations {
		if m.EventType == "" {
			return nil, fmt.Errorf("migration has empty event type")
		}
		if m.ToVersion <= m.FromVersion {
			return nil, fmt.Errorf("migration %s v%d->v%d does not increase version",
				m.EventType, m.FromVersion, m.ToVersion)
		}
		if m.Migrate == nil {
			return nil, fmt.Errorf("migration %s v%d->v%d has no migrate function",
				m.EventType, m.FromVersion, m.ToVersion)
		}

		key := chainKey{eventType: m.EventType, fromVersion: m.FromVersion}
		if _, exists := byKey[key]; exists {
			return nil, fmt.Errorf("duplicate migration for %s v%d", m.EventType, m.FromVersion)
		}
		byKey[key] = m
	}

	return &Chain{migrations: byKey}, nil
}

// MustNewChain is like NewChain but panics on invalid input.
// Intended for package-level chain construction.
func MustNewChain(migrations []Migration) *Chain {
	chain, err := NewChain(migrations)
	if err != nil {
		panic(err)
	}
	return chain
}

// Apply repeatedly upgrades the event until no migration matches its
// (type, version). An already-current event is returned unchanged.
// A migration error aborts the whole replay; a partially migrated event
// is never returned.
func (c *Chain) Apply(event es.Event) (es.Event, error) {
	if c == nil {
		return event, nil
	}

	for {
		m, ok := c.migrations[chainKey{eventType: event.Type, fromVersion: event.Version}]
		if !ok {
			return event, nil
		}

		migrated, err := m.Migrate(event)
		if err != nil {
			return es.Event{}, fmt.Errorf("migrate %s v%d->v%d: %w",
				m.EventType, m.FromVersion, m.ToVersion, err)
		}
		if migrated.Version <= event.Version {
			return es.Event{}, fmt.Errorf("migrate %s v%d->v%d: version did not advance (got v%d)",
				m.EventType, m.FromVersion, m.ToVersion, migrated.Version)
		}
		event = migrated
	}
}

// Len reports the number of migrations in the chain.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.migrations)
}
