package transaction_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/streamfold/streamfold/es"
	"github.com/streamfold/streamfold/es/adapters/memory"
	"github.com/streamfold/streamfold/es/eventlog"
	"github.com/streamfold/streamfold/es/transaction"
)

func event(eventType string) es.Event {
	return es.NewEvent(eventType, 1, []byte(`{}`))
}

func newCoordinator(client eventlog.Client) *transaction.Coordinator {
	return transaction.NewCoordinator(client, transaction.NewConfig(
		transaction.WithAggregatePrefix("account-"),
		transaction.WithEntityPrefix("card", "card-"),
	))
}

func TestAddEvent_WithoutBegin(t *testing.T) {
	coordinator := newCoordinator(memory.NewClient())

	err := coordinator.AddEvent(context.Background(), "a1", event("deposited"), nil)
	if !errors.Is(err, transaction.ErrNoActiveTransaction) {
		t.Fatalf("expected ErrNoActiveTransaction, got %v", err)
	}
}

func TestCommit_WithoutBegin(t *testing.T) {
	coordinator := newCoordinator(memory.NewClient())

	err := coordinator.Commit(context.Background(), "a1")
	if !errors.Is(err, transaction.ErrNoActiveTransaction) {
		t.Fatalf("expected ErrNoActiveTransaction, got %v", err)
	}
}

func TestCommit_EmptyTransactionIsNoOp(t *testing.T) {
	client := memory.NewClient()
	coordinator := newCoordinator(client)
	ctx := context.Background()

	coordinator.Begin(ctx, "a1")
	if err := coordinator.Commit(ctx, "a1"); err != nil {
		t.Fatalf("empty commit failed: %v", err)
	}
	if client.StreamLen("account-a1") != 0 {
		t.Error("empty commit should write nothing")
	}

	// The transaction is closed: adding afterwards requires a new Begin.
	err := coordinator.AddEvent(ctx, "a1", event("deposited"), nil)
	if !errors.Is(err, transaction.ErrNoActiveTransaction) {
		t.Fatalf("expected ErrNoActiveTransaction after commit, got %v", err)
	}
}

func TestCommit_FanOut(t *testing.T) {
	client := memory.NewClient()
	coordinator := newCoordinator(client)
	ctx := context.Background()

	coordinator.Begin(ctx, "a1")
	err := coordinator.AddEvent(ctx, "a1", event("card-linked"), []transaction.EntityRef{
		{ID: "c1", Type: "card", Version: 3},
		{ID: "c2", Type: "card", Version: 0},
	})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if err := coordinator.Commit(ctx, "a1"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// One pending event with two entity refs: three appends in total.
	if n := client.StreamLen("card-c1"); n != 1 {
		t.Errorf("card-c1 events = %d, want 1", n)
	}
	if n := client.StreamLen("card-c2"); n != 1 {
		t.Errorf("card-c2 events = %d, want 1", n)
	}
	if n := client.StreamLen("account-a1"); n != 1 {
		t.Errorf("account-a1 events = %d, want 1", n)
	}
}

func TestCommit_BatchOrder(t *testing.T) {
	client := memory.NewClient()
	coordinator := newCoordinator(client)
	ctx := context.Background()

	coordinator.Begin(ctx, "a1")
	for i := 0; i < 3; i++ {
		if err := coordinator.AddEvent(ctx, "a1", event(fmt.Sprintf("e%d", i)), nil); err != nil {
			t.Fatalf("AddEvent failed: %v", err)
		}
	}
	if err := coordinator.Commit(ctx, "a1"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	events, err := client.ReadStream(ctx, "account-a1", 0)
	if err != nil {
		t.Fatalf("ReadStream failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, e := range events {
		if want := fmt.Sprintf("e%d", i); e.Type != want {
			t.Errorf("event %d type = %q, want %q", i, e.Type, want)
		}
	}
}

func TestRollback_DiscardsPendingWrites(t *testing.T) {
	client := memory.NewClient()
	coordinator := newCoordinator(client)
	ctx := context.Background()

	coordinator.Begin(ctx, "a1")
	err := coordinator.AddEvent(ctx, "a1", event("deposited"), []transaction.EntityRef{
		{ID: "c1", Type: "card", Version: 1},
	})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	coordinator.Rollback(ctx, "a1")

	if client.StreamLen("account-a1") != 0 || client.StreamLen("card-c1") != 0 {
		t.Error("rollback must leave zero log writes")
	}

	err = coordinator.AddEvent(ctx, "a1", event("deposited"), nil)
	if !errors.Is(err, transaction.ErrNoActiveTransaction) {
		t.Fatalf("expected ErrNoActiveTransaction after rollback, got %v", err)
	}
}

func TestRollback_WithoutBegin(t *testing.T) {
	coordinator := newCoordinator(memory.NewClient())
	// Always succeeds, even with nothing open.
	coordinator.Rollback(context.Background(), "a1")
}

func TestBegin_ResetsPending(t *testing.T) {
	client := memory.NewClient()
	coordinator := newCoordinator(client)
	ctx := context.Background()

	coordinator.Begin(ctx, "a1")
	if err := coordinator.AddEvent(ctx, "a1", event("stale"), nil); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	// Re-begin: last call wins, the stale event is gone.
	coordinator.Begin(ctx, "a1")
	if err := coordinator.AddEvent(ctx, "a1", event("fresh"), nil); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if err := coordinator.Commit(ctx, "a1"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	events, err := client.ReadStream(ctx, "account-a1", 0)
	if err != nil {
		t.Fatalf("ReadStream failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != "fresh" {
		t.Fatalf("events = %+v, want only the fresh event", events)
	}
}

func TestClaimedVersion_LastWriteWins(t *testing.T) {
	coordinator := newCoordinator(memory.NewClient())
	ctx := context.Background()

	coordinator.Begin(ctx, "a1")
	_ = coordinator.AddEvent(ctx, "a1", event("e1"), []transaction.EntityRef{{ID: "c1", Type: "card", Version: 1}})
	_ = coordinator.AddEvent(ctx, "a1", event("e2"), []transaction.EntityRef{{ID: "c1", Type: "card", Version: 4}})

	version, ok := coordinator.ClaimedVersion("a1", "c1")
	if !ok {
		t.Fatal("expected a claimed version for c1")
	}
	if version != 4 {
		t.Errorf("claimed version = %d, want last write 4", version)
	}

	if _, ok := coordinator.ClaimedVersion("a1", "unknown"); ok {
		t.Error("unknown entity should have no claimed version")
	}
}

// failingClient fails appends to the configured stream id.
type failingClient struct {
	eventlog.Client
	failOn string
}

func (f *failingClient) AppendToStream(ctx context.Context, streamID string, expected es.ExpectedRevision, events []es.Event) (uint64, error) {
	if streamID == f.failOn {
		return 0, fmt.Errorf("append to %s: connection reset", streamID)
	}
	return f.Client.AppendToStream(ctx, streamID, expected, events)
}

func TestCommit_PartialFailure(t *testing.T) {
	inner := memory.NewClient()
	client := &failingClient{Client: inner, failOn: "card-c2"}
	coordinator := newCoordinator(client)
	ctx := context.Background()

	coordinator.Begin(ctx, "a1")
	err := coordinator.AddEvent(ctx, "a1", event("card-linked"), []transaction.EntityRef{
		{ID: "c1", Type: "card", Version: 1},
		{ID: "c2", Type: "card", Version: 1},
	})
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	if err := coordinator.Commit(ctx, "a1"); err == nil {
		t.Fatal("expected commit to fail")
	}

	// Best-effort sequential: the write before the failure stays, the
	// rest never happens, and the in-memory state is gone.
	if inner.StreamLen("card-c1") != 1 {
		t.Error("pre-failure entity write should remain in the log")
	}
	if inner.StreamLen("card-c2") != 0 {
		t.Error("failed entity stream should have no events")
	}
	if inner.StreamLen("account-a1") != 0 {
		t.Error("aggregate stream should not be written after a failed entity write")
	}

	err = coordinator.AddEvent(ctx, "a1", event("more"), nil)
	if !errors.Is(err, transaction.ErrNoActiveTransaction) {
		t.Fatalf("expected ErrNoActiveTransaction after failed commit, got %v", err)
	}
}
