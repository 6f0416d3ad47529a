package service

import (
	"context"
	"testing"
	"time"

	"taskboard-api/domain"
)

func TestDrainAppliesAllKinds(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	queue := &memQueue{}
	members := NewMembership(store, queue, testLogger())
	rec := NewReconciler(queue, store, members, testLogger(), time.Second)

	seedUser(store, "bob")
	u := store.users["bob"]
	u.Boards = []string{"b1", "b2"}
	store.users["bob"] = u
	store.boards["b1"] = domain.Board{ID: "b1", Name: "One", CreatedBy: "alice"}
	store.tasks["b1"] = map[string]domain.Task{
		"t1": {ID: "t1", BoardID: "b1", Title: "review", AssignedMembers: []string{"bob"}},
	}
	store.claims[claimKey("b1", "stale")] = "t9"

	cmds := []domain.ReconcileCommand{
		{Kind: domain.ReconcileRemoveMember, BoardID: "b1", UserID: "bob"},
		{Kind: domain.ReconcileDetachBoard, BoardID: "b2", UserID: "bob"},
		{Kind: domain.ReconcileReleaseTitle, BoardID: "b1", Title: "stale"},
	}
	for _, cmd := range cmds {
		if err := queue.Enqueue(ctx, cmd); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if err := rec.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(queue.commands()) != 0 {
		t.Fatalf("expected queue drained, got %v", queue.commands())
	}
	u, _ = store.GetUser(ctx, "bob")
	if len(u.Boards) != 0 {
		t.Fatalf("expected all board references removed, got %v", u.Boards)
	}
	task, _ := store.GetTask(ctx, "b1", "t1")
	if task.IsAssigned("bob") {
		t.Fatalf("expected bob unassigned, got %v", task.AssignedMembers)
	}
	if store.hasClaim("b1", "stale") {
		t.Fatal("expected stale claim released")
	}
}

func TestDrainTargetsMissingDocuments(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	queue := &memQueue{}
	members := NewMembership(store, queue, testLogger())
	rec := NewReconciler(queue, store, members, testLogger(), time.Second)

	// Both target documents are gone; the commands must still succeed.
	cmds := []domain.ReconcileCommand{
		{Kind: domain.ReconcileRemoveMember, BoardID: "gone", UserID: "ghost"},
		{Kind: domain.ReconcileDetachBoard, BoardID: "gone", UserID: "ghost"},
	}
	for _, cmd := range cmds {
		if err := queue.Enqueue(ctx, cmd); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := rec.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(queue.commands()) != 0 {
		t.Fatalf("expected queue drained, got %v", queue.commands())
	}
}

func TestDrainLeavesMessageOnFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	queue := &memQueue{}
	boom := domain.Unavailable(nil, "store down")
	hooked := &hookStore{Store: store, listTasksErr: boom}
	members := NewMembership(hooked, queue, testLogger())
	rec := NewReconciler(queue, hooked, members, testLogger(), time.Second)

	seedUser(store, "bob")
	store.boards["b1"] = domain.Board{ID: "b1", Name: "One", CreatedBy: "alice"}
	if err := queue.Enqueue(ctx, domain.ReconcileCommand{Kind: domain.ReconcileRemoveMember, BoardID: "b1", UserID: "bob"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := rec.Drain(ctx); err != nil {
		t.Fatalf("drain should not fail on a failed step: %v", err)
	}
	if len(queue.commands()) != 1 {
		t.Fatalf("expected message left for retry, got %v", queue.commands())
	}

	// Once the store recovers the next pass finishes the work.
	hooked.listTasksErr = nil
	if err := rec.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(queue.commands()) != 0 {
		t.Fatalf("expected queue drained, got %v", queue.commands())
	}
}

func TestDrainUnknownKind(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	queue := &memQueue{}
	members := NewMembership(store, queue, testLogger())
	rec := NewReconciler(queue, store, members, testLogger(), time.Second)

	if err := queue.Enqueue(ctx, domain.ReconcileCommand{Kind: "explode"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := rec.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	// Unknown commands stay queued rather than being dropped silently.
	if len(queue.commands()) != 1 {
		t.Fatalf("expected unknown command left on queue, got %v", queue.commands())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newMemStore()
	queue := &memQueue{}
	members := NewMembership(store, queue, testLogger())
	rec := NewReconciler(queue, store, members, testLogger(), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after cancellation")
	}
}
