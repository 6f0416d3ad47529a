package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskboard-api/domain"
)

func newBoardFixture() (*memStore, *memQueue, *BoardService) {
	store := newMemStore()
	queue := &memQueue{}
	logger := testLogger()
	members := NewMembership(store, queue, logger)
	svc := NewBoardService(store, members, queue, logger)
	svc.newID = sequentialIDs("board")
	return store, queue, svc
}

func TestCreateBoardRegistersCreatorReference(t *testing.T) {
	store, _, svc := newBoardFixture()
	seedUser(store, "alice")

	b, err := svc.Create(context.Background(), "alice", "  Sprint 1  ", " planning ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Name != "Sprint 1" || b.Description != "planning" {
		t.Fatalf("expected trimmed fields, got %q / %q", b.Name, b.Description)
	}
	if b.CreatedBy != "alice" {
		t.Fatalf("expected creator alice, got %q", b.CreatedBy)
	}
	if len(b.Members) != 0 {
		t.Fatalf("creator must not appear in the member set, got %v", b.Members)
	}
	u, _ := store.GetUser(context.Background(), "alice")
	if len(u.Boards) != 1 || u.Boards[0] != b.ID {
		t.Fatalf("expected board reference on creator, got %v", u.Boards)
	}
}

func TestCreateBoardEmptyName(t *testing.T) {
	_, _, svc := newBoardFixture()
	if _, err := svc.Create(context.Background(), "alice", "   ", ""); !domain.IsCode(err, domain.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateBoardRollsBackWhenReferenceWriteFails(t *testing.T) {
	store, queue, _ := newBoardFixture()
	seedUser(store, "alice")
	boom := domain.Unavailable(errors.New("write failed"), "store down")
	hooked := &hookStore{Store: store, mutateUserErr: boom}
	logger := testLogger()
	svc := NewBoardService(hooked, NewMembership(hooked, queue, logger), queue, logger)
	svc.newID = sequentialIDs("board")

	_, err := svc.Create(context.Background(), "alice", "Sprint 1", "")
	if !domain.IsCode(err, domain.CodeUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if _, err := store.GetBoard(context.Background(), "board-1"); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected orphaned board to be rolled back, got %v", err)
	}
}

func TestGetBoardDeniedForOutsiders(t *testing.T) {
	store, _, svc := newBoardFixture()
	seedUser(store, "alice")
	b, err := svc.Create(context.Background(), "alice", "Sprint 1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(context.Background(), "mallory", b.ID); !domain.IsCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "alice", b.ID); err != nil {
		t.Fatalf("creator access: %v", err)
	}
}

func TestUpdateBoardCreatorOnly(t *testing.T) {
	store, _, svc := newBoardFixture()
	seedUser(store, "alice")
	seedUser(store, "bob")
	b, err := svc.Create(context.Background(), "alice", "Sprint 1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.AddMember(context.Background(), "alice", b.ID, "bob"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	name := "Sprint 2"
	if _, err := svc.Update(context.Background(), "bob", b.ID, BoardUpdate{Name: &name}); !domain.IsCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden for member, got %v", err)
	}
	updated, err := svc.Update(context.Background(), "alice", b.ID, BoardUpdate{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Sprint 2" {
		t.Fatalf("expected renamed board, got %q", updated.Name)
	}
}

func TestDeleteBoardRequiresEmpty(t *testing.T) {
	store, _, svc := newBoardFixture()
	seedUser(store, "alice")
	seedUser(store, "bob")
	b, err := svc.Create(context.Background(), "alice", "Sprint 1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.AddMember(context.Background(), "alice", b.ID, "bob"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := svc.Delete(context.Background(), "alice", b.ID); !domain.IsCode(err, domain.CodeNotEmpty) {
		t.Fatalf("expected not-empty while members remain, got %v", err)
	}

	if err := svc.RemoveMember(context.Background(), "alice", b.ID, "bob"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	store.tasks[b.ID] = map[string]domain.Task{"t1": {ID: "t1", BoardID: b.ID, Title: "x"}}
	if err := svc.Delete(context.Background(), "alice", b.ID); !domain.IsCode(err, domain.CodeNotEmpty) {
		t.Fatalf("expected not-empty while tasks remain, got %v", err)
	}

	delete(store.tasks, b.ID)
	if err := svc.Delete(context.Background(), "alice", b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetBoard(context.Background(), b.ID); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected board gone, got %v", err)
	}
	u, _ := store.GetUser(context.Background(), "alice")
	if len(u.Boards) != 0 {
		t.Fatalf("expected creator reference detached, got %v", u.Boards)
	}
}

func TestDeleteBoardCreatorOnly(t *testing.T) {
	store, _, svc := newBoardFixture()
	seedUser(store, "alice")
	b, err := svc.Create(context.Background(), "alice", "Sprint 1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), "bob", b.ID); !domain.IsCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDeleteBoardDefersDetachToQueue(t *testing.T) {
	store, queue, _ := newBoardFixture()
	seedUser(store, "alice")
	logger := testLogger()
	base := NewBoardService(store, NewMembership(store, queue, logger), queue, logger)
	base.newID = sequentialIDs("board")
	b, err := base.Create(context.Background(), "alice", "Sprint 1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := domain.Unavailable(errors.New("write failed"), "store down")
	hooked := &hookStore{Store: store, mutateUserErr: boom}
	svc := NewBoardService(hooked, NewMembership(hooked, queue, logger), queue, logger)

	if err := svc.Delete(context.Background(), "alice", b.ID); err != nil {
		t.Fatalf("delete should defer cleanup, got %v", err)
	}
	cmds := queue.commands()
	if len(cmds) != 1 || cmds[0].Kind != domain.ReconcileDetachBoard {
		t.Fatalf("expected queued detach command, got %v", cmds)
	}
	if cmds[0].BoardID != b.ID || cmds[0].UserID != "alice" {
		t.Fatalf("unexpected command payload: %+v", cmds[0])
	}
}

func TestListForUserSkipsDanglingReferences(t *testing.T) {
	store, _, svc := newBoardFixture()
	seedUser(store, "alice")
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := svc.Create(context.Background(), "alice", "First", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(context.Background(), "alice", "Second", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Fix the ordering and leave a dangling reference behind.
	b1 := store.boards[first.ID]
	b1.CreatedAt = base
	store.boards[first.ID] = b1
	b2 := store.boards[second.ID]
	b2.CreatedAt = base.Add(time.Hour)
	store.boards[second.ID] = b2
	u := store.users["alice"]
	u.Boards = append(u.Boards, "gone-board")
	store.users["alice"] = u

	boards, err := svc.ListForUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("expected 2 boards, got %d", len(boards))
	}
	if boards[0].ID != first.ID || boards[1].ID != second.ID {
		t.Fatalf("expected oldest-first ordering, got %v then %v", boards[0].ID, boards[1].ID)
	}
}
