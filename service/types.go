package service

import (
	"context"

	"taskboard-api/domain"
)

// Store abstracts the document store for the services. Implementations must
// return domain errors: CodeNotFound when a document is absent, CodeUnavailable
// on transport failures, and domain.ErrExists from create-only writes.
//
// The Mutate* methods perform a conditionally-guarded read-modify-write of a
// single document: the mutate func sees the current state and edits it in
// place; returning an error aborts without writing and is propagated
// unchanged. Concurrent writers retry against fresh state, so checks made
// inside the func hold at commit time.
type Store interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	InsertUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, userID string) error
	MutateUser(ctx context.Context, userID string, mutate func(*domain.User) error) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	GetBoard(ctx context.Context, boardID string) (domain.Board, error)
	InsertBoard(ctx context.Context, b domain.Board) error
	DeleteBoard(ctx context.Context, boardID string) error
	MutateBoard(ctx context.Context, boardID string, mutate func(*domain.Board) error) (domain.Board, error)

	GetTask(ctx context.Context, boardID, taskID string) (domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, boardID, taskID string) error
	MutateTask(ctx context.Context, boardID, taskID string, mutate func(*domain.Task) error) (domain.Task, error)
	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)

	// ClaimTitle records (boardID, normalized title) -> taskID with a
	// create-only write, returning domain.ErrExists when another task holds
	// the title. ReleaseTitle is idempotent.
	ClaimTitle(ctx context.Context, boardID, normalizedTitle, taskID string) error
	ReleaseTitle(ctx context.Context, boardID, normalizedTitle string) error
}

// ReconcileQueue hands multi-document repair work to a background drainer
// when it cannot be finished in-request.
type ReconcileQueue interface {
	Enqueue(ctx context.Context, cmd domain.ReconcileCommand) error
	// Dequeue returns the next queued command, or nil when the queue is
	// empty. The message stays invisible until deleted or its visibility
	// timeout lapses.
	Dequeue(ctx context.Context) (*domain.ReconcileMessage, error)
	Delete(ctx context.Context, msg *domain.ReconcileMessage) error
}

// IdentityDeleter removes an identity-provider account. It is the
// compensation hook for registrations whose dependent writes fail.
type IdentityDeleter interface {
	DeleteIdentity(ctx context.Context, userID string) error
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// appendUnique adds id unless already present.
func appendUnique(ids []string, id string) []string {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// dedupe returns ids with duplicates dropped, preserving first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
