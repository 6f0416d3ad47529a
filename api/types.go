package api

import (
	"context"

	"taskboard-api/domain"
	"taskboard-api/service"
)

// Boards is the board service surface the handlers consume.
type Boards interface {
	Create(ctx context.Context, actorID, name, description string) (domain.Board, error)
	Get(ctx context.Context, actorID, boardID string) (domain.Board, error)
	Update(ctx context.Context, actorID, boardID string, upd service.BoardUpdate) (domain.Board, error)
	Delete(ctx context.Context, actorID, boardID string) error
	AddMember(ctx context.Context, actorID, boardID, userID string) error
	RemoveMember(ctx context.Context, actorID, boardID, userID string) error
	ListForUser(ctx context.Context, actorID string) ([]domain.Board, error)
}

// Tasks is the task service surface the handlers consume.
type Tasks interface {
	Create(ctx context.Context, actorID, boardID string, in service.TaskInput) (domain.Task, error)
	Update(ctx context.Context, actorID, boardID, taskID string, upd service.TaskUpdate) (domain.Task, error)
	Complete(ctx context.Context, actorID, boardID, taskID string) (domain.Task, error)
	Assign(ctx context.Context, actorID, boardID, taskID string, memberIDs []string) (domain.Task, error)
	Delete(ctx context.Context, actorID, boardID, taskID string) error
	ListForBoard(ctx context.Context, actorID, boardID string) ([]domain.Task, error)
}

// Users is the directory surface the handlers consume.
type Users interface {
	Register(ctx context.Context, actorID, fullName, email string) (domain.User, error)
	Get(ctx context.Context, userID string) (domain.User, error)
	Search(ctx context.Context, actorID, query string, excludeIDs []string) ([]domain.User, error)
}

// Services bundles the domain services for route registration.
type Services struct {
	Boards Boards
	Tasks  Tasks
	Users  Users
}

// Authenticator is implemented by types able to extract verified user ids
// from request credentials.
type Authenticator interface {
	UserIDFromAuthHeader(header string) (string, error)
}
