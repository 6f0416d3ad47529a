package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// BoardService owns the board lifecycle and gates every mutation through the
// authorization policy.
type BoardService struct {
	store   Store
	members *Membership
	queue   ReconcileQueue
	log     *log.Logger

	now   func() time.Time
	newID func() string
}

func NewBoardService(store Store, members *Membership, queue ReconcileQueue, logger *log.Logger) *BoardService {
	return &BoardService{
		store:   store,
		members: members,
		queue:   queue,
		log:     logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// BoardUpdate carries optional field changes; nil fields are left untouched.
type BoardUpdate struct {
	Name        *string
	Description *string
}

// Create stores a new board owned by actor and registers the board reference
// on the actor's user document. When the reference write fails the board is
// rolled back so no board exists without its creator reference.
func (s *BoardService) Create(ctx context.Context, actorID, name, description string) (domain.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Board{}, domain.Validationf("board name must not be empty")
	}

	b := domain.Board{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   actorID,
		CreatedAt:   s.now(),
	}
	if err := s.store.InsertBoard(ctx, b); err != nil {
		return domain.Board{}, err
	}

	if _, err := s.store.MutateUser(ctx, actorID, func(u *domain.User) error {
		u.Boards = appendUnique(u.Boards, b.ID)
		return nil
	}); err != nil {
		if delErr := s.store.DeleteBoard(ctx, b.ID); delErr != nil {
			s.log.WithError(delErr).WithField("board_id", b.ID).Error("failed to roll back board creation")
		}
		return domain.Board{}, err
	}
	return b, nil
}

// Get returns the board when actor is its creator or a member.
func (s *BoardService) Get(ctx context.Context, actorID, boardID string) (domain.Board, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	if !domain.CanAccessBoard(actorID, b) {
		return domain.Board{}, domain.Forbiddenf("you do not have access to this board")
	}
	return b, nil
}

// Update applies the provided fields. Only the creator may edit a board.
func (s *BoardService) Update(ctx context.Context, actorID, boardID string, upd BoardUpdate) (domain.Board, error) {
	return s.store.MutateBoard(ctx, boardID, func(b *domain.Board) error {
		if !domain.CanManageBoard(actorID, *b) {
			return domain.Forbiddenf("only the board creator can edit the board")
		}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return domain.Validationf("board name must not be empty")
			}
			b.Name = name
		}
		if upd.Description != nil {
			b.Description = strings.TrimSpace(*upd.Description)
		}
		return nil
	})
}

// Delete removes an empty board: no tasks, no members besides the creator.
// The creator's board reference is detached afterwards; since the board
// document is already gone that step is repaired via the reconcile queue
// rather than rolled back.
func (s *BoardService) Delete(ctx context.Context, actorID, boardID string) error {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if !domain.CanManageBoard(actorID, b) {
		return domain.Forbiddenf("only the board creator can delete the board")
	}
	if len(b.Members) > 0 {
		return domain.Errf(domain.CodeNotEmpty, "remove all members before deleting the board")
	}
	tasks, err := s.store.ListTasks(ctx, boardID)
	if err != nil {
		return err
	}
	if len(tasks) > 0 {
		return domain.Errf(domain.CodeNotEmpty, "delete all tasks before deleting the board")
	}

	if err := s.store.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	if _, err := s.store.MutateUser(ctx, b.CreatedBy, func(u *domain.User) error {
		u.Boards = without(u.Boards, boardID)
		return nil
	}); err != nil && !domain.IsCode(err, domain.CodeNotFound) {
		if s.queue != nil {
			cmd := domain.ReconcileCommand{Kind: domain.ReconcileDetachBoard, BoardID: boardID, UserID: b.CreatedBy}
			if qErr := s.queue.Enqueue(ctx, cmd); qErr == nil {
				s.log.WithError(err).WithField("board_id", boardID).Warn("board reference cleanup deferred to reconcile queue")
				return nil
			}
		}
		s.log.WithError(err).WithField("board_id", boardID).Error("failed to detach board reference from creator")
		return err
	}
	return nil
}

// AddMember grants userID membership. Creator only.
func (s *BoardService) AddMember(ctx context.Context, actorID, boardID, userID string) error {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if !domain.CanManageBoard(actorID, b) {
		return domain.Forbiddenf("only the board creator can add members")
	}
	return s.members.AddMember(ctx, boardID, userID)
}

// RemoveMember revokes userID's membership and unassigns them from the
// board's tasks. Creator only.
func (s *BoardService) RemoveMember(ctx context.Context, actorID, boardID, userID string) error {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if !domain.CanManageBoard(actorID, b) {
		return domain.Forbiddenf("only the board creator can remove members")
	}
	return s.members.RemoveMember(ctx, boardID, userID)
}

// ListForUser returns the boards the actor created or belongs to, oldest
// first. References whose board is gone are skipped: the denormalized set may
// briefly lag a deletion.
func (s *BoardService) ListForUser(ctx context.Context, actorID string) ([]domain.Board, error) {
	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	boards := make([]domain.Board, 0, len(u.Boards))
	for _, id := range u.Boards {
		b, err := s.store.GetBoard(ctx, id)
		if err != nil {
			if domain.IsCode(err, domain.CodeNotFound) {
				continue
			}
			return nil, err
		}
		boards = append(boards, b)
	}
	sort.Slice(boards, func(i, j int) bool {
		if boards[i].CreatedAt.Equal(boards[j].CreatedAt) {
			return boards[i].ID < boards[j].ID
		}
		return boards[i].CreatedAt.Before(boards[j].CreatedAt)
	})
	return boards, nil
}
