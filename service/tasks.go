package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// TaskService owns the task lifecycle within a board. Title uniqueness is
// enforced with a create-only claim on (board, normalized title) written
// before the task itself, so concurrent creations race on the claim rather
// than on a read-then-write check.
type TaskService struct {
	store Store
	queue ReconcileQueue
	log   *log.Logger

	now   func() time.Time
	newID func() string
}

func NewTaskService(store Store, queue ReconcileQueue, logger *log.Logger) *TaskService {
	return &TaskService{
		store: store,
		queue: queue,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// TaskInput carries the fields for a new task.
type TaskInput struct {
	Title           string
	Description     string
	Deadline        *time.Time
	AssignedMembers []string
}

// TaskUpdate carries optional field changes; nil fields are left untouched.
// ClearDeadline drops the deadline when Deadline is nil.
type TaskUpdate struct {
	Title         *string
	Description   *string
	Deadline      *time.Time
	ClearDeadline bool
}

// Create adds a task to the board. Assigned members must be board members or
// the board creator; the title must be unique within the board.
func (s *TaskService) Create(ctx context.Context, actorID, boardID string, in TaskInput) (domain.Task, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Task{}, err
	}
	if !domain.CanMutateTask(actorID, b, domain.Task{}, domain.TaskCreate) {
		return domain.Task{}, domain.Forbiddenf("only board members can create tasks")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Task{}, domain.Validationf("task title must not be empty")
	}
	assigned := dedupe(in.AssignedMembers)
	if err := validateAssignees(b, assigned); err != nil {
		return domain.Task{}, err
	}

	id := s.newID()
	norm := domain.NormalizeTitle(title)
	if err := s.store.ClaimTitle(ctx, boardID, norm, id); err != nil {
		if errors.Is(err, domain.ErrExists) {
			return domain.Task{}, domain.Errf(domain.CodeDuplicateTitle, "a task titled %q already exists on this board", title)
		}
		return domain.Task{}, err
	}

	now := s.now()
	t := domain.Task{
		ID:              id,
		BoardID:         boardID,
		Title:           title,
		Description:     strings.TrimSpace(in.Description),
		Status:          domain.TaskIncomplete,
		Deadline:        in.Deadline,
		CreatedBy:       actorID,
		AssignedMembers: assigned,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.InsertTask(ctx, t); err != nil {
		s.releaseClaim(ctx, boardID, norm)
		return domain.Task{}, err
	}
	return t, nil
}

// Update applies the provided fields. A new title is re-checked for
// uniqueness against every task but this one: the new claim is taken before
// the write and the old claim released after it.
func (s *TaskService) Update(ctx context.Context, actorID, boardID, taskID string, upd TaskUpdate) (domain.Task, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := s.store.GetTask(ctx, boardID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if !domain.CanMutateTask(actorID, b, t, domain.TaskUpdate) {
		return domain.Task{}, domain.Forbiddenf("only board members can edit tasks")
	}

	oldNorm := domain.NormalizeTitle(t.Title)
	var title string
	claimed := false
	if upd.Title != nil {
		title = strings.TrimSpace(*upd.Title)
		if title == "" {
			return domain.Task{}, domain.Validationf("task title must not be empty")
		}
		if norm := domain.NormalizeTitle(title); norm != oldNorm {
			if err := s.store.ClaimTitle(ctx, boardID, norm, taskID); err != nil {
				if errors.Is(err, domain.ErrExists) {
					return domain.Task{}, domain.Errf(domain.CodeDuplicateTitle, "a task titled %q already exists on this board", title)
				}
				return domain.Task{}, err
			}
			claimed = true
		}
	}

	task, err := s.store.MutateTask(ctx, boardID, taskID, func(tk *domain.Task) error {
		if upd.Title != nil {
			tk.Title = title
		}
		if upd.Description != nil {
			tk.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.Deadline != nil {
			tk.Deadline = upd.Deadline
		} else if upd.ClearDeadline {
			tk.Deadline = nil
		}
		tk.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		if claimed {
			s.releaseClaim(ctx, boardID, domain.NormalizeTitle(title))
		}
		return domain.Task{}, err
	}
	if claimed {
		s.releaseClaim(ctx, boardID, oldNorm)
	}
	return task, nil
}

// Complete marks the task completed. Only an assigned member may complete a
// task; completing an already-completed task returns the current state.
func (s *TaskService) Complete(ctx context.Context, actorID, boardID, taskID string) (domain.Task, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := s.store.GetTask(ctx, boardID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if !domain.CanMutateTask(actorID, b, t, domain.TaskComplete) {
		return domain.Task{}, domain.Forbiddenf("only assigned members can complete this task")
	}
	if t.Status == domain.TaskCompleted {
		return t, nil
	}
	return s.store.MutateTask(ctx, boardID, taskID, func(tk *domain.Task) error {
		if tk.Status == domain.TaskCompleted {
			return nil
		}
		now := s.now()
		tk.Status = domain.TaskCompleted
		tk.CompletedAt = &now
		tk.UpdatedAt = now
		return nil
	})
}

// Assign replaces the task's assigned-member set. The new set must be
// non-empty and drawn from the board's members or its creator.
func (s *TaskService) Assign(ctx context.Context, actorID, boardID, taskID string, memberIDs []string) (domain.Task, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := s.store.GetTask(ctx, boardID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if !domain.CanMutateTask(actorID, b, t, domain.TaskAssign) {
		return domain.Task{}, domain.Forbiddenf("only board members can assign tasks")
	}
	ids := dedupe(memberIDs)
	if len(ids) == 0 {
		return domain.Task{}, domain.Validationf("no members specified")
	}
	if err := validateAssignees(b, ids); err != nil {
		return domain.Task{}, err
	}
	return s.store.MutateTask(ctx, boardID, taskID, func(tk *domain.Task) error {
		tk.AssignedMembers = ids
		tk.UpdatedAt = s.now()
		return nil
	})
}

// Delete removes the task and releases its title for reuse.
func (s *TaskService) Delete(ctx context.Context, actorID, boardID, taskID string) error {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	t, err := s.store.GetTask(ctx, boardID, taskID)
	if err != nil {
		return err
	}
	if !domain.CanMutateTask(actorID, b, t, domain.TaskDelete) {
		return domain.Forbiddenf("only board members can delete tasks")
	}
	if err := s.store.DeleteTask(ctx, boardID, taskID); err != nil {
		return err
	}
	s.releaseClaim(ctx, boardID, domain.NormalizeTitle(t.Title))
	return nil
}

// ListForBoard returns the board's tasks, oldest first.
func (s *TaskService) ListForBoard(ctx context.Context, actorID, boardID string) ([]domain.Task, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if !domain.CanAccessBoard(actorID, b) {
		return nil, domain.Forbiddenf("you do not have access to this board")
	}
	tasks, err := s.store.ListTasks(ctx, boardID)
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// releaseClaim frees a title claim, deferring to the reconcile queue when the
// store write fails. A stale claim would block the title from reuse.
func (s *TaskService) releaseClaim(ctx context.Context, boardID, norm string) {
	err := s.store.ReleaseTitle(ctx, boardID, norm)
	if err == nil {
		return
	}
	if s.queue != nil {
		cmd := domain.ReconcileCommand{Kind: domain.ReconcileReleaseTitle, BoardID: boardID, Title: norm}
		if qErr := s.queue.Enqueue(ctx, cmd); qErr == nil {
			s.log.WithError(err).WithFields(log.Fields{"board_id": boardID}).Warn("title claim release deferred to reconcile queue")
			return
		}
	}
	s.log.WithError(err).WithField("board_id", boardID).Error("failed to release title claim")
}

func validateAssignees(b domain.Board, ids []string) error {
	for _, id := range ids {
		if id != b.CreatedBy && !b.HasMember(id) {
			return domain.Validationf("user %s is not a member of this board", id)
		}
	}
	return nil
}
