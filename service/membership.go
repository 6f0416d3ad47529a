package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

const (
	defaultFanOutAttempts = 3
	defaultFanOutBackoff  = 100 * time.Millisecond
)

// Membership keeps the board member set, the user's denormalized board
// references, and per-task assignments consistent with each other. The three
// collections have no cross-document transactions, so every step is
// idempotent and the remainder of a partially-applied removal can be retried
// or handed to the reconcile queue.
type Membership struct {
	store Store
	queue ReconcileQueue
	log   *log.Logger

	fanOutAttempts int
	fanOutBackoff  time.Duration
	now            func() time.Time
}

// NewMembership creates a membership manager. queue may be nil; fan-out
// failures then surface to the caller instead of being deferred.
func NewMembership(store Store, queue ReconcileQueue, logger *log.Logger) *Membership {
	return &Membership{
		store:          store,
		queue:          queue,
		log:            logger,
		fanOutAttempts: defaultFanOutAttempts,
		fanOutBackoff:  defaultFanOutBackoff,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// AddMember appends userID to the board's member set and the board to the
// user's reference set. The board document is written first; if the user
// write fails the member entry is rolled back so readers never see a member
// without the reciprocal reference settling.
func (m *Membership) AddMember(ctx context.Context, boardID, userID string) error {
	if _, err := m.store.GetUser(ctx, userID); err != nil {
		return err
	}

	if _, err := m.store.MutateBoard(ctx, boardID, func(b *domain.Board) error {
		if userID == b.CreatedBy {
			return domain.Errf(domain.CodeAlreadyMember, "user %s created this board", userID)
		}
		if b.HasMember(userID) {
			return domain.Errf(domain.CodeAlreadyMember, "user %s is already a member", userID)
		}
		b.Members = append(b.Members, userID)
		return nil
	}); err != nil {
		return err
	}

	if _, err := m.store.MutateUser(ctx, userID, func(u *domain.User) error {
		u.Boards = appendUnique(u.Boards, boardID)
		return nil
	}); err != nil {
		if _, rbErr := m.store.MutateBoard(ctx, boardID, func(b *domain.Board) error {
			b.Members = without(b.Members, userID)
			return nil
		}); rbErr != nil {
			m.log.WithError(rbErr).WithFields(log.Fields{
				"board_id": boardID,
				"user_id":  userID,
			}).Error("failed to roll back member addition")
		}
		return err
	}
	return nil
}

// RemoveMember drops userID from the board's member set, then fans out: the
// user's board reference and every task assignment are cleaned up. The board
// write lands first so the removal fails closed; the fan-out is retried
// in-request and deferred to the reconcile queue if it keeps failing.
func (m *Membership) RemoveMember(ctx context.Context, boardID, userID string) error {
	if _, err := m.store.MutateBoard(ctx, boardID, func(b *domain.Board) error {
		if userID == b.CreatedBy {
			return domain.Errf(domain.CodeInvalidOperation, "the board creator cannot be removed")
		}
		if !b.HasMember(userID) {
			return domain.NotFoundf("user %s is not a member of this board", userID)
		}
		b.Members = without(b.Members, userID)
		return nil
	}); err != nil {
		return err
	}

	if err := m.retryFanOut(ctx, boardID, userID); err != nil {
		if m.queue != nil {
			cmd := domain.ReconcileCommand{Kind: domain.ReconcileRemoveMember, BoardID: boardID, UserID: userID}
			if qErr := m.queue.Enqueue(ctx, cmd); qErr == nil {
				m.log.WithError(err).WithFields(log.Fields{
					"board_id": boardID,
					"user_id":  userID,
				}).Warn("member removal fan-out deferred to reconcile queue")
				return nil
			}
			m.log.WithError(err).WithFields(log.Fields{
				"board_id": boardID,
				"user_id":  userID,
			}).Error("failed to enqueue member removal fan-out")
		}
		return err
	}
	return nil
}

func (m *Membership) retryFanOut(ctx context.Context, boardID, userID string) error {
	backoff := m.fanOutBackoff
	var err error
	for attempt := 0; attempt < m.fanOutAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Unavailable(ctx.Err(), "member removal interrupted")
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = m.fanOut(ctx, boardID, userID); err == nil {
			return nil
		}
	}
	return err
}

// fanOut applies the removal side effects. Every step tolerates already-done
// work, so it is safe to run any number of times.
func (m *Membership) fanOut(ctx context.Context, boardID, userID string) error {
	if _, err := m.store.MutateUser(ctx, userID, func(u *domain.User) error {
		u.Boards = without(u.Boards, boardID)
		return nil
	}); err != nil && !domain.IsCode(err, domain.CodeNotFound) {
		return err
	}

	tasks, err := m.store.ListTasks(ctx, boardID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil
		}
		return err
	}
	for _, t := range tasks {
		if !t.IsAssigned(userID) {
			continue
		}
		if _, err := m.store.MutateTask(ctx, boardID, t.ID, func(tk *domain.Task) error {
			if !tk.IsAssigned(userID) {
				return nil
			}
			tk.AssignedMembers = without(tk.AssignedMembers, userID)
			tk.UpdatedAt = m.now()
			return nil
		}); err != nil && !domain.IsCode(err, domain.CodeNotFound) {
			return err
		}
	}
	return nil
}
