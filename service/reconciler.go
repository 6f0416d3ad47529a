package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Reconciler drains the reconcile queue in the background, finishing
// multi-document cleanups that could not be completed in-request. Every
// command is idempotent, so a step that fails is simply left on the queue to
// reappear after its visibility timeout.
type Reconciler struct {
	queue    ReconcileQueue
	store    Store
	members  *Membership
	log      *log.Logger
	interval time.Duration
}

func NewReconciler(queue ReconcileQueue, store Store, members *Membership, logger *log.Logger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reconciler{queue: queue, store: store, members: members, log: logger, interval: interval}
}

// Run drains the queue until ctx is cancelled, sleeping interval between
// passes.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		if err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.log.WithError(err).Error("reconcile drain failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.interval):
		}
	}
}

// Drain applies queued commands until the queue is empty or a dequeue fails.
func (r *Reconciler) Drain(ctx context.Context) error {
	for {
		msg, err := r.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			return nil
		}
		if err := r.apply(ctx, msg.Cmd); err != nil {
			// Leave the message; it becomes visible again later.
			r.log.WithError(err).WithField("kind", string(msg.Cmd.Kind)).Warn("reconcile step failed; will retry")
			return nil
		}
		if err := r.queue.Delete(ctx, msg); err != nil {
			return err
		}
	}
}

func (r *Reconciler) apply(ctx context.Context, cmd domain.ReconcileCommand) error {
	switch cmd.Kind {
	case domain.ReconcileRemoveMember:
		return r.members.fanOut(ctx, cmd.BoardID, cmd.UserID)
	case domain.ReconcileDetachBoard:
		_, err := r.store.MutateUser(ctx, cmd.UserID, func(u *domain.User) error {
			u.Boards = without(u.Boards, cmd.BoardID)
			return nil
		})
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil
		}
		return err
	case domain.ReconcileReleaseTitle:
		return r.store.ReleaseTitle(ctx, cmd.BoardID, cmd.Title)
	default:
		return fmt.Errorf("unknown reconcile kind %q", cmd.Kind)
	}
}
