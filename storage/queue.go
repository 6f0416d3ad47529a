package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskboard-api/domain"
)

// ReconcileQueue carries idempotent repair commands between the request path
// and the background reconciler.
type ReconcileQueue struct {
	queue *azqueue.QueueClient
}

// NewReconcileQueue creates a queue client from the given connection string.
func NewReconcileQueue(connStr, queueName string) (*ReconcileQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &ReconcileQueue{queue: q}, nil
}

func (q *ReconcileQueue) Enqueue(ctx context.Context, cmd domain.ReconcileCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if _, err := q.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
		return domain.Unavailable(err, "reconcile queue: enqueue failed")
	}
	return nil
}

// Dequeue retrieves a single command, or nil when the queue is empty.
// Malformed messages are dropped so they cannot wedge the queue.
func (q *ReconcileQueue) Dequeue(ctx context.Context) (*domain.ReconcileMessage, error) {
	resp, err := q.queue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, domain.Unavailable(err, "reconcile queue: dequeue failed")
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	out := &domain.ReconcileMessage{}
	if msg.MessageID != nil {
		out.MessageID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		out.PopReceipt = *msg.PopReceipt
	}
	if msg.MessageText == nil {
		_, _ = q.queue.DeleteMessage(ctx, out.MessageID, out.PopReceipt, nil)
		return nil, fmt.Errorf("reconcile queue: empty message %s", out.MessageID)
	}
	if err := json.Unmarshal([]byte(*msg.MessageText), &out.Cmd); err != nil {
		_, _ = q.queue.DeleteMessage(ctx, out.MessageID, out.PopReceipt, nil)
		return nil, fmt.Errorf("reconcile queue: malformed message %s: %w", out.MessageID, err)
	}
	return out, nil
}

func (q *ReconcileQueue) Delete(ctx context.Context, msg *domain.ReconcileMessage) error {
	if _, err := q.queue.DeleteMessage(ctx, msg.MessageID, msg.PopReceipt, nil); err != nil {
		return domain.Unavailable(err, "reconcile queue: delete failed")
	}
	return nil
}
