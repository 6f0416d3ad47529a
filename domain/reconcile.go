package domain

// ReconcileKind selects the multi-document cleanup a queued command performs.
type ReconcileKind string

const (
	// ReconcileRemoveMember finishes the fan-out of a member removal: drop
	// the user's board reference and unassign them from the board's tasks.
	// The board document itself was already updated in-request.
	ReconcileRemoveMember ReconcileKind = "remove-member"
	// ReconcileDetachBoard drops a board reference from a user document
	// after the board was deleted.
	ReconcileDetachBoard ReconcileKind = "detach-board"
	// ReconcileReleaseTitle drops a title claim left behind by a deleted or
	// renamed task.
	ReconcileReleaseTitle ReconcileKind = "release-title"
)

// ReconcileCommand is a queued, idempotent repair step. Commands may be
// applied any number of times; applying one whose work is already done is a
// no-op.
type ReconcileCommand struct {
	Kind    ReconcileKind `json:"kind"`
	BoardID string        `json:"boardId"`
	UserID  string        `json:"userId,omitempty"`
	// Title is the normalized title of a claim to release.
	Title string `json:"title,omitempty"`
}

// ReconcileMessage is a dequeued command plus the receipt needed to delete it
// from the queue.
type ReconcileMessage struct {
	Cmd        ReconcileCommand
	MessageID  string
	PopReceipt string
}
