package domain

import "time"

// TaskStatus is the lifecycle state of a task. There is no transition back
// from completed; completion is idempotent.
type TaskStatus string

const (
	TaskIncomplete TaskStatus = "incomplete"
	TaskCompleted  TaskStatus = "completed"
)

// Task is a single work item scoped to a board. Titles are unique within the
// board under NormalizeTitle.
type Task struct {
	ID              string     `json:"id"`
	BoardID         string     `json:"boardId"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          TaskStatus `json:"status"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	CreatedBy       string     `json:"createdBy"`
	AssignedMembers []string   `json:"assignedMembers,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// IsAssigned reports whether userID is in the task's assigned-member set.
func (t Task) IsAssigned(userID string) bool {
	for _, m := range t.AssignedMembers {
		if m == userID {
			return true
		}
	}
	return false
}
