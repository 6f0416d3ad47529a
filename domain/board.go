package domain

import "time"

// Board is a named collection of tasks with a fixed creator and a mutable
// member set. The creator is never stored in Members; the authorization
// policy treats them as an implicit member everywhere.
type Board struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasMember reports whether userID is in the stored member set. The creator
// is not part of that set; use the policy functions for access decisions.
func (b Board) HasMember(userID string) bool {
	for _, m := range b.Members {
		if m == userID {
			return true
		}
	}
	return false
}
