package domain

import "time"

// User is a registered account. The identifier is issued by the identity
// provider; this service never invents user ids.
type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	// Boards is the denormalized set of boards the user created or belongs
	// to, kept in sync by the membership manager.
	Boards []string `json:"boards,omitempty"`
}
