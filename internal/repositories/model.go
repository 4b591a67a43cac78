package repositories

import "time"

// Repository is a reference to a source-code repository registered by a user.
type Repository struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	DefaultBranch string    `json:"defaultBranch"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
