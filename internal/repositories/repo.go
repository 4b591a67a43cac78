package repositories

import "context"

// Repo defines persistence operations for repository references.
type Repo interface {
	Create(ctx context.Context, repo Repository) error
	GetByID(ctx context.Context, repositoryID string) (Repository, error)
	ListByUser(ctx context.Context, userID string) ([]Repository, error)
	SoftDelete(ctx context.Context, userID, repositoryID string) error
}
