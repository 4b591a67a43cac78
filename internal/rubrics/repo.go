package rubrics

import "context"

// Repo defines persistence operations for rubrics and their items.
type Repo interface {
	Create(ctx context.Context, rubric Rubric) error
	GetByID(ctx context.Context, rubricID string) (Rubric, error)
	ListByUser(ctx context.Context, userID string) ([]Rubric, error)
	Update(ctx context.Context, rubric Rubric) error
	SoftDelete(ctx context.Context, userID, rubricID string) error
}
