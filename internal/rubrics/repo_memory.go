package rubrics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores rubrics in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Rubric
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Rubric)}
}

// Create stores the rubric with its items.
func (r *MemoryRepo) Create(ctx context.Context, rubric Rubric) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rubric.ID] = cloneRubric(rubric)
	return nil
}

// GetByID returns a rubric with its items ordered by position.
func (r *MemoryRepo) GetByID(ctx context.Context, rubricID string) (Rubric, error) {
	if err := ctx.Err(); err != nil {
		return Rubric{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rubric, ok := r.byID[rubricID]
	if !ok {
		return Rubric{}, ErrNotFound
	}
	return cloneRubric(rubric), nil
}

// ListByUser returns the user's rubrics plus shared templates, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Rubric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rubric, 0)
	for _, rubric := range r.byID {
		if rubric.UserID == userID || rubric.IsTemplate {
			out = append(out, cloneRubric(rubric))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces a rubric and its items.
func (r *MemoryRepo) Update(ctx context.Context, rubric Rubric) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[rubric.ID]
	if !ok {
		return ErrNotFound
	}
	rubric.CreatedAt = existing.CreatedAt
	rubric.UpdatedAt = time.Now().UTC()
	r.byID[rubric.ID] = cloneRubric(rubric)
	return nil
}

// SoftDelete removes a rubric owned by the user.
func (r *MemoryRepo) SoftDelete(ctx context.Context, userID, rubricID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rubric, ok := r.byID[rubricID]
	if !ok {
		return ErrNotFound
	}
	if rubric.UserID != userID {
		return ErrAccessDenied
	}
	delete(r.byID, rubricID)
	return nil
}

func cloneRubric(rubric Rubric) Rubric {
	out := rubric
	out.Items = make([]Item, len(rubric.Items))
	copy(out.Items, rubric.Items)
	sort.Slice(out.Items, func(i, j int) bool {
		return out.Items[i].Position < out.Items[j].Position
	})
	for i := range out.Items {
		if len(out.Items[i].Config.Options) > 0 {
			opts := make([]string, len(out.Items[i].Config.Options))
			copy(opts, out.Items[i].Config.Options)
			out.Items[i].Config.Options = opts
		}
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
