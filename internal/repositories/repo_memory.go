package repositories

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores repository references in memory, safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Repository
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Repository)}
}

// Create stores the repository reference.
func (r *MemoryRepo) Create(ctx context.Context, repo Repository) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[repo.ID] = repo
	return nil
}

// GetByID returns a repository by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, repositoryID string) (Repository, error) {
	if err := ctx.Err(); err != nil {
		return Repository{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	repo, ok := r.byID[repositoryID]
	if !ok {
		return Repository{}, ErrNotFound
	}
	return repo, nil
}

// ListByUser returns the user's repositories, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Repository, 0)
	for _, repo := range r.byID {
		if repo.UserID == userID {
			out = append(out, repo)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SoftDelete removes a repository owned by the user.
func (r *MemoryRepo) SoftDelete(ctx context.Context, userID, repositoryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	repo, ok := r.byID[repositoryID]
	if !ok {
		return ErrNotFound
	}
	if repo.UserID != userID {
		return ErrAccessDenied
	}
	delete(r.byID, repositoryID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
