package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses and item results in memory and is safe for
// concurrent use. It mirrors the PG repo's sealing semantics so worker tests
// exercise the same write-once rules.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]Analysis
	results map[string][]ItemResult
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]Analysis),
		results: make(map[string][]ItemResult),
	}
}

// Create stores the analysis and its placeholder item rows.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis, items []ItemResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	rows := make([]ItemResult, len(items))
	copy(rows, items)
	r.results[analysis.ID] = rows
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// ListByUser returns a user's analyses matching the filters, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, filters ListFilters, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Analysis
	for _, a := range r.byID {
		if a.UserID != userID {
			continue
		}
		if filters.RepositoryID != "" && a.RepositoryID != filters.RepositoryID {
			continue
		}
		if filters.RubricID != "" && a.RubricID != filters.RubricID {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if filters.DateFrom != nil && a.CreatedAt.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && a.CreatedAt.After(*filters.DateTo) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListResults returns the item rows for an analysis in insertion order.
func (r *MemoryRepo) ListResults(ctx context.Context, analysisID string) ([]ItemResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows, ok := r.results[analysisID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]ItemResult, len(rows))
	copy(out, rows)
	return out, nil
}

// MarkProcessing moves a pending row to processing.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, analysisID, rubricItemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, ok := r.results[analysisID]
	if !ok {
		return ErrNotFound
	}
	for i := range rows {
		if rows[i].RubricItemID != rubricItemID {
			continue
		}
		if rows[i].CompletedAt != nil {
			return ErrResultSealed
		}
		rows[i].Status = ItemStatusProcessing
		rows[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return ErrNotFound
}

// SealResult writes an item row's terminal outcome exactly once.
func (r *MemoryRepo) SealResult(ctx context.Context, analysisID, rubricItemID, status string, result map[string]any, errMsg string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if status != ItemStatusCompleted && status != ItemStatusFailed {
		return ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, ok := r.results[analysisID]
	if !ok {
		return ErrNotFound
	}
	for i := range rows {
		if rows[i].RubricItemID != rubricItemID {
			continue
		}
		if rows[i].CompletedAt != nil {
			return ErrResultSealed
		}
		rows[i].Status = status
		rows[i].Result = result
		rows[i].Error = errMsg
		rows[i].CompletedAt = &completedAt
		rows[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return ErrNotFound
}

// CountResults returns the number of completed and failed rows.
func (r *MemoryRepo) CountResults(ctx context.Context, analysisID string) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows, ok := r.results[analysisID]
	if !ok {
		return 0, 0, ErrNotFound
	}
	var completed, failed int
	for _, row := range rows {
		switch row.Status {
		case ItemStatusCompleted:
			completed++
		case ItemStatusFailed:
			failed++
		}
	}
	return completed, failed, nil
}

// UpdateCounters overwrites the denormalized counters.
func (r *MemoryRepo) UpdateCounters(ctx context.Context, analysisID string, completed, failed int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	a.CompletedItems = completed
	a.FailedItems = failed
	a.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = a
	return nil
}

// MarkRunning transitions a pending analysis to running.
func (r *MemoryRepo) MarkRunning(ctx context.Context, analysisID string, startedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != StatusPending {
		return ErrInvalidTransition
	}
	a.Status = StatusRunning
	a.StartedAt = &startedAt
	a.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = a
	return nil
}

// SetSnapshotKey records the archived snapshot location.
func (r *MemoryRepo) SetSnapshotKey(ctx context.Context, analysisID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	a.SnapshotKey = key
	a.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = a
	return nil
}

// Complete transitions a non-terminal analysis to completed.
func (r *MemoryRepo) Complete(ctx context.Context, analysisID string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if a.Terminal() {
		return ErrInvalidTransition
	}
	a.Status = StatusCompleted
	a.CompletedAt = &completedAt
	a.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = a
	return nil
}

// Fail transitions a non-terminal analysis to failed with a message.
func (r *MemoryRepo) Fail(ctx context.Context, analysisID, message string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if a.Terminal() {
		return ErrInvalidTransition
	}
	a.Status = StatusFailed
	a.ErrorMessage = message
	a.CompletedAt = &completedAt
	a.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = a
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
