package analyses

import (
	"context"
	"time"
)

// ListFilters narrows ListByUser results. Zero values mean "no filter".
type ListFilters struct {
	RepositoryID string
	RubricID     string
	Status       string
	DateFrom     *time.Time
	DateTo       *time.Time
}

// Repo defines persistence operations for analyses and their item results.
type Repo interface {
	// Create inserts the analysis and its placeholder item rows atomically.
	Create(ctx context.Context, analysis Analysis, items []ItemResult) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, filters ListFilters, limit, offset int) ([]Analysis, error)
	ListResults(ctx context.Context, analysisID string) ([]ItemResult, error)

	// MarkProcessing moves a pending item row to processing. Sealed rows
	// return ErrResultSealed.
	MarkProcessing(ctx context.Context, analysisID, rubricItemID string) error
	// SealResult writes the terminal outcome of one item row exactly once.
	// For ItemStatusCompleted the result payload is stored; for
	// ItemStatusFailed the error message is. A second seal attempt returns
	// ErrResultSealed.
	SealResult(ctx context.Context, analysisID, rubricItemID, status string, result map[string]any, errMsg string, completedAt time.Time) error
	// CountResults returns the number of completed and failed item rows.
	CountResults(ctx context.Context, analysisID string) (completed, failed int, err error)
	// UpdateCounters overwrites the denormalized progress counters.
	UpdateCounters(ctx context.Context, analysisID string, completed, failed int) error

	MarkRunning(ctx context.Context, analysisID string, startedAt time.Time) error
	SetSnapshotKey(ctx context.Context, analysisID, key string) error
	Complete(ctx context.Context, analysisID string, completedAt time.Time) error
	Fail(ctx context.Context, analysisID, message string, completedAt time.Time) error
}
