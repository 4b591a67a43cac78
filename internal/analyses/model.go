package analyses

import (
	"time"

	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
)

// Analysis statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Item result statuses.
const (
	ItemStatusPending    = "pending"
	ItemStatusProcessing = "processing"
	ItemStatusCompleted  = "completed"
	ItemStatusFailed     = "failed"
)

// Analysis represents one evaluation run of a repository against a rubric.
type Analysis struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	RepositoryID   string       `json:"repositoryId"`
	RubricID       string       `json:"rubricId"`
	Status         string       `json:"status"`
	TotalItems     int          `json:"totalItems"`
	CompletedItems int          `json:"completedItems"`
	FailedItems    int          `json:"failedItems"`
	ErrorMessage   string       `json:"errorMessage,omitempty"`
	SnapshotKey    string       `json:"snapshotKey,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	StartedAt      *time.Time   `json:"startedAt,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	Results        []ItemResult `json:"results,omitempty"`
}

// Terminal reports whether the analysis has reached a final status.
func (a Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// ItemResult is the per-rubric-item evaluation row. The item name,
// description, kind, and config are frozen at creation time so that later
// rubric edits never alter a finished analysis.
type ItemResult struct {
	AnalysisID      string            `json:"analysisId"`
	RubricItemID    string            `json:"rubricItemId"`
	ItemName        string            `json:"itemName"`
	ItemDescription string            `json:"itemDescription"`
	EvaluationKind  string            `json:"evaluationKind"`
	Config          rubrics.ItemConfig `json:"config"`
	Status          string            `json:"status"`
	Result          map[string]any    `json:"result,omitempty"`
	Error           string            `json:"error,omitempty"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Terminal reports whether the item result is sealed.
func (r ItemResult) Terminal() bool {
	return r.CompletedAt != nil
}

// Spec returns the frozen evaluation inputs for this row.
func (r ItemResult) Spec() ItemSpec {
	return ItemSpec{
		RubricItemID: r.RubricItemID,
		Name:         r.ItemName,
		Description:  r.ItemDescription,
		Kind:         r.EvaluationKind,
		Config:       r.Config,
	}
}

// ItemSpec is the snapshot of a rubric item a worker evaluates against.
type ItemSpec struct {
	RubricItemID string
	Name         string
	Description  string
	Kind         string
	Config       rubrics.ItemConfig
}
