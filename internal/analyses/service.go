package analyses

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HugoCL/mlh-code-check-sub000/internal/queue"
	"github.com/HugoCL/mlh-code-check-sub000/internal/repositories"
	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/telemetry"
	"github.com/HugoCL/mlh-code-check-sub000/internal/usage"
)

// Service owns the analysis lifecycle: creation with frozen rubric
// snapshots, read access, and dispatch of runs to the queue or an in-process
// scheduler.
type Service struct {
	Repo         Repo
	Rubrics      rubrics.Repo
	Repositories repositories.Repo
	Usage        *usage.Service
	Queue        queue.Client // nil means run in-process
	Scheduler    *Scheduler
	Tracker      *Tracker
}

// Create starts a new analysis of a repository against a rubric. The rubric's
// items are copied onto the analysis at this moment, so later rubric edits
// never change what this run evaluates. The analysis and all of its pending
// item rows are persisted atomically before any work is dispatched.
func (s *Service) Create(ctx context.Context, userID, repositoryID, rubricID string) (Analysis, error) {
	repositoryID = strings.TrimSpace(repositoryID)
	rubricID = strings.TrimSpace(rubricID)
	if repositoryID == "" || rubricID == "" {
		return Analysis{}, errors.New("repositoryId and rubricId are required")
	}

	repoRef, err := s.Repositories.GetByID(ctx, repositoryID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if repoRef.UserID != userID {
		return Analysis{}, ErrAccessDenied
	}

	rubric, err := s.Rubrics.GetByID(ctx, rubricID)
	if err != nil {
		if errors.Is(err, rubrics.ErrNotFound) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if rubric.UserID != userID && !rubric.IsTemplate {
		return Analysis{}, ErrAccessDenied
	}
	if len(rubric.Items) == 0 {
		return Analysis{}, ErrEmptyRubric
	}

	if s.Usage != nil {
		ok, _, err := s.Usage.CanConsume(ctx, userID, 1)
		if err != nil {
			return Analysis{}, err
		}
		if !ok {
			return Analysis{}, usage.ErrLimitReached
		}
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:           uuid.NewString(),
		UserID:       userID,
		RepositoryID: repositoryID,
		RubricID:     rubricID,
		Status:       StatusPending,
		TotalItems:   len(rubric.Items),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	items := make([]ItemResult, 0, len(rubric.Items))
	for _, item := range rubric.Items {
		items = append(items, ItemResult{
			AnalysisID:      analysis.ID,
			RubricItemID:    item.ID,
			ItemName:        item.Name,
			ItemDescription: item.Description,
			EvaluationKind:  item.EvaluationKind,
			Config:          item.Config,
			Status:          ItemStatusPending,
			UpdatedAt:       now,
		})
	}

	if err := s.Repo.Create(ctx, analysis, items); err != nil {
		return Analysis{}, err
	}
	if s.Usage != nil {
		if _, err := s.Usage.Consume(ctx, userID, 1); err != nil {
			telemetry.Error("analysis.usage_consume_failed", map[string]any{"analysis_id": analysis.ID, "error": err.Error()})
		}
	}

	s.dispatch(ctx, analysis.ID)
	return analysis, nil
}

// dispatch hands the run to the queue when one is configured, otherwise
// processes it on a background goroutine so the create call returns
// immediately.
func (s *Service) dispatch(ctx context.Context, analysisID string) {
	if s.Queue != nil {
		msg := queue.Message{
			AnalysisID: analysisID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			// Fall through to the in-process scheduler so the run is not lost.
			telemetry.Error("analysis.enqueue_failed", map[string]any{"analysis_id": analysisID, "error": err.Error()})
		} else {
			telemetry.Info("analysis.enqueued", map[string]any{"analysis_id": analysisID})
			return
		}
	}
	if s.Scheduler == nil {
		telemetry.Error("analysis.dispatch_unavailable", map[string]any{"analysis_id": analysisID})
		return
	}
	go func(runCtx context.Context) {
		if err := s.Scheduler.Run(runCtx, analysisID); err != nil {
			telemetry.Error("analysis.inline_run_failed", map[string]any{"analysis_id": analysisID, "error": sanitizeError(err)})
		}
	}(backgroundWithRequestID(ctx))
}

// Get returns an analysis with its item results. Non-owners get ErrNotFound
// rather than ErrAccessDenied so IDs are not probeable.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	results, err := s.Repo.ListResults(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	a.Results = results
	return a, nil
}

// List returns the user's analyses, newest first.
func (s *Service) List(ctx context.Context, userID string, filters ListFilters, limit, offset int) ([]Analysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, filters, limit, offset)
}

// Progress returns the freshest available progress view for an analysis. In
// the same process as the scheduler this is the live snapshot; otherwise it
// is rebuilt from the persisted rows.
func (s *Service) Progress(ctx context.Context, userID, analysisID string) (ProgressSnapshot, error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return ProgressSnapshot{}, err
	}
	if a.UserID != userID {
		return ProgressSnapshot{}, ErrNotFound
	}
	if !a.Terminal() && s.Tracker != nil {
		if snap, ok := s.Tracker.Latest(analysisID); ok {
			return snap, nil
		}
	}
	snap, err := snapshotFromRows(ctx, s.Repo, analysisID, phaseForStatus(a.Status), "")
	if err != nil {
		return ProgressSnapshot{}, err
	}
	return snap, nil
}

// Process runs one analysis to completion. Queue consumers call this.
func (s *Service) Process(ctx context.Context, analysisID string) error {
	if s.Scheduler == nil {
		return errors.New("scheduler not configured")
	}
	return s.Scheduler.Run(ctx, analysisID)
}
