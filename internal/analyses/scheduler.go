package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HugoCL/mlh-code-check-sub000/internal/github"
	"github.com/HugoCL/mlh-code-check-sub000/internal/repositories"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/metrics"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/storage/object"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/telemetry"
)

// SnapshotFetcher retrieves the repository content evaluated by a run.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, owner, name, branch string) (github.Snapshot, error)
}

// Scheduler drives one analysis run end to end: fetch the snapshot once,
// fan item evaluations out to a bounded worker pool, wait for every item to
// settle, then seal the run.
type Scheduler struct {
	Repo        Repo
	Repos       repositories.Repo
	Fetcher     SnapshotFetcher
	Worker      *Worker
	Store       object.ObjectStore // optional snapshot archive
	Progress    Publisher          // optional
	Concurrency int
}

// Run processes the analysis with the given ID. Item failures never fail the
// run; only orchestration errors (unknown analysis, snapshot fetch failure,
// storage errors around the run itself) do. Redelivered terminal analyses
// return nil without side effects.
func (s *Scheduler) Run(ctx context.Context, analysisID string) error {
	start := time.Now()

	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}
	if a.Terminal() {
		telemetry.Info("analysis.run.skipped_terminal", map[string]any{"analysis_id": analysisID, "status": a.Status})
		return nil
	}

	if a.Status == StatusPending {
		if err := s.Repo.MarkRunning(ctx, analysisID, time.Now().UTC()); err != nil {
			return s.fail(ctx, analysisID, fmt.Errorf("mark running: %w", err), start)
		}
	}
	metrics.IncAnalysisStarted()
	s.publishPhase(ctx, analysisID, PhaseInitializing, "")

	repoRef, err := s.Repos.GetByID(ctx, a.RepositoryID)
	if err != nil {
		return s.fail(ctx, analysisID, fmt.Errorf("load repository: %w", err), start)
	}

	s.publishPhase(ctx, analysisID, PhaseFetchingRepo, "")
	snap, err := s.Fetcher.Fetch(ctx, repoRef.Owner, repoRef.Name, repoRef.DefaultBranch)
	if err != nil {
		// Item rows stay pending so the stored run explains exactly how
		// far it got.
		return s.fail(ctx, analysisID, fmt.Errorf("fetch repository snapshot: %w", err), start)
	}
	s.archiveSnapshot(ctx, a, snap)

	rows, err := s.Repo.ListResults(ctx, analysisID)
	if err != nil {
		return s.fail(ctx, analysisID, fmt.Errorf("load item rows: %w", err), start)
	}

	s.publishPhase(ctx, analysisID, PhaseEvaluating, "")
	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, row := range rows {
		if row.Terminal() {
			continue
		}
		row := row
		g.Go(func() error {
			s.publishPhase(ctx, analysisID, PhaseEvaluating, row.ItemName)
			// Workers record their own failures; returning an error here
			// would cancel sibling evaluations.
			if err := s.Worker.EvaluateItem(gctx, analysisID, row.Spec(), snap); err != nil {
				telemetry.Error("analysis.run.item_error", map[string]any{
					"analysis_id":    analysisID,
					"rubric_item_id": row.RubricItemID,
					"error":          sanitizeError(err),
				})
			}
			s.publishPhase(ctx, analysisID, PhaseEvaluating, "")
			return nil
		})
	}
	_ = g.Wait()

	s.publishPhase(ctx, analysisID, PhaseCompleting, "")
	completed, failed, err := s.Repo.CountResults(ctx, analysisID)
	if err != nil {
		return s.fail(ctx, analysisID, fmt.Errorf("final recount: %w", err), start)
	}
	if err := s.Repo.UpdateCounters(ctx, analysisID, completed, failed); err != nil {
		return s.fail(ctx, analysisID, fmt.Errorf("final counters: %w", err), start)
	}
	if completed+failed != a.TotalItems {
		telemetry.Error("analysis.run.counter_mismatch", map[string]any{
			"analysis_id": analysisID,
			"total":       a.TotalItems,
			"completed":   completed,
			"failed":      failed,
		})
	}
	if err := s.Repo.Complete(ctx, analysisID, time.Now().UTC()); err != nil {
		return s.fail(ctx, analysisID, fmt.Errorf("complete analysis: %w", err), start)
	}
	if s.Progress != nil {
		if t, ok := s.Progress.(*Tracker); ok {
			t.Forget(analysisID)
		}
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(time.Since(start).Milliseconds()))
	telemetry.Info("analysis.run.completed", map[string]any{
		"analysis_id": analysisID,
		"total":       a.TotalItems,
		"completed":   completed,
		"failed":      failed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (s *Scheduler) fail(ctx context.Context, analysisID string, cause error, start time.Time) error {
	msg := sanitizeError(cause)
	if err := s.Repo.Fail(ctx, analysisID, msg, time.Now().UTC()); err != nil {
		telemetry.Error("analysis.run.fail_write_error", map[string]any{"analysis_id": analysisID, "error": err.Error()})
	}
	metrics.IncAnalysisFailed()
	telemetry.Error("analysis.run.failed", map[string]any{
		"analysis_id": analysisID,
		"error":       msg,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return cause
}

// archiveSnapshot persists the fetched snapshot for later inspection. The
// archive is best effort and never fails the run.
func (s *Scheduler) archiveSnapshot(ctx context.Context, a Analysis, snap github.Snapshot) {
	if s.Store == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		telemetry.Error("analysis.snapshot.encode_failed", map[string]any{"analysis_id": a.ID, "error": err.Error()})
		return
	}
	key, size, err := s.Store.Save(ctx, a.UserID, a.ID+"_snapshot.json", bytes.NewReader(payload))
	if err != nil {
		telemetry.Error("analysis.snapshot.archive_failed", map[string]any{"analysis_id": a.ID, "error": err.Error()})
		return
	}
	if err := s.Repo.SetSnapshotKey(ctx, a.ID, key); err != nil {
		telemetry.Error("analysis.snapshot.key_write_failed", map[string]any{"analysis_id": a.ID, "error": err.Error()})
		return
	}
	telemetry.Info("analysis.snapshot.archived", map[string]any{"analysis_id": a.ID, "key": key, "size_bytes": size})
}

func (s *Scheduler) publishPhase(ctx context.Context, analysisID, phase, currentItem string) {
	if s.Progress == nil {
		return
	}
	snap, err := snapshotFromRows(ctx, s.Repo, analysisID, phase, currentItem)
	if err != nil {
		telemetry.Error("analysis.progress.snapshot_failed", map[string]any{"analysis_id": analysisID, "error": err.Error()})
		return
	}
	s.Progress.Publish(analysisID, snap)
}
