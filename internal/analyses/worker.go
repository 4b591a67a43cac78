package analyses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HugoCL/mlh-code-check-sub000/internal/github"
	"github.com/HugoCL/mlh-code-check-sub000/internal/llm"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/metrics"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/telemetry"
)

const maxErrorMessageLen = 500

// Worker evaluates a single rubric item against a repository snapshot and
// records the outcome. A worker never mutates other items' rows; the only
// shared state it touches is the analysis counters, which it refreshes by
// absolute recount.
type Worker struct {
	Repo      Repo
	Evaluator llm.Evaluator
	Retry     RetryPolicy
}

// EvaluateItem runs the full evaluate-and-record cycle for one item row.
// Failures are persisted on the row and returned; callers that fan out
// multiple items should log the error rather than abort the run.
func (w *Worker) EvaluateItem(ctx context.Context, analysisID string, item ItemSpec, snap github.Snapshot) error {
	start := time.Now()

	var payload map[string]any
	attempt := 0
	err := w.Retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.IncItemRetried()
			telemetry.Info("analysis.item.retry", map[string]any{
				"analysis_id":    analysisID,
				"rubric_item_id": item.RubricItemID,
				"attempt":        attempt,
			})
		}
		if err := w.Repo.MarkProcessing(ctx, analysisID, item.RubricItemID); err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
		req := BuildPrompt(item, snap)
		raw, err := w.Evaluator.Evaluate(ctx, req)
		if err != nil {
			return err
		}
		decoded, err := DecodeResult(item.Kind, item.Config, raw)
		if err != nil {
			return err
		}
		payload = decoded
		return nil
	})

	if err != nil {
		code := classifyFailure(err)
		msg := code + ": " + sanitizeError(err)
		if sealErr := w.Repo.SealResult(ctx, analysisID, item.RubricItemID, ItemStatusFailed, nil, msg, time.Now().UTC()); sealErr != nil {
			telemetry.Error("analysis.item.seal_failed", map[string]any{
				"analysis_id":    analysisID,
				"rubric_item_id": item.RubricItemID,
				"error":          sealErr.Error(),
			})
		}
		metrics.IncItemFailed()
		telemetry.Error("analysis.item.failed", map[string]any{
			"analysis_id":    analysisID,
			"rubric_item_id": item.RubricItemID,
			"kind":           item.Kind,
			"code":           code,
			"error":          sanitizeError(err),
			"duration_ms":    time.Since(start).Milliseconds(),
		})
		w.recount(ctx, analysisID)
		return err
	}

	if err := w.Repo.SealResult(ctx, analysisID, item.RubricItemID, ItemStatusCompleted, payload, "", time.Now().UTC()); err != nil {
		telemetry.Error("analysis.item.seal_failed", map[string]any{
			"analysis_id":    analysisID,
			"rubric_item_id": item.RubricItemID,
			"error":          err.Error(),
		})
		metrics.IncItemFailed()
		return err
	}
	metrics.IncItemCompleted()
	metrics.ObserveItemDurationMs(float64(time.Since(start).Milliseconds()))
	telemetry.Info("analysis.item.completed", map[string]any{
		"analysis_id":    analysisID,
		"rubric_item_id": item.RubricItemID,
		"kind":           item.Kind,
		"duration_ms":    time.Since(start).Milliseconds(),
	})
	w.recount(ctx, analysisID)
	return nil
}

// recount refreshes the denormalized counters from the item rows. Counters
// are always recomputed, never incremented, so concurrent workers cannot
// drift them.
func (w *Worker) recount(ctx context.Context, analysisID string) {
	completed, failed, err := w.Repo.CountResults(ctx, analysisID)
	if err != nil {
		telemetry.Error("analysis.recount_failed", map[string]any{"analysis_id": analysisID, "error": err.Error()})
		return
	}
	if err := w.Repo.UpdateCounters(ctx, analysisID, completed, failed); err != nil {
		telemetry.Error("analysis.counter_update_failed", map[string]any{"analysis_id": analysisID, "error": err.Error()})
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
