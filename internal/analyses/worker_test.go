package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HugoCL/mlh-code-check-sub000/internal/github"
	"github.com/HugoCL/mlh-code-check-sub000/internal/llm"
	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
)

type stubEvaluator struct {
	fn func(req llm.EvalRequest) (json.RawMessage, error)
}

func (s stubEvaluator) Evaluate(_ context.Context, req llm.EvalRequest) (json.RawMessage, error) {
	return s.fn(req)
}

func seedAnalysis(t *testing.T, repo Repo, items []ItemResult) Analysis {
	t.Helper()
	now := time.Now().UTC()
	a := Analysis{
		ID:           "an-1",
		UserID:       "user-1",
		RepositoryID: "repo-1",
		RubricID:     "rub-1",
		Status:       StatusPending,
		TotalItems:   len(items),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i := range items {
		items[i].AnalysisID = a.ID
		if items[i].Status == "" {
			items[i].Status = ItemStatusPending
		}
	}
	if err := repo.Create(context.Background(), a, items); err != nil {
		t.Fatalf("seed analysis: %v", err)
	}
	return a
}

func yesNoItem(id, name string) ItemResult {
	return ItemResult{
		RubricItemID:   id,
		ItemName:       name,
		EvaluationKind: rubrics.KindYesNo,
		Config:         rubrics.ItemConfig{},
	}
}

func TestWorkerEvaluateItemSuccess(t *testing.T) {
	repo := NewMemoryRepo()
	a := seedAnalysis(t, repo, []ItemResult{yesNoItem("item-1", "Has tests")})

	w := &Worker{
		Repo: repo,
		Evaluator: stubEvaluator{fn: func(llm.EvalRequest) (json.RawMessage, error) {
			return json.RawMessage(`{"value": true, "justification": "go test files present"}`), nil
		}},
		Retry: fastRetryPolicy(),
	}

	if err := w.EvaluateItem(context.Background(), a.ID, yesNoItem("item-1", "Has tests").Spec(), github.Snapshot{}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	rows, err := repo.ListResults(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if rows[0].Status != ItemStatusCompleted {
		t.Fatalf("status = %s, want completed", rows[0].Status)
	}
	if rows[0].Result["value"] != true {
		t.Fatalf("result = %v", rows[0].Result)
	}
	if rows[0].CompletedAt == nil {
		t.Fatal("completedAt not set")
	}

	got, err := repo.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.CompletedItems != 1 || got.FailedItems != 0 {
		t.Fatalf("counters = %d/%d, want 1/0", got.CompletedItems, got.FailedItems)
	}
}

func TestWorkerEvaluateItemFailureIsRecorded(t *testing.T) {
	repo := NewMemoryRepo()
	a := seedAnalysis(t, repo, []ItemResult{yesNoItem("item-1", "Has tests")})

	w := &Worker{
		Repo: repo,
		Evaluator: stubEvaluator{fn: func(llm.EvalRequest) (json.RawMessage, error) {
			return json.RawMessage(`{"oops": 1}`), nil
		}},
		Retry: fastRetryPolicy(),
	}

	if err := w.EvaluateItem(context.Background(), a.ID, yesNoItem("item-1", "Has tests").Spec(), github.Snapshot{}); err == nil {
		t.Fatal("expected evaluation error")
	}

	rows, _ := repo.ListResults(context.Background(), a.ID)
	if rows[0].Status != ItemStatusFailed {
		t.Fatalf("status = %s, want failed", rows[0].Status)
	}
	if !strings.HasPrefix(rows[0].Error, ErrorCodeLLMSchemaMismatch) {
		t.Fatalf("error %q should carry the schema mismatch code", rows[0].Error)
	}
	if rows[0].Result != nil {
		t.Fatal("failed rows must not carry a result payload")
	}

	got, _ := repo.GetByID(context.Background(), a.ID)
	if got.CompletedItems != 0 || got.FailedItems != 1 {
		t.Fatalf("counters = %d/%d, want 0/1", got.CompletedItems, got.FailedItems)
	}
}

func TestWorkerRetriesTransientEvaluatorError(t *testing.T) {
	repo := NewMemoryRepo()
	a := seedAnalysis(t, repo, []ItemResult{yesNoItem("item-1", "Has tests")})

	calls := 0
	w := &Worker{
		Repo: repo,
		Evaluator: stubEvaluator{fn: func(llm.EvalRequest) (json.RawMessage, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("openai request timeout")
			}
			return json.RawMessage(`{"value": false}`), nil
		}},
		Retry: fastRetryPolicy(),
	}

	if err := w.EvaluateItem(context.Background(), a.ID, yesNoItem("item-1", "Has tests").Spec(), github.Snapshot{}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("evaluator calls = %d, want 2", calls)
	}
	rows, _ := repo.ListResults(context.Background(), a.ID)
	if rows[0].Status != ItemStatusCompleted {
		t.Fatalf("status = %s, want completed after retry", rows[0].Status)
	}
}

func TestSealResultIsWriteOnce(t *testing.T) {
	repo := NewMemoryRepo()
	a := seedAnalysis(t, repo, []ItemResult{yesNoItem("item-1", "Has tests")})

	now := time.Now().UTC()
	if err := repo.SealResult(context.Background(), a.ID, "item-1", ItemStatusCompleted, map[string]any{"value": true}, "", now); err != nil {
		t.Fatalf("first seal: %v", err)
	}
	err := repo.SealResult(context.Background(), a.ID, "item-1", ItemStatusFailed, nil, "late failure", now)
	if !errors.Is(err, ErrResultSealed) {
		t.Fatalf("second seal err = %v, want ErrResultSealed", err)
	}

	rows, _ := repo.ListResults(context.Background(), a.ID)
	if rows[0].Status != ItemStatusCompleted {
		t.Fatal("sealed row must not change")
	}
	if err := repo.MarkProcessing(context.Background(), a.ID, "item-1"); !errors.Is(err, ErrResultSealed) {
		t.Fatalf("mark processing on sealed row err = %v, want ErrResultSealed", err)
	}
}
