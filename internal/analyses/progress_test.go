package analyses

import (
	"context"
	"testing"
	"time"
)

func TestTrackerDropsStaleSnapshots(t *testing.T) {
	tr := NewTracker()
	tr.Publish("an-1", ProgressSnapshot{Status: PhaseEvaluating, TotalItems: 4, CompletedItems: 2, FailedItems: 1})
	// An out-of-order snapshot with fewer settled items must not win.
	tr.Publish("an-1", ProgressSnapshot{Status: PhaseEvaluating, TotalItems: 4, CompletedItems: 1})

	snap, ok := tr.Latest("an-1")
	if !ok {
		t.Fatal("snapshot missing")
	}
	if snap.CompletedItems != 2 || snap.FailedItems != 1 {
		t.Fatalf("stale snapshot overwrote fresher one: %+v", snap)
	}

	tr.Forget("an-1")
	if _, ok := tr.Latest("an-1"); ok {
		t.Fatal("snapshot should be forgotten")
	}
}

func TestSnapshotFromRowsCountsAreAbsolute(t *testing.T) {
	repo := NewMemoryRepo()
	a := seedAnalysis(t, repo, []ItemResult{
		yesNoItem("item-1", "a"),
		yesNoItem("item-2", "b"),
		yesNoItem("item-3", "c"),
	})
	now := time.Now().UTC()
	if err := repo.SealResult(context.Background(), a.ID, "item-1", ItemStatusCompleted, map[string]any{"value": true}, "", now); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if err := repo.SealResult(context.Background(), a.ID, "item-2", ItemStatusFailed, nil, "LLM_TIMEOUT: slow", now); err != nil {
		t.Fatalf("seal: %v", err)
	}

	snap, err := snapshotFromRows(context.Background(), repo, a.ID, PhaseEvaluating, "c")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.TotalItems != 3 || snap.CompletedItems != 1 || snap.FailedItems != 1 {
		t.Fatalf("counts = %d/%d/%d", snap.TotalItems, snap.CompletedItems, snap.FailedItems)
	}
	if snap.Items["item-3"] != ItemStatusPending {
		t.Fatalf("item-3 status = %s", snap.Items["item-3"])
	}
	if snap.CurrentItem != "c" {
		t.Fatalf("currentItem = %s", snap.CurrentItem)
	}
}

func TestPhaseForStatus(t *testing.T) {
	if phaseForStatus(StatusPending) != PhaseInitializing {
		t.Fatal("pending should map to initializing")
	}
	if phaseForStatus(StatusRunning) != PhaseEvaluating {
		t.Fatal("running should map to evaluating")
	}
	if phaseForStatus(StatusCompleted) != PhaseCompleting {
		t.Fatal("completed should map to completing")
	}
}
