package analyses

import (
	"context"
	"sync"
)

// Progress phases reported while a run is in flight.
const (
	PhaseInitializing = "initializing"
	PhaseFetchingRepo = "fetching_repo"
	PhaseEvaluating   = "evaluating"
	PhaseCompleting   = "completing"
)

// ProgressSnapshot is a point-in-time view of a running analysis. Counters
// come from an absolute recount of the item rows, so out-of-order delivery
// of snapshots can never make progress appear to move backwards by more
// than the snapshots themselves are stale.
type ProgressSnapshot struct {
	Status         string            `json:"status"`
	TotalItems     int               `json:"totalItems"`
	CompletedItems int               `json:"completedItems"`
	FailedItems    int               `json:"failedItems"`
	CurrentItem    string            `json:"currentItem,omitempty"`
	Items          map[string]string `json:"items"`
}

// Publisher receives progress snapshots as a run proceeds.
type Publisher interface {
	Publish(analysisID string, snap ProgressSnapshot)
}

// Tracker keeps the latest snapshot per analysis for the polling endpoint.
type Tracker struct {
	mu     sync.RWMutex
	latest map[string]ProgressSnapshot
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{latest: make(map[string]ProgressSnapshot)}
}

// Publish stores the snapshot. A snapshot whose settled count is lower than
// the stored one is stale and dropped.
func (t *Tracker) Publish(analysisID string, snap ProgressSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.latest[analysisID]; ok {
		if prev.CompletedItems+prev.FailedItems > snap.CompletedItems+snap.FailedItems {
			return
		}
	}
	t.latest[analysisID] = snap
}

// Latest returns the stored snapshot for an analysis, if any.
func (t *Tracker) Latest(analysisID string) (ProgressSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.latest[analysisID]
	return snap, ok
}

// Forget drops the stored snapshot once a run is terminal and persisted.
func (t *Tracker) Forget(analysisID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.latest, analysisID)
}

var _ Publisher = (*Tracker)(nil)

// snapshotFromRows builds a full snapshot by re-reading the persisted item
// rows. Used both by the scheduler between item completions and by the
// polling endpoint when no in-memory snapshot exists.
func snapshotFromRows(ctx context.Context, repo Repo, analysisID, phase, currentItem string) (ProgressSnapshot, error) {
	rows, err := repo.ListResults(ctx, analysisID)
	if err != nil {
		return ProgressSnapshot{}, err
	}
	snap := ProgressSnapshot{
		Status:      phase,
		TotalItems:  len(rows),
		CurrentItem: currentItem,
		Items:       make(map[string]string, len(rows)),
	}
	for _, row := range rows {
		snap.Items[row.RubricItemID] = row.Status
		switch row.Status {
		case ItemStatusCompleted:
			snap.CompletedItems++
		case ItemStatusFailed:
			snap.FailedItems++
		}
	}
	return snap, nil
}

// phaseForStatus maps a persisted analysis status to a progress phase for
// polls that arrive when no live snapshot is available.
func phaseForStatus(status string) string {
	switch status {
	case StatusPending:
		return PhaseInitializing
	case StatusRunning:
		return PhaseEvaluating
	default:
		return PhaseCompleting
	}
}
