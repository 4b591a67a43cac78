package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
	"github.com/HugoCL/mlh-code-check-sub000/internal/usage"
)

func seedRubric(t *testing.T, repo rubrics.Repo, userID string, template bool) rubrics.Rubric {
	t.Helper()
	now := time.Now().UTC()
	rubric := rubrics.Rubric{
		ID:         "rub-1",
		UserID:     userID,
		Name:       "Code quality",
		IsTemplate: template,
		Items: []rubrics.Item{
			{ID: "item-1", RubricID: "rub-1", Position: 0, Name: "Has tests", EvaluationKind: rubrics.KindYesNo},
			{ID: "item-2", RubricID: "rub-1", Position: 1, Name: "Readability", EvaluationKind: rubrics.KindRange,
				Config: rubrics.ItemConfig{Min: fptr(1), Max: fptr(10), Guidance: "1 worst, 10 best"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), rubric); err != nil {
		t.Fatalf("seed rubric: %v", err)
	}
	return rubric
}

func newService(t *testing.T) (*Service, *MemoryRepo, rubrics.Repo) {
	t.Helper()
	repo := NewMemoryRepo()
	rubricRepo := rubrics.NewMemoryRepo()
	svc := &Service{
		Repo:         repo,
		Rubrics:      rubricRepo,
		Repositories: seedRepository(t),
		Usage:        usage.NewService(),
	}
	return svc, repo, rubricRepo
}

func TestServiceCreateFreezesRubricItems(t *testing.T) {
	svc, repo, rubricRepo := newService(t)
	rubric := seedRubric(t, rubricRepo, "user-1", false)

	a, err := svc.Create(context.Background(), "user-1", "repo-1", rubric.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != StatusPending {
		t.Fatalf("status = %s, want pending", a.Status)
	}
	if a.TotalItems != 2 {
		t.Fatalf("totalItems = %d, want 2", a.TotalItems)
	}

	// Edit the rubric after the analysis was created.
	rubric.Items[0].Name = "Renamed criterion"
	rubric.Items = rubric.Items[:1]
	if err := rubricRepo.Update(context.Background(), rubric); err != nil {
		t.Fatalf("update rubric: %v", err)
	}

	rows, err := repo.ListResults(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("item rows = %d, want 2 (frozen at creation)", len(rows))
	}
	if rows[0].ItemName != "Has tests" && rows[1].ItemName != "Has tests" {
		t.Fatal("frozen item name changed after rubric edit")
	}
	for _, row := range rows {
		if row.Status != ItemStatusPending {
			t.Fatalf("placeholder status = %s, want pending", row.Status)
		}
	}
}

func TestServiceCreateOwnershipChecks(t *testing.T) {
	svc, _, rubricRepo := newService(t)
	seedRubric(t, rubricRepo, "someone-else", false)

	if _, err := svc.Create(context.Background(), "user-1", "repo-1", "rub-1"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("foreign rubric err = %v, want ErrAccessDenied", err)
	}
	if _, err := svc.Create(context.Background(), "user-2", "repo-1", "rub-1"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("foreign repository err = %v, want ErrAccessDenied", err)
	}
	if _, err := svc.Create(context.Background(), "user-1", "missing", "rub-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown repository err = %v, want ErrNotFound", err)
	}
}

func TestServiceCreateAllowsTemplates(t *testing.T) {
	svc, _, rubricRepo := newService(t)
	seedRubric(t, rubricRepo, "someone-else", true)

	if _, err := svc.Create(context.Background(), "user-1", "repo-1", "rub-1"); err != nil {
		t.Fatalf("template rubric should be usable by anyone: %v", err)
	}
}

func TestServiceCreateRejectsEmptyRubric(t *testing.T) {
	svc, _, rubricRepo := newService(t)
	now := time.Now().UTC()
	if err := rubricRepo.Create(context.Background(), rubrics.Rubric{
		ID: "rub-empty", UserID: "user-1", Name: "Empty", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := svc.Create(context.Background(), "user-1", "repo-1", "rub-empty"); !errors.Is(err, ErrEmptyRubric) {
		t.Fatalf("err = %v, want ErrEmptyRubric", err)
	}
}

func TestServiceGetHidesForeignAnalyses(t *testing.T) {
	svc, _, rubricRepo := newService(t)
	seedRubric(t, rubricRepo, "user-1", false)
	a, err := svc.Create(context.Background(), "user-1", "repo-1", "rub-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(context.Background(), "user-2", a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign get err = %v, want ErrNotFound", err)
	}

	got, err := svc.Get(context.Background(), "user-1", a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(got.Results))
	}
}

func TestServiceListFilters(t *testing.T) {
	svc, repo, _ := newService(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []string{StatusCompleted, StatusFailed, StatusCompleted} {
		a := Analysis{
			ID:           "an-" + string(rune('a'+i)),
			UserID:       "user-1",
			RepositoryID: "repo-1",
			RubricID:     "rub-1",
			Status:       status,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:    base,
		}
		if err := repo.Create(context.Background(), a, nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	out, err := svc.List(context.Background(), "user-1", ListFilters{Status: StatusCompleted}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("filtered len = %d, want 2", len(out))
	}
	if !out[0].CreatedAt.After(out[1].CreatedAt) {
		t.Fatal("list must be newest first")
	}

	from := base.Add(30 * time.Minute)
	out, err = svc.List(context.Background(), "user-1", ListFilters{DateFrom: &from}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("dateFrom len = %d, want 2", len(out))
	}
}

func TestServiceCreateQuotaExhausted(t *testing.T) {
	repo := NewMemoryRepo()
	rubricRepo := rubrics.NewMemoryRepo()
	usageSvc := usage.NewService()
	svc := &Service{
		Repo:         repo,
		Rubrics:      rubricRepo,
		Repositories: seedRepository(t),
		Usage:        usageSvc,
	}
	seedRubric(t, rubricRepo, "user-1", false)

	// Burn the whole quota.
	if _, err := usageSvc.Consume(context.Background(), "user-1", 50); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := svc.Create(context.Background(), "user-1", "repo-1", "rub-1"); !errors.Is(err, usage.ErrLimitReached) {
		t.Fatalf("err = %v, want ErrLimitReached", err)
	}
}

func TestServiceProgressFallsBackToPersistedRows(t *testing.T) {
	svc, repo, rubricRepo := newService(t)
	seedRubric(t, rubricRepo, "user-1", false)
	a, err := svc.Create(context.Background(), "user-1", "repo-1", "rub-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.SealResult(context.Background(), a.ID, "item-1", ItemStatusCompleted, map[string]any{"value": true}, "", time.Now().UTC()); err != nil {
		t.Fatalf("seal: %v", err)
	}

	snap, err := svc.Progress(context.Background(), "user-1", a.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if snap.Status != PhaseInitializing {
		t.Fatalf("phase = %s, want initializing for a pending analysis", snap.Status)
	}
	if snap.CompletedItems != 1 || snap.TotalItems != 2 {
		t.Fatalf("counts = %d/%d", snap.CompletedItems, snap.TotalItems)
	}
}
