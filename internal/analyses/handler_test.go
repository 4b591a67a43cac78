package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
	"github.com/HugoCL/mlh-code-check-sub000/internal/usage"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service, rubrics.Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewMemoryRepo()
	rubricRepo := rubrics.NewMemoryRepo()
	svc := &Service{
		Repo:         repo,
		Rubrics:      rubricRepo,
		Repositories: seedRepository(t),
		Usage:        usage.NewService(),
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc, rubricRepo
}

func TestHandlerCreateAnalysis(t *testing.T) {
	r, _, rubricRepo := newTestRouter(t)
	seedRubric(t, rubricRepo, "user-1", false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/repo-1/analyses",
		strings.NewReader(`{"rubricId": "rub-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got Analysis
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Status != StatusPending || got.TotalItems != 2 {
		t.Fatalf("unexpected analysis: %+v", got)
	}
}

func TestHandlerCreateAnalysisUnknownRubric(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/repo-1/analyses",
		strings.NewReader(`{"rubricId": "missing"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandlerGetAnalysisNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandlerProgressPollRateLimited(t *testing.T) {
	r, svc, rubricRepo := newTestRouter(t)
	seedRubric(t, rubricRepo, "user-1", false)
	a, err := svc.Create(context.Background(), "user-1", "repo-1", "rub-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+a.ID+"/progress", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first poll status = %d, body = %s", first.Code, first.Body.String())
	}
	var snap ProgressSnapshot
	if err := json.Unmarshal(first.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TotalItems != 2 {
		t.Fatalf("totalItems = %d, want 2", snap.TotalItems)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+a.ID+"/progress", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second poll status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}

func TestHandlerListAnalysesBadDateFilter(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses?dateFrom=yesterday", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
