package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server/middleware"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server/respond"
	"github.com/HugoCL/mlh-code-check-sub000/internal/usage"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		Svc:     svc,
		limiter: newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/repositories/:id/analyses", h.createAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/progress", h.getProgress)
}

type createAnalysisRequest struct {
	RubricID string `json:"rubricId"`
}

func (h *Handler) createAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	repositoryID := c.Param("id")

	var req createAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Svc.Create(ctx, userID, repositoryID, req.RubricID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "repository or rubric not found", nil)
		case errors.Is(err, ErrAccessDenied):
			respond.Error(c, http.StatusForbidden, "access_denied", "resource belongs to another user", nil)
		case errors.Is(err, ErrEmptyRubric):
			respond.Error(c, http.StatusBadRequest, "validation_error", "rubric has no items", nil)
		case errors.Is(err, usage.ErrLimitReached):
			respond.Error(c, http.StatusTooManyRequests, "limit_reached", "analysis quota exhausted", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create analysis", nil)
		}
		return
	}
	respond.JSON(c, http.StatusAccepted, analysis)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	filters := ListFilters{
		RepositoryID: strings.TrimSpace(c.Query("repositoryId")),
		RubricID:     strings.TrimSpace(c.Query("rubricId")),
		Status:       strings.TrimSpace(c.Query("status")),
	}
	if from := strings.TrimSpace(c.Query("dateFrom")); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "dateFrom must be RFC 3339", nil)
			return
		}
		filters.DateFrom = &t
	}
	if to := strings.TrimSpace(c.Query("dateTo")); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "dateTo must be RFC 3339", nil)
			return
		}
		filters.DateTo = &t
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	out, err := h.Svc.List(c.Request.Context(), userID, filters, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	if out == nil {
		out = []Analysis{}
	}
	respond.OK(c, out)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	analysis, err := h.Svc.Get(c.Request.Context(), userID, analysisID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis", nil)
		return
	}
	respond.OK(c, analysis)
}

func (h *Handler) getProgress(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	if !h.limiter.Allow(userID, analysisID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "poll at most once per second", nil)
		return
	}

	snap, err := h.Svc.Progress(c.Request.Context(), userID, analysisID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load progress", nil)
		return
	}
	respond.OK(c, snap)
}
