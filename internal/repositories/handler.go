package repositories

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server/middleware"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the repositories service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches repository routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/repositories", h.createRepository)
	rg.GET("/repositories", h.listRepositories)
	rg.GET("/repositories/:id", h.getRepository)
	rg.DELETE("/repositories/:id", h.deleteRepository)
}

type repositoryRequest struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	DefaultBranch string `json:"defaultBranch"`
}

func (h *Handler) createRepository(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req repositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	repo, err := h.Svc.Create(c.Request.Context(), userID, req.Owner, req.Name, req.DefaultBranch)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	respond.JSON(c, http.StatusCreated, repo)
}

func (h *Handler) listRepositories(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	out, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list repositories", nil)
		return
	}
	respond.JSON(c, http.StatusOK, out)
}

func (h *Handler) getRepository(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	repo, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondRepositoryError(c, err, "failed to fetch repository")
		return
	}
	respond.JSON(c, http.StatusOK, repo)
}

func (h *Handler) deleteRepository(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if err := h.Svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondRepositoryError(c, err, "failed to delete repository")
		return
	}
	c.Status(http.StatusNoContent)
}

func respondRepositoryError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "repository not found", nil)
	case errors.Is(err, ErrAccessDenied):
		respond.Error(c, http.StatusForbidden, "access_denied", "repository does not belong to caller", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
