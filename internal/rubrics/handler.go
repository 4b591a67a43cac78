package rubrics

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server/middleware"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the rubrics service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches rubric routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rubrics", h.createRubric)
	rg.GET("/rubrics", h.listRubrics)
	rg.GET("/rubrics/:id", h.getRubric)
	rg.PUT("/rubrics/:id", h.updateRubric)
	rg.DELETE("/rubrics/:id", h.deleteRubric)
}

type rubricRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Items       []ItemInput `json:"items"`
}

func (h *Handler) createRubric(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req rubricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	rubric, err := h.Svc.Create(c.Request.Context(), userID, req.Name, req.Description, req.Items)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create rubric", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, rubric)
}

func (h *Handler) listRubrics(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	out, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list rubrics", nil)
		return
	}
	respond.JSON(c, http.StatusOK, out)
}

func (h *Handler) getRubric(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rubric, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondRubricError(c, err, "failed to fetch rubric")
		return
	}
	respond.JSON(c, http.StatusOK, rubric)
}

func (h *Handler) updateRubric(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req rubricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	rubric, err := h.Svc.Update(c.Request.Context(), userID, c.Param("id"), req.Name, req.Description, req.Items)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respondRubricError(c, err, "failed to update rubric")
		return
	}
	respond.JSON(c, http.StatusOK, rubric)
}

func (h *Handler) deleteRubric(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if err := h.Svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondRubricError(c, err, "failed to delete rubric")
		return
	}
	c.Status(http.StatusNoContent)
}

func respondRubricError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "rubric not found", nil)
	case errors.Is(err, ErrAccessDenied):
		respond.Error(c, http.StatusForbidden, "access_denied", "rubric does not belong to caller", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
