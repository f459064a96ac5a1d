package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meetsync/models"
	"meetsync/services/constraints"
)

// ConstraintHandler manages per-participant scheduling rules over HTTP,
// alongside the conversational path that extracts them from replies.
type ConstraintHandler struct {
	Engine constraints.Engine
}

func NewConstraintHandler(engine constraints.Engine) *ConstraintHandler {
	return &ConstraintHandler{Engine: engine}
}

// AddConstraintHandler appends a constraint for an owner.
func (h *ConstraintHandler) AddConstraintHandler(c *gin.Context) {
	var input struct {
		Owner string                `json:"owner" binding:"required"`
		Kind  models.ConstraintKind `json:"kind" binding:"required"`
		Rule  models.TimeWindowRule `json:"rule" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if input.Kind != models.ConstraintHard && input.Kind != models.ConstraintSoft {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be hard or soft"})
		return
	}

	id, err := h.Engine.AddConstraint(c.Request.Context(), input.Owner, input.Kind, input.Rule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add constraint", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// DeleteConstraintHandler removes a stored constraint by ID.
func (h *ConstraintHandler) DeleteConstraintHandler(c *gin.Context) {
	owner := c.Param("owner")
	id := c.Param("id")
	if owner == "" || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing owner or id"})
		return
	}

	if err := h.Engine.RemoveConstraint(c.Request.Context(), owner, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete constraint", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListConstraintsHandler returns the active constraints for an owner.
func (h *ConstraintHandler) ListConstraintsHandler(c *gin.Context) {
	owner := c.Param("owner")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing owner"})
		return
	}

	active, err := h.Engine.ListActive(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list constraints", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"constraints": active})
}
