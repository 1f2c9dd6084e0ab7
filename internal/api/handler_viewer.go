package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetColoring handles GET /api/projects/:project_id/coloring.
func (h *Handler) GetColoring(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"arrival_ids": nonNil(sess.Coloring()),
		"partition":   sess.Partition(),
	})
}

type coloringRequest struct {
	ArrivalIDs []string `json:"arrival_ids" binding:"required,min=1"`
}

// StartColoring handles POST /api/projects/:project_id/coloring.
func (h *Handler) StartColoring(c *gin.Context) {
	var req coloringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	part, err := sess.StartColoring(c.Request.Context(), req.ArrivalIDs...)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"arrival_ids": nonNil(sess.Coloring()),
		"partition":   part,
	})
}

// StopColoring handles DELETE /api/projects/:project_id/coloring. Repeated
// ?arrival_id= parameters stop those arrivals; none stops all.
func (h *Handler) StopColoring(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.StopColoring(c.Request.Context(), c.QueryArray("arrival_id")...)
	c.Status(http.StatusNoContent)
}

// GetModelPick handles GET /api/projects/:project_id/model-pick.
func (h *Handler) GetModelPick(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrivalID, active := sess.ModelPickTarget()
	c.JSON(http.StatusOK, gin.H{"active": active, "arrival_id": arrivalID})
}

// StartModelPick handles POST /api/projects/:project_id/arrivals/:arrival_id/model-pick.
// Objects selected in the viewer are added to the arrival until stopped.
func (h *Handler) StartModelPick(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrivalID := c.Param("arrival_id")
	if err := sess.StartModelPick(c.Request.Context(), arrivalID, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"active": true, "arrival_id": arrivalID})
}

// StopModelPick handles DELETE /api/projects/:project_id/model-pick.
func (h *Handler) StopModelPick(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": sess.StopModelPick()})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
