package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"site-delivery-backend/internal/reconcile"
)

// ListUnassigned handles GET /api/projects/:project_id/unassigned.
func (h *Handler) ListUnassigned(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	reports, err := sess.ListUnassigned(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// ReportUnassigned handles POST /api/projects/:project_id/unassigned.
func (h *Handler) ReportUnassigned(c *gin.Context) {
	var req reconcile.Report
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	report, err := sess.ReportUnassigned(c.Request.Context(), req, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// MatchUnassigned handles GET /api/projects/:project_id/unassigned/:report_id/matches.
func (h *Handler) MatchUnassigned(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	items, err := sess.MatchUnassigned(c.Request.Context(), c.Param("report_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type resolveRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

// ResolveUnassigned handles POST /api/projects/:project_id/unassigned/:report_id/resolve.
// The chosen item is confirmed on its vehicle's latest arrival.
func (h *Handler) ResolveUnassigned(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrival, err := sess.ResolveUnassigned(c.Request.Context(), c.Param("report_id"), req.ItemID, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"arrival": arrival})
}
