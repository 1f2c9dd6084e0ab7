package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/reconcile"
	"site-delivery-backend/internal/viewer"
)

type statusRequest struct {
	Status model.ConfirmationStatus `json:"status" binding:"required"`
}

// SetItemStatus handles PUT /api/projects/:project_id/arrivals/:arrival_id/items/:item_id/status.
func (h *Handler) SetItemStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrivalID, itemID := c.Param("arrival_id"), c.Param("item_id")
	if err := sess.SetStatus(c.Request.Context(), arrivalID, itemID, req.Status, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Ledger().Lookup(arrivalID, itemID))
}

type noteRequest struct {
	Note string `json:"note"`
}

// SetItemNote handles PUT /api/projects/:project_id/arrivals/:arrival_id/items/:item_id/note.
func (h *Handler) SetItemNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrivalID, itemID := c.Param("arrival_id"), c.Param("item_id")
	if err := sess.SetNote(c.Request.Context(), arrivalID, itemID, req.Note, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Ledger().Lookup(arrivalID, itemID))
}

// bulkStatusRequest names its targets in exactly one way: explicit item ids,
// every pending item, or the current range selection.
type bulkStatusRequest struct {
	Status     model.ConfirmationStatus `json:"status" binding:"required"`
	ItemIDs    []string                 `json:"item_ids"`
	AllPending bool                     `json:"all_pending"`
	Selected   bool                     `json:"selected"`
}

func (r bulkStatusRequest) modes() int {
	n := 0
	if len(r.ItemIDs) > 0 {
		n++
	}
	if r.AllPending {
		n++
	}
	if r.Selected {
		n++
	}
	return n
}

// SetStatusBulk handles POST /api/projects/:project_id/arrivals/:arrival_id/status.
func (h *Handler) SetStatusBulk(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.modes() != 1 {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	ctx, arrivalID := c.Request.Context(), c.Param("arrival_id")

	var (
		res reconcile.BulkResult
		err error
	)
	switch {
	case req.AllPending:
		res, err = sess.ConfirmAllPending(ctx, arrivalID, req.Status, actor(c))
	case req.Selected:
		res, err = sess.ConfirmSelected(ctx, arrivalID, req.Status, actor(c))
	default:
		res, err = sess.SetStatusBulk(ctx, arrivalID, req.ItemIDs, req.Status, actor(c))
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type massStatusRequest struct {
	Status  model.ConfirmationStatus `json:"status" binding:"required"`
	ItemIDs []string                 `json:"item_ids" binding:"required,min=1"`
}

// ApplyStatus handles POST /api/projects/:project_id/items/status, which sets
// a status on items across vehicles.
func (h *Handler) ApplyStatus(c *gin.Context) {
	var req massStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	res, err := sess.ApplyStatus(c.Request.Context(), req.ItemIDs, req.Status, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type reassignRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

// Reassign handles POST /api/projects/:project_id/arrivals/:arrival_id/reassign.
func (h *Handler) Reassign(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrivalID := c.Param("arrival_id")
	if err := sess.Reassign(c.Request.Context(), arrivalID, req.ItemID, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Ledger().Lookup(arrivalID, req.ItemID))
}

// modelItemsRequest carries either one object read from the model or a raw
// viewer selection to resolve.
type modelItemsRequest struct {
	ModelID   string                   `json:"model_id"`
	Object    *viewer.ObjectProperties `json:"object"`
	Selection []viewer.Selection       `json:"selection"`
}

// AddModelItems handles POST /api/projects/:project_id/arrivals/:arrival_id/model-items.
func (h *Handler) AddModelItems(c *gin.Context) {
	var req modelItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Object == nil) == (len(req.Selection) == 0) {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	ctx, arrivalID := c.Request.Context(), c.Param("arrival_id")

	if req.Object != nil {
		item, err := sess.AddFromModel(ctx, arrivalID, *req.Object, req.ModelID, actor(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
		return
	}

	res, err := sess.AddFromSelection(ctx, arrivalID, req.Selection, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UndoReassign handles DELETE /api/projects/:project_id/confirmations/:confirmation_id.
func (h *Handler) UndoReassign(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.UndoReassign(c.Request.Context(), c.Param("confirmation_id"), actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetItemHistory handles GET /api/projects/:project_id/items/:item_id/history.
func (h *Handler) GetItemHistory(c *gin.Context) {
	projectID, itemID := c.Param("project_id"), c.Param("item_id")
	if _, err := h.store.GetItem(c.Request.Context(), projectID, itemID); err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.store.ListItemHistory(c.Request.Context(), projectID, itemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
