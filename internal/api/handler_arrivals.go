package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"site-delivery-backend/internal/ledger"
	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/reconcile"
	"site-delivery-backend/internal/views"
)

// arrivalSummary is one line of the arrivals list.
type arrivalSummary struct {
	model.ArrivedVehicle
	VehicleCode string        `json:"vehicle_code"`
	Counts      ledger.Counts `json:"counts"`
	Coloring    bool          `json:"coloring"`
}

// ListArrivals handles GET /api/projects/:project_id/arrivals. Arrivals are
// newest first, each with the status counts of its visible rows.
func (h *Handler) ListArrivals(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	snap := sess.Snapshot()
	colored := make(map[string]bool)
	for _, id := range sess.Coloring() {
		colored[id] = true
	}

	out := make([]arrivalSummary, 0, len(snap.Arrivals))
	for _, a := range snap.Arrivals {
		vehicle, _ := snap.Vehicle(a.VehicleID)
		out = append(out, arrivalSummary{
			ArrivedVehicle: a,
			VehicleCode:    vehicle.Code,
			Counts:         views.Tally(snap.Rows(a, "")),
			Coloring:       colored[a.ID],
		})
	}
	c.JSON(http.StatusOK, out)
}

type startArrivalRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required"`
	Date      string `json:"date"`
}

// StartArrival handles POST /api/projects/:project_id/arrivals. It answers
// 201 when the arrival was created and 200 when it already existed.
func (h *Handler) StartArrival(c *gin.Context) {
	var req startArrivalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrival, created, err := sess.StartArrival(c.Request.Context(), req.VehicleID, req.Date, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, arrival)
}

// UpdateArrival handles PUT /api/projects/:project_id/arrivals/:arrival_id.
func (h *Handler) UpdateArrival(c *gin.Context) {
	var req reconcile.Details
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrivalID := c.Param("arrival_id")
	if err := sess.UpdateArrival(c.Request.Context(), arrivalID, req); err != nil {
		h.fail(c, err)
		return
	}
	arrival, err := sess.Arrival(arrivalID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, arrival)
}

// CompleteArrival handles POST /api/projects/:project_id/arrivals/:arrival_id/complete.
func (h *Handler) CompleteArrival(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	done, err := sess.CompleteArrival(c.Request.Context(), c.Param("arrival_id"), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"completed":       done.Completed,
		"items_delivered": done.ItemsDelivered,
	})
}

// GetArrivalItems handles GET /api/projects/:project_id/arrivals/:arrival_id/items.
// The optional status query narrows the rows; ordinals stay those of the
// full list.
func (h *Handler) GetArrivalItems(c *gin.Context) {
	filter, ok := statusFilter(c)
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrival, err := sess.Arrival(c.Param("arrival_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	snap := sess.Snapshot()
	rows := snap.Rows(arrival, filter)
	c.JSON(http.StatusOK, gin.H{
		"arrival":  arrival,
		"counts":   views.Tally(snap.Rows(arrival, "")),
		"rows":     rows,
		"selected": sess.Selection(arrival.ID, filter),
	})
}

type clickRequest struct {
	ItemID string                   `json:"item_id" binding:"required"`
	Shift  bool                     `json:"shift"`
	Filter model.ConfirmationStatus `json:"filter"`
}

// ClickRow handles POST /api/projects/:project_id/arrivals/:arrival_id/selection.
func (h *Handler) ClickRow(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Filter != "" && !req.Filter.Valid()) {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	selected, err := sess.Click(c.Request.Context(), c.Param("arrival_id"), req.ItemID, req.Shift, req.Filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	if selected == nil {
		selected = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"selected": selected})
}
