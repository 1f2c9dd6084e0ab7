package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"site-delivery-backend/internal/schedule"
)

// ListVehicles handles GET /api/projects/:project_id/vehicles.
func (h *Handler) ListVehicles(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot().Vehicles)
}

type unplannedVehicleRequest struct {
	Code    string `json:"code" binding:"required"`
	Date    string `json:"date"`
	Factory string `json:"factory"`
}

// CreateUnplannedVehicle handles POST /api/projects/:project_id/vehicles/unplanned.
func (h *Handler) CreateUnplannedVehicle(c *gin.Context) {
	var req unplannedVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	vehicle, err := sess.CreateUnplannedVehicle(c.Request.Context(), req.Code, req.Date, req.Factory)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

// ImportSchedule handles POST /api/projects/:project_id/schedule. The body is
// a multipart form with the workbook in the "file" field.
func (h *Handler) ImportSchedule(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c)
		return
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c)
		return
	}
	defer f.Close()

	parsed, err := schedule.Read(f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	result, err := sess.ImportSchedule(c.Request.Context(), parsed.Lines)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vehicles_upserted": result.VehiclesUpserted,
		"items_upserted":    result.ItemsUpserted,
		"total_rows":        parsed.TotalRows,
		"skipped":           parsed.Skipped,
	})
}

// GetMovedOut handles GET /api/projects/:project_id/vehicles/:vehicle_id/moved-out.
func (h *Handler) GetMovedOut(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if _, found := sess.Snapshot().Vehicle(c.Param("vehicle_id")); !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, sess.MovedOut(c.Param("vehicle_id")))
}
