package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"site-delivery-backend/internal/blob"
	"site-delivery-backend/internal/model"
	"site-delivery-backend/internal/reconcile"
)

// fail maps a session or store error to a response.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case reconcile.IsPrecondition(err):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case reconcile.IsInvalid(err):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

// statusFilter reads the optional ?status= filter of item lists.
func statusFilter(c *gin.Context) (model.ConfirmationStatus, bool) {
	status := model.ConfirmationStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c)
		return "", false
	}
	return status, true
}
