package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"site-delivery-backend/internal/reconcile"
)

// UploadPhoto handles POST /api/projects/:project_id/arrivals/:arrival_id/photos.
// The multipart form carries the image in "file" and an optional "item_id".
func (h *Handler) UploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c)
		return
	}
	defer f.Close()

	sess, ok := h.session(c)
	if !ok {
		return
	}
	upload := reconcile.Upload{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        f,
	}
	if itemID := c.PostForm("item_id"); itemID != "" {
		upload.ItemID = &itemID
	}
	photo, err := sess.UploadPhoto(c.Request.Context(), c.Param("arrival_id"), upload, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, photo)
}

// ListPhotos handles GET /api/projects/:project_id/arrivals/:arrival_id/photos.
// Without ?item_id= the arrival's general photos are listed.
func (h *Handler) ListPhotos(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	arrivalID := c.Param("arrival_id")
	if _, err := sess.Arrival(arrivalID); err != nil {
		h.fail(c, err)
		return
	}
	photos := sess.Photos(arrivalID, c.Query("item_id"))
	if photos == nil {
		c.JSON(http.StatusOK, []struct{}{})
		return
	}
	c.JSON(http.StatusOK, photos)
}

// GetPhoto handles GET /api/projects/:project_id/photos/:photo_id and streams
// the stored image.
func (h *Handler) GetPhoto(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	photo, err := sess.OpenPhoto(c.Request.Context(), c.Param("photo_id"), &buf)
	if err != nil {
		h.fail(c, err)
		return
	}
	contentType := photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `inline; filename="`+photo.FileName+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// DeletePhoto handles DELETE /api/projects/:project_id/photos/:photo_id.
func (h *Handler) DeletePhoto(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.DeletePhoto(c.Request.Context(), c.Param("photo_id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
