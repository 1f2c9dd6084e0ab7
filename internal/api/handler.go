package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"site-delivery-backend/internal/logger"
	"site-delivery-backend/internal/mw"
	"site-delivery-backend/internal/reconcile"
	"site-delivery-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	sessions  *reconcile.Registry
	webpush   *webpush.Options
	log       logger.Logger
	maxUpload int64
}

// NewHandler creates a new API handler. maxUploadMB caps photo and schedule
// uploads.
func NewHandler(s store.Store, sessions *reconcile.Registry, webpushOptions *webpush.Options, log logger.Logger, maxUploadMB int) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &Handler{
		store:     s,
		sessions:  sessions,
		webpush:   webpushOptions,
		log:       log,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

// session returns the reconciliation session of the request's project. On
// failure the response is already written.
func (h *Handler) session(c *gin.Context) (*reconcile.Session, bool) {
	sess, err := h.sessions.Session(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return sess, true
}

func actor(c *gin.Context) string {
	return mw.Actor(c)
}
