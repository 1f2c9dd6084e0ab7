package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"site-delivery-backend/config"
	"site-delivery-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. responses caches GET
// responses of project routes; the caller also flushes it when a session
// changes outside a request. gatherer backs /metrics; nil disables it.
func NewRouter(cfg config.ServerConfig, handler *Handler, responses *mw.ResponseCache, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// Initialize middleware
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	caching := mw.Cache(responses)

	// API group
	api := r.Group("/api")
	api.Use(mw.ActingUser(cfg.ActingUserHeader), rateLimiter)
	{
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	// Every project route shares the cache so any write flushes it.
	project := api.Group("/projects/:project_id")
	project.Use(caching)
	{
		project.GET("/vehicles", handler.ListVehicles)
		project.POST("/vehicles/unplanned", handler.CreateUnplannedVehicle)
		project.GET("/vehicles/:vehicle_id/moved-out", handler.GetMovedOut)
		project.POST("/schedule", handler.ImportSchedule)

		project.GET("/arrivals", handler.ListArrivals)
		project.POST("/arrivals", handler.StartArrival)
		project.PUT("/arrivals/:arrival_id", handler.UpdateArrival)
		project.POST("/arrivals/:arrival_id/complete", handler.CompleteArrival)
		project.GET("/arrivals/:arrival_id/items", handler.GetArrivalItems)
		project.POST("/arrivals/:arrival_id/selection", handler.ClickRow)
		project.PUT("/arrivals/:arrival_id/items/:item_id/status", handler.SetItemStatus)
		project.PUT("/arrivals/:arrival_id/items/:item_id/note", handler.SetItemNote)
		project.POST("/arrivals/:arrival_id/status", handler.SetStatusBulk)
		project.POST("/arrivals/:arrival_id/reassign", handler.Reassign)
		project.POST("/arrivals/:arrival_id/model-items", handler.AddModelItems)
		project.POST("/arrivals/:arrival_id/model-pick", handler.StartModelPick)
		project.POST("/arrivals/:arrival_id/photos", handler.UploadPhoto)
		project.GET("/arrivals/:arrival_id/photos", handler.ListPhotos)

		project.POST("/items/status", handler.ApplyStatus)
		project.GET("/items/:item_id/history", handler.GetItemHistory)
		project.DELETE("/confirmations/:confirmation_id", handler.UndoReassign)

		project.GET("/photos/:photo_id", handler.GetPhoto)
		project.DELETE("/photos/:photo_id", handler.DeletePhoto)

		project.GET("/unassigned", handler.ListUnassigned)
		project.POST("/unassigned", handler.ReportUnassigned)
		project.GET("/unassigned/:report_id/matches", handler.MatchUnassigned)
		project.POST("/unassigned/:report_id/resolve", handler.ResolveUnassigned)

		project.GET("/coloring", handler.GetColoring)
		project.POST("/coloring", handler.StartColoring)
		project.DELETE("/coloring", handler.StopColoring)
		project.GET("/model-pick", handler.GetModelPick)
		project.DELETE("/model-pick", handler.StopModelPick)

		project.GET("/report.xlsx", handler.GetReport)
	}

	return r
}
