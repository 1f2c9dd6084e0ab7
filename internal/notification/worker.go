package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"site-delivery-backend/internal/logger"
	"site-delivery-backend/internal/metrics"
	"site-delivery-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert reports an arrival that was completed with missing items.
type Alert struct {
	ProjectID   string
	ArrivalID   string
	VehicleCode string
	ArrivalDate string
	Missing     int
}

// Payload is the JSON body pushed to subscribers.
type Payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	ProjectID string `json:"project_id"`
	ArrivalID string `json:"arrival_id"`
}

func (a Alert) payload() Payload {
	return Payload{
		Title:     fmt.Sprintf("Vehicle %s: %d missing", a.VehicleCode, a.Missing),
		Body:      fmt.Sprintf("Arrival of %s on %s was completed with %d missing item(s).", a.VehicleCode, a.ArrivalDate, a.Missing),
		ProjectID: a.ProjectID,
		ArrivalID: a.ArrivalID,
	}
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log logger.Logger, m *metrics.Metrics) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*8),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
		metrics: m,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", "worker", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues an alert. Alerts are dropped when the queue is full.
func (wp *WorkerPool) Dispatch(alert Alert) {
	select {
	case wp.jobs <- alert:
	default:
		wp.log.Warn("notification queue full, dropping alert", "project_id", alert.ProjectID, "arrival_id", alert.ArrivalID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Alert {
	return wp.jobs
}

// sendAlert pushes alert to every subscriber of its project.
func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).
		Where("project_id = ?", alert.ProjectID).
		Find(&subscriptions).Error; err != nil {
		wp.log.Error("failed to fetch subscriptions", "project_id", alert.ProjectID, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(alert.payload())
	if err != nil {
		wp.log.Error("failed to encode alert", "error", err)
		return
	}

	wp.log.Info("sending missing-items alert", "project_id", alert.ProjectID, "arrival_id", alert.ArrivalID, "subscribers", len(subscriptions))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
		return
	}
	if resp.StatusCode < 300 {
		wp.metrics.NotificationsSent.Inc()
	}
}
