package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"

	"site-delivery-backend/config"
	"site-delivery-backend/internal/api"
	"site-delivery-backend/internal/audit"
	"site-delivery-backend/internal/blob"
	"site-delivery-backend/internal/db"
	"site-delivery-backend/internal/logger"
	"site-delivery-backend/internal/metrics"
	"site-delivery-backend/internal/mw"
	"site-delivery-backend/internal/notification"
	"site-delivery-backend/internal/reconcile"
	"site-delivery-backend/internal/store"
	"site-delivery-backend/internal/viewer"
	"site-delivery-backend/internal/views"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	// Setup logger
	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Development)
	defer log.Sync()
	log.Info("configuration loaded", "path", configPath)
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	log.Info("database initialized", "driver", cfg.Database.Driver)

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	m := metrics.NewMetrics(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	auditPool := audit.NewPool(cfg.Audit.Workers, cfg.Audit.QueueSize, appStore, log.With("component", "audit"), m)
	auditPool.Start(ctx)

	var (
		webpushOptions *webpush.Options
		notifier       reconcile.Notifier
	)
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, log.With("component", "notification"), m)
		pool.Start(ctx)
		notifier = pool
	} else {
		log.Warn("VAPID keys are not configured; missing-item alerts are disabled")
	}

	var blobs blob.Storage
	if cfg.Blob.MongoURI != "" {
		gridfs, err := blob.NewGridFS(ctx, cfg.Blob)
		if err != nil {
			log.Fatal("failed to connect photo storage", "error", err)
		}
		defer gridfs.Close(context.Background())
		blobs = gridfs
	} else {
		log.Warn("blob.mongo_uri is not set; photos are kept in memory")
		blobs = blob.NewMemory(cfg.Blob.PublicBaseURL)
	}
	namer, err := blob.NewNamer(cfg.Blob.NodeID)
	if err != nil {
		log.Fatal("failed to create photo namer", "error", err)
	}

	var client viewer.Client = viewer.Nop{}
	if cfg.Viewer.Enabled {
		client = viewer.NewBridge(cfg.Viewer, log.With("component", "viewer"))
		log.Info("viewer bridge enabled", "url", cfg.Viewer.BridgeURL)
	}

	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	responses := mw.NewResponseCache(ttl)

	sessions := reconcile.NewRegistry(reconcile.Deps{
		Store:        appStore,
		Audit:        auditPool,
		Blobs:        blobs,
		Namer:        namer,
		Viewer:       client,
		Notifier:     notifier,
		Palette:      views.PaletteFromConfig(cfg.Viewer.Palette),
		BatchSize:    cfg.Viewer.PaintBatchSize,
		PollInterval: cfg.Viewer.PollInterval,
		Logger:       log,
		Metrics:      m,
		Changed:      func(string) { responses.Flush() },
	})

	// Initialize router
	handler := api.NewHandler(appStore, sessions, webpushOptions, log.With("component", "api"), cfg.Server.MaxUploadMB)
	router := api.NewRouter(cfg.Server, handler, responses, prometheus.DefaultGatherer)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe", "error", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	log.Info("shutdown signal received, stopping services")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server Shutdown", "error", err)
	}
	sessions.Close()
	auditPool.Stop()

	log.Info("server gracefully stopped")
}
