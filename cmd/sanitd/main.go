package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"sanitization-status-backend/config"
	"sanitization-status-backend/internal/api"
	"sanitization-status-backend/internal/clock"
	"sanitization-status-backend/internal/db"
	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/ingest"
	"sanitization-status-backend/internal/metrics"
	"sanitization-status-backend/internal/mw"
	"sanitization-status-backend/internal/notification"
	"sanitization-status-backend/internal/scheduler"
	"sanitization-status-backend/internal/store"
)

func main() {
	config.LoadEnv(".env")

	// Setup logger
	logger := log.New(os.Stdout, "sanitization-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	state, err := appStore.LoadState(ctx)
	if err != nil {
		logger.Fatalf("failed to load persisted state: %v", err)
	}

	recorder := metrics.New()
	cacheStore := cache.New(cfg.Server.CacheTTL, 2*cfg.Server.CacheTTL)
	persister := store.NewPersister(appStore, cfg.WorkerPool.QueueSize)
	listeners := []engine.Listener{persister, mw.NewFlusher(cacheStore), recorder}

	var webpushOptions *webpush.Options
	var workerPool *notification.WorkerPool
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool = notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions)
		listeners = append(listeners, workerPool)
	} else {
		logger.Println("VAPID keys are not configured; web push is disabled")
	}

	settings := cfg.Engine.Settings()
	if state.Settings != nil {
		logger.Println("using settings saved at runtime instead of the config file")
		settings = *state.Settings
	}

	eng, err := engine.New(
		engine.WithLogger(logger),
		engine.WithSettings(settings),
		engine.WithAlertRetention(cfg.Engine.AlertRetention),
		engine.WithListener(listeners...),
	)
	if err != nil {
		logger.Fatalf("failed to create engine: %v", err)
	}

	persister.Start(ctx)
	if workerPool != nil {
		workerPool.Start(ctx)
	}

	eng.Restore(state.Stations, state.Records, state.Alerts)
	recorder.Bind(eng)
	logger.Printf("engine restored with %d stations", len(state.Stations))

	schedulerSvc := scheduler.NewService(cfg.Scheduler, eng, clock.Real{}, recorder)
	go schedulerSvc.Run(ctx)

	if cfg.MQTT.Enabled {
		subscriber := ingest.NewSubscriber(cfg.MQTT, eng, ingest.WithObserver(recorder), ingest.WithLogger(logger))
		go func() {
			if err := subscriber.Run(ctx); err != nil {
				logger.Printf("detection ingest stopped: %v", err)
			}
		}()
	}

	// Initialize router
	handler := api.NewHandler(eng, appStore, webpushOptions, clock.Real{})
	router := api.NewRouter(handler, api.RouterOptions{
		Server:    cfg.Server,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		Cache:     cacheStore,
		Metrics:   recorder.Handler(),
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	// Stop background work, then wait for queued writes to land.
	cancel()
	select {
	case <-persister.Done():
	case <-shutdownCtx.Done():
		logger.Println("timed out waiting for pending writes")
	}

	logger.Println("Server gracefully stopped")
}
