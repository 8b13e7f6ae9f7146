package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/plumefeed/backend/internal/auditlog"
	"github.com/plumefeed/backend/internal/classifier"
	"github.com/plumefeed/backend/internal/config"
	"github.com/plumefeed/backend/internal/counters"
	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/logger"
	"github.com/plumefeed/backend/internal/metrics"
	"github.com/plumefeed/backend/internal/moderation"
	"github.com/plumefeed/backend/internal/notifications"
	"github.com/plumefeed/backend/internal/pipeline"
	"github.com/plumefeed/backend/internal/storage"
	"github.com/plumefeed/backend/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatalf("GEMINI_API_KEY environment variable not set")
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Plume pipeline server starting ===")

	metrics.Initialize()

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "plume-pipeline",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
		SamplingRate: 1.0,
	})
	if err != nil {
		logger.Log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := docstore.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	gemini, err := classifier.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ClassifierTimeout)
	if err != nil {
		logger.Log.Fatal("Failed to initialize classifier", zap.Error(err))
	}

	var photos storage.Resolver
	if cfg.AWSBucket != "" {
		photos, err = storage.NewS3Resolver(cfg.AWSRegion, cfg.AWSBucket)
		if err != nil {
			logger.Log.Fatal("Failed to initialize photo storage", zap.Error(err))
		}
	} else {
		logger.Log.Warn("AWS_BUCKET not set; photos resolve as missing and fall through to guardrail review")
		photos = storage.MissingResolver{}
	}

	notify := notifications.NewService(store)
	dispatcher := pipeline.NewDispatcher(pipeline.Deps{
		Engine:   moderation.NewEngine(store, gemini, gemini, photos, notify),
		Counters: counters.NewMaintainer(store),
		Audit:    auditlog.NewRecorder(store),
		Notify:   notify,
	})

	listener := events.NewListener(store.Database(), dispatcher, pipeline.Collections())
	listenerDone := make(chan error, 1)
	go func() {
		listenerDone <- listener.Run(ctx)
	}()

	// Ops surface: health and metrics only, no API
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		logger.Log.Info("Ops server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Ops server failed", zap.Error(err))
		}
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutdown signal received")
	case err := <-listenerDone:
		if err != nil {
			logger.Log.Error("Change stream listener stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("Ops server shutdown", zap.Error(err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Log.Warn("Mongo disconnect", zap.Error(err))
	}
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("Tracer shutdown", zap.Error(err))
		}
	}

	logger.Log.Info("=== Plume pipeline server stopped ===")
	_ = os.Stdout.Sync()
}
