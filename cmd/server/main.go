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

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/petfinder/internal/analytics"
	"github.com/zfogg/petfinder/internal/cache"
	"github.com/zfogg/petfinder/internal/config"
	"github.com/zfogg/petfinder/internal/database"
	"github.com/zfogg/petfinder/internal/handlers"
	"github.com/zfogg/petfinder/internal/indexer"
	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/metrics"
	"github.com/zfogg/petfinder/internal/middleware"
	"github.com/zfogg/petfinder/internal/petsearch"
	"github.com/zfogg/petfinder/internal/repository"
	"github.com/zfogg/petfinder/internal/search"
	"github.com/zfogg/petfinder/internal/suggestions"
	"github.com/zfogg/petfinder/internal/telemetry"
	"github.com/zfogg/petfinder/internal/validation"
	"go.uber.org/zap"
)

const serviceName = "petfinder-search"

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if envErr != nil {
		logger.Log.Info(".env file not found, using system environment variables")
	}
	logger.Log.Info("Pet search server starting", zap.String("environment", cfg.Environment))

	ctx := context.Background()

	tp, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled: failed to initialize tracer", err)
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	db, err := database.Initialize()
	if err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	if err := validation.NewServiceValidator(cfg).ValidateServices(ctx); err != nil {
		logger.FatalWithFields("Required service unavailable", err)
	}

	var transport http.RoundTripper
	if cfg.Telemetry.Enabled {
		transport = telemetry.NewTransport(nil)
	}
	searchClient, err := search.NewClient(search.ClientConfig{
		Addresses:   cfg.Elasticsearch.Addresses,
		Username:    cfg.Elasticsearch.Username,
		Password:    cfg.Elasticsearch.Password,
		MaxRetries:  cfg.Elasticsearch.MaxRetries,
		IndexPrefix: cfg.Search.IndexPrefix,
		Transport:   transport,
	})
	if err != nil {
		logger.FatalWithFields("Failed to create search client", err)
	}

	// Index creation failures are not fatal; searches report the backend
	// as unavailable until the indices exist.
	bootCtx, cancelBoot := context.WithTimeout(ctx, 30*time.Second)
	if err := searchClient.EnsureIndices(bootCtx); err != nil {
		logger.WarnWithFields("Failed to ensure search indices", err)
	} else if stale, err := searchClient.CheckIndexVersion(bootCtx, searchClient.PetsIndex()); err == nil && stale {
		logger.Log.Warn("Pets index mapping is outdated; run a rebuild", logger.WithIndex(searchClient.PetsIndex()))
	}
	cancelBoot()

	// The rebuild lock is optional; without Redis, rebuilds run unserialized.
	var locker petsearch.Locker
	redisClient, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
	if err != nil {
		logger.WarnWithFields("Redis unavailable, index rebuilds are not serialized", err)
	} else {
		defer redisClient.Close()
		locker = redisClient
	}

	analyticsEngine := analytics.NewEngine(searchClient, searchClient.AnalyticsIndex())
	svc := petsearch.NewService(petsearch.Deps{
		Query:       searchClient,
		Schema:      searchClient,
		Suggestions: suggestions.NewEngine(searchClient, searchClient.PetsIndex(), searchClient.AnalyticsIndex(), cfg.Search.SuggestTimeout),
		Analytics:   analyticsEngine,
		Locker:      locker,
		Reindexer:   indexer.New(repository.NewPetRepository(db), searchClient, cfg.Search.ReindexBatch, cfg.Search.ReindexWorkers),
		Limits: validation.Limits{
			DefaultLimit:    cfg.Search.DefaultLimit,
			MaxLimit:        cfg.Search.MaxLimit,
			MaxResultWindow: cfg.Search.MaxResultWindow,
			MaxRadiusKm:     cfg.Search.MaxRadiusKm,
		},
	})

	retention := analytics.NewRetentionJob(analyticsEngine, cfg.Analytics.RetentionDays, cfg.Analytics.CleanupInterval)
	retention.Start()
	defer retention.Stop()

	metrics.Initialize()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware(serviceName))
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-Request-ID", "X-User-ID", "X-Session-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.NewHandlers(svc, cfg.Analytics.RetentionDays).RegisterRoutes(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Pet search server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}
	svc.Wait()

	logger.Log.Info("Server exited")
}
