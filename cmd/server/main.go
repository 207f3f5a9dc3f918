package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/application"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/config"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/run"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	trackingEvents "github.com/Kilat-Pet-Delivery/service-tracking/internal/events"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/live"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/database"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/health"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/kafka"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/logger"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/middleware"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/source"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// runStore is a run repository that can also report its health.
type runStore interface {
	run.Repository
	health.Checker
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-tracking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-tracking",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.Store),
		zap.String("sample_source", cfg.SampleSource),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open and initialize the run store
	store, err := openRunStore(cfg, log)
	if err != nil {
		log.Fatal("failed to open run store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	if err := store.Initialize(ctx); err != nil {
		log.Fatal("failed to initialize run store", zap.Error(err))
	}

	checkers := map[string]health.Checker{"run_store": store}

	// Initialize Redis for cross-instance live state
	var redisClient *redis.Client
	if cfg.RedisConfig.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = redisClient.Close() }()
		checkers["redis"] = health.CheckerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	hub := live.NewHub(redisClient, log)
	go func() {
		if err := hub.Run(ctx); err != nil && err != context.Canceled {
			log.Error("live hub error", zap.Error(err))
		}
	}()

	// Initialize Kafka producer
	var publisher application.EventPublisher
	if cfg.EventsEnabled {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = kafkaProducer
	}

	// Initialize the location sample source
	var (
		sampleSource session.SampleSource
		pushSource   *source.PushSource
	)
	switch cfg.SampleSource {
	case config.SourceKafka:
		locationSource := trackingEvents.NewLocationSampleSource(
			cfg.KafkaConfig.Brokers,
			cfg.KafkaGroupID(),
			cfg.LocationAuthorized,
			log,
		)
		defer func() { _ = locationSource.Close() }()

		go func() {
			log.Info("starting location sample consumer")
			if err := locationSource.Start(ctx); err != nil && err != context.Canceled {
				log.Error("location sample consumer error", zap.Error(err))
			}
		}()
		sampleSource = locationSource
	default:
		pushSource = source.NewPushSource(cfg.LocationAuthorized, log)
		sampleSource = pushSource
	}

	// Initialize application service
	trackingService := application.NewTrackingService(
		store,
		sampleSource,
		publisher,
		hub,
		application.TrackingOptions{
			Subscribe:       cfg.SubscribeOptions(),
			FirstFixTimeout: cfg.FirstFixTimeout,
		},
		log,
	)

	// Initialize HTTP handlers
	trackingHandler := handler.NewTrackingHandler(trackingService, pushSource)
	runHandler := handler.NewRunHandler(trackingService)
	liveHandler := handler.NewLiveHandler(hub, trackingService.LiveState, log)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler("service-tracking", checkers)
	healthHandler.RegisterRoutes(router)

	// Register routes
	trackingHandler.RegisterRoutes(&router.RouterGroup)
	runHandler.RegisterRoutes(&router.RouterGroup)
	liveHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server. Start blocks until the first fix, so the write
	// timeout has to outlast the first-fix timeout.
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FirstFixTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-tracking...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server with timeout
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	// Save an in-progress run before the store closes
	if err := trackingService.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to save active run on shutdown", zap.Error(err))
	}

	// Cancel the consumer and hub context
	cancel()

	log.Info("service-tracking stopped")
}

// openRunStore opens the configured run store. Postgres schemas are
// auto-migrated in development and migrated from files otherwise.
func openRunStore(cfg *config.ServiceConfig, log *zap.Logger) (runStore, error) {
	if cfg.Store == config.StoreBolt {
		return repository.NewBoltRunRepository(cfg.BoltPath)
	}

	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		return nil, err
	}

	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.RunRecordModel{}); err != nil {
			return nil, fmt.Errorf("failed to run auto-migration: %w", err)
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), cfg.MigrationsPath, log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return repository.NewGormRunRepository(db), nil
}
