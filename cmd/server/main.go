package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/reformshop/backend/internal/application/cartsync"
	"github.com/reformshop/backend/internal/infrastructure/auth"
	"github.com/reformshop/backend/internal/infrastructure/cache"
	"github.com/reformshop/backend/internal/infrastructure/config"
	"github.com/reformshop/backend/internal/infrastructure/logger"
	"github.com/reformshop/backend/internal/infrastructure/persistence"
	"github.com/reformshop/backend/internal/infrastructure/storage"
	"github.com/reformshop/backend/internal/infrastructure/telemetry"
	"github.com/reformshop/backend/internal/interfaces/http/handler"
	"github.com/reformshop/backend/internal/interfaces/http/middleware"
	"github.com/reformshop/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ReformShop cart service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	// Initialize OpenTelemetry tracing
	ctx := context.Background()
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	// Connect to the remote cart database
	dbOpts := []persistence.DatabaseOption{
		persistence.WithZapLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
	}
	if tracerProvider.IsEnabled() {
		dbOpts = append(dbOpts, persistence.WithTracing())
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connected and migrated",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName))

	// Device-scoped cart cache (Redis, with optional in-memory fallback)
	storeFactory := cache.NewCartStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Sync.CacheFallback),
		cache.WithMergeLockTTL(cfg.Sync.MergeLockTTL),
	)
	cartStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create cart cache store", zap.Error(err))
	}

	// Remote cart repository and per-device sync engines
	cartRepo := persistence.NewGormCartRepository(db.DB)
	engines := cartsync.NewManager(cartStore, cartRepo, log)

	// Identity signal
	jwtService := auth.NewJWTService(cfg.JWT)

	// Reform reference image storage
	var imageStorage storage.ReformImageStorage
	s3Storage, err := storage.NewS3ReformImageStorage(&cfg.Storage,
		storage.WithS3Logger(log),
		storage.WithS3PresignExpiration(cfg.Storage.PresignExpiration),
	)
	if err != nil {
		log.Warn("S3 storage unavailable, using stub image storage", zap.Error(err))
		imageStorage = storage.NewStubReformImageStorage()
	} else {
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s3Storage.EnsureBucket(bucketCtx); err != nil {
			cancel()
			log.Warn("Failed to ensure image bucket, using stub image storage",
				zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
			imageStorage = storage.NewStubReformImageStorage()
		} else {
			cancel()
			imageStorage = s3Storage
			log.Info("Reform image storage ready", zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	// Setup gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	middleware.SetupValidator()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithOrigins(cfg.HTTP.CORSAllowOrigins))
	engine.Use(logger.GinMiddleware(log))
	if tracerProvider.IsEnabled() {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	// Route registration
	r := router.NewRouter(engine,
		router.WithGroupMiddleware(middleware.Identity(jwtService, log)),
	)
	r.Register(handler.NewCartHandler(engines, imageStorage, log))
	r.Register(handler.NewSystemHandler(engines.Ready))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// All dependencies are wired; identity transitions may now run
	engines.SetReady()
	log.Info("Cart sync engines ready")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
