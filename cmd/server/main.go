package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/photo-onboarding/internal/config"
	"github.com/yourorg/photo-onboarding/internal/events"
	"github.com/yourorg/photo-onboarding/internal/handler"
	"github.com/yourorg/photo-onboarding/internal/middleware"
	"github.com/yourorg/photo-onboarding/internal/probe"
	"github.com/yourorg/photo-onboarding/internal/repository"
	"github.com/yourorg/photo-onboarding/internal/service"
	"github.com/yourorg/photo-onboarding/internal/storage"
	"github.com/yourorg/photo-onboarding/internal/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	store, err := storage.NewLocalStorage(&cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	constraints, err := validator.NewConstraints(cfg.Upload.MinWidth, cfg.Upload.MinHeight, cfg.Upload.MaxFileSize)
	if err != nil {
		logger.Fatal("Invalid upload constraints", zap.Error(err))
	}

	// Initialize Kafka producer (if enabled)
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.Topic, logger)
		logger.Info("Initialized Kafka producer",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	photoRepo := repository.NewPhotoRepository(logger)
	photoService := service.NewPhotoService(
		store,
		photoRepo,
		probe.NewImageProber(logger),
		constraints,
		cfg.Crop,
		publisher,
		logger,
	)
	photoHandler := handler.NewPhotoHandler(photoService, cfg.Upload.MaxFileSize, logger)
	csrf := middleware.NewCSRF(cfg.CSRF, logger)

	router := setupRouter(cfg, store, photoHandler, csrf, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := publisher.Close(); err != nil {
		logger.Warn("Failed to close event publisher", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func setupRouter(
	cfg *config.Config,
	store *storage.LocalStorage,
	photoHandler *handler.PhotoHandler,
	csrf *middleware.CSRF,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger, "/health", "/media/"))
	router.MaxMultipartMemory = cfg.Upload.MaxFileSize + 1<<20

	router.GET("/health", handler.Health)
	router.GET("/csrf", csrf.IssueHandler)
	router.Static("/media", store.BasePath())

	router.GET("/users/:id/photo", photoHandler.GetPhoto)

	photo := []gin.HandlerFunc{csrf.Middleware()}
	if cfg.Server.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RequestsPerMinute, cfg.Server.RateLimit.Burst)
		photo = append(photo, middleware.RateLimit(limiter, logger))
	}
	photo = append(photo, photoHandler.UpdateImage)
	router.POST(cfg.Client.UploadPath, photo...)

	return router
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
