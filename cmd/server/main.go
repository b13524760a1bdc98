package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/english-exercises-hub/exercises-service/internal/cache"
	"github.com/english-exercises-hub/exercises-service/internal/config"
	"github.com/english-exercises-hub/exercises-service/internal/events"
	"github.com/english-exercises-hub/exercises-service/internal/handlers"
	"github.com/english-exercises-hub/exercises-service/internal/repositories/postgres"
	"github.com/english-exercises-hub/exercises-service/internal/services"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
	"github.com/english-exercises-hub/exercises-service/internal/validator"
	"github.com/english-exercises-hub/exercises-service/pkg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	var cacheService cache.CacheService = cache.NoopCache{}
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, session caching disabled", "error", err)
	} else {
		cacheService = cache.NewRedisCache(redisClient, logger)
		defer redisClient.Close()
	}

	var publisher events.Publisher
	kafkaPublisher, err := events.NewKafkaPublisher(events.PublisherConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		logger.Warn("kafka unavailable, events will not be published", "error", err)
		publisher = events.NewMockPublisher()
	} else {
		publisher = kafkaPublisher
	}
	defer publisher.Close()

	exerciseRepo := postgres.NewExercisePostgreSQL(db)
	accessRepo := postgres.NewExerciseAccessPostgreSQL(db)
	submissionRepo := postgres.NewSubmissionPostgreSQL(db)
	userRepo := postgres.NewUserPostgreSQL(db)
	sessionRepo := postgres.NewSessionPostgreSQL(db)
	tokenRepo := postgres.NewStudentTokenPostgreSQL(db)

	v := validator.New()

	svcs := handlers.Services{
		Auth: services.NewAuthService(userRepo, sessionRepo, tokenRepo, cacheService, publisher, logger, services.AuthConfig{
			BaseURL:      cfg.BaseURL,
			SessionTTL:   cfg.SessionTTL,
			MagicLinkTTL: cfg.MagicLinkTTL,
		}),
		Exercise:   services.NewExerciseService(exerciseRepo, accessRepo, userRepo, submissionRepo, cacheService, logger, v),
		Submission: services.NewSubmissionService(submissionRepo, exerciseRepo, accessRepo, publisher, logger),
		User:       services.NewUserService(userRepo, logger, v),
		Export:     services.NewExportService(submissionRepo, exerciseRepo, userRepo, logger),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.RequestLogger(logger))

	manager := handlers.NewHandlerManager(svcs, logger, cfg.IsProduction())
	manager.SetupRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}
