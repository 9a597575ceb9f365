package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/config"
	"github.com/d60-Lab/autopress/internal/api"
	"github.com/d60-Lab/autopress/internal/api/handler"
	"github.com/d60-Lab/autopress/internal/assistant"
	"github.com/d60-Lab/autopress/internal/cache"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/internal/service"
	"github.com/d60-Lab/autopress/internal/source"
	"github.com/d60-Lab/autopress/internal/wordpress"
	"github.com/d60-Lab/autopress/pkg/auth"
	"github.com/d60-Lab/autopress/pkg/database"
	"github.com/d60-Lab/autopress/pkg/logger"
	"github.com/d60-Lab/autopress/pkg/tracing"
)

// @title autopress API
// @version 1.0
// @description Social feed to WordPress auto-publishing service.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	var categoryCache service.CategoryCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		categoryCache = cache.NewCategoryCache(rdb, cfg.Redis.CategoryTTL)
	}

	postRepo := repository.NewPostRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	accountRepo := repository.NewAccountRepository(db)

	client := assistant.NewClient(cfg.Assistant.BaseURL, cfg.Assistant.APIKey, cfg.Assistant.RequestsPerSecond)
	runner := assistant.NewRunner(client, cfg.Assistant.AssistantID, cfg.Assistant.PollInterval, cfg.Assistant.MaxAttempts)
	generator := assistant.NewGenerator(runner, cfg.Assistant.Parallel)

	publisher := service.NewPublisher(wordpress.NewClient(nil), categoryCache, service.PublishTimeouts{
		Download: cfg.Publish.DownloadTimeout,
		Upload:   cfg.Publish.UploadTimeout,
		Category: cfg.Publish.CategoryTimeout,
		Create:   cfg.Publish.CreateTimeout,
	})
	auto := service.NewAutoPublisher(postRepo, generator, publisher)
	postService := service.NewPostService(postRepo, settingRepo, auto)

	src := source.NewHTTPSource(cfg.Source.BaseURL, cfg.Source.APIKey, cfg.Source.Timeout, cfg.Source.RetryCount)
	sweeper := service.NewSweeper(accountRepo, postRepo, src, auto, cfg.Scheduler.Concurrency)
	scheduler := service.NewScheduler(sweeper, settingRepo, cfg.Scheduler.Interval)
	stopScheduler := scheduler.Start()

	gin.SetMode(cfg.Server.Mode)
	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.Expire)
	h := handler.NewHandler(postService, scheduler, issuer, cfg.Admin)
	router := api.NewRouter(h, issuer, api.RouterOptions{
		ServiceName: cfg.Tracing.ServiceName,
		Tracing:     cfg.Tracing.Enabled,
		Sentry:      cfg.Sentry.DSN != "",
		Swagger:     cfg.Server.Mode != gin.ReleaseMode,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := stopScheduler(ctx); err != nil {
		logger.Warn("scheduler did not stop in time", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
}
