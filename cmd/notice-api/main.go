package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noticedesk/notice-intake-api/api/swagger"
	"github.com/noticedesk/notice-intake-api/internal/handler"
	"github.com/noticedesk/notice-intake-api/internal/middleware"
	"github.com/noticedesk/notice-intake-api/internal/models"
	"github.com/noticedesk/notice-intake-api/internal/repository"
	"github.com/noticedesk/notice-intake-api/internal/service"
	"github.com/noticedesk/notice-intake-api/pkg/cache"
	"github.com/noticedesk/notice-intake-api/pkg/config"
	"github.com/noticedesk/notice-intake-api/pkg/database"
	"github.com/noticedesk/notice-intake-api/pkg/jobs"
	"github.com/noticedesk/notice-intake-api/pkg/logger"
	corsmiddleware "github.com/noticedesk/notice-intake-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noticedesk/notice-intake-api/pkg/middleware/requestid"
	"github.com/noticedesk/notice-intake-api/pkg/storage"
)

// @title Notice Intake API
// @version 1.0.0
// @description Intake pipeline for legal takedown notices
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, notice cache disabled", zap.Error(err))
		redisClient = nil
	}

	blobStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Fatal("failed to init attachment storage", zap.Error(err))
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	entityRepo := repository.NewEntityRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Intake.NoticeCacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "notice-intake-api",
	})

	gate := service.NewIntakeGate(authSvc, cfg.Intake, logr)
	resolver := service.NewEntityResolver(entityRepo, logr)

	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(noticeRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.ResultTTL,
	}, logr, nil, nil)

	exportQueue := jobs.NewQueue("export-warmup", func(ctx context.Context, job jobs.Job) error {
		noticeID, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return exportSvc.Warmup(ctx, noticeID)
	}, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})

	queueCtx, stopQueue := context.WithCancel(context.Background())
	exportQueue.Start(queueCtx)
	defer func() {
		stopQueue()
		exportQueue.Stop()
	}()

	// Rendered export files older than the result TTL are swept on a timer.
	go func() {
		ticker := time.NewTicker(cfg.Exports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-queueCtx.Done():
				return
			case <-ticker.C:
				removed, err := exportSvc.Cleanup(0)
				if err != nil {
					logr.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					logr.Info("export cleanup removed stale files", zap.Int("count", len(removed)))
				}
			}
		}
	}()

	noticeSvc := service.NewNoticeService(service.NoticeServiceParams{
		Repo:        noticeRepo,
		Cache:       cacheSvc,
		Blobs:       blobStore,
		Gate:        gate,
		Resolver:    resolver,
		Audit:       userRepo,
		ExportQueue: exportQueue,
		Metrics:     metricsSvc,
		Validator:   validate,
		IntakeCfg:   cfg.Intake,
		MaxFileSize: cfg.Attachments.MaxFileBytes,
		Logger:      logr,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	noticeHandler := handler.NewNoticeHandler(noticeSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	// The submission token rides in the body or the Authorization
	// header; the intake gate resolves it, so no JWT middleware here.
	api.POST("/notices", noticeHandler.Create)
	api.GET("/notices/:id", middleware.JWT(authSvc), noticeHandler.Get)
	api.GET("/notices/:id/export",
		middleware.JWT(authSvc),
		middleware.RequireRoles(models.RoleAdmin, models.RoleAgent, models.RoleSubmitter, models.RoleViewer),
		middleware.Audit(userRepo, models.AuditActionNoticeExport, "notices"),
		noticeHandler.Export)
	api.GET("/exports/download", noticeHandler.Download)

	api.GET("/system/metrics",
		middleware.JWT(authSvc),
		middleware.RequireRoles(models.RoleAdmin),
		metricsHandler.System)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
