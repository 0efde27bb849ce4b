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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/servisfon/transfer-api/api/swagger"
	"github.com/servisfon/transfer-api/internal/handler"
	"github.com/servisfon/transfer-api/internal/middleware"
	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/internal/repository"
	"github.com/servisfon/transfer-api/internal/service"
	"github.com/servisfon/transfer-api/pkg/cache"
	"github.com/servisfon/transfer-api/pkg/config"
	"github.com/servisfon/transfer-api/pkg/database"
	"github.com/servisfon/transfer-api/pkg/jobs"
	"github.com/servisfon/transfer-api/pkg/logger"
	corsmiddleware "github.com/servisfon/transfer-api/pkg/middleware/cors"
	reqidmiddleware "github.com/servisfon/transfer-api/pkg/middleware/requestid"
	"github.com/servisfon/transfer-api/pkg/storage"
)

// @title Servisfon Transfer API
// @version 1.0.0
// @description Branch-to-hub phone repair transfer tracking
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	transferRepo := repository.NewTransferRepository(db)
	statusLogRepo := repository.NewStatusLogRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ExchangeSecret:     cfg.JWT.ExchangeSecret,
		DefaultBranch:      cfg.Transfers.RepairHubBranch,
		Issuer:             "transfer-api",
	})

	// Redis is optional: without it the dashboard recomputes on every call.
	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		var cacheRepo *repository.CacheRepository
		if client, err := cache.NewRedis(cfg.Redis); err != nil {
			logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
			dashboardSvc = service.NewDashboardService(transferRepo, nil, logr, cfg.Dashboard.CacheTTL)
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			dashboardSvc = service.NewDashboardService(transferRepo, cacheRepo, logr, cfg.Dashboard.CacheTTL)
		}
	}

	transferOpts := []service.TransferServiceOption{}
	if dashboardSvc != nil {
		transferOpts = append(transferOpts, service.WithCacheInvalidator(dashboardSvc))
	}
	transferSvc := service.NewTransferService(transferRepo, statusLogRepo, userRepo, logr, cfg.Transfers.RepairHubBranch, transferOpts...)

	userSvc := service.NewUserService(userRepo, logr)

	var exportSvc *service.ExportService
	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc = service.NewExportService(store, signer, logr)

		reportQueue = jobs.NewQueue("reports", func(ctx context.Context, job jobs.Job) error {
			return reportSvc.Process(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportSvc = service.NewReportService(reportRepo, transferRepo, reportQueue, exportSvc, logr)
		reportQueue.Start(ctx)
		defer reportQueue.Stop()
		reportSvc.RecoverPendingJobs(ctx)

		go func() {
			ticker := time.NewTicker(cfg.Reports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					exportSvc.Cleanup(cfg.Reports.SignedURLTTL)
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	transferHandler := handler.NewTransferHandler(transferSvc, exportSvc, metricsSvc)
	statusHandler := handler.NewStatusHandler(transferSvc)
	userHandler := handler.NewUserHandler(userSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/exchange", authHandler.Exchange)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/statuses", statusHandler.Catalog)

		transfers := protected.Group("/transfers")
		{
			// Create and status updates are audited by the service with
			// old/new values; the slip download has no service audit.
			transfers.POST("",
				middleware.RequireRoles(models.RoleAdmin, models.RoleHQStaff),
				transferHandler.Create)
			transfers.GET("", transferHandler.List)
			transfers.GET("/:id", transferHandler.Get)
			transfers.PATCH("/:id/status", transferHandler.UpdateStatus)
			transfers.GET("/:id/history", transferHandler.History)
			transfers.GET("/:id/slip",
				middleware.Audit(userRepo, models.AuditActionSlipPrint, "transfer"),
				transferHandler.Slip)
		}

		if dashboardSvc != nil {
			dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
			protected.GET("/dashboard/summary", dashboardHandler.Summary)
		}

		if reportSvc != nil {
			reportHandler := handler.NewReportHandler(reportSvc)
			reports := protected.Group("/reports")
			{
				reports.POST("/transfers", reportHandler.Generate)
				reports.GET("/:id/status", reportHandler.Status)
				reports.GET("/download", reportHandler.Download)
			}
		}

		users := protected.Group("/users")
		users.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			users.GET("", userHandler.List)
			users.PATCH("/:id", userHandler.Update)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
