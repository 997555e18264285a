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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-grid-api/api/swagger"
	"github.com/noah-isme/timetable-grid-api/internal/handler"
	"github.com/noah-isme/timetable-grid-api/internal/layout"
	"github.com/noah-isme/timetable-grid-api/internal/middleware"
	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/repository"
	"github.com/noah-isme/timetable-grid-api/internal/service"
	"github.com/noah-isme/timetable-grid-api/internal/timetable"
	"github.com/noah-isme/timetable-grid-api/pkg/cache"
	"github.com/noah-isme/timetable-grid-api/pkg/config"
	"github.com/noah-isme/timetable-grid-api/pkg/jobs"
	"github.com/noah-isme/timetable-grid-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-grid-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-grid-api/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-grid-api/pkg/raster"
	"github.com/noah-isme/timetable-grid-api/pkg/storage"
	"github.com/noah-isme/timetable-grid-api/pkg/surface"
)

// @title Timetable Grid API
// @version 1.0.0
// @description Turns university timetable spreadsheets into dated lessons, conflict reports and printable week grids
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grid, err := timetable.LoadGridConfig(cfg.Timetable.GridFile)
	if err != nil {
		logr.Fatal("failed to load grid config", zap.Error(err))
	}
	if cfg.Timetable.ReferenceYear > 0 {
		grid.ReferenceYear = cfg.Timetable.ReferenceYear
	}

	metricsSvc := service.NewMetricsService()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, logr)
	if err != nil {
		logr.Warn("render cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "timetable:render:", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Redis.RenderCacheTTL, logr, redisClient != nil)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	layoutCfg := layout.DefaultConfig()
	if !cfg.Timetable.SemesterStart.IsZero() {
		layoutCfg.SemesterStart = cfg.Timetable.SemesterStart
	}
	layoutCfg.Logger = logr

	rendererCfg := service.RendererConfig{
		Layout:   layoutCfg,
		Location: cfg.Timetable.Timezone,
		Logger:   logr,
	}
	if fm, err := surface.NewFontMeasurer(fontPath(cfg)); err != nil {
		logr.Warn("font unavailable, falling back to estimated text widths", zap.Error(err))
	} else {
		rendererCfg.Measurer = fm
		rendererCfg.FontData = fm.FontData()
	}
	if cfg.Raster.Enabled {
		rendererCfg.Rasterizer = raster.NewChromium(raster.Options{
			Timeout:  cfg.Raster.Timeout,
			ExecPath: cfg.Raster.ExecPath,
			Logger:   logr,
		})
	}
	renderer := service.NewRenderer(rendererCfg)

	apiPrefix := cfg.APIPrefix
	if apiPrefix == "" {
		apiPrefix = "/api/v1"
	}
	timetableSvc := service.NewTimetableService(renderer, store, signer, cacheSvc, metricsSvc, logr, service.TimetableServiceConfig{
		Grid:           grid,
		MaxUploadBytes: cfg.Timetable.MaxUploadBytes,
		DownloadPath:   apiPrefix + "/export/",
		CacheTTL:       cfg.Redis.RenderCacheTTL,
	})

	jobRepo := repository.NewRenderJobRepository()
	jobSvc := service.NewRenderJobService(jobRepo, metricsSvc, logr)
	worker := service.NewRenderWorker(jobRepo, timetableSvc, metricsSvc, logr)
	queue := jobs.NewQueue[service.RenderPayload]("renders", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.Retries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	queue.OnFailure(jobSvc.HandleFailure)
	queue.Start(ctx)
	jobSvc.SetQueue(queue)

	validate := validator.New()
	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AdminUsername:     cfg.Auth.AdminUsername,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Exports.CleanupCron, func() {
		if _, err := timetableSvc.Cleanup(cfg.Exports.SignedURLTTL); err != nil {
			logr.Warn("export cleanup failed", zap.Error(err))
		}
		if _, err := jobSvc.Cleanup(context.Background(), cfg.Exports.SignedURLTTL); err != nil {
			logr.Warn("job cleanup failed", zap.Error(err))
		}
	}); err != nil {
		logr.Fatal("invalid cleanup schedule", zap.String("cron", cfg.Exports.CleanupCron), zap.Error(err))
	}
	scheduler.Start()

	authHandler := handler.NewAuthHandler(authSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, jobSvc, validate, cfg.Timetable.MaxUploadBytes)
	adminHandler := handler.NewAdminHandler(jobSvc, timetableSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{"cache": cacheRepo})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health"))
	r.Use(middleware.WithResponseMeta())
	r.MaxMultipartMemory = cfg.Timetable.MaxUploadBytes

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(apiPrefix)
	api.POST("/auth/token", authHandler.Token)
	api.GET("/export/:token", timetableHandler.Download)

	timetables := api.Group("/timetables", middleware.OptionalJWT(authSvc))
	timetables.POST("/extract", timetableHandler.Extract)
	timetables.POST("/render", timetableHandler.Render)
	timetables.POST("/jobs", timetableHandler.CreateJob)
	timetables.GET("/jobs/:id", timetableHandler.JobStatus)
	timetables.GET("/jobs/:id/result", timetableHandler.JobResult)

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/jobs", adminHandler.ListJobs)
	admin.DELETE("/cache", adminHandler.ClearCache)
	admin.GET("/metrics", adminHandler.Metrics)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	queue.Stop()
}

func fontPath(cfg *config.Config) string {
	if cfg.Timetable.FontPath != "" {
		return cfg.Timetable.FontPath
	}
	return surface.DefaultFontPath
}
