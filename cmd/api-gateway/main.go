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

	_ "github.com/vidyarthi-labs/school-admin-api/api/swagger"
	"github.com/vidyarthi-labs/school-admin-api/internal/handler"
	"github.com/vidyarthi-labs/school-admin-api/internal/middleware"
	"github.com/vidyarthi-labs/school-admin-api/internal/models"
	"github.com/vidyarthi-labs/school-admin-api/internal/repository"
	"github.com/vidyarthi-labs/school-admin-api/internal/service"
	"github.com/vidyarthi-labs/school-admin-api/pkg/cache"
	"github.com/vidyarthi-labs/school-admin-api/pkg/config"
	"github.com/vidyarthi-labs/school-admin-api/pkg/database"
	"github.com/vidyarthi-labs/school-admin-api/pkg/jobs"
	"github.com/vidyarthi-labs/school-admin-api/pkg/logger"
	corsmiddleware "github.com/vidyarthi-labs/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vidyarthi-labs/school-admin-api/pkg/middleware/requestid"
	"github.com/vidyarthi-labs/school-admin-api/pkg/storage"
)

// @title School Admin API
// @version 1.0.0
// @description Academic year transition, promotion and reporting backend
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}

	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	historyRepo := repository.NewStudentHistoryRepository(db)
	reportRepo := repository.NewReportRepository(db)
	reportJobRepo := repository.NewReportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "school-admin-api",
	})
	yearSvc := service.NewAcademicYearService(yearRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, logr)
	resolver := service.NewPromotionResolver(classRepo)
	transitionSvc := service.NewTransitionService(yearRepo, studentRepo, historyRepo, resolver, cacheRepo, validate, logr)
	reportSvc := service.NewReportService(yearRepo, historyRepo, reportRepo, reportJobRepo, cacheRepo, exportStore, signer, cfg.Reports.CacheTTL, validate, logr)

	exportQueue := jobs.NewQueue("report-exports", reportSvc.ProcessJob, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc.SetQueue(exportQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportQueue.Start(ctx)
	defer exportQueue.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	yearHandler := handler.NewAcademicYearHandler(yearSvc, transitionSvc, reportSvc, metricsSvc)
	classHandler := handler.NewClassHandler(classSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	api.GET("/reports/download/:token", reportHandler.Download)

	protected := api.Group("", middleware.JWT(authSvc))

	years := protected.Group("/academic-years")
	years.GET("", yearHandler.List)
	years.GET("/active", yearHandler.GetActive)
	years.GET("/:id", yearHandler.Get)
	years.GET("/:id/reports", middleware.RequireRoles(models.RoleSuperAdmin), yearHandler.Reports)
	years.POST("",
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin),
		middleware.Audit(userRepo, models.AuditActionYearCreate, "academic_year"),
		yearHandler.Create)
	years.POST("/:id/activate",
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin),
		middleware.Audit(userRepo, models.AuditActionYearActivate, "academic_year"),
		yearHandler.SetActive)
	years.POST("/increment",
		middleware.RequireRoles(models.RoleSuperAdmin),
		middleware.Audit(userRepo, models.AuditActionYearIncrement, "academic_year"),
		yearHandler.Increment)

	classes := protected.Group("/classes")
	classes.GET("", classHandler.List)
	classes.GET("/:id", classHandler.Get)
	classes.POST("",
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin),
		middleware.Audit(userRepo, models.AuditActionClassCreate, "class"),
		classHandler.Create)
	classes.DELETE("/:id",
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin),
		middleware.Audit(userRepo, models.AuditActionClassDelete, "class"),
		classHandler.Delete)

	protected.GET("/students",
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher),
		studentHandler.List)

	reports := protected.Group("/reports", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	reports.POST("/export", reportHandler.Export)
	reports.GET("/jobs/:id", reportHandler.Status)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

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
