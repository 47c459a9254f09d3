package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/acadterm/gradebook-api/api/swagger"
	"github.com/acadterm/gradebook-api/internal/handler"
	"github.com/acadterm/gradebook-api/internal/middleware"
	"github.com/acadterm/gradebook-api/internal/models"
	"github.com/acadterm/gradebook-api/internal/repository"
	"github.com/acadterm/gradebook-api/internal/service"
	redisCache "github.com/acadterm/gradebook-api/pkg/cache"
	"github.com/acadterm/gradebook-api/pkg/config"
	"github.com/acadterm/gradebook-api/pkg/database"
	"github.com/acadterm/gradebook-api/pkg/jobs"
	"github.com/acadterm/gradebook-api/pkg/logger"
	corsmiddleware "github.com/acadterm/gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/acadterm/gradebook-api/pkg/middleware/requestid"
	"github.com/acadterm/gradebook-api/pkg/storage"
)

// @title Gradebook API
// @version 0.1.0
// @description Course enrollment, mark recording and grading engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := redisCache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// repositories
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	markRepo := repository.NewMarkRepository(db)
	gradeScaleRepo := repository.NewGradeScaleRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// services
	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Grading.MarksheetCacheTTL, logr, cfg.Grading.CacheEnabled)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "gradebook-api",
	})
	userService := service.NewUserService(userRepo, nil, logr)
	courseService := service.NewCourseService(courseRepo, nil, logr)
	offeringService := service.NewOfferingService(offeringRepo, courseRepo, userRepo, cacheService, nil, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, offeringRepo, userRepo, cacheService, cfg.Grading.EnrollmentCap, nil, logr)
	markService := service.NewMarkService(markRepo, offeringRepo, userRepo, cacheService, metricsService, nil, logr)
	gradingService := service.NewGradingService(offeringRepo, enrollmentRepo, markRepo, gradeScaleRepo, cacheService, metricsService, logr)
	gradeScaleService := service.NewGradeScaleService(gradeScaleRepo, userRepo, cacheService, nil, logr)
	if err := gradeScaleService.EnsureSeeded(ctx); err != nil {
		logr.Sugar().Fatalw("failed to seed grade scale", "error", err)
	}

	// asynchronous report pipeline
	var reportService *service.ReportService
	var exportService *service.ExportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportService = service.NewExportService(gradingService, markRepo, offeringRepo, enrollmentRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil)

		worker := service.NewReportWorker(reportRepo, exportService, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		defer reportQueue.Stop()

		reportService = service.NewReportService(reportRepo, offeringRepo, reportQueue, exportService, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportService.RecoverPendingJobs(ctx)
		reportService.StartCleanup(ctx)
	}

	// handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	courseHandler := handler.NewCourseHandler(courseService)
	offeringHandler := handler.NewOfferingHandler(offeringService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	markHandler := handler.NewMarkHandler(markService, exportService)
	gradingHandler := handler.NewGradingHandler(gradingService)
	gradeScaleHandler := handler.NewGradeScaleHandler(gradeScaleService)
	reportHandler := handler.NewReportHandler(reportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		session := auth.Group("", middleware.JWT(authService))
		session.POST("/logout", authHandler.Logout)
		session.POST("/change-password", authHandler.ChangePassword)
		session.GET("/me", authHandler.Me)
	}

	authed := api.Group("", middleware.JWT(authService))
	{
		authed.GET("/courses", courseHandler.List)
		authed.GET("/courses/:id", courseHandler.Get)
		authed.GET("/offerings", offeringHandler.List)
		authed.GET("/offerings/:id", offeringHandler.Get)
		authed.GET("/grade-scale", gradeScaleHandler.List)

		authed.POST("/reports", reportHandler.Create)
		authed.GET("/reports/:id", reportHandler.Status)
	}

	// download links carry their own signed token
	api.GET("/export/:token", reportHandler.Download)

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/users", middleware.Audit(userRepo, models.AuditActionUserCreate, "user"), userHandler.Create)
		admin.GET("/users", userHandler.List)
		admin.GET("/users/:id", userHandler.Get)
		admin.PATCH("/users/:id", userHandler.Update)
		admin.DELETE("/users/:id", userHandler.Deactivate)

		admin.POST("/courses", middleware.Audit(userRepo, models.AuditActionCourseCreate, "course"), courseHandler.Create)
		admin.POST("/offerings", middleware.Audit(userRepo, models.AuditActionOfferingCreate, "offering"), offeringHandler.Create)
		admin.PUT("/offerings/:id/assessments", middleware.Audit(userRepo, models.AuditActionAssessmentsReplace, "assessment_plan"), offeringHandler.SetAssessments)

		admin.PUT("/grade-scale", gradeScaleHandler.Replace)

		admin.GET("/students/:id/marksheet", gradingHandler.StudentMarksheet)
		admin.GET("/marksheets", gradingHandler.CohortMarksheet)
		admin.GET("/missing-marks", gradingHandler.MissingMarks)
		admin.GET("/metrics", metricsHandler.Snapshot)
	}

	student := api.Group("/student", middleware.JWT(authService), middleware.RequireRoles(models.RoleStudent))
	{
		student.POST("/enrollments", enrollmentHandler.Enroll)
		student.GET("/enrollments", enrollmentHandler.MyEnrollments)
		student.DELETE("/enrollments/:id", enrollmentHandler.Unenroll)
		student.GET("/marksheet", gradingHandler.MyMarksheet)
	}

	lecturer := api.Group("/lecturer", middleware.JWT(authService), middleware.RequireRoles(models.RoleLecturer))
	{
		lecturer.GET("/offerings", offeringHandler.MyOfferings)
		lecturer.GET("/offerings/:id/roster", enrollmentHandler.Roster)
		lecturer.POST("/marks", markHandler.Post)
		lecturer.GET("/offerings/:id/marks", markHandler.List)
		lecturer.GET("/offerings/:id/gradebook", markHandler.Gradebook)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
