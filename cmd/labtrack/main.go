package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/hwlab/labtrack-api/api/swagger"
	"github.com/hwlab/labtrack-api/internal/handler"
	"github.com/hwlab/labtrack-api/internal/middleware"
	"github.com/hwlab/labtrack-api/internal/repository"
	"github.com/hwlab/labtrack-api/internal/service"
	"github.com/hwlab/labtrack-api/pkg/cache"
	"github.com/hwlab/labtrack-api/pkg/config"
	"github.com/hwlab/labtrack-api/pkg/database"
	"github.com/hwlab/labtrack-api/pkg/export"
	"github.com/hwlab/labtrack-api/pkg/identity"
	"github.com/hwlab/labtrack-api/pkg/logger"
	corsmiddleware "github.com/hwlab/labtrack-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hwlab/labtrack-api/pkg/middleware/requestid"
	"github.com/hwlab/labtrack-api/pkg/push"
)

// @title LabTrack API
// @version 1.0.0
// @description Hardware lab course tracker: year-scoped authorization and progress analysis
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Analysis.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, analysis cache disabled", "error", err)
			redisClient = nil
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analysis.CacheTTL, logr, cfg.Analysis.CacheEnabled && redisClient != nil)

	broker := push.NewBroker(cfg.Push.BufferSize)
	notifier := service.NewNotifierService(broker, metricsSvc, service.NotifierConfig{
		Enabled:    cfg.Push.Enabled,
		BufferSize: cfg.Push.BufferSize,
	}, logr)
	notifier.Start(context.Background())
	defer notifier.Stop()

	yearRepo := repository.NewYearRepository(db)
	dayRepo := repository.NewDayRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	experimentRepo := repository.NewExperimentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	whitelistRepo := repository.NewWhitelistRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)

	auditSvc := service.NewAuditService(auditRepo, logr)
	authSvc := service.NewAuthService(tutorRepo, whitelistRepo, identity.NewHtpasswdVerifier(cfg.Auth.HtpasswdFile), validate, logr, service.AuthConfig{
		Secret:           cfg.JWT.Secret,
		Expiration:       cfg.JWT.Expiration,
		Issuer:           "labtrack",
		SiteAdmins:       cfg.Auth.SiteAdmins,
		WhitelistEnabled: cfg.Auth.IPWhitelistEnabled,
	})
	yearSvc := service.NewYearService(db, yearRepo, dayRepo, groupRepo, experimentRepo, studentRepo, tutorRepo, whitelistRepo, auditRepo, auditSvc, cacheSvc, logr)
	groupSvc := service.NewGroupService(db, groupRepo, yearRepo, dayRepo, studentRepo, experimentRepo, auditSvc, cacheSvc, notifier, logr)
	experimentSvc := service.NewExperimentService(db, experimentRepo, yearSvc, auditSvc, cacheSvc, validate, logr)
	scheduleSvc := service.NewScheduleService(db, dayRepo, experimentRepo, yearSvc, auditSvc, validate, logr)
	studentSvc := service.NewStudentService(db, studentRepo, yearSvc, auditSvc, cacheSvc, notifier, validate, logr)
	tutorSvc := service.NewTutorService(db, tutorRepo, auditSvc, validate, logr)
	whitelistSvc := service.NewWhitelistService(db, whitelistRepo, auditSvc, validate, logr)
	analysisSvc := service.NewAnalysisService(analysisRepo, cacheSvc, metricsSvc, logr)
	exportSvc := service.NewExportService(analysisSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	seedYear := 0
	if cfg.Bootstrap.SeedCurrentYear {
		seedYear = time.Now().Year()
	}
	if err := yearSvc.Bootstrap(bootCtx, cfg.Bootstrap.TruncateOnStart, seedYear); err != nil {
		logr.Sugar().Fatalw("bootstrap failed", "error", err)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	yearHandler := handler.NewYearHandler(yearSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	experimentHandler := handler.NewExperimentHandler(experimentSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	tutorHandler := handler.NewTutorHandler(tutorSvc)
	whitelistHandler := handler.NewWhitelistHandler(whitelistSvc)
	analysisHandler := handler.NewAnalysisHandler(analysisSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	pushHandler := handler.NewPushHandler(notifier)
	statusHandler := handler.NewStatusHandler(metricsSvc)

	api := r.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/logout", authHandler.Logout)

	authed.GET("/years", yearHandler.List)
	authed.POST("/years", middleware.RequireSiteAdmin(), yearHandler.Create)
	authed.POST("/years/:year/close", middleware.RequireSiteAdmin(), yearHandler.Close)
	authed.DELETE("/years/:year", middleware.RequireSiteAdmin(), yearHandler.Delete)

	authed.GET("/years/:year/days", scheduleHandler.ListDays)
	authed.POST("/years/:year/days", scheduleHandler.CreateDay)
	authed.DELETE("/days/:id", scheduleHandler.DeleteDay)
	authed.GET("/years/:year/events", scheduleHandler.ListEvents)
	authed.PUT("/days/:id/events", scheduleHandler.ScheduleEvent)
	authed.DELETE("/days/:id/events/:experimentId", scheduleHandler.DeleteEvent)

	authed.GET("/years/:year/experiments", experimentHandler.List)
	authed.POST("/years/:year/experiments", experimentHandler.Create)
	authed.DELETE("/experiments/:id", experimentHandler.Delete)
	authed.POST("/experiments/:id/tasks", experimentHandler.CreateTask)
	authed.DELETE("/tasks/:id", experimentHandler.DeleteTask)

	authed.GET("/days/:id/groups", groupHandler.ListByDay)
	authed.POST("/groups", groupHandler.Create)
	authed.GET("/groups/:id", groupHandler.Get)
	authed.PUT("/groups/:id/comment", groupHandler.UpdateComment)
	authed.PUT("/groups/:id/desk", groupHandler.UpdateDesk)
	authed.DELETE("/groups/:id", groupHandler.Delete)
	authed.PUT("/groups/:id/students/:studentId", groupHandler.AddStudent)
	authed.DELETE("/groups/:id/students/:studentId", groupHandler.RemoveStudent)
	authed.PUT("/groups/:id/completions/:taskId", groupHandler.SetCompletion)
	authed.DELETE("/groups/:id/completions/:taskId", groupHandler.DeleteCompletion)
	authed.PUT("/groups/:id/elaborations/:experimentId", groupHandler.SetElaboration)
	authed.DELETE("/groups/:id/elaborations/:experimentId", groupHandler.DeleteElaboration)
	authed.GET("/years/:year/groups/search", groupHandler.Search)

	authed.GET("/years/:year/students", studentHandler.List)
	authed.POST("/years/:year/students", studentHandler.Create)
	authed.DELETE("/students/:id", studentHandler.Delete)
	authed.PUT("/students/:id/instructed", studentHandler.SetInstructed)
	authed.POST("/years/:year/students/import", studentHandler.Import)

	authed.GET("/years/:year/tutors", tutorHandler.List)
	authed.POST("/years/:year/tutors", tutorHandler.Create)
	authed.DELETE("/tutors/:id", tutorHandler.Delete)
	authed.PUT("/tutors/:id/admin", tutorHandler.SetAdmin)

	authed.GET("/years/:year/whitelist", whitelistHandler.List)
	authed.POST("/years/:year/whitelist", whitelistHandler.Create)
	authed.DELETE("/whitelist/:id", whitelistHandler.Delete)

	authed.GET("/years/:year/analysis/tasks", analysisHandler.Tasks)
	authed.GET("/years/:year/analysis/elaborations", analysisHandler.Elaborations)
	authed.GET("/years/:year/analysis/eligible", analysisHandler.Eligible)
	authed.GET("/years/:year/analysis/missing-reworks", analysisHandler.MissingReworks)

	authed.GET("/audit", auditHandler.List)
	authed.GET("/audit/authors", auditHandler.Authors)

	authed.GET("/years/:year/export/tasks.csv", exportHandler.TaskMatrixCSV)
	authed.GET("/years/:year/export/results.csv", exportHandler.ResultsCSV)
	authed.GET("/years/:year/export/eligible.csv", exportHandler.EligibleCSV)
	authed.GET("/years/:year/export/eligible.pdf", exportHandler.EligiblePDF)

	authed.GET("/years/:year/push", pushHandler.Stream)

	authed.GET("/status", middleware.RequireSiteAdmin(), statusHandler.Status)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
