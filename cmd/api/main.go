package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/academia-dev/academia-api/api/swagger"
	"github.com/academia-dev/academia-api/internal/handler"
	"github.com/academia-dev/academia-api/internal/middleware"
	"github.com/academia-dev/academia-api/internal/repository"
	"github.com/academia-dev/academia-api/internal/service"
	"github.com/academia-dev/academia-api/pkg/cache"
	"github.com/academia-dev/academia-api/pkg/config"
	"github.com/academia-dev/academia-api/pkg/database"
	"github.com/academia-dev/academia-api/pkg/logger"
	corsmiddleware "github.com/academia-dev/academia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/academia-dev/academia-api/pkg/middleware/requestid"
)

// @title Academia API
// @version 0.1.0
// @description Scheduling backend with teaching assignment conflict detection
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Conflict report caching is an optimization; the API serves
		// every request from Postgres when Redis is down.
		logr.Sugar().Warnw("redis unavailable, conflict report caching disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Conflicts.CacheTTL, logr, cfg.Conflicts.CacheEnabled && redisClient != nil)

	assignmentRepo := repository.NewAssignmentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	periodRepo := repository.NewPeriodRepository(db)

	validate := validator.New()

	assignmentSvc := service.NewAssignmentService(
		assignmentRepo,
		teacherRepo,
		subjectRepo,
		groupRepo,
		timeSlotRepo,
		yearRepo,
		periodRepo,
		cacheSvc,
		metricsSvc,
		validate,
		logr,
	)
	yearSvc := service.NewAcademicYearService(yearRepo, periodRepo, validate, logr)
	periodSvc := service.NewPeriodService(periodRepo, yearRepo, validate, logr)
	timeSlotSvc := service.NewTimeSlotService(timeSlotRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, yearRepo, validate, logr)

	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	yearHandler := handler.NewAcademicYearHandler(yearSvc, periodSvc)
	periodHandler := handler.NewPeriodHandler(periodSvc)
	timeSlotHandler := handler.NewTimeSlotHandler(timeSlotSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)

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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		assignments := api.Group("/assignments")
		{
			assignments.GET("", assignmentHandler.List)
			assignments.POST("", assignmentHandler.Create)
			assignments.GET("/conflicts", assignmentHandler.Conflicts)
			assignments.GET("/conflicts/export", assignmentHandler.ExportConflicts)
			assignments.GET("/:id", assignmentHandler.Get)
			assignments.PATCH("/:id", assignmentHandler.Update)
			assignments.DELETE("/:id", assignmentHandler.Delete)
		}

		years := api.Group("/academic-years")
		{
			years.GET("", yearHandler.List)
			years.POST("", yearHandler.Create)
			years.GET("/:id", yearHandler.Get)
			years.PUT("/:id", yearHandler.Update)
			years.DELETE("/:id", yearHandler.Delete)
			years.GET("/:id/periods", yearHandler.ListPeriods)
		}

		periods := api.Group("/periods")
		{
			periods.POST("", periodHandler.Create)
			periods.GET("/:id", periodHandler.Get)
			periods.PUT("/:id", periodHandler.Update)
			periods.DELETE("/:id", periodHandler.Delete)
		}

		slots := api.Group("/time-slots")
		{
			slots.GET("", timeSlotHandler.List)
			slots.POST("", timeSlotHandler.Create)
			slots.GET("/:id", timeSlotHandler.Get)
			slots.PUT("/:id", timeSlotHandler.Update)
			slots.DELETE("/:id", timeSlotHandler.Delete)
		}

		teachers := api.Group("/teachers")
		{
			teachers.GET("", teacherHandler.List)
			teachers.POST("", teacherHandler.Create)
			teachers.GET("/:id", teacherHandler.Get)
			teachers.PUT("/:id", teacherHandler.Update)
			teachers.DELETE("/:id", teacherHandler.Deactivate)
		}

		subjects := api.Group("/subjects")
		{
			subjects.GET("", subjectHandler.List)
			subjects.POST("", subjectHandler.Create)
			subjects.GET("/:id", subjectHandler.Get)
			subjects.PUT("/:id", subjectHandler.Update)
			subjects.DELETE("/:id", subjectHandler.Delete)
		}

		groups := api.Group("/groups")
		{
			groups.GET("", groupHandler.List)
			groups.POST("", groupHandler.Create)
			groups.GET("/:id", groupHandler.Get)
			groups.PUT("/:id", groupHandler.Update)
			groups.DELETE("/:id", groupHandler.Delete)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
