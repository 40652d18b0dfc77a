package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-scheduling-api/api/swagger"
	"github.com/noah-isme/lms-scheduling-api/internal/handler"
	internalmiddleware "github.com/noah-isme/lms-scheduling-api/internal/middleware"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/internal/repository"
	"github.com/noah-isme/lms-scheduling-api/internal/service"
	"github.com/noah-isme/lms-scheduling-api/pkg/cache"
	"github.com/noah-isme/lms-scheduling-api/pkg/config"
	"github.com/noah-isme/lms-scheduling-api/pkg/database"
	"github.com/noah-isme/lms-scheduling-api/pkg/jobs"
	"github.com/noah-isme/lms-scheduling-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-scheduling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-scheduling-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-scheduling-api/pkg/signing"
)

// @title LMS Scheduling API
// @version 1.0.0
// @description Lecture scheduling engine: weekly slot grids, drag-and-drop rescheduling and learner calendars.
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Schedule.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, schedule cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		repo := repository.NewCacheRepository(redisClient, logr)
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	queue := jobs.NewQueue("schedule", jobs.QueueConfig{
		Workers:    cfg.Schedule.Workers,
		MaxRetries: cfg.Schedule.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})

	router := buildRouter(cfg, logr, db, redisClient, cacheRepo, metricsSvc, queue)

	queue.Start(ctx)
	defer queue.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "timezone", cfg.Schedule.Location.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
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

func buildRouter(
	cfg *config.Config,
	logr *zap.Logger,
	db *sqlx.DB,
	redisClient *redis.Client,
	cacheRepo service.CacheRepository,
	metricsSvc *service.MetricsService,
	queue *jobs.Queue,
) *gin.Engine {
	catalog := service.DefaultSlotCatalog()
	generator := service.NewScheduleGenerator(catalog, cfg.Schedule.Location)
	validate := validator.New()

	courseRepo := repository.NewCourseRepository(db)
	occurrenceRepo := repository.NewOccurrenceRepository(db)
	attemptRepo := repository.NewRescheduleAttemptRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Schedule.CacheTTL, logr, cfg.Schedule.CacheEnabled)

	scheduleSvc := service.NewScheduleService(
		courseRepo,
		occurrenceRepo,
		db,
		generator,
		cacheSvc,
		queue,
		metricsSvc,
		logr,
		service.ScheduleServiceConfig{CacheTTL: cfg.Schedule.CacheTTL},
	)
	queue.Register(service.JobTypeRegenerateSchedule, scheduleSvc.HandleRegenerateJob)

	rescheduleSvc := service.NewRescheduleService(
		occurrenceRepo,
		courseRepo,
		attemptRepo,
		db,
		generator,
		scheduleSvc,
		metricsSvc,
		validate,
		logr,
	).WithEnrollmentGate(enrollmentRepo)
	weeklySvc := service.NewWeeklyViewService(enrollmentRepo, occurrenceRepo, scheduleSvc, catalog, cfg.Schedule.Location, nil, logr)
	signer := signing.NewFeedSigner(cfg.CalendarFeed.Secret, cfg.CalendarFeed.TTL)
	calendarSvc := service.NewCalendarService(
		weeklySvc,
		enrollmentRepo,
		scheduleSvc,
		catalog,
		signer,
		service.CalendarRenderers{},
		service.CalendarConfig{APIPrefix: cfg.APIPrefix, ProductID: "-//LMS Scheduling//Learner Calendar//EN"},
		nil,
		logr,
	)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	slotHandler := handler.NewSlotHandler(catalog)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	rescheduleHandler := handler.NewRescheduleHandler(rescheduleSvc)
	learnerHandler := handler.NewLearnerHandler(weeklySvc, calendarSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/feeds/:token/calendar.ics", learnerHandler.Feed)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
	anyRole := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleInstructor, models.RoleLearner)
	learnerOrStaff := internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor), internalmiddleware.RoleSelf)

	secured.GET("/metrics/system", internalmiddleware.RequireRoles(models.RoleAdmin), metricsHandler.System)

	secured.GET("/slots", slotHandler.List)
	secured.GET("/slots/:id", slotHandler.Get)

	courses := secured.Group("/courses/:id")
	courses.GET("/schedule", scheduleHandler.Get)
	courses.POST("/schedule/regenerate", staff, scheduleHandler.Regenerate)
	courses.PUT("/scheduling-config", staff, scheduleHandler.UpdateConfig)

	occurrences := secured.Group("/occurrences/:id")
	occurrences.POST("/reschedule", anyRole, rescheduleHandler.Reschedule)
	occurrences.GET("/reschedule-attempts", staff, rescheduleHandler.Attempts)

	learners := secured.Group("/learners/:id", learnerOrStaff)
	learners.GET("/weekly-view", learnerHandler.WeeklyView)
	learners.GET("/weekly-view/export", learnerHandler.ExportWeeklyView)
	learners.GET("/next-learning-day", learnerHandler.NextLearningDay)
	learners.GET("/calendar.ics", learnerHandler.Calendar)
	learners.POST("/calendar-feed", learnerHandler.IssueFeed)

	return r
}
