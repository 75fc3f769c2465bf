package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ecorvi/schmng-api/api/swagger"
	"github.com/ecorvi/schmng-api/internal/handler"
	"github.com/ecorvi/schmng-api/internal/middleware"
	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/cache"
	"github.com/ecorvi/schmng-api/pkg/config"
	"github.com/ecorvi/schmng-api/pkg/jobs"
	"github.com/ecorvi/schmng-api/pkg/logger"
	mailer "github.com/ecorvi/schmng-api/pkg/mail"
	corsmiddleware "github.com/ecorvi/schmng-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ecorvi/schmng-api/pkg/middleware/requestid"
	"github.com/ecorvi/schmng-api/pkg/storage"
)

// @title School Management API
// @version 1.0.0
// @description Records, fees, timetables, notices and messaging for a single school.
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
	zap.ReplaceGlobals(logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	store, err := openStore(ctx, cfg, metrics, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open document store", "backend", cfg.Store.Backend, "error", err)
	}
	defer store.Close()

	checks := map[string]handler.ReadinessCheck{}
	if store.ping != nil {
		checks["store"] = store.ping
	}

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, "schmng", logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)
		checks["redis"] = cacheRepo.Ping
	}

	queue := jobs.NewQueue("background", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.Retries,
		Logger:     logr,
		Observer:   metrics,
	})

	from := mail.Address{Name: cfg.AppName, Address: cfg.Mail.FromAddress}
	var sender mailer.Sender = mailer.NewConsoleSender(from, logr)
	if cfg.Mail.SendGridKey != "" {
		sender = mailer.NewSendGridSender(cfg.Mail.SendGridKey, cfg.AppName, from)
	} else {
		logr.Info("no SendGrid key configured, mail goes to the log")
	}
	mailSvc := service.NewMailService(sender, cfg.AppName, metrics, logr)
	queue.Register(service.JobPasswordResetMail, mailSvc.PasswordResetHandler())

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "dir", cfg.Uploads.StorageDir, "error", err)
	}
	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "dir", cfg.Exports.StorageDir, "error", err)
	}

	validate := viewstate.NewValidator()
	gw := store.gateway

	users := repository.NewUserRepository(gw)
	people := repository.NewPersonRepository(gw)
	fees := repository.NewFeeRepository(gw)
	notices := repository.NewNoticeRepository(gw)
	leaves := repository.NewLeaveRepository(gw)
	timetables := repository.NewTimetableRepository(gw)
	attendance := repository.NewAttendanceRepository(gw)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		People:   people,
		Fees:     fees,
		Notices:  notices,
		Leaves:   leaves,
		Cache:    cacheSvc,
		CacheTTL: cfg.Dashboard.CacheTTL,
		Logger:   logr,
	})
	personSvc := service.NewPersonService(service.PersonServiceParams{
		Repo:         people,
		Photos:       repository.NewPhotoRepository(files, people, cfg.Uploads.MaxFileSizeBytes),
		Validator:    validate,
		Logger:       logr,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		Changes:      dashboardSvc,
	})
	authSvc := service.NewAuthService(users, people, queue, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		ResetTokenExpiry:  cfg.JWT.ResetTokenExpiry,
		Issuer:            cfg.JWT.Issuer,
		AppURL:            cfg.Mail.AppURL,
	})
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Fees:       fees,
		Timetables: timetables,
		Attendance: attendance,
		Storage:    exportFiles,
		Signer:     storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		Validator:  validate,
		Logger:     logr,
		Config:     service.ExportConfig{APIPrefix: cfg.APIPrefix, Retention: cfg.Exports.Retention},
	})
	queue.Register(service.JobExportCleanup, exportSvc.CleanupHandler())

	streams := handler.NewStreamRegistry(logr)
	handlers := handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Students:   handler.NewPersonHandler(personSvc, models.PersonStudent, streams),
		Teachers:   handler.NewPersonHandler(personSvc, models.PersonTeacher, streams),
		Staff:      handler.NewPersonHandler(personSvc, models.PersonStaff, streams),
		Fees:       handler.NewFeeHandler(service.NewFeeService(fees, personSvc, validate, logr, dashboardSvc), streams),
		Schedules:  handler.NewScheduleHandler(service.NewScheduleService(repository.NewScheduleRepository(gw), personSvc, validate, logr), streams),
		Grades:     handler.NewGradeHandler(service.NewGradeService(repository.NewGradeRepository(gw), people, personSvc, validate, logr), streams),
		Events:     handler.NewClassEventHandler(service.NewClassEventService(repository.NewClassEventRepository(gw), personSvc, validate, logr), streams),
		Timetables: handler.NewTimetableHandler(service.NewTimetableService(timetables, validate, logr), streams),
		Notices:    handler.NewNoticeHandler(service.NewNoticeService(notices, personSvc, validate, logr, dashboardSvc), streams),
		Leaves:     handler.NewLeaveHandler(service.NewLeaveService(leaves, validate, logr, dashboardSvc), streams),
		Attendance: handler.NewAttendanceHandler(service.NewAttendanceService(attendance, validate, logr)),
		Messages:   handler.NewMessageHandler(service.NewMessageService(repository.NewMessageRepository(gw), validate, logr), streams),
		Dashboard:  handler.NewDashboardHandler(dashboardSvc),
		Exports:    handler.NewExportHandler(exportSvc),
		Streams:    streams,
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	handler.Register(r.Group(cfg.APIPrefix), handlers, authSvc)

	queue.Start(ctx)
	go scheduleCleanup(ctx, queue, cfg.Exports.CleanupInterval, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	queue.Stop()
	logr.Sugar().Infow("server stopped", "open_streams", streams.Open())
}

// scheduleCleanup enqueues the export cleanup job on every tick until ctx ends.
func scheduleCleanup(ctx context.Context, queue *jobs.Queue, every time.Duration, logr *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := queue.Enqueue(service.JobExportCleanup, nil); err != nil {
				logr.Warn("failed to enqueue export cleanup", zap.Error(err))
			}
		}
	}
}

// boltPath resolves relative bolt paths against the working directory so logs show where data lives.
func boltPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
