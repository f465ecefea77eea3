package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/api"
	"github.com/charlesng35/talenthub/internal/app"
	"github.com/charlesng35/talenthub/internal/app/maintenance"
	iauth "github.com/charlesng35/talenthub/internal/auth"
	"github.com/charlesng35/talenthub/internal/database"
	"github.com/charlesng35/talenthub/internal/events"
	"github.com/charlesng35/talenthub/internal/realtime"
	"github.com/charlesng35/talenthub/internal/services"
	"github.com/charlesng35/talenthub/internal/storage"
	"github.com/charlesng35/talenthub/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Hub        *realtime.Hub
	Publisher  events.Publisher
	Dispatcher *services.NotificationDispatcher
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, services, live channel and the
// HTTP router. Every service is built once here and handed to its consumers.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	resumes, err := storage.NewLocalResumeStore(cfg.Storage.ResumeDir, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadBytes())
	if err != nil {
		return nil, fmt.Errorf("initialise resume store: %w", err)
	}

	gormJobs, err := services.NewGormJobDirectory(stack.DB)
	if err != nil {
		return nil, err
	}
	var jobs services.JobDirectory = gormJobs
	if ttl := cfg.Applications.JobCacheTTL; ttl > 0 {
		jobs = services.NewCachedJobDirectory(gormJobs, ttl)
	}

	notifications, err := services.NewNotificationService(stack.DB,
		services.WithNotificationLimits(cfg.Notifications.DefaultLimit, cfg.Notifications.MaxLimit))
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	origins := cfg.Server.Origins()
	stack.Hub = realtime.NewHub(cfg.Realtime.HubOptions(origins))
	stack.Publisher = initialisePublisher(ctx, cfg, log)

	stack.Dispatcher, err = services.NewNotificationDispatcher(notifications,
		services.WithLivePusher(stack.Hub),
		services.WithEventPublisher(stack.Publisher),
		services.WithPublishTimeout(cfg.Events.AMQP.PublishTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise notification dispatcher: %w", err)
	}

	applications, err := services.NewApplicationService(stack.DB, jobs, stack.Dispatcher,
		services.WithTransitionPolicy(services.NewTransitionPolicy(cfg.Applications.StrictTransitions)),
		services.WithResumeRemover(resumes),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise application service: %w", err)
	}

	savedJobs, err := services.NewSavedJobService(stack.DB, jobs)
	if err != nil {
		return nil, fmt.Errorf("initialise saved job service: %w", err)
	}

	dashboard, err := services.NewDashboardService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise dashboard service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(
		maintenance.WithNotificationRetention(notifications, cfg.Notifications.Retention, cfg.Notifications.CleanupSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	metricsEndpoint := ""
	if cfg.Monitoring.Prometheus.Enabled {
		metricsEndpoint = cfg.Monitoring.Prometheus.Endpoint
	}

	deps := api.Dependencies{
		DB:              stack.DB,
		Auth:            jwtSvc,
		Hub:             stack.Hub,
		Applications:    applications,
		Notifications:   notifications,
		SavedJobs:       savedJobs,
		Dashboard:       dashboard,
		Resumes:         resumes,
		AllowedOrigins:  origins,
		RateLimit:       api.RateLimitSettings{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst},
		MetricsEndpoint: metricsEndpoint,
	}
	// Only relative base URLs are served by this process.
	if base := cfg.Storage.PublicBaseURL; len(base) > 0 && base[0] == '/' {
		deps.ResumeDir = resumes.Dir()
		deps.ResumePath = base
	}

	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// initialisePublisher connects the event bridge. A broker that cannot be
// reached degrades to a no-op publisher rather than blocking startup.
func initialisePublisher(ctx context.Context, cfg *app.Config, log *zap.Logger) events.Publisher {
	if !cfg.Events.AMQP.Enabled {
		return events.NoopPublisher{}
	}

	publisher, err := events.NewAMQPPublisher(ctx, cfg.Events.AMQP.PublisherConfig())
	if err != nil {
		log.Warn("event broker unavailable; domain events disabled", zap.Error(err))
		return events.NoopPublisher{}
	}

	log.Info("event broker connected", zap.String("exchange", cfg.Events.AMQP.Exchange))
	return publisher
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("maintenance stop: %w", ctx.Err()))
		}
	}

	if s.Hub != nil {
		s.Hub.Close()
	}

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close event publisher: %w", err))
		}
	}

	if s.DB != nil {
		if err := closeDatabase(s.DB); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		log.Warn("shutdown completed with errors", zap.Error(errs))
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, cfg.Database.SeedDemo); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
