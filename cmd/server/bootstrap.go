package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/huangang/promptlib/internal/config"
	"github.com/huangang/promptlib/internal/handlers"
	"github.com/huangang/promptlib/internal/middleware"
	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/internal/utils"
	"github.com/huangang/promptlib/pkg/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *redis.Client

	feed      *services.PromptFeed
	retention *services.LogRetentionScheduler
	limiter   *middleware.RateLimiter
	systemLog *services.SystemLogService

	promptHandler   *handlers.PromptHandler
	profileHandler  *handlers.ProfileHandler
	sessionHandler  *handlers.SessionHandler
	eventsHandler   *handlers.EventsHandler
	activityHandler *handlers.ActivityHandler
	healthHandler   *handlers.HealthHandler

	stopFeed context.CancelFunc
	feedDone chan struct{}
}

// bootstrap initializes all application dependencies: database, cache,
// realtime feed, schedulers and handlers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)
	if cfg.JWT.Issuer != "" {
		utils.SetJWTIssuer(cfg.JWT.Issuer)
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Warn().Err(err).Msg("Sentry init failed")
		}
	}

	db, err := models.OpenDB(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Shared cache and cross-instance notifications when Redis is reachable,
	// otherwise both stay in process.
	var (
		rdb      *redis.Client
		cache    services.TagCache
		notifier services.Notifier
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, falling back to in-process cache")
			rdb.Close()
			rdb = nil
		}
	}
	if rdb != nil {
		cache = services.NewRedisTagCache(rdb, cfg.Cache.TTL)
		notifier = services.NewRedisNotifier(rdb)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis tag cache")
	} else {
		cache = services.NewMemoryTagCache(cfg.Cache.LRUSize, cfg.Cache.TTL)
		notifier = services.NewLocalNotifier()
	}

	store := services.NewPromptStore(db)
	reader := services.NewPromptReader(store, cache, cfg.Sync.FeedLimit)
	feed := services.NewPromptFeed(store, notifier, cfg.Sync.FeedLimit)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if err := feed.Run(feedCtx); err != nil {
			logger.Error().Err(err).Msg("Prompt feed stopped")
		}
	}()

	systemLog := services.NewSystemLogService(db)
	retention := services.NewLogRetentionScheduler(systemLog, cfg.Log.RetentionDays, cfg.Log.CleanupSpec)
	if err := retention.Start(); err != nil {
		logger.Warn().Err(err).Str("spec", cfg.Log.CleanupSpec).Msg("Log cleanup scheduler not started")
	}

	viewOpts := services.ViewOptions{
		ActionTimeout:     cfg.Sync.ActionTimeout,
		PermissionRetries: cfg.Sync.PermissionRetry,
		RetryBase:         cfg.Sync.RetryBase,
	}

	return &appServices{
		cfg:       cfg,
		db:        db,
		redis:     rdb,
		feed:      feed,
		retention: retention,
		limiter:   middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		systemLog: systemLog,

		promptHandler:   handlers.NewPromptHandler(services.NewPromptService(store, cache, notifier), reader),
		profileHandler:  handlers.NewProfileHandler(reader, services.NewUserProfileService(db, cache)),
		sessionHandler:  handlers.NewSessionHandler(cfg.Session),
		eventsHandler:   handlers.NewEventsHandler(feed, reader, viewOpts, cfg.Sync.PermissionGrace),
		activityHandler: handlers.NewActivityHandler(systemLog),
		healthHandler:   handlers.NewHealthHandler(db, rdb, feed),

		stopFeed: stopFeed,
		feedDone: feedDone,
	}
}

// shutdown gracefully stops all background work and closes connections.
func (s *appServices) shutdown() {
	s.retention.Stop()
	s.limiter.Stop()
	s.stopFeed()
	<-s.feedDone
	logger.Info().Msg("All schedulers stopped")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("Redis close error")
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Warn().Err(err).Msg("Database close error")
		}
	}
	sentry.Flush(2 * time.Second)
}
