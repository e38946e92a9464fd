package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// FeedStats is the part of the realtime feed the health check reports on.
type FeedStats interface {
	TotalWatchers() int
}

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	feed  FeedStats
}

// NewHealthHandler builds the handler; rdb is nil when Redis is disabled.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client, feed FeedStats) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, feed: feed}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	overall := "healthy"

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	cacheMode := "memory"
	redisStatus := "disabled"
	if h.redis != nil {
		cacheMode = "redis"
		redisStatus = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "error: " + err.Error()
			overall = "degraded"
		}
	}

	watchers := 0
	if h.feed != nil {
		watchers = h.feed.TotalWatchers()
	}

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"service": "promptlib",
		"components": gin.H{
			"database":      dbStatus,
			"cache_mode":    cacheMode,
			"redis":         redisStatus,
			"feed_watchers": watchers,
		},
	})
}
