package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/promptlib/internal/middleware"
	"github.com/huangang/promptlib/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins...))
	r.Use(middleware.SessionMarker(svc.cfg.Session.CookieName))

	r.GET("/health", svc.healthHandler.CheckHealth)

	limited := svc.limiter.Middleware()
	audit := middleware.AuditLog(svc.systemLog)

	api := r.Group("/api")
	{
		// Session marker (public, the marker proves nothing)
		session := api.Group("/session", limited)
		{
			session.POST("", svc.sessionHandler.Set)
			session.DELETE("", svc.sessionHandler.Clear)
		}

		protected := api.Group("")
		protected.Use(middleware.IdentityRequired())
		{
			// Prompts (reads)
			protected.GET("/prompts", svc.promptHandler.List)
			protected.GET("/prompts/tags", svc.promptHandler.Tags)
			protected.GET("/prompts/:id", svc.promptHandler.GetByID)
			protected.POST("/prompts/:id/render", svc.promptHandler.Render)

			// Prompts (writes)
			writes := protected.Group("", limited, audit)
			writes.POST("/prompts", svc.promptHandler.Create)
			writes.PUT("/prompts/:id", svc.promptHandler.Update)
			writes.DELETE("/prompts/:id", svc.promptHandler.Delete)

			// Profile
			protected.GET("/profile", svc.profileHandler.Get)
			protected.POST("/profile/sync", limited, audit, svc.profileHandler.Sync)

			// Activity
			protected.GET("/activity", svc.activityHandler.List)

			// SSE
			protected.GET("/events/prompts", svc.eventsHandler.StreamPrompts)
		}
	}
}
