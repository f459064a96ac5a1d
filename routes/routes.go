package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meetsync/config"
	"meetsync/handlers"
	"meetsync/middleware"
)

// RegisterRoutes wires every endpoint group onto the router.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	RegisterHealthRoute(r)
	RegisterSlackRoutes(r, hb)
	RegisterSessionRoutes(r, hb)
	RegisterConstraintRoutes(r, hb)
}

// RegisterSlackRoutes registers the Slack Events API webhook. Requests are
// authenticated by signature, not by bearer token.
func RegisterSlackRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/slack")
	{
		api.Use(middleware.SlackSignatureMiddleware(config.AppConfig.SlackSigningSecret))
		api.POST("/events", hb.SlackEventsHandler)
	}
}

// RegisterSessionRoutes registers operator endpoints for inspecting
// negotiations.
func RegisterSessionRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/sessions")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.GET("", hb.ListSessionsHandler)
		api.GET("/:threadID", hb.GetSessionHandler)
	}
}

// RegisterConstraintRoutes registers constraint management endpoints.
func RegisterConstraintRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/constraints")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("", hb.AddConstraintHandler)
		api.GET("/:owner", hb.ListConstraintsHandler)
		api.DELETE("/:owner/:id", hb.DeleteConstraintHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "meetsync is up"})
	})
}
