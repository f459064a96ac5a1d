package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Slack webhook endpoints.
	SlackEventsHandler gin.HandlerFunc

	// Session inspection endpoints.
	GetSessionHandler   gin.HandlerFunc
	ListSessionsHandler gin.HandlerFunc

	// Constraint endpoints.
	AddConstraintHandler    gin.HandlerFunc
	ListConstraintsHandler  gin.HandlerFunc
	DeleteConstraintHandler gin.HandlerFunc
}
