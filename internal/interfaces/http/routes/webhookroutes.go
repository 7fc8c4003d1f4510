package routes

import (
	"github.com/gin-gonic/gin"

	"subsync/internal/interfaces/http/handlers"
	"subsync/internal/interfaces/http/middleware"
)

// WebhookRouteConfig holds the dependencies for webhook endpoints.
type WebhookRouteConfig struct {
	WebhookHandler      *handlers.WebhookHandler
	SignatureMiddleware *middleware.SignatureMiddleware
}

// SetupWebhookRoutes registers the billing webhook endpoints. Every route in
// the group passes signature verification before the body is bound.
func SetupWebhookRoutes(engine *gin.Engine, cfg *WebhookRouteConfig) {
	webhooks := engine.Group("/integrations/billing")
	webhooks.Use(cfg.SignatureMiddleware.RequireSignature())
	{
		webhooks.POST("/orders", cfg.WebhookHandler.HandleOrderEvent)
		webhooks.POST("/subscriptions", cfg.WebhookHandler.HandleSubscriptionEvent)
	}
}
