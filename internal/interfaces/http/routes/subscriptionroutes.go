package routes

import (
	"github.com/gin-gonic/gin"

	"subsync/internal/interfaces/http/handlers"
)

// SubscriptionRouteConfig holds the dependencies for subscription read
// endpoints.
type SubscriptionRouteConfig struct {
	SubscriptionHandler *handlers.SubscriptionHandler
}

// SetupSubscriptionRoutes registers the subscription read API.
func SetupSubscriptionRoutes(engine *gin.Engine, cfg *SubscriptionRouteConfig) {
	api := engine.Group("/api/v1")
	{
		subscriptions := api.Group("/subscriptions")
		{
			subscriptions.GET("", cfg.SubscriptionHandler.ListSubscriptions)
			subscriptions.GET("/breakdown", cfg.SubscriptionHandler.GetStatusBreakdown)
			subscriptions.GET("/:sid", cfg.SubscriptionHandler.GetSubscription)
			subscriptions.GET("/:sid/status", cfg.SubscriptionHandler.GetSubscriptionStatus)
		}

		clients := api.Group("/clients")
		{
			clients.GET("/:id/subscription/status", cfg.SubscriptionHandler.GetClientSubscriptionStatus)
		}
	}
}
