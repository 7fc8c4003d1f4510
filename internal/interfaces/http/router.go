package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"subsync/internal/application/billing"
	"subsync/internal/application/billing/usecases"
	"subsync/internal/infrastructure/billingapi"
	"subsync/internal/infrastructure/cache"
	"subsync/internal/infrastructure/config"
	"subsync/internal/infrastructure/repository"
	"subsync/internal/infrastructure/scheduler"
	"subsync/internal/interfaces/http/handlers"
	"subsync/internal/interfaces/http/middleware"
	"subsync/internal/interfaces/http/routes"
	"subsync/internal/shared/keylock"
	"subsync/internal/shared/logger"
)

// Router wires repositories, use cases, handlers and background services
// behind a single gin engine.
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	log    logger.Interface

	redisClient    *redis.Client
	sweepScheduler *scheduler.SweepScheduler

	webhookHandler      *handlers.WebhookHandler
	subscriptionHandler *handlers.SubscriptionHandler
	signatureMiddleware *middleware.SignatureMiddleware
}

// NewRouter creates the router with all dependencies wired together.
func NewRouter(db *gorm.DB, cfg *config.Config, log logger.Interface) *Router {
	engine := gin.New()

	subscriptionRepo := repository.NewSubscriptionRepository(db, log)
	clientRepo := repository.NewClientRepository(db, log)
	planRepo := repository.NewPlanRepository(db, log)

	locks := keylock.New()
	normalizer := billing.NewNormalizer(log)

	reconcileUC := usecases.NewReconcileSubscriptionUseCase(subscriptionRepo, clientRepo, planRepo, locks, log)
	sweepUC := usecases.NewSweepExpiredUseCase(subscriptionRepo, locks, cfg.Sweep.PageSize, log)
	getUC := usecases.NewGetSubscriptionUseCase(subscriptionRepo, log)
	statusUC := usecases.NewGetSubscriptionStatusUseCase(subscriptionRepo, log)
	listUC := usecases.NewListSubscriptionsUseCase(subscriptionRepo, log)

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		statusCache := cache.NewRedisSubscriptionStatusCache(redisClient, log)
		reconcileUC.SetStatusCache(statusCache)
		sweepUC.SetStatusCache(statusCache)
		statusUC.SetStatusCache(statusCache)
	}

	if cfg.BillingAPI.BaseURL != "" {
		fetcher := billingapi.NewClient(&cfg.BillingAPI, log)
		reconcileUC.SetFetcher(fetcher)
	}

	sweepInterval := time.Duration(cfg.Sweep.IntervalMinutes) * time.Minute
	sweepScheduler := scheduler.NewSweepScheduler(sweepUC, sweepInterval, log)

	return &Router{
		engine:              engine,
		cfg:                 cfg,
		log:                 log,
		redisClient:         redisClient,
		sweepScheduler:      sweepScheduler,
		webhookHandler:      handlers.NewWebhookHandler(normalizer, reconcileUC, log),
		subscriptionHandler: handlers.NewSubscriptionHandler(getUC, statusUC, listUC, log),
		signatureMiddleware: middleware.NewSignatureMiddleware(&cfg.Webhook, log),
	}
}

// SetupRoutes registers global middleware and all route groups.
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.Logger(r.log))
	r.engine.Use(middleware.ErrorHandler())

	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	routes.SetupWebhookRoutes(r.engine, &routes.WebhookRouteConfig{
		WebhookHandler:      r.webhookHandler,
		SignatureMiddleware: r.signatureMiddleware,
	})

	routes.SetupSubscriptionRoutes(r.engine, &routes.SubscriptionRouteConfig{
		SubscriptionHandler: r.subscriptionHandler,
	})
}

// StartBackgroundServices starts the expiry sweep scheduler.
func (r *Router) StartBackgroundServices(ctx context.Context) {
	r.sweepScheduler.Start(ctx)
}

// Shutdown stops background services and closes shared clients.
func (r *Router) Shutdown() {
	r.sweepScheduler.Stop()

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			r.log.Errorw("failed to close redis client", "error", err)
		}
	}
}

// GetEngine returns the underlying gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
