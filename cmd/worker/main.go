package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"subsync/internal/application/billing/usecases"
	"subsync/internal/infrastructure/cache"
	"subsync/internal/infrastructure/config"
	"subsync/internal/infrastructure/database"
	"subsync/internal/infrastructure/repository"
	"subsync/internal/shared/keylock"
	"subsync/internal/shared/logger"
)

// Standalone expiry sweep worker. Runs the same sweep as the in-server
// scheduler, for deployments that keep background work out of the API
// process.
func main() {
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer database.Close()

	subscriptionRepo := repository.NewSubscriptionRepository(database.Get(), log)
	sweepUC := usecases.NewSweepExpiredUseCase(subscriptionRepo, keylock.New(), cfg.Sweep.PageSize, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Redis.Host != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

		sweepUC.SetStatusCache(cache.NewRedisSubscriptionStatusCache(redisClient, log))
	}

	interval := time.Duration(cfg.Sweep.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infow("running initial expiry sweep")
	runSweep(ctx, sweepUC, log)

	log.Infow("expiry sweep worker started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			runSweep(ctx, sweepUC, log)

		case sig := <-sigChan:
			log.Infow("received signal, shutting down", "signal", sig)
			return
		}
	}
}

func runSweep(ctx context.Context, sweepUC *usecases.SweepExpiredUseCase, log logger.Interface) {
	result, err := sweepUC.Execute(ctx, usecases.SweepCommand{})
	if err != nil {
		log.Errorw("expiry sweep failed", "error", err)
		return
	}

	log.Infow("expiry sweep completed",
		"scanned", result.Scanned,
		"expired", result.Expired,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
}
