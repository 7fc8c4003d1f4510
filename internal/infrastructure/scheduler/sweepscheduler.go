// Package scheduler runs the periodic background jobs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"subsync/internal/application/billing/usecases"
	"subsync/internal/shared/logger"
)

// SweepScheduler periodically runs the expiry sweep. The sweep is the
// fallback for missed expiry webhooks; webhook-driven updates remain the
// primary path and the sweep merely catches what they dropped.
type SweepScheduler struct {
	sweepUC  *usecases.SweepExpiredUseCase
	logger   logger.Interface
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	interval time.Duration
}

// NewSweepScheduler creates a new SweepScheduler
func NewSweepScheduler(
	sweepUC *usecases.SweepExpiredUseCase,
	interval time.Duration,
	logger logger.Interface,
) *SweepScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweepScheduler{
		sweepUC:  sweepUC,
		logger:   logger,
		stopChan: make(chan struct{}),
		interval: interval,
	}
}

// Start starts the scheduler
func (s *SweepScheduler) Start(ctx context.Context) {
	s.logger.Infow("starting expiry sweep scheduler", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx)
	}()
}

// Stop stops the scheduler gracefully
func (s *SweepScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Infow("stopping expiry sweep scheduler")
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Infow("expiry sweep scheduler stopped")
	})
}

func (s *SweepScheduler) runLoop(ctx context.Context) {
	// Run immediately on startup to catch expirations missed while down.
	s.runSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("expiry sweep scheduler stopped due to context cancellation")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *SweepScheduler) runSweep(ctx context.Context) {
	s.logger.Debugw("expiry sweep started")

	startTime := time.Now()

	result, err := s.sweepUC.Execute(ctx, usecases.SweepCommand{})
	if err != nil {
		s.logger.Errorw("expiry sweep failed",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if result.Expired > 0 || result.Failed > 0 {
		s.logger.Infow("expiry sweep completed",
			"scanned", result.Scanned,
			"expired", result.Expired,
			"skipped", result.Skipped,
			"failed", result.Failed,
			"duration", time.Since(startTime),
		)
	} else {
		s.logger.Debugw("expiry sweep found nothing to do",
			"duration", time.Since(startTime),
		)
	}
}
