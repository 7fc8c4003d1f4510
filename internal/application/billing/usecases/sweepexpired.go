package usecases

import (
	"context"
	"errors"
	"time"

	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/shared/biztime"
	"subsync/internal/shared/keylock"
	"subsync/internal/shared/logger"
)

// SweepCommand parameterizes one sweep pass.
type SweepCommand struct {
	// Now is the instant overdue is judged against; zero means current time.
	Now time.Time
	// DryRun reports what would expire without writing.
	DryRun bool
	// PageSize bounds each scan page; zero falls back to the configured default.
	PageSize int
}

// SweepResult summarizes one pass over overdue subscriptions.
type SweepResult struct {
	Scanned     int
	Expired     int
	Skipped     int
	Failed      int
	WouldExpire int
}

// SweepExpiredUseCase is the fallback for missed expiry webhooks: it walks
// subscriptions whose end date has passed and forces them to expired. Each
// candidate is re-read and re-checked under the same per-reference lock the
// webhook path uses, so a renewal landing mid-sweep is never clobbered.
type SweepExpiredUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	cache            StatusCache
	locks            *keylock.KeyLock
	logger           logger.Interface
	defaultPageSize  int
}

func NewSweepExpiredUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	locks *keylock.KeyLock,
	defaultPageSize int,
	logger logger.Interface,
) *SweepExpiredUseCase {
	if defaultPageSize <= 0 {
		defaultPageSize = 100
	}
	return &SweepExpiredUseCase{
		subscriptionRepo: subscriptionRepo,
		locks:            locks,
		logger:           logger,
		defaultPageSize:  defaultPageSize,
	}
}

// SetStatusCache sets the status cache (optional dependency injection)
func (uc *SweepExpiredUseCase) SetStatusCache(cache StatusCache) {
	uc.cache = cache
}

func (uc *SweepExpiredUseCase) Execute(ctx context.Context, cmd SweepCommand) (*SweepResult, error) {
	now := cmd.Now
	if now.IsZero() {
		now = biztime.NowUTC()
	}
	pageSize := cmd.PageSize
	if pageSize <= 0 {
		pageSize = uc.defaultPageSize
	}

	result := &SweepResult{}
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := uc.subscriptionRepo.FindOverduePage(ctx, now, offset, pageSize)
		if err != nil {
			return result, err
		}
		if len(page) == 0 {
			break
		}
		result.Scanned += len(page)

		if cmd.DryRun {
			for _, sub := range page {
				result.WouldExpire++
				uc.logger.Infow("would expire subscription",
					"sid", sub.SID(),
					"external_reference", sub.ExternalReference(),
					"status", sub.Status().String(),
					"ends_at", sub.EndsAt(),
				)
			}
			offset += len(page)
			continue
		}

		// Rows we expire drop out of the overdue predicate, and so do
		// rows a concurrent writer renewed or expired under us. The next
		// page starts after only the rows still matched by the scan.
		leftInPlace := 0
		for _, candidate := range page {
			switch uc.sweepOne(ctx, candidate, now) {
			case sweepExpired:
				result.Expired++
			case sweepVanished:
				result.Skipped++
			case sweepSkipped:
				result.Skipped++
				leftInPlace++
			case sweepFailed:
				result.Failed++
				leftInPlace++
			}
		}
		offset += leftInPlace
	}

	uc.logger.Infow("expiry sweep finished",
		"scanned", result.Scanned,
		"expired", result.Expired,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"dry_run", cmd.DryRun,
	)
	return result, nil
}

type sweepOutcome int

const (
	sweepExpired sweepOutcome = iota
	// sweepVanished marks a candidate that no longer matches the overdue
	// scan, so it does not shift the next page's offset.
	sweepVanished
	sweepSkipped
	sweepFailed
)

func (uc *SweepExpiredUseCase) sweepOne(ctx context.Context, candidate *subscription.Subscription, now time.Time) sweepOutcome {
	ref := candidate.ExternalReference()
	uc.locks.Lock(ref)
	defer uc.locks.Unlock(ref)

	// The scan page may be stale; a webhook renewal can land between the
	// scan and here. Re-read and re-judge before writing.
	sub, err := uc.subscriptionRepo.GetByID(ctx, candidate.ID())
	if err != nil {
		uc.logger.Errorw("failed to re-read sweep candidate", "sid", candidate.SID(), "error", err)
		return sweepFailed
	}
	if sub == nil || !sub.IsOverdue(now) || sub.Status() == vo.StatusExpired {
		return sweepVanished
	}

	if err := sub.MarkExpired(now); err != nil {
		uc.logger.Warnw("skipping unexpirable subscription",
			"sid", sub.SID(),
			"status", sub.Status().String(),
			"error", err,
		)
		return sweepSkipped
	}
	sub.Touch(now, subscription.SourceSweep)

	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrStaleVersion) {
			// Something else won the write; its state is newer than ours
			// and no longer overdue-scannable.
			return sweepVanished
		}
		uc.logger.Errorw("failed to expire subscription", "sid", sub.SID(), "error", err)
		return sweepFailed
	}

	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, sub.SID()); err != nil {
			uc.logger.Warnw("failed to invalidate status cache", "sid", sub.SID(), "error", err)
		}
	}

	uc.logger.Infow("subscription expired by sweep",
		"sid", sub.SID(),
		"external_reference", sub.ExternalReference(),
		"ends_at", sub.EndsAt(),
	)
	return sweepExpired
}
