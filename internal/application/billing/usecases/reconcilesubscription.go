package usecases

import (
	"context"
	"errors"
	"fmt"

	"subsync/internal/domain/client"
	"subsync/internal/domain/subscription"
	"subsync/internal/shared/biztime"
	apperrors "subsync/internal/shared/errors"
	"subsync/internal/shared/keylock"
	"subsync/internal/shared/logger"
)

// ReconcileResult reports what one reconciliation did.
type ReconcileResult struct {
	Subscription *subscription.Subscription
	Created      bool
	// Applied is false when the event was older than the stored record
	// and was dropped under last-write-wins.
	Applied bool
}

// ReconcileSubscriptionUseCase merges one normalized webhook update into the
// durable subscription record. The read-merge-write sequence for one
// external reference is serialized through the key lock; the enrichment
// fetch happens before the lock is taken so a slow upstream call never
// extends the critical section.
type ReconcileSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	clientRepo       client.Repository
	planRepo         subscription.PlanRepository
	fetcher          BillingFetcher
	cache            StatusCache
	locks            *keylock.KeyLock
	logger           logger.Interface
}

func NewReconcileSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	clientRepo client.Repository,
	planRepo subscription.PlanRepository,
	locks *keylock.KeyLock,
	logger logger.Interface,
) *ReconcileSubscriptionUseCase {
	return &ReconcileSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		clientRepo:       clientRepo,
		planRepo:         planRepo,
		locks:            locks,
		logger:           logger,
	}
}

// SetFetcher sets the enrichment fetcher (optional dependency injection)
func (uc *ReconcileSubscriptionUseCase) SetFetcher(fetcher BillingFetcher) {
	uc.fetcher = fetcher
}

// SetStatusCache sets the status cache (optional dependency injection)
func (uc *ReconcileSubscriptionUseCase) SetStatusCache(cache StatusCache) {
	uc.cache = cache
}

func (uc *ReconcileSubscriptionUseCase) Execute(ctx context.Context, update *subscription.Update) (*ReconcileResult, error) {
	if err := update.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid subscription update", err.Error())
	}

	existing, err := uc.subscriptionRepo.GetByExternalReference(ctx, update.ExternalReference)
	if err != nil {
		return nil, fmt.Errorf("failed to look up subscription: %w", err)
	}

	// Pull-based enrichment, outside the critical section. A failed fetch
	// degrades to merging with what the webhook carried.
	var fetchErr error
	if update.NeedsEnrichment() && uc.fetcher != nil {
		fetched, err := uc.fetcher.FetchSubscriptionUpdate(ctx, update.ExternalReference)
		if err != nil {
			fetchErr = err
			uc.logger.Warnw("enrichment fetch failed, merging with partial data",
				"external_reference", update.ExternalReference,
				"error", err,
			)
		} else {
			update.MergeFrom(fetched)
		}
	}

	owner, err := uc.resolveClient(ctx, existing, update, fetchErr)
	if err != nil {
		return nil, err
	}

	planID := uc.resolvePlanID(ctx, update)

	uc.locks.Lock(update.ExternalReference)
	defer uc.locks.Unlock(update.ExternalReference)

	// Re-read under the lock; a concurrent delivery may have created or
	// advanced the record since the pre-read.
	sub, err := uc.subscriptionRepo.GetByExternalReference(ctx, update.ExternalReference)
	if err != nil {
		return nil, fmt.Errorf("failed to look up subscription: %w", err)
	}

	created := false
	if sub == nil {
		var clientID uint
		if owner != nil {
			clientID = owner.ID()
		}
		sub, err = subscription.NewSubscription(update.ExternalReference, clientID, planID)
		if err != nil {
			return nil, apperrors.NewValidationError("cannot create subscription", err.Error())
		}
		created = true
	} else if update.EventTime.Before(sub.LastSyncedAt()) {
		// Out-of-order delivery: the stored record was written from a
		// newer event. Drop this one; redelivery is harmless.
		uc.logger.Infow("dropping stale subscription update",
			"external_reference", update.ExternalReference,
			"event_time", update.EventTime,
			"last_synced_at", sub.LastSyncedAt(),
		)
		return &ReconcileResult{Subscription: sub, Applied: false}, nil
	}

	if err := uc.merge(sub, update, planID); err != nil {
		return nil, err
	}

	sub.Touch(biztime.NowUTC(), subscription.SourceWebhook)

	if created {
		if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
	} else {
		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			if errors.Is(err, subscription.ErrStaleVersion) {
				return nil, apperrors.NewConflictError("subscription was modified concurrently")
			}
			return nil, fmt.Errorf("failed to update subscription: %w", err)
		}
	}

	uc.invalidateCache(ctx, sub.SID())

	uc.logger.Infow("subscription reconciled",
		"external_reference", sub.ExternalReference(),
		"sid", sub.SID(),
		"status", sub.Status().String(),
		"billing_cycle_count", sub.BillingCycleCount(),
		"created", created,
		"source", update.Source,
	)

	return &ReconcileResult{Subscription: sub, Created: created, Applied: true}, nil
}

// merge applies the update's present fields to the aggregate. Field order
// matters: the renewal runs before the status mapping so an event that both
// extends the period and carries a terminal status lands on the status the
// event asserts.
func (uc *ReconcileSubscriptionUseCase) merge(sub *subscription.Subscription, update *subscription.Update, planID uint) error {
	if update.StartsAt != nil {
		sub.SetStartsAt(*update.StartsAt)
	}
	if planID != 0 {
		sub.SetPlanID(planID)
	}

	if update.EndsAt != nil {
		switch {
		case sub.EndsAt() == nil:
			// First observed period; establishing it is not a renewal.
			if err := sub.SetEndsAt(*update.EndsAt); err != nil {
				return apperrors.NewValidationError("invalid end date", err.Error())
			}
		case update.EndsAt.After(*sub.EndsAt()):
			if err := sub.Renew(*update.EndsAt); err != nil {
				return apperrors.NewValidationError("invalid renewal", err.Error())
			}
		case update.EndsAt.Before(*sub.EndsAt()):
			// The event passed the last-write-wins gate but carries an
			// older end date. The date only moves forward; keep ours.
			uc.logger.Debugw("ignoring backward end date",
				"external_reference", sub.ExternalReference(),
				"stored_ends_at", sub.EndsAt(),
				"event_ends_at", update.EndsAt,
			)
		}
	}

	if update.Status != nil {
		if err := sub.ApplyStatus(*update.Status); err != nil {
			var transErr *subscription.InvalidTransitionError
			if errors.As(err, &transErr) {
				return apperrors.NewConflictError("invalid status transition", transErr.Error())
			}
			return err
		}
	}

	if update.CancelledAt != nil {
		sub.Cancel(*update.CancelledAt)
	}

	return nil
}

// resolveClient finds or creates the owning tenant. Creation without a
// customer identity is the one case where a failed enrichment fetch becomes
// the caller's error.
func (uc *ReconcileSubscriptionUseCase) resolveClient(
	ctx context.Context,
	existing *subscription.Subscription,
	update *subscription.Update,
	fetchErr error,
) (*client.Client, error) {
	if update.CustomerEmail == "" {
		if existing != nil {
			return nil, nil
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		return nil, apperrors.NewValidationError(
			"cannot create subscription without customer identity",
			"event carried no customer email and enrichment returned none",
		)
	}

	owner, err := uc.clientRepo.GetByEmail(ctx, update.CustomerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	if owner == nil {
		owner, err = client.NewClient("", update.CustomerEmail)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid customer email", err.Error())
		}
		for provider, externalID := range update.CustomerExternalIDs {
			owner.RecordExternalID(provider, externalID)
		}
		if err := uc.clientRepo.Create(ctx, owner); err != nil {
			if apperrors.IsDuplicateError(err) {
				// Lost a create race with a concurrent delivery.
				return uc.clientRepo.GetByEmail(ctx, update.CustomerEmail)
			}
			return nil, fmt.Errorf("failed to create client: %w", err)
		}
		uc.logger.Infow("client created from billing event",
			"client_sid", owner.SID(),
			"email", owner.Email(),
		)
		return owner, nil
	}

	if len(update.CustomerExternalIDs) > 0 {
		before := len(owner.ExternalIDs())
		for provider, externalID := range update.CustomerExternalIDs {
			owner.RecordExternalID(provider, externalID)
		}
		if len(owner.ExternalIDs()) != before {
			if err := uc.clientRepo.Update(ctx, owner); err != nil {
				uc.logger.Warnw("failed to record client external ids", "error", err)
			}
		}
	}

	return owner, nil
}

func (uc *ReconcileSubscriptionUseCase) resolvePlanID(ctx context.Context, update *subscription.Update) uint {
	if update.PlanHint == nil {
		return 0
	}
	plan, err := uc.planRepo.GetByExternalProductID(ctx, *update.PlanHint)
	if err != nil {
		uc.logger.Warnw("failed to resolve plan hint", "hint", *update.PlanHint, "error", err)
		return 0
	}
	if plan == nil {
		uc.logger.Debugw("plan hint matched no local plan", "hint", *update.PlanHint)
		return 0
	}
	return plan.ID()
}

func (uc *ReconcileSubscriptionUseCase) invalidateCache(ctx context.Context, sid string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx, sid); err != nil {
		uc.logger.Warnw("failed to invalidate status cache", "sid", sid, "error", err)
	}
}
