package usecases

import (
	"context"

	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/shared/biztime"
	apperrors "subsync/internal/shared/errors"
	"subsync/internal/shared/logger"
)

// SubscriptionStatusDTO is the read-model answer for "can this subscription
// use the service right now".
type SubscriptionStatusDTO struct {
	SID             string `json:"sid"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	CanUseService   bool   `json:"can_use_service"`
}

// GetSubscriptionStatusUseCase answers status lookups through the cache,
// falling back to the repository on a miss. The write paths invalidate the
// cached entry, so a hit is at worst one sweep interval stale.
type GetSubscriptionStatusUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	cache            StatusCache
	logger           logger.Interface
}

func NewGetSubscriptionStatusUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	logger logger.Interface,
) *GetSubscriptionStatusUseCase {
	return &GetSubscriptionStatusUseCase{
		subscriptionRepo: subscriptionRepo,
		logger:           logger,
	}
}

// SetStatusCache sets the status cache (optional dependency injection)
func (uc *GetSubscriptionStatusUseCase) SetStatusCache(cache StatusCache) {
	uc.cache = cache
}

func (uc *GetSubscriptionStatusUseCase) Execute(ctx context.Context, sid string) (*SubscriptionStatusDTO, error) {
	if uc.cache != nil {
		if status, ok, err := uc.cache.GetStatus(ctx, sid); err != nil {
			uc.logger.Warnw("status cache read failed", "sid", sid, "error", err)
		} else if ok {
			return uc.dtoFromStatus(sid, status), nil
		}
	}

	sub, err := uc.subscriptionRepo.GetBySID(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperrors.NewNotFoundError("subscription not found")
	}

	effective := sub.EffectiveStatus(biztime.NowUTC())
	dto := &SubscriptionStatusDTO{
		SID:             sub.SID(),
		Status:          sub.Status().String(),
		EffectiveStatus: effective.String(),
		CanUseService:   effective.CanUseService(),
	}

	if uc.cache != nil {
		if err := uc.cache.SetStatus(ctx, sid, dto.EffectiveStatus); err != nil {
			uc.logger.Warnw("status cache write failed", "sid", sid, "error", err)
		}
	}
	return dto, nil
}

// ExecuteByClientID answers the status question for a client's current
// subscription. The cache is keyed by sid, so this path always reads the
// record first and then refreshes the cached entry.
func (uc *GetSubscriptionStatusUseCase) ExecuteByClientID(ctx context.Context, clientID uint) (*SubscriptionStatusDTO, error) {
	sub, err := uc.subscriptionRepo.GetCurrentByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperrors.NewNotFoundError("client has no subscription")
	}

	effective := sub.EffectiveStatus(biztime.NowUTC())
	dto := &SubscriptionStatusDTO{
		SID:             sub.SID(),
		Status:          sub.Status().String(),
		EffectiveStatus: effective.String(),
		CanUseService:   effective.CanUseService(),
	}

	if uc.cache != nil {
		if err := uc.cache.SetStatus(ctx, sub.SID(), dto.EffectiveStatus); err != nil {
			uc.logger.Warnw("status cache write failed", "sid", sub.SID(), "error", err)
		}
	}
	return dto, nil
}

func (uc *GetSubscriptionStatusUseCase) dtoFromStatus(sid, status string) *SubscriptionStatusDTO {
	return &SubscriptionStatusDTO{
		SID:             sid,
		Status:          status,
		EffectiveStatus: status,
		CanUseService:   vo.SubscriptionStatus(status).CanUseService(),
	}
}
