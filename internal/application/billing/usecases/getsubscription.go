package usecases

import (
	"context"

	"subsync/internal/domain/subscription"
	apperrors "subsync/internal/shared/errors"
	"subsync/internal/shared/logger"
)

// GetSubscriptionUseCase returns the full record for one subscription.
type GetSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	logger           logger.Interface
}

func NewGetSubscriptionUseCase(subscriptionRepo subscription.SubscriptionRepository, logger logger.Interface) *GetSubscriptionUseCase {
	return &GetSubscriptionUseCase{subscriptionRepo: subscriptionRepo, logger: logger}
}

func (uc *GetSubscriptionUseCase) Execute(ctx context.Context, sid string) (*SubscriptionDTO, error) {
	sub, err := uc.subscriptionRepo.GetBySID(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperrors.NewNotFoundError("subscription not found")
	}
	return buildSubscriptionDTO(sub), nil
}

// ExecuteByExternalReference looks the record up by its billing-system key.
func (uc *GetSubscriptionUseCase) ExecuteByExternalReference(ctx context.Context, ref string) (*SubscriptionDTO, error) {
	sub, err := uc.subscriptionRepo.GetByExternalReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperrors.NewNotFoundError("subscription not found")
	}
	return buildSubscriptionDTO(sub), nil
}
