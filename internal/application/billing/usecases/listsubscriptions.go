package usecases

import (
	"context"

	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/shared/logger"
)

// ListSubscriptionsQuery carries the list filters and paging.
type ListSubscriptionsQuery struct {
	ClientID *uint
	PlanID   *uint
	Status   *string
	Page     int
	PageSize int
	SortBy   string
	SortDesc bool
}

// ListSubscriptionsResult is one page of subscriptions plus the total count.
type ListSubscriptionsResult struct {
	Subscriptions []*SubscriptionDTO `json:"subscriptions"`
	Total         int64              `json:"total"`
	Page          int                `json:"page"`
	PageSize      int                `json:"page_size"`
}

// StatusBreakdown counts subscriptions per lifecycle status.
type StatusBreakdown map[string]int64

type ListSubscriptionsUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	logger           logger.Interface
}

func NewListSubscriptionsUseCase(subscriptionRepo subscription.SubscriptionRepository, logger logger.Interface) *ListSubscriptionsUseCase {
	return &ListSubscriptionsUseCase{subscriptionRepo: subscriptionRepo, logger: logger}
}

func (uc *ListSubscriptionsUseCase) Execute(ctx context.Context, query ListSubscriptionsQuery) (*ListSubscriptionsResult, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 || query.PageSize > 100 {
		query.PageSize = 20
	}

	subs, total, err := uc.subscriptionRepo.List(ctx, subscription.SubscriptionFilter{
		ClientID: query.ClientID,
		PlanID:   query.PlanID,
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
		SortBy:   query.SortBy,
		SortDesc: query.SortDesc,
	})
	if err != nil {
		return nil, err
	}

	dtos := make([]*SubscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		dtos = append(dtos, buildSubscriptionDTO(sub))
	}

	return &ListSubscriptionsResult{
		Subscriptions: dtos,
		Total:         total,
		Page:          query.Page,
		PageSize:      query.PageSize,
	}, nil
}

// Breakdown returns the per-status subscription counts.
func (uc *ListSubscriptionsUseCase) Breakdown(ctx context.Context) (StatusBreakdown, error) {
	breakdown := make(StatusBreakdown, len(vo.ValidStatuses))
	for status := range vo.ValidStatuses {
		count, err := uc.subscriptionRepo.CountByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		breakdown[status.String()] = count
	}
	return breakdown, nil
}
