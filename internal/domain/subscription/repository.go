package subscription

import (
	"context"
	"time"

	vo "subsync/internal/domain/subscription/valueobjects"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *Subscription) error
	GetByID(ctx context.Context, id uint) (*Subscription, error)
	GetBySID(ctx context.Context, sid string) (*Subscription, error)

	// GetByExternalReference is the idempotent-matching lookup. Returns
	// (nil, nil) when no record exists for the reference.
	GetByExternalReference(ctx context.Context, ref string) (*Subscription, error)

	GetCurrentByClientID(ctx context.Context, clientID uint) (*Subscription, error)

	// Update persists the aggregate with an optimistic version check and
	// returns ErrStaleVersion when the stored row moved underneath it.
	Update(ctx context.Context, subscription *Subscription) error

	// FindOverduePage returns one bounded page of subscriptions whose end
	// date has passed and whose status is still sweepable.
	FindOverduePage(ctx context.Context, now time.Time, offset, limit int) ([]*Subscription, error)

	List(ctx context.Context, filter SubscriptionFilter) ([]*Subscription, int64, error)
	CountByStatus(ctx context.Context, status vo.SubscriptionStatus) (int64, error)
}

type SubscriptionFilter struct {
	ClientID *uint
	PlanID   *uint
	Status   *string
	Page     int
	PageSize int
	SortBy   string
	SortDesc bool
}

type PlanRepository interface {
	Create(ctx context.Context, plan *Plan) error
	GetByID(ctx context.Context, id uint) (*Plan, error)
	GetBySlug(ctx context.Context, slug string) (*Plan, error)

	// GetByExternalProductID resolves a webhook plan hint to a local plan.
	// Returns (nil, nil) when the hint matches nothing.
	GetByExternalProductID(ctx context.Context, productID string) (*Plan, error)

	GetAllActive(ctx context.Context) ([]*Plan, error)
}
