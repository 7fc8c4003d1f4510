package usecases

import (
	"context"

	"subsync/internal/domain/subscription"
)

// BillingFetcher pulls the authoritative subscription record from the
// billing system when a webhook payload is too thin to merge. The fetch
// happens outside the per-key lock and a failure degrades to merging with
// what the webhook carried.
type BillingFetcher interface {
	FetchSubscriptionUpdate(ctx context.Context, externalReference string) (*subscription.Update, error)
}

// StatusCache is the read-through cache behind the status query surface.
// Reconcile and sweep invalidate; queries populate.
type StatusCache interface {
	GetStatus(ctx context.Context, sid string) (string, bool, error)
	SetStatus(ctx context.Context, sid string, status string) error
	Invalidate(ctx context.Context, sid string) error
}
