package usecases

import (
	"time"

	"subsync/internal/domain/subscription"
	"subsync/internal/shared/biztime"
)

// SubscriptionDTO is the full read model for one subscription.
type SubscriptionDTO struct {
	SID               string                 `json:"sid"`
	ExternalReference string                 `json:"external_reference"`
	Status            string                 `json:"status"`
	EffectiveStatus   string                 `json:"effective_status"`
	StartsAt          *time.Time             `json:"starts_at,omitempty"`
	EndsAt            *time.Time             `json:"ends_at,omitempty"`
	CancelledAt       *time.Time             `json:"cancelled_at,omitempty"`
	LastSyncedAt      time.Time              `json:"last_synced_at"`
	BillingCycleCount int                    `json:"billing_cycle_count"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func buildSubscriptionDTO(sub *subscription.Subscription) *SubscriptionDTO {
	return &SubscriptionDTO{
		SID:               sub.SID(),
		ExternalReference: sub.ExternalReference(),
		Status:            sub.Status().String(),
		EffectiveStatus:   sub.EffectiveStatus(biztime.NowUTC()).String(),
		StartsAt:          sub.StartsAt(),
		EndsAt:            sub.EndsAt(),
		CancelledAt:       sub.CancelledAt(),
		LastSyncedAt:      sub.LastSyncedAt(),
		BillingCycleCount: sub.BillingCycleCount(),
		Metadata:          sub.Metadata(),
		CreatedAt:         sub.CreatedAt(),
		UpdatedAt:         sub.UpdatedAt(),
	}
}
