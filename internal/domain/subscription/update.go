package subscription

import (
	"encoding/json"
	"fmt"
	"time"

	vo "subsync/internal/domain/subscription/valueobjects"
)

// UpdateSource identifies which webhook shape produced an update.
type UpdateSource string

const (
	UpdateSourceOrder        UpdateSource = "order"
	UpdateSourceSubscription UpdateSource = "subscription"
	UpdateSourceEnrichment   UpdateSource = "enrichment"
)

// Update is the canonical record the normalizer produces from either webhook
// shape. Optional fields are pointers so "not present in this event" is
// distinguishable from an explicit value; the reconciler only merges fields
// that are present.
type Update struct {
	ExternalReference string
	Source            UpdateSource

	// EventTime orders updates under last-write-wins. Webhooks carry no
	// reliable event timestamp of their own, so this is the verified
	// signature timestamp of the delivery.
	EventTime time.Time

	Status      *vo.SubscriptionStatus
	StartsAt    *time.Time
	EndsAt      *time.Time
	CancelledAt *time.Time

	// PlanHint is the billing system's product identifier, resolved to a
	// local plan during reconciliation.
	PlanHint *string

	CustomerEmail       string
	CustomerExternalIDs map[string]string

	// RawPayload keeps the normalized source event for audit.
	RawPayload json.RawMessage
}

// Validate checks the update is complete enough to reconcile.
func (u *Update) Validate() error {
	if u.ExternalReference == "" {
		return fmt.Errorf("external reference is required")
	}
	if u.EventTime.IsZero() {
		return fmt.Errorf("event time is required")
	}
	if u.Status != nil && !vo.ValidStatuses[*u.Status] {
		return fmt.Errorf("invalid status %q", *u.Status)
	}
	return nil
}

// NeedsEnrichment reports whether the update lacks the fields a first-time
// creation needs, so the reconciler should fetch the authoritative record
// before merging.
func (u *Update) NeedsEnrichment() bool {
	return u.Status == nil || u.EndsAt == nil || u.CustomerEmail == ""
}

// MergeFrom fills absent fields from another update (the enrichment fetch).
// Present fields always win over fetched ones: the webhook is the trigger,
// the fetch only completes it.
func (u *Update) MergeFrom(other *Update) {
	if other == nil {
		return
	}
	if u.Status == nil {
		u.Status = other.Status
	}
	if u.StartsAt == nil {
		u.StartsAt = other.StartsAt
	}
	if u.EndsAt == nil {
		u.EndsAt = other.EndsAt
	}
	if u.CancelledAt == nil {
		u.CancelledAt = other.CancelledAt
	}
	if u.PlanHint == nil {
		u.PlanHint = other.PlanHint
	}
	if u.CustomerEmail == "" {
		u.CustomerEmail = other.CustomerEmail
	}
	for k, v := range other.CustomerExternalIDs {
		if _, ok := u.CustomerExternalIDs[k]; !ok {
			if u.CustomerExternalIDs == nil {
				u.CustomerExternalIDs = make(map[string]string)
			}
			u.CustomerExternalIDs[k] = v
		}
	}
}
