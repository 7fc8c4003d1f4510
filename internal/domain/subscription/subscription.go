package subscription

import (
	"fmt"
	"time"

	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/shared/id"
)

// Metadata provenance keys. Provenance is written under fixed keys only to
// keep the metadata mapping from drifting into an unbounded schema.
const (
	MetaSyncedBy         = "synced_by"
	MetaSyncedAt         = "synced_at"
	MetaExpiryEnforcedBy = "expiry_enforced_by"
)

// Provenance tag values.
const (
	SourceWebhook = "webhook"
	SourceSweep   = "fallback-sweep"
)

// Subscription is the aggregate root for one billing-system subscription.
// The external reference is the idempotency key: reconciliation mutates one
// record per external reference in place, it never appends.
type Subscription struct {
	id                uint
	sid               string
	externalReference string
	clientID          uint
	planID            uint
	status            vo.SubscriptionStatus
	startsAt          *time.Time
	endsAt            *time.Time
	cancelledAt       *time.Time
	lastSyncedAt      time.Time
	lastRenewalAt     *time.Time
	billingCycleCount int
	renewalToken      string
	metadata          map[string]interface{}
	version           int
	createdAt         time.Time
	updatedAt         time.Time
}

// NewSubscription creates a subscription in pending status for an external
// reference seen for the first time. The renewal token is generated here and
// never touched by reconciliation afterwards.
func NewSubscription(externalReference string, clientID, planID uint) (*Subscription, error) {
	if externalReference == "" {
		return nil, fmt.Errorf("external reference is required")
	}
	if clientID == 0 {
		return nil, fmt.Errorf("client ID is required")
	}

	sid, err := id.GenerateWithPrefix(id.PrefixSubscription, id.DefaultLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate subscription SID: %w", err)
	}
	token, err := id.Generate(id.RenewalTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate renewal token: %w", err)
	}

	now := time.Now().UTC()
	return &Subscription{
		sid:               sid,
		externalReference: externalReference,
		clientID:          clientID,
		planID:            planID,
		status:            vo.StatusPending,
		renewalToken:      token,
		metadata:          make(map[string]interface{}),
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// ReconstructParams carries the persisted state of a subscription.
type ReconstructParams struct {
	ID                uint
	SID               string
	ExternalReference string
	ClientID          uint
	PlanID            uint
	Status            vo.SubscriptionStatus
	StartsAt          *time.Time
	EndsAt            *time.Time
	CancelledAt       *time.Time
	LastSyncedAt      time.Time
	LastRenewalAt     *time.Time
	BillingCycleCount int
	RenewalToken      string
	Metadata          map[string]interface{}
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reconstruct rebuilds a subscription from persistence.
func Reconstruct(p ReconstructParams) (*Subscription, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("subscription ID cannot be zero")
	}
	if p.ExternalReference == "" {
		return nil, fmt.Errorf("external reference is required")
	}
	if !vo.ValidStatuses[p.Status] {
		return nil, fmt.Errorf("invalid subscription status: %s", p.Status)
	}

	if p.Metadata == nil {
		p.Metadata = make(map[string]interface{})
	}

	return &Subscription{
		id:                p.ID,
		sid:               p.SID,
		externalReference: p.ExternalReference,
		clientID:          p.ClientID,
		planID:            p.PlanID,
		status:            p.Status,
		startsAt:          p.StartsAt,
		endsAt:            p.EndsAt,
		cancelledAt:       p.CancelledAt,
		lastSyncedAt:      p.LastSyncedAt,
		lastRenewalAt:     p.LastRenewalAt,
		billingCycleCount: p.BillingCycleCount,
		renewalToken:      p.RenewalToken,
		metadata:          p.Metadata,
		version:           p.Version,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}, nil
}

func (s *Subscription) ID() uint                     { return s.id }
func (s *Subscription) SID() string                  { return s.sid }
func (s *Subscription) ExternalReference() string    { return s.externalReference }
func (s *Subscription) ClientID() uint               { return s.clientID }
func (s *Subscription) PlanID() uint                 { return s.planID }
func (s *Subscription) Status() vo.SubscriptionStatus { return s.status }
func (s *Subscription) StartsAt() *time.Time         { return s.startsAt }
func (s *Subscription) EndsAt() *time.Time           { return s.endsAt }
func (s *Subscription) CancelledAt() *time.Time      { return s.cancelledAt }
func (s *Subscription) LastSyncedAt() time.Time      { return s.lastSyncedAt }
func (s *Subscription) LastRenewalAt() *time.Time    { return s.lastRenewalAt }
func (s *Subscription) BillingCycleCount() int       { return s.billingCycleCount }
func (s *Subscription) RenewalToken() string         { return s.renewalToken }
func (s *Subscription) Metadata() map[string]interface{} { return s.metadata }
func (s *Subscription) Version() int                 { return s.version }
func (s *Subscription) CreatedAt() time.Time         { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time         { return s.updatedAt }

// SetID sets the subscription ID (only for persistence layer use)
func (s *Subscription) SetID(subID uint) error {
	if s.id != 0 {
		return fmt.Errorf("subscription ID is already set")
	}
	if subID == 0 {
		return fmt.Errorf("subscription ID cannot be zero")
	}
	s.id = subID
	return nil
}

// ApplyStatus transitions the subscription to target. Same-status is a
// no-op.
func (s *Subscription) ApplyStatus(target vo.SubscriptionStatus) error {
	if s.status == target {
		return nil
	}
	if !vo.ValidStatuses[target] {
		return fmt.Errorf("invalid subscription status: %s", target)
	}
	if !s.status.CanTransitionTo(target) {
		return &InvalidTransitionError{From: s.status, To: target}
	}

	s.status = target
	s.updatedAt = time.Now().UTC()
	return nil
}

// Renew applies a renewal observed at newEndsAt. The end date may only move
// forward; replays of the same renewal are detected via the last observed
// renewal end date so the cycle counter is incremented once per distinct
// renewal, not once per delivery. An expired or grace subscription renews
// back to active.
func (s *Subscription) Renew(newEndsAt time.Time) error {
	if s.lastRenewalAt != nil && newEndsAt.Equal(*s.lastRenewalAt) {
		return nil
	}
	if s.endsAt != nil && !newEndsAt.After(*s.endsAt) {
		return &EndsAtRegressionError{Current: *s.endsAt, Proposed: newEndsAt}
	}
	if !s.status.CanRenew() && s.status != vo.StatusPending {
		return fmt.Errorf("cannot renew subscription with status %s", s.status)
	}

	renewedAt := newEndsAt
	s.endsAt = &renewedAt
	s.lastRenewalAt = &renewedAt
	s.billingCycleCount++
	s.updatedAt = time.Now().UTC()

	if s.status == vo.StatusExpired || s.status == vo.StatusGrace {
		s.status = vo.StatusActive
	}
	return nil
}

// SetEndsAt moves the end date without counting a renewal. Used when the
// first event for a new record establishes the initial period. The date may
// never move backward.
func (s *Subscription) SetEndsAt(endsAt time.Time) error {
	if s.endsAt != nil {
		if endsAt.Equal(*s.endsAt) {
			return nil
		}
		if endsAt.Before(*s.endsAt) {
			return &EndsAtRegressionError{Current: *s.endsAt, Proposed: endsAt}
		}
	}
	v := endsAt
	s.endsAt = &v
	s.updatedAt = time.Now().UTC()
	return nil
}

// SetStartsAt records the subscription start. Only set once; later events
// never move an established start date.
func (s *Subscription) SetStartsAt(startsAt time.Time) {
	if s.startsAt != nil {
		return
	}
	v := startsAt
	s.startsAt = &v
	s.updatedAt = time.Now().UTC()
}

// Cancel records the cancellation time. First write wins: a cancellation
// date, once set, is never overwritten.
func (s *Subscription) Cancel(at time.Time) {
	if s.cancelledAt != nil {
		return
	}
	v := at
	s.cancelledAt = &v
	s.updatedAt = time.Now().UTC()
}

// MarkExpired force-transitions an overdue subscription to expired. Used by
// the fallback sweep. The cancellation date is backfilled from the end date
// when no cancellation event ever arrived.
func (s *Subscription) MarkExpired(now time.Time) error {
	if s.status == vo.StatusExpired {
		return nil
	}
	if !s.status.CanTransitionTo(vo.StatusExpired) {
		return &InvalidTransitionError{From: s.status, To: vo.StatusExpired}
	}

	s.status = vo.StatusExpired
	if s.cancelledAt == nil {
		if s.endsAt != nil {
			s.Cancel(*s.endsAt)
		} else {
			s.Cancel(now)
		}
	}
	s.updatedAt = now
	return nil
}

// SetPlanID resolves the plan reference. Plans are read-only here; only the
// reference moves.
func (s *Subscription) SetPlanID(planID uint) {
	if planID == 0 || planID == s.planID {
		return
	}
	s.planID = planID
	s.updatedAt = time.Now().UTC()
}

// Touch stamps the sync time and provenance and bumps the aggregate version.
// Exactly one Touch per reconcile or sweep write; the repository uses the
// pre-Touch version for its optimistic lock.
func (s *Subscription) Touch(syncedAt time.Time, source string) {
	s.lastSyncedAt = syncedAt
	s.metadata[MetaSyncedBy] = source
	s.metadata[MetaSyncedAt] = syncedAt.Format(time.RFC3339)
	if source == SourceSweep {
		s.metadata[MetaExpiryEnforcedBy] = SourceSweep
	}
	s.version++
	s.updatedAt = syncedAt
}

// IsOverdue reports whether the end date has passed.
func (s *Subscription) IsOverdue(now time.Time) bool {
	return s.endsAt != nil && s.endsAt.Before(now)
}

// EffectiveStatus returns the status a caller should act on right now:
// a subscription past its end date reads as expired even if the fallback
// sweep has not visited it yet.
func (s *Subscription) EffectiveStatus(now time.Time) vo.SubscriptionStatus {
	if s.IsOverdue(now) && s.status != vo.StatusPending {
		return vo.StatusExpired
	}
	return s.status
}

// IsActive reports whether the subscription currently grants access.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.EffectiveStatus(now).CanUseService()
}
