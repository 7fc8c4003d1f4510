package valueobjects

type SubscriptionStatus string

const (
	StatusPending  SubscriptionStatus = "pending"
	StatusActive   SubscriptionStatus = "active"
	StatusGrace    SubscriptionStatus = "grace"
	StatusInactive SubscriptionStatus = "inactive"
	StatusExpired  SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// CanUseService reports whether a subscription in this status still grants
// access. Grace counts: the billing system is retrying payment but the
// subscription has not lapsed yet.
func (s SubscriptionStatus) CanUseService() bool {
	return s == StatusActive || s == StatusGrace
}

// CanRenew reports whether a renewal event is meaningful for this status.
// Expired is included: a renewal after lapse reactivates the subscription.
func (s SubscriptionStatus) CanRenew() bool {
	return s == StatusActive || s == StatusGrace || s == StatusInactive || s == StatusExpired
}

// CanTransitionTo validates a status transition. Pending accepts any mapped
// status since the first event for a freshly created record may carry any
// state. Expired only transitions back to active, which models a renewal
// after lapse rather than an archive exit.
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	transitions := map[SubscriptionStatus][]SubscriptionStatus{
		StatusPending:  {StatusActive, StatusGrace, StatusInactive, StatusExpired},
		StatusActive:   {StatusGrace, StatusInactive, StatusExpired},
		StatusGrace:    {StatusActive, StatusInactive, StatusExpired},
		StatusInactive: {StatusActive, StatusGrace, StatusExpired},
		StatusExpired:  {StatusActive},
	}

	allowed, exists := transitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == target {
			return true
		}
	}
	return false
}

var ValidStatuses = map[SubscriptionStatus]bool{
	StatusPending:  true,
	StatusActive:   true,
	StatusGrace:    true,
	StatusInactive: true,
	StatusExpired:  true,
}
