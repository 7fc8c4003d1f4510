package valueobjects

import "fmt"

// externalStatusTable maps the billing system's subscription status
// vocabulary to the internal one. The table is fixed on purpose: an external
// status missing here is rejected loudly instead of being defaulted, so a
// vocabulary change upstream can never silently mis-transition a
// subscription.
var externalStatusTable = map[string]SubscriptionStatus{
	"pending":        StatusPending,
	"active":         StatusActive,
	"on-hold":        StatusGrace,
	"pending-cancel": StatusGrace,
	"cancelled":      StatusExpired,
	"expired":        StatusExpired,
	"switched":       StatusInactive,
}

// MapExternalStatus resolves an external status string to the internal
// status. Returns an error for any value not in the table.
func MapExternalStatus(external string) (SubscriptionStatus, error) {
	status, ok := externalStatusTable[external]
	if !ok {
		return "", fmt.Errorf("unmapped external subscription status %q", external)
	}
	return status, nil
}

// IsKnownExternalStatus reports whether the external status has a mapping.
func IsKnownExternalStatus(external string) bool {
	_, ok := externalStatusTable[external]
	return ok
}

// ImpliesCancellation reports whether the external status carries an
// implicit cancellation (used to backfill cancelled_at when the event has
// no explicit end date).
func ImpliesCancellation(external string) bool {
	return external == "cancelled" || external == "expired"
}
