package subscription

import (
	"errors"
	"fmt"
	"time"

	vo "subsync/internal/domain/subscription/valueobjects"
)

var (
	// ErrNotFound is returned when no subscription matches the lookup.
	ErrNotFound = errors.New("subscription not found")

	// ErrStaleVersion is returned by the repository when a write lost an
	// optimistic-lock race. The per-key lock makes this unexpected; it is
	// a safety net, not a control-flow path.
	ErrStaleVersion = errors.New("subscription version is stale")
)

// InvalidTransitionError reports a status transition the state machine does
// not permit.
type InvalidTransitionError struct {
	From vo.SubscriptionStatus
	To   vo.SubscriptionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// EndsAtRegressionError reports an attempt to move the end date backward.
type EndsAtRegressionError struct {
	Current  time.Time
	Proposed time.Time
}

func (e *EndsAtRegressionError) Error() string {
	return fmt.Sprintf("end date may not move backward (current %s, proposed %s)",
		e.Current.Format(time.RFC3339), e.Proposed.Format(time.RFC3339))
}
