package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	apperrors "subsync/internal/shared/errors"
	"subsync/internal/shared/biztime"
	"subsync/internal/shared/logger"
)

// orderStatusTable maps order statuses to subscription status hints. Orders
// carry a coarser vocabulary than subscription events; the same fail-loudly
// rule applies to values missing here.
var orderStatusTable = map[string]vo.SubscriptionStatus{
	"pending":    vo.StatusPending,
	"processing": vo.StatusActive,
	"completed":  vo.StatusActive,
	"on-hold":    vo.StatusGrace,
	"failed":     vo.StatusGrace,
	"cancelled":  vo.StatusExpired,
	"refunded":   vo.StatusExpired,
}

// Normalizer maps the two webhook shapes into subscription.Update records.
type Normalizer struct {
	logger logger.Interface
}

func NewNormalizer(logger logger.Interface) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeOrder converts an order event. eventTime is the verified
// signature timestamp of the delivery.
func (n *Normalizer) NormalizeOrder(ev *OrderEvent, eventTime time.Time) (*subscription.Update, error) {
	ref := orderReference(ev)

	update := &subscription.Update{
		ExternalReference:   ref,
		Source:              subscription.UpdateSourceOrder,
		EventTime:           eventTime,
		CustomerEmail:       ev.Customer.Email,
		CustomerExternalIDs: customerExternalIDs(&ev.Customer),
	}

	if ev.Status != "" {
		status, ok := orderStatusTable[ev.Status]
		if !ok {
			n.logger.Warnw("rejecting order event with unmapped status",
				"order_id", ev.OrderID,
				"status", ev.Status,
			)
			return nil, apperrors.NewUnknownStatusError(ev.Status)
		}
		update.Status = &status
	}

	if ev.PaidAt != "" {
		paidAt, err := biztime.ParseDateUTC(ev.PaidAt)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid paid_at date", err.Error())
		}
		update.StartsAt = &paidAt
	}

	if ev.ProductID != nil {
		hint := strconv.Itoa(*ev.ProductID)
		update.PlanHint = &hint
	}

	if raw, err := json.Marshal(ev); err == nil {
		update.RawPayload = raw
	}

	return update, nil
}

// NormalizeSubscription converts a subscription lifecycle event.
func (n *Normalizer) NormalizeSubscription(ev *SubscriptionEvent, eventTime time.Time) (*subscription.Update, error) {
	update := &subscription.Update{
		ExternalReference: subscriptionReference(ev.SubscriptionID),
		Source:            subscription.UpdateSourceSubscription,
		EventTime:         eventTime,
	}

	if ev.Customer != nil {
		update.CustomerEmail = ev.Customer.Email
		update.CustomerExternalIDs = customerExternalIDs(ev.Customer)
	}

	if ev.Status != "" {
		status, err := vo.MapExternalStatus(ev.Status)
		if err != nil {
			n.logger.Warnw("rejecting subscription event with unmapped status",
				"subscription_id", ev.SubscriptionID,
				"status", ev.Status,
			)
			return nil, apperrors.NewUnknownStatusError(ev.Status)
		}
		update.Status = &status
	}

	if ev.StartedOn != "" {
		startedOn, err := biztime.ParseDateUTC(ev.StartedOn)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid started_on date", err.Error())
		}
		update.StartsAt = &startedOn
	}

	if ev.ExpiresOn != "" {
		expiresOn, err := biztime.ParseDateUTC(ev.ExpiresOn)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid expires_on date", err.Error())
		}
		update.EndsAt = &expiresOn
	}

	if ev.EndedOn != "" {
		endedOn, err := biztime.ParseDateUTC(ev.EndedOn)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid ended_on date", err.Error())
		}
		update.CancelledAt = &endedOn
	} else if ev.Status != "" && vo.ImpliesCancellation(ev.Status) {
		// A cancellation without an explicit end date is dated by the
		// delivery itself.
		cancelledAt := eventTime
		update.CancelledAt = &cancelledAt
	}

	if ev.ProductID != nil {
		hint := strconv.Itoa(*ev.ProductID)
		update.PlanHint = &hint
	}

	if raw, err := json.Marshal(ev); err == nil {
		update.RawPayload = raw
	}

	return update, nil
}

// SubscriptionReference builds the external reference for a billing-system
// subscription id.
func SubscriptionReference(subscriptionID int) string {
	return subscriptionReference(subscriptionID)
}

func subscriptionReference(subscriptionID int) string {
	return fmt.Sprintf("wc-sub-%d", subscriptionID)
}

func orderReference(ev *OrderEvent) string {
	if ev.SubscriptionID != nil {
		return subscriptionReference(*ev.SubscriptionID)
	}
	return fmt.Sprintf("wc-order-%d", ev.OrderID)
}

func customerExternalIDs(c *OrderCustomer) map[string]string {
	ids := make(map[string]string)
	if c.StripeID != "" {
		ids["stripe"] = c.StripeID
	}
	if c.BillingID != "" {
		ids["billing"] = c.BillingID
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}
