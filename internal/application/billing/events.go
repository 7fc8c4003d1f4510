// Package billing normalizes the billing system's webhook payloads into the
// canonical update record the reconciler consumes.
package billing

// OrderEvent is the order-created/updated webhook shape. Binding tags
// enforce the field-level constraints at the boundary so malformed input
// never reaches the reconciler.
type OrderEvent struct {
	OrderID  int     `json:"order_id" binding:"required"`
	Currency string  `json:"currency" binding:"required,iso4217"`
	Total    float64 `json:"total" binding:"required"`
	Status   string  `json:"status" binding:"omitempty"`

	// SubscriptionID links a renewal order to its subscription. Plain
	// one-off orders have none and are tracked under an order-scoped
	// reference instead.
	SubscriptionID *int `json:"subscription_id" binding:"omitempty"`

	ProductID *int   `json:"product_id" binding:"omitempty"`
	PaidAt    string `json:"paid_at" binding:"omitempty,datetime=2006-01-02"`

	Customer OrderCustomer `json:"customer" binding:"required"`
}

type OrderCustomer struct {
	Email     string `json:"email" binding:"required,email"`
	Name      string `json:"name" binding:"omitempty"`
	Country   string `json:"country" binding:"omitempty,iso3166_1_alpha2"`
	StripeID  string `json:"stripe_customer_id" binding:"omitempty"`
	BillingID string `json:"billing_customer_id" binding:"omitempty"`
}

// SubscriptionEvent is the subscription lifecycle webhook shape. All date
// fields are ISO dates; absent fields stay absent rather than defaulting,
// so the reconciler can tell "not in this event" from "cleared".
type SubscriptionEvent struct {
	SubscriptionID int    `json:"subscription_id" binding:"required"`
	Status         string `json:"status" binding:"omitempty"`

	StartedOn    string `json:"started_on" binding:"omitempty,datetime=2006-01-02"`
	PaymentDueOn string `json:"payment_due_on" binding:"omitempty,datetime=2006-01-02"`
	ExpiresOn    string `json:"expires_on" binding:"omitempty,datetime=2006-01-02"`
	EndedOn      string `json:"ended_on" binding:"omitempty,datetime=2006-01-02"`

	ProductID *int   `json:"product_id" binding:"omitempty"`
	Currency  string `json:"currency" binding:"omitempty,iso4217"`

	Customer *OrderCustomer `json:"customer" binding:"omitempty"`
}
