// Package client holds the tenant entity that owns subscriptions.
package client

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"subsync/internal/shared/id"
)

// Client is the owning tenant of a subscription. Reconciliation resolves a
// client by customer email and creates one on first contact; it never
// deletes or merges clients.
type Client struct {
	id          uint
	sid         string
	name        string
	email       string
	externalIDs map[string]string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewClient creates a client keyed by email.
func NewClient(name, email string) (*Client, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid client email %q: %w", email, err)
	}

	sid, err := id.GenerateWithPrefix(id.PrefixClient, id.DefaultLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate client SID: %w", err)
	}

	now := time.Now().UTC()
	return &Client{
		sid:         sid,
		name:        name,
		email:       email,
		externalIDs: make(map[string]string),
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructParams carries the persisted state of a client.
type ReconstructParams struct {
	ID          uint
	SID         string
	Name        string
	Email       string
	ExternalIDs map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reconstruct rebuilds a client from persistence.
func Reconstruct(p ReconstructParams) (*Client, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("client ID cannot be zero")
	}
	if p.ExternalIDs == nil {
		p.ExternalIDs = make(map[string]string)
	}
	return &Client{
		id:          p.ID,
		sid:         p.SID,
		name:        p.Name,
		email:       p.Email,
		externalIDs: p.ExternalIDs,
		createdAt:   p.CreatedAt,
		updatedAt:   p.UpdatedAt,
	}, nil
}

func (c *Client) ID() uint                        { return c.id }
func (c *Client) SID() string                     { return c.sid }
func (c *Client) Name() string                    { return c.name }
func (c *Client) Email() string                   { return c.email }
func (c *Client) ExternalIDs() map[string]string  { return c.externalIDs }
func (c *Client) CreatedAt() time.Time            { return c.createdAt }
func (c *Client) UpdatedAt() time.Time            { return c.updatedAt }

// SetID sets the client ID (only for persistence layer use)
func (c *Client) SetID(clientID uint) error {
	if c.id != 0 {
		return fmt.Errorf("client ID is already set")
	}
	if clientID == 0 {
		return fmt.Errorf("client ID cannot be zero")
	}
	c.id = clientID
	return nil
}

// RecordExternalID remembers a payment-processor identifier for this client
// (e.g. a Stripe customer id passed through by the billing system). First
// write wins per provider.
func (c *Client) RecordExternalID(provider, externalID string) {
	if provider == "" || externalID == "" {
		return
	}
	if _, ok := c.externalIDs[provider]; ok {
		return
	}
	c.externalIDs[provider] = externalID
	c.updatedAt = time.Now().UTC()
}
