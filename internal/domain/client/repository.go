package client

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no client matches the lookup.
var ErrNotFound = errors.New("client not found")

type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id uint) (*Client, error)
	GetBySID(ctx context.Context, sid string) (*Client, error)

	// GetByEmail returns (nil, nil) when no client owns the address.
	GetByEmail(ctx context.Context, email string) (*Client, error)

	Update(ctx context.Context, c *Client) error
}
