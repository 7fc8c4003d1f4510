// Package billingapi implements the authenticated read-only client for the
// billing system's REST API. Reconciliation uses it to fetch the
// authoritative subscription or order record when a webhook arrives with
// fields missing.
package billingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"subsync/internal/application/billing"
	"subsync/internal/domain/subscription"
	"subsync/internal/shared/config"
	apperrors "subsync/internal/shared/errors"
	"subsync/internal/shared/logger"
)

const (
	subscriptionRefPrefix = "wc-sub-"
	orderRefPrefix        = "wc-order-"

	// maxResponseBytes bounds how much of an upstream response is read;
	// the API never legitimately returns records anywhere near this size.
	maxResponseBytes = 1 << 20

	// maxErrorBodyBytes bounds how much of an error body is kept for logs.
	maxErrorBodyBytes = 4096
)

// Client fetches subscription and order records from the billing system over
// HTTP basic auth.
type Client struct {
	baseURL    string
	key        string
	secret     string
	httpClient *http.Client
	normalizer *billing.Normalizer
	logger     logger.Interface
}

func NewClient(cfg *config.BillingAPIConfig, logger logger.Interface) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		key:        cfg.Key,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		normalizer: billing.NewNormalizer(logger),
		logger:     logger,
	}
}

// GetSubscription fetches a single subscription record.
func (c *Client) GetSubscription(ctx context.Context, id int) (*billing.SubscriptionEvent, error) {
	var event billing.SubscriptionEvent
	path := fmt.Sprintf("/subscriptions/%d", id)
	if err := c.get(ctx, "fetch subscription", path, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetOrder fetches a single order record.
func (c *Client) GetOrder(ctx context.Context, id int) (*billing.OrderEvent, error) {
	var event billing.OrderEvent
	path := fmt.Sprintf("/orders/%d", id)
	if err := c.get(ctx, "fetch order", path, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListSubscriptions fetches a page of subscription records. Page numbering
// starts at 1; perPage falls back to the upstream default when zero.
func (c *Client) ListSubscriptions(ctx context.Context, page, perPage int) ([]billing.SubscriptionEvent, error) {
	var events []billing.SubscriptionEvent
	path := "/subscriptions" + listQuery(page, perPage)
	if err := c.get(ctx, "list subscriptions", path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListOrders fetches a page of order records.
func (c *Client) ListOrders(ctx context.Context, page, perPage int) ([]billing.OrderEvent, error) {
	var events []billing.OrderEvent
	path := "/orders" + listQuery(page, perPage)
	if err := c.get(ctx, "list orders", path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FetchSubscriptionUpdate pulls the authoritative upstream record behind an
// external reference and normalizes it into an update. Subscription-scoped
// references resolve against the subscription endpoint, order-scoped ones
// against the order endpoint.
func (c *Client) FetchSubscriptionUpdate(ctx context.Context, externalReference string) (*subscription.Update, error) {
	now := time.Now().UTC()

	var update *subscription.Update
	switch {
	case strings.HasPrefix(externalReference, subscriptionRefPrefix):
		id, err := parseReference(externalReference, subscriptionRefPrefix)
		if err != nil {
			return nil, err
		}
		event, err := c.GetSubscription(ctx, id)
		if err != nil {
			return nil, err
		}
		update, err = c.normalizer.NormalizeSubscription(event, now)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize fetched subscription: %w", err)
		}
	case strings.HasPrefix(externalReference, orderRefPrefix):
		id, err := parseReference(externalReference, orderRefPrefix)
		if err != nil {
			return nil, err
		}
		event, err := c.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		update, err = c.normalizer.NormalizeOrder(event, now)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize fetched order: %w", err)
		}
	default:
		return nil, fmt.Errorf("external reference %q has no upstream record", externalReference)
	}

	update.Source = subscription.UpdateSourceEnrichment

	c.logger.Debugw("fetched record from billing api",
		"external_reference", update.ExternalReference,
	)
	return update, nil
}

// get performs an authenticated GET and decodes the JSON body into out.
// Non-200 responses become typed upstream errors carrying the status code.
func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewUpstreamTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.Warnw("billing api returned error",
			"operation", op,
			"status_code", resp.StatusCode,
			"path", path,
		)
		return apperrors.NewUpstreamError(op, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return apperrors.NewUpstreamTransportError("decode "+op+" response", err)
	}
	return nil
}

func listQuery(page, perPage int) string {
	params := make([]string, 0, 2)
	if page > 0 {
		params = append(params, "page="+strconv.Itoa(page))
	}
	if perPage > 0 {
		params = append(params, "per_page="+strconv.Itoa(perPage))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + strings.Join(params, "&")
}

func parseReference(ref, prefix string) (int, error) {
	raw, ok := strings.CutPrefix(ref, prefix)
	if !ok {
		return 0, fmt.Errorf("external reference %q does not match prefix %q", ref, prefix)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("external reference %q has a malformed id", ref)
	}
	return id, nil
}
