// Package subscription is the client for the subscription surface of the
// auth-side API: current status, checkout session creation and the billing
// portal. The billing provider itself stays behind those endpoints.
package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Gateway issues authenticated requests. *session.Manager satisfies it.
type Gateway interface {
	Do(ctx context.Context, method, url string, body io.Reader, headers http.Header) (*http.Response, error)
}

// Status is the subscription state reported by the backend.
type Status struct {
	UserID               string `json:"user_id"`
	Plan                 string `json:"plan"`
	State                string `json:"status"`
	CurrentPeriodStart   string `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool   `json:"cancel_at_period_end,omitempty"`
	StripeCustomerID     string `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string `json:"stripe_subscription_id,omitempty"`
}

// CheckoutSession points the user at the billing provider's hosted
// checkout for an upgrade.
type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// Config holds subscription client configuration.
type Config struct {
	// BaseURL is the auth-side API base.
	BaseURL string

	// Gateway issues the authenticated calls. Required.
	Gateway Gateway
}

// Client calls the subscription endpoints.
type Client struct {
	baseURL string
	gateway Gateway
}

// New creates a subscription client.
func New(cfg Config) (*Client, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	return &Client{baseURL: cfg.BaseURL, gateway: cfg.Gateway}, nil
}

// Status returns the current subscription state.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.get(ctx, "/subscription/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateCheckoutSession starts a hosted checkout for the given price.
func (c *Client) CreateCheckoutSession(ctx context.Context, priceID string) (*CheckoutSession, error) {
	if priceID == "" {
		return nil, fmt.Errorf("price id is required")
	}

	body, err := json.Marshal(map[string]string{"priceId": priceID})
	if err != nil {
		return nil, fmt.Errorf("encode checkout request: %w", err)
	}

	resp, err := c.gateway.Do(ctx, http.MethodPost, c.baseURL+"/subscription/create", bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var sess CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &sess, nil
}

// BillingPortalURL returns the billing provider's self-service portal URL.
func (c *Client) BillingPortalURL(ctx context.Context) (string, error) {
	var portal struct {
		URL string `json:"url"`
	}
	if err := c.get(ctx, "/subscription/portal", &portal); err != nil {
		return "", err
	}
	return portal.URL, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.gateway.Do(ctx, http.MethodGet, c.baseURL+path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var failure struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil {
		if failure.Error != "" {
			return fmt.Errorf("subscription request failed: %s", failure.Error)
		}
		if failure.Message != "" {
			return fmt.Errorf("subscription request failed: %s", failure.Message)
		}
	}
	return fmt.Errorf("subscription request failed: status %d", resp.StatusCode)
}
