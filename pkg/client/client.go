// Package client is a small Go SDK for the billing HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// APIError is the decoded error envelope returned by the service.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("billing api: %s (%d): %s", e.Type, e.StatusCode, e.Message)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithOrganization scopes every call to the organization instead of the
// authenticated user.
func WithOrganization(organizationID string) Option {
	return func(c *Client) { c.organizationID = organizationID }
}

// Client calls the billing API with a bearer session token.
type Client struct {
	baseURL        string
	token          string
	organizationID string
	http           *http.Client
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Subscription struct {
	PlanID            string           `json:"planId"`
	Status            string           `json:"status"`
	CurrentPeriodEnd  time.Time        `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool             `json:"cancelAtPeriodEnd"`
	Addons            map[string]int64 `json:"addons,omitempty"`
	TrialEndsAt       *time.Time       `json:"trialEndsAt,omitempty"`
}

// Active reports whether the subscription currently grants access.
func (s Subscription) Active() bool {
	return s.Status == "active" || s.Status == "trialing"
}

type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Balance *int64 `json:"balance,omitempty"`
	Limit   *int64 `json:"limit,omitempty"`
	PlanID  string `json:"planId,omitempty"`
}

type TrackResult struct {
	Success bool  `json:"success"`
	Balance int64 `json:"balance"`
	Limit   int64 `json:"limit"`
}

type AttachResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	ReferenceID string `json:"referenceId"`
	SessionID   string `json:"sessionId"`
}

type VerifyResult struct {
	Status string `json:"status"`
	PlanID string `json:"planId"`
}

func (c *Client) GetSubscription(ctx context.Context) (Subscription, error) {
	var out Subscription
	err := c.get(ctx, "/api/v1/billing/get-subscription", nil, &out)
	return out, err
}

// HasActiveSubscription reports whether the entity currently has access.
// A missing subscription is not an error here.
func (c *Client) HasActiveSubscription(ctx context.Context) (bool, error) {
	sub, err := c.GetSubscription(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return sub.Active(), nil
}

func (c *Client) Check(ctx context.Context, featureID string) (CheckResult, error) {
	var out CheckResult
	err := c.get(ctx, "/api/v1/billing/check", url.Values{"featureId": {featureID}}, &out)
	return out, err
}

func (c *Client) Track(ctx context.Context, featureID string, delta int64) (TrackResult, error) {
	var result TrackResult
	err := c.post(ctx, "/api/v1/billing/track", map[string]any{
		"featureId":      featureID,
		"delta":          delta,
		"organizationId": c.organizationID,
	}, &result)
	return result, err
}

func (c *Client) Attach(ctx context.Context, planID, successURL, cancelURL string) (AttachResult, error) {
	var out AttachResult
	err := c.post(ctx, "/api/v1/billing/attach", map[string]any{
		"planId":         planID,
		"successUrl":     successURL,
		"cancelUrl":      cancelURL,
		"organizationId": c.organizationID,
	}, &out)
	return out, err
}

func (c *Client) Verify(ctx context.Context, referenceID string) (VerifyResult, error) {
	var out VerifyResult
	err := c.post(ctx, "/api/v1/billing/verify", map[string]any{"referenceId": referenceID}, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.organizationID != "" {
		query.Set("organizationId", c.organizationID)
	}
	target := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       envelope.Error.Type,
			Message:    envelope.Error.Message,
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
