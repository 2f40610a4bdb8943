// Package paymongo is a minimal REST client for the PayMongo API, covering
// the checkout-session and payment-intent resources the billing flows use.
package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// PaymentStatusPaid is the gateway's terminal "paid" value on checkout sessions.
	PaymentStatusPaid = "paid"

	IntentStatusSucceeded  = "succeeded"
	IntentStatusProcessing = "processing"
	IntentStatusCancelled  = "cancelled"
)

// Gateway is the outbound surface the billing services depend on.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CreateCheckoutSessionRequest) (CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (PaymentIntent, error)
}

// Error carries the upstream failure detail.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if strings.TrimSpace(e.Detail) != "" {
		return "gateway_error: " + e.Detail
	}
	return fmt.Sprintf("gateway_error: status %d", e.StatusCode)
}

type LineItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

type CreateCheckoutSessionRequest struct {
	LineItems          []LineItem
	Description        string
	SuccessURL         string
	CancelURL          string
	PaymentMethodTypes []string
}

type CheckoutSession struct {
	ID            string
	CheckoutURL   string
	PaymentStatus string
}

type CreatePaymentIntentRequest struct {
	Amount               int64
	Currency             string
	Description          string
	PaymentMethodAllowed []string
	Metadata             map[string]string
}

type PaymentIntent struct {
	ID        string
	ClientKey string
	Status    string
}

type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewClient builds a Gateway for the given base URL and secret key.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		secretKey: strings.TrimSpace(secretKey),
		client:    &http.Client{Timeout: 12 * time.Second},
	}
}

var defaultPaymentMethods = []string{"card", "gcash", "paymaya"}

func (c *Client) CreateCheckoutSession(ctx context.Context, req CreateCheckoutSessionRequest) (CheckoutSession, error) {
	methods := req.PaymentMethodTypes
	if len(methods) == 0 {
		methods = defaultPaymentMethods
	}
	payload := envelope{Data: resource{Attributes: map[string]any{
		"line_items":           req.LineItems,
		"description":          req.Description,
		"payment_method_types": methods,
		"success_url":          req.SuccessURL,
		"cancel_url":           req.CancelURL,
	}}}

	var out sessionEnvelope
	if err := c.doRequest(ctx, http.MethodPost, "/checkout_sessions", payload, &out); err != nil {
		return CheckoutSession{}, err
	}
	return out.session(), nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error) {
	var out sessionEnvelope
	if err := c.doRequest(ctx, http.MethodGet, "/checkout_sessions/"+sessionID, nil, &out); err != nil {
		return CheckoutSession{}, err
	}
	return out.session(), nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (PaymentIntent, error) {
	allowed := req.PaymentMethodAllowed
	if len(allowed) == 0 {
		allowed = defaultPaymentMethods
	}
	payload := envelope{Data: resource{Attributes: map[string]any{
		"amount":                 req.Amount,
		"currency":               req.Currency,
		"description":            req.Description,
		"payment_method_allowed": allowed,
		"metadata":               req.Metadata,
	}}}

	var out intentEnvelope
	if err := c.doRequest(ctx, http.MethodPost, "/payment_intents", payload, &out); err != nil {
		return PaymentIntent{}, err
	}
	return out.intent(), nil
}

func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (PaymentIntent, error) {
	var out intentEnvelope
	if err := c.doRequest(ctx, http.MethodGet, "/payment_intents/"+intentID, nil, &out); err != nil {
		return PaymentIntent{}, err
	}
	return out.intent(), nil
}

type envelope struct {
	Data resource `json:"data"`
}

type resource struct {
	Attributes map[string]any `json:"attributes"`
}

type sessionEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CheckoutURL   string `json:"checkout_url"`
			PaymentStatus string `json:"payment_status"`
		} `json:"attributes"`
	} `json:"data"`
}

func (e sessionEnvelope) session() CheckoutSession {
	return CheckoutSession{
		ID:            e.Data.ID,
		CheckoutURL:   e.Data.Attributes.CheckoutURL,
		PaymentStatus: e.Data.Attributes.PaymentStatus,
	}
}

type intentEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			ClientKey string `json:"client_key"`
			Status    string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

func (e intentEnvelope) intent() PaymentIntent {
	return PaymentIntent{
		ID:        e.Data.ID,
		ClientKey: e.Data.Attributes.ClientKey,
		Status:    e.Data.Attributes.Status,
	}
}

type errorEnvelope struct {
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	if c.secretKey == "" {
		return &Error{Detail: "missing secret key"}
	}

	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorEnvelope
		detail := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && len(apiErr.Errors) > 0 {
			if d := strings.TrimSpace(apiErr.Errors[0].Detail); d != "" {
				detail = d
			}
		}
		return &Error{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
