package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound      = errors.New("session_not_found")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrPaymentNotCompleted  = errors.New("payment_not_completed")
	ErrUsageLimitExceeded   = errors.New("usage_limit_exceeded")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidEntityType    = errors.New("invalid_entity_type")
	ErrFeatureNotMetered    = errors.New("feature_not_metered")
)

// EntityRef identifies the scope an operation acts on.
type EntityRef struct {
	EntityType string
	EntityID   string
}

type AttachRequest struct {
	EntityRef
	PlanID     string
	SuccessURL string
	CancelURL  string
}

type AttachResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	ReferenceID string `json:"referenceId"`
	SessionID   string `json:"sessionId"`
}

type VerifyRequest struct {
	ReferenceID string
}

type VerifyResponse struct {
	Status SubscriptionStatus `json:"status"`
	PlanID string             `json:"planId"`
}

type SetPlanRequest struct {
	EntityRef
	PlanID string
}

type SwitchPlanRequest struct {
	EntityRef
	PlanID string
}

type AddAddonRequest struct {
	EntityRef
	AddonID  string
	Quantity int64
}

type AddAddonResponse struct {
	AddonID  string `json:"addonId"`
	Quantity int64  `json:"quantity"`
}

// SubscriptionView is the client-facing shape of a subscription record.
type SubscriptionView struct {
	PlanID            string             `json:"planId"`
	Status            SubscriptionStatus `json:"status"`
	CurrentPeriodEnd  time.Time          `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool               `json:"cancelAtPeriodEnd"`
	Addons            map[string]int64   `json:"addons,omitempty"`
	TrialEndsAt       *time.Time         `json:"trialEndsAt,omitempty"`
}

// Active reports whether the subscription currently grants access.
func (v SubscriptionView) Active() bool {
	return v.Status == SubscriptionStatusActive || v.Status == SubscriptionStatusTrialing
}

type UsageSummary struct {
	FeatureID string `json:"featureId"`
	Usage     int64  `json:"usage"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
}

type IncrementUsageRequest struct {
	EntityRef
	FeatureID string
	Quantity  int64
}

type CreatePaymentIntentRequest struct {
	EntityRef
	PlanID string
}

type CreatePaymentIntentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientKey       string `json:"clientKey"`
	Status          string `json:"status"`
}

type CreateSubscriptionRequest struct {
	EntityRef
	PlanID          string
	PaymentIntentID string
}

type SeatSummary struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// Service is the subscription lifecycle around the usage ledger.
type Service interface {
	Attach(ctx context.Context, req AttachRequest) (AttachResponse, error)
	Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error)
	SetPlan(ctx context.Context, req SetPlanRequest) (SubscriptionView, error)
	GetSubscription(ctx context.Context, ref EntityRef) (SubscriptionView, error)
	CancelSubscription(ctx context.Context, ref EntityRef) (SubscriptionView, error)
	SwitchPlan(ctx context.Context, req SwitchPlanRequest) (SubscriptionView, error)
	AddAddon(ctx context.Context, req AddAddonRequest) (AddAddonResponse, error)
	CheckUsage(ctx context.Context, ref EntityRef, featureID string) (UsageSummary, error)
	IncrementUsage(ctx context.Context, req IncrementUsageRequest) (UsageSummary, error)
	CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (CreatePaymentIntentResponse, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (SubscriptionView, error)
	OrganizationSeats(ctx context.Context, organizationID string) (SeatSummary, error)
}
