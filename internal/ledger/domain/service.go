package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRecordNotFound    = errors.New("entity_record_not_found")
	ErrInvalidEntityType = errors.New("invalid_entity_type")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
)

// CheckRequest asks whether an entity may use a feature right now.
type CheckRequest struct {
	EntityType EntityType
	EntityID   string
	FeatureID  string
}

// CheckResponse reports entitlement. Balance and Limit are nil for
// boolean features, which carry no allowance.
type CheckResponse struct {
	Allowed bool
	Balance *int64
	Limit   *int64
	PlanID  string
}

// TrackRequest consumes Delta units of a metered feature. A negative Delta
// credits the balance back; zero is rejected.
type TrackRequest struct {
	EntityType EntityType
	EntityID   string
	FeatureID  string
	Delta      int64
}

type TrackResponse struct {
	Success bool
	Balance int64
	Limit   int64
}

// ReplaceForPlanChangeRequest rebuilds an entity's ledger for a new plan,
// carrying consumed usage forward into the fresh records.
type ReplaceForPlanChangeRequest struct {
	EntityType        EntityType
	EntityID          string
	PlanID            string
	CheckoutSessionID *string
}

// CreditRequest adds Amount units of allowance to an existing record,
// typically from an addon purchase.
type CreditRequest struct {
	EntityType EntityType
	EntityID   string
	FeatureID  string
	Amount     int64
}

// SeatUsage summarizes seat consumption for an organization.
type SeatUsage struct {
	Used      int64
	Limit     int64
	Remaining int64
}

// Service is the usage ledger. Period rollover is lazy: expired records
// are reset on the next read rather than by a background job.
type Service interface {
	Check(ctx context.Context, req CheckRequest) (CheckResponse, error)
	Track(ctx context.Context, req TrackRequest) (TrackResponse, error)
	ReplaceForPlanChange(ctx context.Context, req ReplaceForPlanChangeRequest) error
	Credit(ctx context.Context, req CreditRequest) error
	SeatUsage(ctx context.Context, entityType EntityType, entityID, featureID string, defaultLimit int64) (SeatUsage, error)
}

// EntitlementResolver answers subscription-side questions the ledger needs
// without depending on the subscription service directly.
type EntitlementResolver interface {
	// AddonBonus returns the extra allowance the entity's owned addons
	// grant for the feature.
	AddonBonus(ctx context.Context, entityType EntityType, entityID, featureID string) (int64, error)
	// RolloverAllowed reports whether an expired period may reset. A
	// subscription flagged to cancel at period end denies the rollover.
	RolloverAllowed(ctx context.Context, entityType EntityType, entityID string, at time.Time) (bool, error)
}
