// Package domain contains persistence models for subscriptions and
// checkout sessions.
package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// transitions holds the allowed status moves. Statuses absent from the map
// are terminal for automated flows.
var transitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusPending:  {SubscriptionStatusActive, SubscriptionStatusUnpaid},
	SubscriptionStatusTrialing: {SubscriptionStatusActive, SubscriptionStatusCanceled},
	SubscriptionStatusActive:   {SubscriptionStatusPastDue, SubscriptionStatusCanceled},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to SubscriptionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SubscriptionRecord is the logical subscription of one entity. An entity
// holds at most one record per entity type.
type SubscriptionRecord struct {
	ID                snowflake.ID       `gorm:"primaryKey"`
	EntityType        string             `gorm:"type:text;not null;uniqueIndex:idx_subscription_entity"`
	EntityID          string             `gorm:"type:text;not null;uniqueIndex:idx_subscription_entity"`
	PlanID            string             `gorm:"type:text;not null"`
	Status            SubscriptionStatus `gorm:"type:text;not null"`
	CurrentPeriodEnd  time.Time          `gorm:"not null"`
	CancelAtPeriodEnd bool               `gorm:"not null;default:false"`
	Addons            datatypes.JSONMap  `gorm:"type:jsonb"`
	TrialEndsAt       *time.Time         `gorm:""`
	PaymentIntentID   *string            `gorm:"type:text"`
	CreatedAt         time.Time          `gorm:"not null"`
	UpdatedAt         time.Time          `gorm:"not null"`
}

// TableName sets the database table name.
func (SubscriptionRecord) TableName() string { return "subscription_records" }

// AddonQuantities decodes the addons JSON map into addonId -> quantity.
// Depending on driver and round-trip, values arrive as float64, integer,
// json.Number or a bare numeric string; all are accepted.
func (r SubscriptionRecord) AddonQuantities() map[string]int64 {
	owned := make(map[string]int64, len(r.Addons))
	for addonID, raw := range r.Addons {
		switch qty := raw.(type) {
		case float64:
			owned[addonID] = int64(qty)
		case int64:
			owned[addonID] = qty
		case int:
			owned[addonID] = int64(qty)
		case json.Number:
			if n, err := qty.Int64(); err == nil {
				owned[addonID] = n
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(qty), 10, 64); err == nil {
				owned[addonID] = n
			}
		}
	}
	return owned
}

// CheckoutSessionStatus tracks the attach flow.
type CheckoutSessionStatus string

const (
	CheckoutStatusPending   CheckoutSessionStatus = "pending"
	CheckoutStatusCompleted CheckoutSessionStatus = "completed"
)

// CheckoutSession records one attach attempt. ReferenceID is the
// unguessable token embedded in the gateway redirect URL.
type CheckoutSession struct {
	ID          snowflake.ID          `gorm:"primaryKey"`
	ReferenceID string                `gorm:"type:text;not null;uniqueIndex"`
	SessionID   string                `gorm:"type:text;not null"`
	EntityType  string                `gorm:"type:text;not null"`
	EntityID    string                `gorm:"type:text;not null"`
	PlanID      string                `gorm:"type:text;not null"`
	Status      CheckoutSessionStatus `gorm:"type:text;not null"`
	CreatedAt   time.Time             `gorm:"not null"`
	UpdatedAt   time.Time             `gorm:"not null"`
}

// TableName sets the database table name.
func (CheckoutSession) TableName() string { return "checkout_sessions" }
