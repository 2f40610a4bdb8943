package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists subscriptions and checkout sessions. Finders return
// (nil, nil) when no row exists.
type Repository interface {
	FindSubscription(ctx context.Context, db *gorm.DB, entityType, entityID string) (*SubscriptionRecord, error)
	InsertSubscription(ctx context.Context, db *gorm.DB, record *SubscriptionRecord) error
	UpdateSubscription(ctx context.Context, db *gorm.DB, record *SubscriptionRecord) error

	FindCheckoutByReference(ctx context.Context, db *gorm.DB, referenceID string) (*CheckoutSession, error)
	InsertCheckout(ctx context.Context, db *gorm.DB, session *CheckoutSession) error
	UpdateCheckoutStatus(ctx context.Context, db *gorm.DB, session *CheckoutSession) error
}
