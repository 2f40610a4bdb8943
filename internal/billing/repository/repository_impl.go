package repository

import (
	"context"

	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) FindSubscription(ctx context.Context, db *gorm.DB, entityType, entityID string) (*billingdomain.SubscriptionRecord, error) {
	var record billingdomain.SubscriptionRecord
	err := db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, record *billingdomain.SubscriptionRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, record *billingdomain.SubscriptionRecord) error {
	return db.WithContext(ctx).
		Model(&billingdomain.SubscriptionRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{
			"plan_id":              record.PlanID,
			"status":               record.Status,
			"current_period_end":   record.CurrentPeriodEnd,
			"cancel_at_period_end": record.CancelAtPeriodEnd,
			"addons":               record.Addons,
			"trial_ends_at":        record.TrialEndsAt,
			"payment_intent_id":    record.PaymentIntentID,
			"updated_at":           record.UpdatedAt,
		}).Error
}

func (r *repo) FindCheckoutByReference(ctx context.Context, db *gorm.DB, referenceID string) (*billingdomain.CheckoutSession, error) {
	var session billingdomain.CheckoutSession
	err := db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repo) InsertCheckout(ctx context.Context, db *gorm.DB, session *billingdomain.CheckoutSession) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) UpdateCheckoutStatus(ctx context.Context, db *gorm.DB, session *billingdomain.CheckoutSession) error {
	return db.WithContext(ctx).
		Model(&billingdomain.CheckoutSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"status":     session.Status,
			"updated_at": session.UpdatedAt,
		}).Error
}
