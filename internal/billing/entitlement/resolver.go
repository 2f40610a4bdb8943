// Package entitlement answers the ledger's subscription questions from the
// billing tables, without pulling the full billing service into the loop.
package entitlement

import (
	"context"
	"time"

	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	"github.com/darkziah/better-auth-paymongo/internal/catalog"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Repo    billingdomain.Repository
	Catalog catalog.Service
}

type Resolver struct {
	db      *gorm.DB
	repo    billingdomain.Repository
	catalog catalog.Service
}

func New(p Params) ledgerdomain.EntitlementResolver {
	return &Resolver{db: p.DB, repo: p.Repo, catalog: p.Catalog}
}

func (r *Resolver) AddonBonus(ctx context.Context, entityType ledgerdomain.EntityType, entityID, featureID string) (int64, error) {
	record, err := r.repo.FindSubscription(ctx, r.db, string(entityType), entityID)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return r.catalog.Current().AddonBonus(featureID, record.AddonQuantities()), nil
}

// RolloverAllowed denies the period reset once a subscription flagged to
// cancel at period end has run out its current period. Entities without a
// subscription record keep their ledger behavior unconstrained.
func (r *Resolver) RolloverAllowed(ctx context.Context, entityType ledgerdomain.EntityType, entityID string, at time.Time) (bool, error) {
	record, err := r.repo.FindSubscription(ctx, r.db, string(entityType), entityID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return true, nil
	}
	if record.Status == billingdomain.SubscriptionStatusCanceled {
		return false, nil
	}
	if record.CancelAtPeriodEnd && !at.Before(record.CurrentPeriodEnd) {
		return false, nil
	}
	return true, nil
}
