package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/darkziah/better-auth-paymongo/internal/catalog"
	"github.com/darkziah/better-auth-paymongo/internal/clock"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     ledgerdomain.Repository
	Catalog  catalog.Service
	Clock    clock.Clock
	Resolver ledgerdomain.EntitlementResolver
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     ledgerdomain.Repository
	catalog  catalog.Service
	clock    clock.Clock
	resolver ledgerdomain.EntitlementResolver
	genID    *snowflake.Node
}

func New(p Params) ledgerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ledger.service"),
		repo:     p.Repo,
		catalog:  p.Catalog,
		clock:    p.Clock,
		resolver: p.Resolver,
		genID:    p.GenID,
	}
}

func (s *Service) Check(ctx context.Context, req ledgerdomain.CheckRequest) (ledgerdomain.CheckResponse, error) {
	if !req.EntityType.Valid() {
		return ledgerdomain.CheckResponse{}, ledgerdomain.ErrInvalidEntityType
	}

	record, err := s.repo.Find(ctx, s.db, req.EntityType, req.EntityID, strings.TrimSpace(req.FeatureID))
	if err != nil {
		return ledgerdomain.CheckResponse{}, err
	}
	if record == nil {
		return ledgerdomain.CheckResponse{Allowed: false}, nil
	}

	def, err := s.catalog.Current().Feature(record.FeatureID)
	if err == nil && def.Type == catalog.FeatureTypeBoolean {
		// Boolean entitlement is the record's existence.
		return ledgerdomain.CheckResponse{Allowed: true, PlanID: record.PlanID}, nil
	}

	record, rolled, err := s.maybeRollover(ctx, record)
	if err != nil {
		return ledgerdomain.CheckResponse{}, err
	}

	bonus, err := s.resolver.AddonBonus(ctx, record.EntityType, record.EntityID, record.FeatureID)
	if err != nil {
		return ledgerdomain.CheckResponse{}, err
	}

	total := record.Limit + bonus
	balance := record.Balance
	allowed := balance > 0
	if !rolled && s.clock.Now().After(record.PeriodEnd) {
		// Expired period whose rollover was denied: no allowance left.
		balance = 0
		allowed = false
	}

	return ledgerdomain.CheckResponse{
		Allowed: allowed,
		Balance: &balance,
		Limit:   &total,
		PlanID:  record.PlanID,
	}, nil
}

func (s *Service) Track(ctx context.Context, req ledgerdomain.TrackRequest) (ledgerdomain.TrackResponse, error) {
	if !req.EntityType.Valid() {
		return ledgerdomain.TrackResponse{}, ledgerdomain.ErrInvalidEntityType
	}
	if req.Delta == 0 {
		return ledgerdomain.TrackResponse{}, ledgerdomain.ErrInvalidQuantity
	}

	record, err := s.repo.Find(ctx, s.db, req.EntityType, req.EntityID, strings.TrimSpace(req.FeatureID))
	if err != nil {
		return ledgerdomain.TrackResponse{}, err
	}
	if record == nil {
		return ledgerdomain.TrackResponse{}, ledgerdomain.ErrRecordNotFound
	}

	record, _, err = s.maybeRollover(ctx, record)
	if err != nil {
		return ledgerdomain.TrackResponse{}, err
	}

	if err := s.repo.AdjustBalance(ctx, s.db, record.ID, -req.Delta); err != nil {
		return ledgerdomain.TrackResponse{}, err
	}

	record, err = s.repo.Find(ctx, s.db, req.EntityType, req.EntityID, req.FeatureID)
	if err != nil {
		return ledgerdomain.TrackResponse{}, err
	}
	if record == nil {
		return ledgerdomain.TrackResponse{}, ledgerdomain.ErrRecordNotFound
	}

	bonus, err := s.resolver.AddonBonus(ctx, record.EntityType, record.EntityID, record.FeatureID)
	if err != nil {
		return ledgerdomain.TrackResponse{}, err
	}

	return ledgerdomain.TrackResponse{
		Success: true,
		Balance: record.Balance,
		Limit:   record.Limit + bonus,
	}, nil
}

func (s *Service) ReplaceForPlanChange(ctx context.Context, req ledgerdomain.ReplaceForPlanChangeRequest) error {
	if !req.EntityType.Valid() {
		return ledgerdomain.ErrInvalidEntityType
	}

	grants, err := s.catalog.Current().Grants(req.PlanID)
	if err != nil {
		return err
	}

	plan, err := s.catalog.Current().Plan(req.PlanID)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	periodEnd := now.AddDate(0, plan.Interval.Months(), 0)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.ListByEntity(ctx, tx, req.EntityType, req.EntityID)
		if err != nil {
			return err
		}

		consumed := make(map[string]int64, len(existing))
		for _, rec := range existing {
			if used := rec.Limit - rec.Balance; used > 0 {
				consumed[rec.FeatureID] = used
			}
		}

		if err := s.repo.DeleteByEntity(ctx, tx, req.EntityType, req.EntityID); err != nil {
			return err
		}

		for _, grant := range grants {
			record := &ledgerdomain.UsageRecord{
				ID:                s.genID.Generate(),
				EntityType:        req.EntityType,
				EntityID:          req.EntityID,
				FeatureID:         grant.FeatureID,
				PeriodStart:       now,
				PeriodEnd:         periodEnd,
				PlanID:            req.PlanID,
				CheckoutSessionID: req.CheckoutSessionID,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			switch grant.Type {
			case catalog.FeatureTypeBoolean:
				record.Balance = 1
				record.Limit = 1
			case catalog.FeatureTypeMetered:
				record.Limit = grant.Limit
				record.Balance = grant.Limit - consumed[grant.FeatureID]
				if record.Balance < 0 {
					record.Balance = 0
				}
			}
			if err := s.repo.Insert(ctx, tx, record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) Credit(ctx context.Context, req ledgerdomain.CreditRequest) error {
	if !req.EntityType.Valid() {
		return ledgerdomain.ErrInvalidEntityType
	}
	if req.Amount <= 0 {
		return ledgerdomain.ErrInvalidQuantity
	}

	record, err := s.repo.Find(ctx, s.db, req.EntityType, req.EntityID, strings.TrimSpace(req.FeatureID))
	if err != nil {
		return err
	}
	if record == nil {
		// The addon targets a feature the plan never provisioned.
		s.log.Warn("credit skipped, no usage record",
			zap.String("entity_id", req.EntityID),
			zap.String("feature_id", req.FeatureID),
		)
		return nil
	}

	return s.repo.AdjustBalance(ctx, s.db, record.ID, req.Amount)
}

func (s *Service) SeatUsage(ctx context.Context, entityType ledgerdomain.EntityType, entityID, featureID string, defaultLimit int64) (ledgerdomain.SeatUsage, error) {
	if !entityType.Valid() {
		return ledgerdomain.SeatUsage{}, ledgerdomain.ErrInvalidEntityType
	}

	record, err := s.repo.Find(ctx, s.db, entityType, entityID, strings.TrimSpace(featureID))
	if err != nil {
		return ledgerdomain.SeatUsage{}, err
	}
	if record == nil {
		return ledgerdomain.SeatUsage{Used: 0, Limit: defaultLimit, Remaining: defaultLimit}, nil
	}

	bonus, err := s.resolver.AddonBonus(ctx, entityType, entityID, record.FeatureID)
	if err != nil {
		return ledgerdomain.SeatUsage{}, err
	}

	total := record.Limit + bonus
	used := total - record.Balance
	if used < 0 {
		used = 0
	}
	return ledgerdomain.SeatUsage{Used: used, Limit: total, Remaining: record.Balance}, nil
}

// maybeRollover resets an expired record's period and balance. The reset is
// lazy, triggered by the first read past the period end, and is skipped when
// the resolver denies it (a subscription set to cancel at period end).
func (s *Service) maybeRollover(ctx context.Context, record *ledgerdomain.UsageRecord) (*ledgerdomain.UsageRecord, bool, error) {
	now := s.clock.Now().UTC()
	if !now.After(record.PeriodEnd) {
		return record, false, nil
	}

	allowed, err := s.resolver.RolloverAllowed(ctx, record.EntityType, record.EntityID, now)
	if err != nil {
		return nil, false, err
	}
	if !allowed {
		return record, false, nil
	}

	limit := record.Limit
	if fresh, err := s.catalog.Current().MeteredLimit(record.PlanID, record.FeatureID); err == nil {
		limit = fresh
	}
	bonus, err := s.resolver.AddonBonus(ctx, record.EntityType, record.EntityID, record.FeatureID)
	if err != nil {
		return nil, false, err
	}

	record.Limit = limit
	record.Balance = limit + bonus
	record.PeriodStart = now
	record.PeriodEnd = s.nextPeriodEnd(record.PlanID, now)
	record.UpdatedAt = now

	if err := s.repo.ResetPeriod(ctx, s.db, record); err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (s *Service) nextPeriodEnd(planID string, from time.Time) time.Time {
	months := catalog.IntervalMonthly.Months()
	if plan, err := s.catalog.Current().Plan(planID); err == nil {
		months = plan.Interval.Months()
	}
	return from.AddDate(0, months, 0)
}
