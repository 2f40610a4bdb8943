package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	auditdomain "github.com/darkziah/better-auth-paymongo/internal/audit/domain"
	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	"github.com/darkziah/better-auth-paymongo/internal/cache"
	"github.com/darkziah/better-auth-paymongo/internal/catalog"
	"github.com/darkziah/better-auth-paymongo/internal/clock"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
	"github.com/darkziah/better-auth-paymongo/internal/paymongo"
)

const (
	seatFeatureID    = "seats"
	defaultSeatLimit = 5
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        billingdomain.Repository
	Catalog     catalog.Service
	Clock       clock.Clock
	Gateway     paymongo.Gateway
	Ledger      ledgerdomain.Service
	StatusCache cache.CheckoutStatusCache
	Audit       auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        billingdomain.Repository
	catalog     catalog.Service
	clock       clock.Clock
	gateway     paymongo.Gateway
	ledger      ledgerdomain.Service
	statusCache cache.CheckoutStatusCache
	audit       auditdomain.Service
}

func New(p Params) billingdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("billing.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		catalog:     p.Catalog,
		clock:       p.Clock,
		gateway:     p.Gateway,
		ledger:      p.Ledger,
		statusCache: p.StatusCache,
		audit:       p.Audit,
	}
}

func (s *Service) Attach(ctx context.Context, req billingdomain.AttachRequest) (billingdomain.AttachResponse, error) {
	entityType, err := entityTypeOf(req.EntityRef)
	if err != nil {
		return billingdomain.AttachResponse{}, err
	}

	plan, err := s.catalog.Current().Plan(req.PlanID)
	if err != nil {
		return billingdomain.AttachResponse{}, err
	}

	referenceID := ulid.Make().String()
	successURL, err := withReference(req.SuccessURL, referenceID)
	if err != nil {
		return billingdomain.AttachResponse{}, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, paymongo.CreateCheckoutSessionRequest{
		LineItems: []paymongo.LineItem{{
			Name:     plan.DisplayName,
			Amount:   plan.Amount,
			Currency: plan.Currency,
			Quantity: 1,
		}},
		Description: plan.DisplayName + " subscription",
		SuccessURL:  successURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		return billingdomain.AttachResponse{}, err
	}

	now := s.clock.Now().UTC()
	checkout := &billingdomain.CheckoutSession{
		ID:          s.genID.Generate(),
		ReferenceID: referenceID,
		SessionID:   session.ID,
		EntityType:  string(entityType),
		EntityID:    req.EntityID,
		PlanID:      req.PlanID,
		Status:      billingdomain.CheckoutStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertCheckout(ctx, s.db, checkout); err != nil {
		return billingdomain.AttachResponse{}, err
	}

	s.recordAudit(ctx, "billing.attach", req.EntityRef, map[string]any{
		"plan_id":    req.PlanID,
		"session_id": session.ID,
	})

	return billingdomain.AttachResponse{
		CheckoutURL: session.CheckoutURL,
		ReferenceID: referenceID,
		SessionID:   session.ID,
	}, nil
}

func (s *Service) Verify(ctx context.Context, req billingdomain.VerifyRequest) (billingdomain.VerifyResponse, error) {
	checkout, err := s.repo.FindCheckoutByReference(ctx, s.db, strings.TrimSpace(req.ReferenceID))
	if err != nil {
		return billingdomain.VerifyResponse{}, err
	}
	if checkout == nil {
		return billingdomain.VerifyResponse{}, billingdomain.ErrSessionNotFound
	}

	// Replaying a completed verification is a no-op success.
	if checkout.Status == billingdomain.CheckoutStatusCompleted {
		return billingdomain.VerifyResponse{
			Status: billingdomain.SubscriptionStatusActive,
			PlanID: checkout.PlanID,
		}, nil
	}

	session, err := s.gateway.GetCheckoutSession(ctx, checkout.SessionID)
	if err != nil {
		return billingdomain.VerifyResponse{}, err
	}
	if session.PaymentStatus != paymongo.PaymentStatusPaid {
		return billingdomain.VerifyResponse{}, billingdomain.ErrPaymentNotCompleted
	}

	ref := billingdomain.EntityRef{EntityType: checkout.EntityType, EntityID: checkout.EntityID}
	if _, err := s.provision(ctx, ref, checkout.PlanID, billingdomain.SubscriptionStatusActive, &checkout.SessionID, nil); err != nil {
		return billingdomain.VerifyResponse{}, err
	}

	checkout.Status = billingdomain.CheckoutStatusCompleted
	checkout.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateCheckoutStatus(ctx, s.db, checkout); err != nil {
		return billingdomain.VerifyResponse{}, err
	}

	s.recordAudit(ctx, "billing.verify", ref, map[string]any{
		"plan_id":    checkout.PlanID,
		"session_id": checkout.SessionID,
	})

	return billingdomain.VerifyResponse{
		Status: billingdomain.SubscriptionStatusActive,
		PlanID: checkout.PlanID,
	}, nil
}

func (s *Service) SetPlan(ctx context.Context, req billingdomain.SetPlanRequest) (billingdomain.SubscriptionView, error) {
	if _, err := entityTypeOf(req.EntityRef); err != nil {
		return billingdomain.SubscriptionView{}, err
	}
	if _, err := s.catalog.Current().Plan(req.PlanID); err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	record, err := s.provision(ctx, req.EntityRef, req.PlanID, billingdomain.SubscriptionStatusActive, nil, nil)
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	s.recordAudit(ctx, "billing.set_plan", req.EntityRef, map[string]any{"plan_id": req.PlanID})
	return toView(record), nil
}

func (s *Service) GetSubscription(ctx context.Context, ref billingdomain.EntityRef) (billingdomain.SubscriptionView, error) {
	if _, err := entityTypeOf(ref); err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	record, err := s.repo.FindSubscription(ctx, s.db, ref.EntityType, ref.EntityID)
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}
	if record == nil {
		return billingdomain.SubscriptionView{}, billingdomain.ErrSubscriptionNotFound
	}

	record = s.resyncFromGateway(ctx, record)
	record, err = s.applyLazyCancel(ctx, record)
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	return toView(record), nil
}

func (s *Service) CancelSubscription(ctx context.Context, ref billingdomain.EntityRef) (billingdomain.SubscriptionView, error) {
	if _, err := entityTypeOf(ref); err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	record, err := s.repo.FindSubscription(ctx, s.db, ref.EntityType, ref.EntityID)
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}
	if record == nil {
		return billingdomain.SubscriptionView{}, billingdomain.ErrSubscriptionNotFound
	}

	// Access runs until the period ends; only the flag flips here.
	record.CancelAtPeriodEnd = true
	record.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateSubscription(ctx, s.db, record); err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	s.recordAudit(ctx, "billing.cancel", ref, map[string]any{"plan_id": record.PlanID})
	return toView(record), nil
}

func (s *Service) SwitchPlan(ctx context.Context, req billingdomain.SwitchPlanRequest) (billingdomain.SubscriptionView, error) {
	if _, err := entityTypeOf(req.EntityRef); err != nil {
		return billingdomain.SubscriptionView{}, err
	}
	if _, err := s.catalog.Current().Plan(req.PlanID); err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	record, err := s.repo.FindSubscription(ctx, s.db, req.EntityType, req.EntityID)
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}
	if record == nil {
		return billingdomain.SubscriptionView{}, billingdomain.ErrSubscriptionNotFound
	}

	record, err = s.provision(ctx, req.EntityRef, req.PlanID, billingdomain.SubscriptionStatusActive, nil, record.TrialEndsAt)
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	s.recordAudit(ctx, "billing.switch_plan", req.EntityRef, map[string]any{"plan_id": req.PlanID})
	return toView(record), nil
}

func (s *Service) AddAddon(ctx context.Context, req billingdomain.AddAddonRequest) (billingdomain.AddAddonResponse, error) {
	entityType, err := entityTypeOf(req.EntityRef)
	if err != nil {
		return billingdomain.AddAddonResponse{}, err
	}
	if req.Quantity <= 0 {
		return billingdomain.AddAddonResponse{}, billingdomain.ErrInvalidQuantity
	}

	addon, err := s.catalog.Current().Addon(req.AddonID)
	if err != nil {
		return billingdomain.AddAddonResponse{}, err
	}

	record, err := s.repo.FindSubscription(ctx, s.db, req.EntityType, req.EntityID)
	if err != nil {
		return billingdomain.AddAddonResponse{}, err
	}
	if record == nil {
		return billingdomain.AddAddonResponse{}, billingdomain.ErrSubscriptionNotFound
	}

	owned := record.AddonQuantities()
	owned[req.AddonID] += req.Quantity

	if record.Addons == nil {
		record.Addons = datatypes.JSONMap{}
	}
	record.Addons[req.AddonID] = owned[req.AddonID]
	record.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateSubscription(ctx, s.db, record); err != nil {
		return billingdomain.AddAddonResponse{}, err
	}

	// The purchased units credit the ledger immediately so the extra
	// allowance is usable within the current period.
	for featureID, perUnit := range addon.LimitBonuses {
		if perUnit <= 0 {
			continue
		}
		if err := s.ledger.Credit(ctx, ledgerdomain.CreditRequest{
			EntityType: entityType,
			EntityID:   req.EntityID,
			FeatureID:  featureID,
			Amount:     perUnit * req.Quantity,
		}); err != nil {
			return billingdomain.AddAddonResponse{}, err
		}
	}

	s.recordAudit(ctx, "billing.add_addon", req.EntityRef, map[string]any{
		"addon_id": req.AddonID,
		"quantity": owned[req.AddonID],
	})

	return billingdomain.AddAddonResponse{AddonID: req.AddonID, Quantity: owned[req.AddonID]}, nil
}

func (s *Service) CheckUsage(ctx context.Context, ref billingdomain.EntityRef, featureID string) (billingdomain.UsageSummary, error) {
	entityType, err := entityTypeOf(ref)
	if err != nil {
		return billingdomain.UsageSummary{}, err
	}

	check, err := s.ledger.Check(ctx, ledgerdomain.CheckRequest{
		EntityType: entityType,
		EntityID:   ref.EntityID,
		FeatureID:  featureID,
	})
	if err != nil {
		return billingdomain.UsageSummary{}, err
	}
	if check.Balance == nil || check.Limit == nil {
		// A boolean entitlement has no balance to report; a denied check
		// without one means the record is missing.
		if check.Allowed {
			return billingdomain.UsageSummary{}, billingdomain.ErrFeatureNotMetered
		}
		return billingdomain.UsageSummary{}, ledgerdomain.ErrRecordNotFound
	}

	return billingdomain.UsageSummary{
		FeatureID: featureID,
		Usage:     *check.Limit - *check.Balance,
		Limit:     *check.Limit,
		Remaining: *check.Balance,
	}, nil
}

func (s *Service) IncrementUsage(ctx context.Context, req billingdomain.IncrementUsageRequest) (billingdomain.UsageSummary, error) {
	entityType, err := entityTypeOf(req.EntityRef)
	if err != nil {
		return billingdomain.UsageSummary{}, err
	}

	summary, err := s.CheckUsage(ctx, req.EntityRef, req.FeatureID)
	if err != nil {
		return billingdomain.UsageSummary{}, err
	}

	switch {
	case req.Quantity > 0:
		if req.Quantity > summary.Remaining {
			return billingdomain.UsageSummary{}, billingdomain.ErrUsageLimitExceeded
		}
		if _, err := s.ledger.Track(ctx, ledgerdomain.TrackRequest{
			EntityType: entityType,
			EntityID:   req.EntityID,
			FeatureID:  req.FeatureID,
			Delta:      req.Quantity,
		}); err != nil {
			return billingdomain.UsageSummary{}, err
		}
	case req.Quantity < 0:
		if err := s.ledger.Credit(ctx, ledgerdomain.CreditRequest{
			EntityType: entityType,
			EntityID:   req.EntityID,
			FeatureID:  req.FeatureID,
			Amount:     -req.Quantity,
		}); err != nil {
			return billingdomain.UsageSummary{}, err
		}
	}

	return s.CheckUsage(ctx, req.EntityRef, req.FeatureID)
}

func (s *Service) CreatePaymentIntent(ctx context.Context, req billingdomain.CreatePaymentIntentRequest) (billingdomain.CreatePaymentIntentResponse, error) {
	if _, err := entityTypeOf(req.EntityRef); err != nil {
		return billingdomain.CreatePaymentIntentResponse{}, err
	}

	plan, err := s.catalog.Current().Plan(req.PlanID)
	if err != nil {
		return billingdomain.CreatePaymentIntentResponse{}, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, paymongo.CreatePaymentIntentRequest{
		Amount:      plan.Amount,
		Currency:    plan.Currency,
		Description: plan.DisplayName + " subscription",
		Metadata: map[string]string{
			"entity_type": req.EntityType,
			"entity_id":   req.EntityID,
			"plan_id":     req.PlanID,
		},
	})
	if err != nil {
		return billingdomain.CreatePaymentIntentResponse{}, err
	}

	return billingdomain.CreatePaymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientKey:       intent.ClientKey,
		Status:          intent.Status,
	}, nil
}

func (s *Service) CreateSubscription(ctx context.Context, req billingdomain.CreateSubscriptionRequest) (billingdomain.SubscriptionView, error) {
	if _, err := entityTypeOf(req.EntityRef); err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	plan, err := s.catalog.Current().Plan(req.PlanID)
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	now := s.clock.Now().UTC()
	var intentID *string
	if strings.TrimSpace(req.PaymentIntentID) != "" {
		trimmed := strings.TrimSpace(req.PaymentIntentID)
		intentID = &trimmed
	}

	if plan.TrialPeriodDays > 0 {
		trialEnd := now.AddDate(0, 0, plan.TrialPeriodDays)
		record, err := s.provision(ctx, req.EntityRef, req.PlanID, billingdomain.SubscriptionStatusTrialing, intentID, &trialEnd)
		if err != nil {
			return billingdomain.SubscriptionView{}, err
		}
		s.recordAudit(ctx, "billing.create_subscription", req.EntityRef, map[string]any{
			"plan_id": req.PlanID,
			"status":  string(billingdomain.SubscriptionStatusTrialing),
		})
		return toView(record), nil
	}

	if intentID == nil {
		return billingdomain.SubscriptionView{}, billingdomain.ErrPaymentNotCompleted
	}

	intent, err := s.gateway.GetPaymentIntent(ctx, *intentID)
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	var status billingdomain.SubscriptionStatus
	switch intent.Status {
	case paymongo.IntentStatusSucceeded:
		status = billingdomain.SubscriptionStatusActive
	case paymongo.IntentStatusProcessing:
		status = billingdomain.SubscriptionStatusPending
	default:
		return billingdomain.SubscriptionView{}, billingdomain.ErrPaymentNotCompleted
	}

	var record *billingdomain.SubscriptionRecord
	if status == billingdomain.SubscriptionStatusActive {
		record, err = s.provision(ctx, req.EntityRef, req.PlanID, status, intentID, nil)
	} else {
		// A processing intent stays pending with no usage records until
		// the gateway confirms payment.
		record, err = s.upsertSubscription(ctx, req.EntityRef, req.PlanID, status, intentID, nil)
	}
	if err != nil {
		return billingdomain.SubscriptionView{}, err
	}

	s.recordAudit(ctx, "billing.create_subscription", req.EntityRef, map[string]any{
		"plan_id": req.PlanID,
		"status":  string(status),
	})
	return toView(record), nil
}

func (s *Service) OrganizationSeats(ctx context.Context, organizationID string) (billingdomain.SeatSummary, error) {
	seats, err := s.ledger.SeatUsage(ctx, ledgerdomain.EntityTypeOrganization, organizationID, seatFeatureID, defaultSeatLimit)
	if err != nil {
		return billingdomain.SeatSummary{}, err
	}
	return billingdomain.SeatSummary{Used: seats.Used, Limit: seats.Limit, Remaining: seats.Remaining}, nil
}

// provision rebuilds the entity's ledger for the plan, re-credits owned
// addons, and upserts the subscription record.
func (s *Service) provision(ctx context.Context, ref billingdomain.EntityRef, planID string, status billingdomain.SubscriptionStatus, sessionID *string, trialEndsAt *time.Time) (*billingdomain.SubscriptionRecord, error) {
	entityType, err := entityTypeOf(ref)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.ReplaceForPlanChange(ctx, ledgerdomain.ReplaceForPlanChangeRequest{
		EntityType:        entityType,
		EntityID:          ref.EntityID,
		PlanID:            planID,
		CheckoutSessionID: sessionID,
	}); err != nil {
		return nil, err
	}

	record, err := s.upsertSubscription(ctx, ref, planID, status, sessionID, trialEndsAt)
	if err != nil {
		return nil, err
	}

	for addonID, qty := range record.AddonQuantities() {
		addon, err := s.catalog.Current().Addon(addonID)
		if err != nil {
			continue
		}
		for featureID, perUnit := range addon.LimitBonuses {
			if perUnit <= 0 || qty <= 0 {
				continue
			}
			if err := s.ledger.Credit(ctx, ledgerdomain.CreditRequest{
				EntityType: entityType,
				EntityID:   ref.EntityID,
				FeatureID:  featureID,
				Amount:     perUnit * qty,
			}); err != nil {
				return nil, err
			}
		}
	}
	return record, nil
}

func (s *Service) upsertSubscription(ctx context.Context, ref billingdomain.EntityRef, planID string, status billingdomain.SubscriptionStatus, paymentIntentID *string, trialEndsAt *time.Time) (*billingdomain.SubscriptionRecord, error) {
	now := s.clock.Now().UTC()
	periodEnd := s.periodEnd(planID, now)
	if trialEndsAt != nil {
		periodEnd = *trialEndsAt
	}

	record, err := s.repo.FindSubscription(ctx, s.db, ref.EntityType, ref.EntityID)
	if err != nil {
		return nil, err
	}

	if record == nil {
		record = &billingdomain.SubscriptionRecord{
			ID:         s.genID.Generate(),
			EntityType: ref.EntityType,
			EntityID:   ref.EntityID,
			PlanID:     planID,
			Status:     status,
			Addons:     datatypes.JSONMap{},
			CreatedAt:  now,
		}
		record.CurrentPeriodEnd = periodEnd
		record.TrialEndsAt = trialEndsAt
		record.PaymentIntentID = paymentIntentID
		record.UpdatedAt = now
		if err := s.repo.InsertSubscription(ctx, s.db, record); err != nil {
			return nil, err
		}
		return record, nil
	}

	record.PlanID = planID
	record.Status = status
	record.CurrentPeriodEnd = periodEnd
	record.CancelAtPeriodEnd = false
	record.TrialEndsAt = trialEndsAt
	if paymentIntentID != nil {
		record.PaymentIntentID = paymentIntentID
	}
	record.UpdatedAt = now
	if err := s.repo.UpdateSubscription(ctx, s.db, record); err != nil {
		return nil, err
	}
	return record, nil
}

// resyncFromGateway refreshes a pending record against the payment intent
// status. Failures are logged and swallowed; the stored record is returned
// unchanged in that case.
func (s *Service) resyncFromGateway(ctx context.Context, record *billingdomain.SubscriptionRecord) *billingdomain.SubscriptionRecord {
	if record.PaymentIntentID == nil {
		return record
	}
	if record.Status != billingdomain.SubscriptionStatusPending && record.Status != billingdomain.SubscriptionStatusUnpaid {
		return record
	}

	intentID := *record.PaymentIntentID
	status, ok := s.statusCache.GetStatus(ctx, record.EntityType, record.EntityID, intentID)
	if !ok {
		intent, err := s.gateway.GetPaymentIntent(ctx, intentID)
		if err != nil {
			s.log.Warn("payment intent resync failed",
				zap.String("entity_id", record.EntityID),
				zap.String("payment_intent_id", intentID),
				zap.Error(err),
			)
			return record
		}
		status = intent.Status
		s.statusCache.SetStatus(ctx, record.EntityType, record.EntityID, intentID, status)
	}

	var next billingdomain.SubscriptionStatus
	switch status {
	case paymongo.IntentStatusSucceeded:
		next = billingdomain.SubscriptionStatusActive
	case paymongo.IntentStatusCancelled:
		next = billingdomain.SubscriptionStatusUnpaid
	default:
		return record
	}

	if !billingdomain.CanTransition(record.Status, next) || record.Status == next {
		return record
	}

	ref := billingdomain.EntityRef{EntityType: record.EntityType, EntityID: record.EntityID}
	if next == billingdomain.SubscriptionStatusActive {
		updated, err := s.provision(ctx, ref, record.PlanID, next, nil, nil)
		if err != nil {
			s.log.Warn("subscription activation failed during resync", zap.Error(err))
			return record
		}
		return updated
	}

	record.Status = next
	record.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateSubscription(ctx, s.db, record); err != nil {
		s.log.Warn("subscription resync persist failed", zap.Error(err))
	}
	return record
}

// applyLazyCancel moves a subscription flagged to cancel at period end into
// canceled once the period has run out. There is no background job; the
// transition happens on the first read past the deadline.
func (s *Service) applyLazyCancel(ctx context.Context, record *billingdomain.SubscriptionRecord) (*billingdomain.SubscriptionRecord, error) {
	if !record.CancelAtPeriodEnd {
		return record, nil
	}
	now := s.clock.Now().UTC()
	if now.Before(record.CurrentPeriodEnd) {
		return record, nil
	}
	if !billingdomain.CanTransition(record.Status, billingdomain.SubscriptionStatusCanceled) {
		return record, nil
	}
	if record.Status == billingdomain.SubscriptionStatusCanceled {
		return record, nil
	}

	record.Status = billingdomain.SubscriptionStatusCanceled
	record.UpdatedAt = now
	if err := s.repo.UpdateSubscription(ctx, s.db, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) periodEnd(planID string, from time.Time) time.Time {
	months := catalog.IntervalMonthly.Months()
	if plan, err := s.catalog.Current().Plan(planID); err == nil {
		months = plan.Interval.Months()
	}
	return from.AddDate(0, months, 0)
}

func (s *Service) recordAudit(ctx context.Context, action string, ref billingdomain.EntityRef, metadata map[string]any) {
	if err := s.audit.Record(ctx, action, ref.EntityType, ref.EntityID, metadata); err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func entityTypeOf(ref billingdomain.EntityRef) (ledgerdomain.EntityType, error) {
	entityType := ledgerdomain.EntityType(strings.TrimSpace(ref.EntityType))
	if !entityType.Valid() {
		return "", billingdomain.ErrInvalidEntityType
	}
	return entityType, nil
}

func toView(record *billingdomain.SubscriptionRecord) billingdomain.SubscriptionView {
	return billingdomain.SubscriptionView{
		PlanID:            record.PlanID,
		Status:            record.Status,
		CurrentPeriodEnd:  record.CurrentPeriodEnd,
		CancelAtPeriodEnd: record.CancelAtPeriodEnd,
		Addons:            record.AddonQuantities(),
		TrialEndsAt:       record.TrialEndsAt,
	}
}

func withReference(rawURL, referenceID string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("reference", referenceID)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
