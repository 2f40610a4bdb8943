package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/darkziah/better-auth-paymongo/internal/audit/domain"
	auditrepo "github.com/darkziah/better-auth-paymongo/internal/audit/repository"
	auditservice "github.com/darkziah/better-auth-paymongo/internal/audit/service"
	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	"github.com/darkziah/better-auth-paymongo/internal/billing/entitlement"
	billingrepo "github.com/darkziah/better-auth-paymongo/internal/billing/repository"
	"github.com/darkziah/better-auth-paymongo/internal/cache"
	"github.com/darkziah/better-auth-paymongo/internal/catalog"
	"github.com/darkziah/better-auth-paymongo/internal/clock"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
	ledgerrepo "github.com/darkziah/better-auth-paymongo/internal/ledger/repository"
	ledgerservice "github.com/darkziah/better-auth-paymongo/internal/ledger/service"
	"github.com/darkziah/better-auth-paymongo/internal/paymongo"
)

type gatewayStub struct {
	mu sync.Mutex

	paymentStatus   string
	intentStatuses  map[string]string
	createdSessions int
	getSessionCalls int
}

func (g *gatewayStub) CreateCheckoutSession(ctx context.Context, req paymongo.CreateCheckoutSessionRequest) (paymongo.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createdSessions++
	id := fmt.Sprintf("cs_%d", g.createdSessions)
	return paymongo.CheckoutSession{ID: id, CheckoutURL: "https://checkout.test/" + id}, nil
}

func (g *gatewayStub) GetCheckoutSession(ctx context.Context, sessionID string) (paymongo.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getSessionCalls++
	return paymongo.CheckoutSession{ID: sessionID, PaymentStatus: g.paymentStatus}, nil
}

func (g *gatewayStub) CreatePaymentIntent(ctx context.Context, req paymongo.CreatePaymentIntentRequest) (paymongo.PaymentIntent, error) {
	return paymongo.PaymentIntent{ID: "pi_1", ClientKey: "pi_1_client", Status: "awaiting_payment_method"}, nil
}

func (g *gatewayStub) GetPaymentIntent(ctx context.Context, intentID string) (paymongo.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.intentStatuses[intentID]
	if !ok {
		return paymongo.PaymentIntent{}, &paymongo.Error{StatusCode: 404, Detail: "No such payment intent"}
	}
	return paymongo.PaymentIntent{ID: intentID, Status: status}, nil
}

func billingCatalog() catalog.Catalog {
	return catalog.Catalog{
		Features: map[string]catalog.FeatureConfig{
			"projects":   {Type: catalog.FeatureTypeMetered, Limit: 3},
			"api_calls":  {Type: catalog.FeatureTypeMetered, Limit: 100},
			"export_pdf": {Type: catalog.FeatureTypeBoolean},
			"seats":      {Type: catalog.FeatureTypeMetered, Limit: 5},
		},
		Plans: map[string]catalog.PlanConfig{
			"free": {
				DisplayName: "Free",
				Amount:      0,
				Currency:    "PHP",
				Interval:    catalog.IntervalMonthly,
				Features:    map[string]any{"projects": 3},
			},
			"pro": {
				DisplayName: "Pro",
				Amount:      99900,
				Currency:    "PHP",
				Interval:    catalog.IntervalMonthly,
				Features: map[string]any{
					"projects":   10,
					"api_calls":  1000,
					"export_pdf": true,
				},
			},
			"team": {
				DisplayName:     "Team",
				Amount:          249900,
				Currency:        "PHP",
				Interval:        catalog.IntervalMonthly,
				TrialPeriodDays: 14,
				Features: map[string]any{
					"projects": 50,
					"seats":    10,
				},
			},
		},
		Addons: map[string]catalog.AddonConfig{
			"extra_projects": {
				DisplayName:  "Extra Projects",
				Type:         catalog.AddonTypeQuantity,
				LimitBonuses: map[string]int64{"projects": 5},
			},
		},
	}
}

type fixture struct {
	billing billingdomain.Service
	ledger  ledgerdomain.Service
	audit   auditdomain.Service
	gateway *gatewayStub
	db      *gorm.DB
	clk     *clock.FakeClock
}

func setupBilling(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.UsageRecord{},
		&billingdomain.SubscriptionRecord{},
		&billingdomain.CheckoutSession{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	cat := catalog.NewStaticService(billingCatalog())
	gateway := &gatewayStub{paymentStatus: paymongo.PaymentStatusPaid, intentStatuses: map[string]string{}}

	repo := billingrepo.Provide()
	resolver := entitlement.New(entitlement.Params{DB: db, Repo: repo, Catalog: cat})

	ledgerSvc := ledgerservice.New(ledgerservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     ledgerrepo.Provide(),
		Catalog:  cat,
		Clock:    clk,
		Resolver: resolver,
	})

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})

	billingSvc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repo,
		Catalog:     cat,
		Clock:       clk,
		Gateway:     gateway,
		Ledger:      ledgerSvc,
		StatusCache: cache.NewCheckoutStatusCache(cache.CacheParams{}),
		Audit:       auditSvc,
	})

	return &fixture{
		billing: billingSvc,
		ledger:  ledgerSvc,
		audit:   auditSvc,
		gateway: gateway,
		db:      db,
		clk:     clk,
	}
}

func userRef(id string) billingdomain.EntityRef {
	return billingdomain.EntityRef{EntityType: "user", EntityID: id}
}

func TestAttachVerifyProvisionsOnPaid(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	attach, err := f.billing.Attach(ctx, billingdomain.AttachRequest{
		EntityRef:  userRef("user_1"),
		PlanID:     "pro",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	require.NoError(t, err)
	require.NotEmpty(t, attach.ReferenceID)
	require.Contains(t, attach.CheckoutURL, "checkout.test")

	// Nothing is provisioned until the payment is verified.
	_, err = f.billing.GetSubscription(ctx, userRef("user_1"))
	require.ErrorIs(t, err, billingdomain.ErrSubscriptionNotFound)

	verify, err := f.billing.Verify(ctx, billingdomain.VerifyRequest{ReferenceID: attach.ReferenceID})
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusActive, verify.Status)
	require.Equal(t, "pro", verify.PlanID)

	sub, err := f.billing.GetSubscription(ctx, userRef("user_1"))
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusActive, sub.Status)

	check, err := f.ledger.Check(ctx, ledgerdomain.CheckRequest{
		EntityType: ledgerdomain.EntityTypeUser,
		EntityID:   "user_1",
		FeatureID:  "projects",
	})
	require.NoError(t, err)
	require.True(t, check.Allowed)
	require.Equal(t, int64(10), *check.Balance)
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	attach, err := f.billing.Attach(ctx, billingdomain.AttachRequest{
		EntityRef:  userRef("user_1"),
		PlanID:     "pro",
		SuccessURL: "https://app.test/success",
	})
	require.NoError(t, err)

	_, err = f.billing.Verify(ctx, billingdomain.VerifyRequest{ReferenceID: attach.ReferenceID})
	require.NoError(t, err)

	// Consume some allowance, then replay the verification.
	_, err = f.ledger.Track(ctx, ledgerdomain.TrackRequest{
		EntityType: ledgerdomain.EntityTypeUser,
		EntityID:   "user_1",
		FeatureID:  "projects",
		Delta:      4,
	})
	require.NoError(t, err)

	verify, err := f.billing.Verify(ctx, billingdomain.VerifyRequest{ReferenceID: attach.ReferenceID})
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusActive, verify.Status)

	// The replay neither calls the gateway again nor re-provisions.
	require.Equal(t, 1, f.gateway.getSessionCalls)
	check, err := f.ledger.Check(ctx, ledgerdomain.CheckRequest{
		EntityType: ledgerdomain.EntityTypeUser,
		EntityID:   "user_1",
		FeatureID:  "projects",
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), *check.Balance)
}

func TestVerifyUnpaidProvisionsNothing(t *testing.T) {
	f := setupBilling(t)
	f.gateway.paymentStatus = "unpaid"
	ctx := context.Background()

	attach, err := f.billing.Attach(ctx, billingdomain.AttachRequest{
		EntityRef:  userRef("user_1"),
		PlanID:     "pro",
		SuccessURL: "https://app.test/success",
	})
	require.NoError(t, err)

	_, err = f.billing.Verify(ctx, billingdomain.VerifyRequest{ReferenceID: attach.ReferenceID})
	require.ErrorIs(t, err, billingdomain.ErrPaymentNotCompleted)

	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.UsageRecord{}).Count(&count).Error)
	require.Zero(t, count)

	_, err = f.billing.GetSubscription(ctx, userRef("user_1"))
	require.ErrorIs(t, err, billingdomain.ErrSubscriptionNotFound)

	// The session stays pending, so a later paid verification succeeds.
	f.gateway.paymentStatus = paymongo.PaymentStatusPaid
	_, err = f.billing.Verify(ctx, billingdomain.VerifyRequest{ReferenceID: attach.ReferenceID})
	require.NoError(t, err)
}

func TestVerifyUnknownReference(t *testing.T) {
	f := setupBilling(t)

	_, err := f.billing.Verify(context.Background(), billingdomain.VerifyRequest{ReferenceID: "nope"})
	require.ErrorIs(t, err, billingdomain.ErrSessionNotFound)
}

func TestAttachUnknownPlan(t *testing.T) {
	f := setupBilling(t)

	_, err := f.billing.Attach(context.Background(), billingdomain.AttachRequest{
		EntityRef:  userRef("user_1"),
		PlanID:     "enterprise",
		SuccessURL: "https://app.test/success",
	})
	require.ErrorIs(t, err, catalog.ErrPlanNotFound)
}

func TestAddAddonCreditsLedger(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	_, err := f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{EntityRef: userRef("user_1"), PlanID: "pro"})
	require.NoError(t, err)

	resp, err := f.billing.AddAddon(ctx, billingdomain.AddAddonRequest{
		EntityRef: userRef("user_1"),
		AddonID:   "extra_projects",
		Quantity:  3,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), resp.Quantity)

	// 3 units x 5 projects per unit on top of the base 10.
	usage, err := f.billing.CheckUsage(ctx, userRef("user_1"), "projects")
	require.NoError(t, err)
	require.Equal(t, int64(25), usage.Limit)
	require.Equal(t, int64(25), usage.Remaining)
	require.Zero(t, usage.Usage)

	resp, err = f.billing.AddAddon(ctx, billingdomain.AddAddonRequest{
		EntityRef: userRef("user_1"),
		AddonID:   "extra_projects",
		Quantity:  1,
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), resp.Quantity)

	_, err = f.billing.AddAddon(ctx, billingdomain.AddAddonRequest{
		EntityRef: userRef("user_1"),
		AddonID:   "unknown",
		Quantity:  1,
	})
	require.ErrorIs(t, err, catalog.ErrAddonNotFound)
}

func TestIncrementUsageEnforcesLimit(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	_, err := f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{EntityRef: userRef("user_1"), PlanID: "free"})
	require.NoError(t, err)

	summary, err := f.billing.IncrementUsage(ctx, billingdomain.IncrementUsageRequest{
		EntityRef: userRef("user_1"),
		FeatureID: "projects",
		Quantity:  2,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), summary.Usage)
	require.Equal(t, int64(1), summary.Remaining)

	_, err = f.billing.IncrementUsage(ctx, billingdomain.IncrementUsageRequest{
		EntityRef: userRef("user_1"),
		FeatureID: "projects",
		Quantity:  2,
	})
	require.ErrorIs(t, err, billingdomain.ErrUsageLimitExceeded)

	// Negative quantity credits back.
	summary, err = f.billing.IncrementUsage(ctx, billingdomain.IncrementUsageRequest{
		EntityRef: userRef("user_1"),
		FeatureID: "projects",
		Quantity:  -1,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Usage)

	_, err = f.billing.CheckUsage(ctx, userRef("user_2"), "projects")
	require.ErrorIs(t, err, ledgerdomain.ErrRecordNotFound)
}

func TestCancelKeepsAccessUntilPeriodEnd(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	_, err := f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{EntityRef: userRef("user_1"), PlanID: "pro"})
	require.NoError(t, err)

	sub, err := f.billing.CancelSubscription(ctx, userRef("user_1"))
	require.NoError(t, err)
	require.True(t, sub.CancelAtPeriodEnd)
	require.Equal(t, billingdomain.SubscriptionStatusActive, sub.Status)

	check, err := f.ledger.Check(ctx, ledgerdomain.CheckRequest{
		EntityType: ledgerdomain.EntityTypeUser,
		EntityID:   "user_1",
		FeatureID:  "projects",
	})
	require.NoError(t, err)
	require.True(t, check.Allowed)

	f.clk.Advance(32 * 24 * time.Hour)

	sub, err = f.billing.GetSubscription(ctx, userRef("user_1"))
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusCanceled, sub.Status)

	// The expired period does not roll over for a canceled subscription.
	check, err = f.ledger.Check(ctx, ledgerdomain.CheckRequest{
		EntityType: ledgerdomain.EntityTypeUser,
		EntityID:   "user_1",
		FeatureID:  "projects",
	})
	require.NoError(t, err)
	require.False(t, check.Allowed)
}

func TestSwitchPlanCarriesUsage(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	_, err := f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{EntityRef: userRef("user_1"), PlanID: "free"})
	require.NoError(t, err)

	_, err = f.ledger.Track(ctx, ledgerdomain.TrackRequest{
		EntityType: ledgerdomain.EntityTypeUser,
		EntityID:   "user_1",
		FeatureID:  "projects",
		Delta:      2,
	})
	require.NoError(t, err)

	sub, err := f.billing.SwitchPlan(ctx, billingdomain.SwitchPlanRequest{EntityRef: userRef("user_1"), PlanID: "pro"})
	require.NoError(t, err)
	require.Equal(t, "pro", sub.PlanID)

	usage, err := f.billing.CheckUsage(ctx, userRef("user_1"), "projects")
	require.NoError(t, err)
	require.Equal(t, int64(2), usage.Usage)
	require.Equal(t, int64(8), usage.Remaining)

	_, err = f.billing.SwitchPlan(ctx, billingdomain.SwitchPlanRequest{EntityRef: userRef("user_9"), PlanID: "pro"})
	require.ErrorIs(t, err, billingdomain.ErrSubscriptionNotFound)
}

func TestCreateSubscriptionTrial(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	sub, err := f.billing.CreateSubscription(ctx, billingdomain.CreateSubscriptionRequest{
		EntityRef: userRef("user_1"),
		PlanID:    "team",
	})
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusTrialing, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	require.Equal(t, f.clk.Now().AddDate(0, 0, 14), sub.CurrentPeriodEnd)
	require.True(t, sub.Active())

	// Trials provision immediately.
	check, err := f.ledger.Check(ctx, ledgerdomain.CheckRequest{
		EntityType: ledgerdomain.EntityTypeUser,
		EntityID:   "user_1",
		FeatureID:  "projects",
	})
	require.NoError(t, err)
	require.True(t, check.Allowed)
	require.Equal(t, int64(50), *check.Balance)
}

func TestCreateSubscriptionFromPaymentIntent(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()
	f.gateway.intentStatuses["pi_7"] = paymongo.IntentStatusProcessing

	sub, err := f.billing.CreateSubscription(ctx, billingdomain.CreateSubscriptionRequest{
		EntityRef:       userRef("user_1"),
		PlanID:          "pro",
		PaymentIntentID: "pi_7",
	})
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusPending, sub.Status)

	// Pending subscriptions hold no usage records yet.
	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.UsageRecord{}).Count(&count).Error)
	require.Zero(t, count)

	// Once the gateway reports success, the next read activates and
	// provisions the subscription.
	f.gateway.intentStatuses["pi_7"] = paymongo.IntentStatusSucceeded
	sub, err = f.billing.GetSubscription(ctx, userRef("user_1"))
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusActive, sub.Status)

	require.NoError(t, f.db.Model(&ledgerdomain.UsageRecord{}).Count(&count).Error)
	require.NotZero(t, count)
}

func TestCreateSubscriptionCancelledIntent(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()
	f.gateway.intentStatuses["pi_8"] = paymongo.IntentStatusCancelled

	_, err := f.billing.CreateSubscription(ctx, billingdomain.CreateSubscriptionRequest{
		EntityRef:       userRef("user_1"),
		PlanID:          "pro",
		PaymentIntentID: "pi_8",
	})
	require.ErrorIs(t, err, billingdomain.ErrPaymentNotCompleted)
}

func TestOrganizationSeats(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	seats, err := f.billing.OrganizationSeats(ctx, "org_1")
	require.NoError(t, err)
	require.Equal(t, billingdomain.SeatSummary{Used: 0, Limit: 5, Remaining: 5}, seats)

	_, err = f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{
		EntityRef: billingdomain.EntityRef{EntityType: "organization", EntityID: "org_1"},
		PlanID:    "team",
	})
	require.NoError(t, err)

	_, err = f.ledger.Track(ctx, ledgerdomain.TrackRequest{
		EntityType: ledgerdomain.EntityTypeOrganization,
		EntityID:   "org_1",
		FeatureID:  "seats",
		Delta:      4,
	})
	require.NoError(t, err)

	seats, err = f.billing.OrganizationSeats(ctx, "org_1")
	require.NoError(t, err)
	require.Equal(t, billingdomain.SeatSummary{Used: 4, Limit: 10, Remaining: 6}, seats)
}

func TestAuditTrailRecorded(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	_, err := f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{EntityRef: userRef("user_1"), PlanID: "pro"})
	require.NoError(t, err)
	_, err = f.billing.CancelSubscription(ctx, userRef("user_1"))
	require.NoError(t, err)

	entries, err := f.audit.List(ctx, "user", "user_1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	actions := []string{entries[0].Action, entries[1].Action}
	require.Contains(t, actions, "billing.set_plan")
	require.Contains(t, actions, "billing.cancel")
}

func TestCheckUsageBooleanFeature(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	_, err := f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{EntityRef: userRef("user_1"), PlanID: "pro"})
	require.NoError(t, err)

	// export_pdf is an entitlement, not an allowance; there is no usage to report.
	_, err = f.billing.CheckUsage(ctx, userRef("user_1"), "export_pdf")
	require.ErrorIs(t, err, billingdomain.ErrFeatureNotMetered)

	// A feature the plan never provisioned is still a missing record.
	_, err = f.billing.CheckUsage(ctx, userRef("user_1"), "seats")
	require.ErrorIs(t, err, ledgerdomain.ErrRecordNotFound)
}
