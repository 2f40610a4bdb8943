package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/darkziah/better-auth-paymongo/internal/audit/domain"
	auditrepo "github.com/darkziah/better-auth-paymongo/internal/audit/repository"
	auditservice "github.com/darkziah/better-auth-paymongo/internal/audit/service"
	authdomain "github.com/darkziah/better-auth-paymongo/internal/auth/domain"
	authrepo "github.com/darkziah/better-auth-paymongo/internal/auth/repository"
	authservice "github.com/darkziah/better-auth-paymongo/internal/auth/service"
	"github.com/darkziah/better-auth-paymongo/internal/auth/session"
	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	"github.com/darkziah/better-auth-paymongo/internal/billing/entitlement"
	billingrepo "github.com/darkziah/better-auth-paymongo/internal/billing/repository"
	billingservice "github.com/darkziah/better-auth-paymongo/internal/billing/service"
	"github.com/darkziah/better-auth-paymongo/internal/cache"
	"github.com/darkziah/better-auth-paymongo/internal/catalog"
	"github.com/darkziah/better-auth-paymongo/internal/clock"
	"github.com/darkziah/better-auth-paymongo/internal/config"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
	ledgerrepo "github.com/darkziah/better-auth-paymongo/internal/ledger/repository"
	ledgerservice "github.com/darkziah/better-auth-paymongo/internal/ledger/service"
	obsmetrics "github.com/darkziah/better-auth-paymongo/internal/observability/metrics"
	"github.com/darkziah/better-auth-paymongo/internal/paymongo"
	"github.com/darkziah/better-auth-paymongo/internal/ratelimit"
)

type gatewayStub struct {
	mu sync.Mutex

	paymentStatus string
	sessions      int
}

func (g *gatewayStub) CreateCheckoutSession(ctx context.Context, req paymongo.CreateCheckoutSessionRequest) (paymongo.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions++
	id := fmt.Sprintf("cs_%d", g.sessions)
	return paymongo.CheckoutSession{ID: id, CheckoutURL: "https://checkout.test/" + id}, nil
}

func (g *gatewayStub) GetCheckoutSession(ctx context.Context, sessionID string) (paymongo.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return paymongo.CheckoutSession{ID: sessionID, PaymentStatus: g.paymentStatus}, nil
}

func (g *gatewayStub) CreatePaymentIntent(ctx context.Context, req paymongo.CreatePaymentIntentRequest) (paymongo.PaymentIntent, error) {
	return paymongo.PaymentIntent{ID: "pi_1", ClientKey: "pi_1_client", Status: "awaiting_payment_method"}, nil
}

func (g *gatewayStub) GetPaymentIntent(ctx context.Context, intentID string) (paymongo.PaymentIntent, error) {
	return paymongo.PaymentIntent{}, &paymongo.Error{StatusCode: 404, Detail: "No such payment intent"}
}

func serverCatalog() catalog.Catalog {
	return catalog.Catalog{
		Features: map[string]catalog.FeatureConfig{
			"projects": {Type: catalog.FeatureTypeMetered, Limit: 3},
			"seats":    {Type: catalog.FeatureTypeMetered, Limit: 5},
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
				Features:    map[string]any{"projects": 10},
			},
		},
	}
}

type serverFixture struct {
	engine  *gin.Engine
	billing billingdomain.Service
	auth    authdomain.Service
	token   string
}

func setupServer(t *testing.T) *serverFixture {
	return setupServerWithLimiter(t, nil)
}

func setupServerWithLimiter(t *testing.T, limiter *ratelimit.TrackLimiter) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		&authdomain.Session{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{HTTPAddr: ":0"}
	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	cat := catalog.NewStaticService(serverCatalog())
	gateway := &gatewayStub{paymentStatus: paymongo.PaymentStatusPaid}

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

	billingSvc := billingservice.New(billingservice.Params{
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

	authSvc := authservice.New(authservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  authrepo.Provide(),
	})

	registry := obsmetrics.NewRegistry()
	engine := NewEngine(obsmetrics.NewHTTPMetrics(registry), registry)

	NewServer(ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		DB:           db,
		GenID:        node,
		Sessions:     session.NewManager(cfg),
		AuthSvc:      authSvc,
		AuditSvc:     auditSvc,
		BillingSvc:   billingSvc,
		LedgerSvc:    ledgerSvc,
		TrackLimiter: limiter,
	})

	created, err := authSvc.CreateSession(context.Background(), "user-1")
	require.NoError(t, err)

	return &serverFixture{engine: engine, billing: billingSvc, auth: authSvc, token: created.Token}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestAuthRequired(t *testing.T) {
	f := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/check?featureId=projects", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/billing/check?featureId=projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeJSON(t, rec, &resp)
	require.Equal(t, "unauthorized", resp.Error.Type)
}

func TestAttachVerifyCheckFlow(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/attach", gin.H{
		"planId":     "pro",
		"successUrl": "https://app.test/success",
		"cancelUrl":  "https://app.test/cancel",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var attach billingdomain.AttachResponse
	decodeJSON(t, rec, &attach)
	require.NotEmpty(t, attach.CheckoutURL)
	require.NotEmpty(t, attach.ReferenceID)

	rec = f.do(t, http.MethodPost, "/api/v1/billing/verify", gin.H{"referenceId": attach.ReferenceID})
	require.Equal(t, http.StatusOK, rec.Code)

	var verify billingdomain.VerifyResponse
	decodeJSON(t, rec, &verify)
	require.Equal(t, billingdomain.SubscriptionStatusActive, verify.Status)
	require.Equal(t, "pro", verify.PlanID)

	rec = f.do(t, http.MethodGet, "/api/v1/billing/check?featureId=projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var check checkResponse
	decodeJSON(t, rec, &check)
	require.True(t, check.Allowed)
	require.NotNil(t, check.Balance)
	require.EqualValues(t, 10, *check.Balance)
	require.Equal(t, "pro", check.PlanID)
}

func TestVerifyUnknownReference(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/verify", gin.H{"referenceId": "ref_missing"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeJSON(t, rec, &resp)
	require.Equal(t, "session_not_found", resp.Error.Type)
}

func TestTrackDecrementsBalance(t *testing.T) {
	f := setupServer(t)

	_, err := f.billing.SetPlan(context.Background(), billingdomain.SetPlanRequest{
		EntityRef: billingdomain.EntityRef{EntityType: "user", EntityID: "user-1"},
		PlanID:    "free",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/track", gin.H{"featureId": "projects"})
	require.Equal(t, http.StatusOK, rec.Code)

	var track trackResponse
	decodeJSON(t, rec, &track)
	require.True(t, track.Success)
	require.EqualValues(t, 2, track.Balance)
	require.EqualValues(t, 3, track.Limit)
}

func TestRateLimitTrackUsesRequestedScope(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := ratelimit.NewTrackLimiter(config.Config{TrackRate: 0.001, TrackBurst: 1}, client)
	f := setupServerWithLimiter(t, limiter)

	ctx := context.Background()
	_, err := f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{
		EntityRef: billingdomain.EntityRef{EntityType: "organization", EntityID: "org-7"},
		PlanID:    "pro",
	})
	require.NoError(t, err)
	_, err = f.billing.SetPlan(ctx, billingdomain.SetPlanRequest{
		EntityRef: billingdomain.EntityRef{EntityType: "user", EntityID: "user-1"},
		PlanID:    "free",
	})
	require.NoError(t, err)

	// Org scope travels in the body on /track; the bucket must be the org's.
	rec := f.do(t, http.MethodPost, "/api/v1/billing/track", gin.H{"featureId": "projects", "organizationId": "org-7"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, mr.Keys(), "billing:track:organization:org-7")

	rec = f.do(t, http.MethodPost, "/api/v1/billing/track", gin.H{"featureId": "projects", "organizationId": "org-7"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The user bucket is untouched by the organization's exhaustion.
	rec = f.do(t, http.MethodPost, "/api/v1/billing/track", gin.H{"featureId": "projects"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTrackRejectsMissingFeature(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/track", gin.H{"delta": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackUnprovisionedEntity(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/track", gin.H{"featureId": "projects"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIncrementUsageBeyondLimit(t *testing.T) {
	f := setupServer(t)

	_, err := f.billing.SetPlan(context.Background(), billingdomain.SetPlanRequest{
		EntityRef: billingdomain.EntityRef{EntityType: "user", EntityID: "user-1"},
		PlanID:    "free",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/increment-usage", gin.H{
		"featureId": "projects",
		"quantity":  5,
	})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeJSON(t, rec, &resp)
	require.Equal(t, "usage_limit_exceeded", resp.Error.Type)
}

func TestGetSubscriptionMissing(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, http.MethodGet, "/api/v1/billing/get-subscription", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelSubscription(t *testing.T) {
	f := setupServer(t)

	_, err := f.billing.SetPlan(context.Background(), billingdomain.SetPlanRequest{
		EntityRef: billingdomain.EntityRef{EntityType: "user", EntityID: "user-1"},
		PlanID:    "pro",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/cancel-subscription", gin.H{})
	require.Equal(t, http.StatusOK, rec.Code)

	var view billingdomain.SubscriptionView
	decodeJSON(t, rec, &view)
	require.True(t, view.CancelAtPeriodEnd)
	require.Equal(t, billingdomain.SubscriptionStatusActive, view.Status)
}

func TestOrganizationScope(t *testing.T) {
	f := setupServer(t)

	_, err := f.billing.SetPlan(context.Background(), billingdomain.SetPlanRequest{
		EntityRef: billingdomain.EntityRef{EntityType: "organization", EntityID: "org-9"},
		PlanID:    "pro",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/v1/billing/check?featureId=projects&organizationId=org-9", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var check checkResponse
	decodeJSON(t, rec, &check)
	require.True(t, check.Allowed)

	rec = f.do(t, http.MethodGet, "/api/v1/billing/organization-seats?organizationId=org-9", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var seats billingdomain.SeatSummary
	decodeJSON(t, rec, &seats)
	require.EqualValues(t, 0, seats.Used)
}

func TestOrganizationSeatsRequiresID(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, http.MethodGet, "/api/v1/billing/organization-seats", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "autumn_http_requests_total")
}
