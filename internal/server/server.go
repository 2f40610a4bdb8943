// Package server exposes the billing endpoints over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/darkziah/better-auth-paymongo/internal/audit"
	auditdomain "github.com/darkziah/better-auth-paymongo/internal/audit/domain"
	"github.com/darkziah/better-auth-paymongo/internal/auth"
	authdomain "github.com/darkziah/better-auth-paymongo/internal/auth/domain"
	"github.com/darkziah/better-auth-paymongo/internal/auth/session"
	"github.com/darkziah/better-auth-paymongo/internal/billing"
	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	"github.com/darkziah/better-auth-paymongo/internal/cache"
	"github.com/darkziah/better-auth-paymongo/internal/catalog"
	"github.com/darkziah/better-auth-paymongo/internal/clock"
	"github.com/darkziah/better-auth-paymongo/internal/config"
	"github.com/darkziah/better-auth-paymongo/internal/ledger"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
	obslogger "github.com/darkziah/better-auth-paymongo/internal/observability/logger"
	obsmetrics "github.com/darkziah/better-auth-paymongo/internal/observability/metrics"
	obstracing "github.com/darkziah/better-auth-paymongo/internal/observability/tracing"
	"github.com/darkziah/better-auth-paymongo/internal/paymongo"
	"github.com/darkziah/better-auth-paymongo/internal/ratelimit"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	cache.Module,
	catalog.Module,
	paymongo.Module,
	auth.Module,
	audit.Module,
	ledger.Module,
	billing.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(httpMetrics, registry)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	sessions     *session.Manager
	authSvc      authdomain.Service
	auditSvc     auditdomain.Service
	billingSvc   billingdomain.Service
	ledgerSvc    ledgerdomain.Service
	trackLimiter *ratelimit.TrackLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	Sessions     *session.Manager
	AuthSvc      authdomain.Service
	AuditSvc     auditdomain.Service
	BillingSvc   billingdomain.Service
	LedgerSvc    ledgerdomain.Service
	TrackLimiter *ratelimit.TrackLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		sessions:     p.Sessions,
		authSvc:      p.AuthSvc,
		auditSvc:     p.AuditSvc,
		billingSvc:   p.BillingSvc,
		ledgerSvc:    p.LedgerSvc,
		trackLimiter: p.TrackLimiter,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1/billing")
	api.Use(s.AuthRequired())

	api.POST("/attach", s.attach)
	api.POST("/verify", s.verify)
	api.GET("/check", s.check)
	api.POST("/track", s.RateLimitTrack(), s.track)
	api.POST("/set-plan", s.setPlan)

	api.GET("/get-subscription", s.getSubscription)
	api.POST("/cancel-subscription", s.cancelSubscription)
	api.POST("/switch-plan", s.switchPlan)
	api.POST("/add-addon", s.addAddon)
	api.GET("/check-usage", s.checkUsage)
	api.POST("/increment-usage", s.RateLimitTrack(), s.incrementUsage)
	api.POST("/create-payment-intent", s.createPaymentIntent)
	api.POST("/create-subscription", s.createSubscription)
	api.GET("/organization-seats", s.organizationSeats)
}
