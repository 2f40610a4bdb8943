package billing

import (
	"github.com/darkziah/better-auth-paymongo/internal/billing/entitlement"
	"github.com/darkziah/better-auth-paymongo/internal/billing/repository"
	"github.com/darkziah/better-auth-paymongo/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(entitlement.New),
	fx.Provide(service.New),
)
