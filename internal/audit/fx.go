package audit

import (
	"github.com/darkziah/better-auth-paymongo/internal/audit/repository"
	"github.com/darkziah/better-auth-paymongo/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
