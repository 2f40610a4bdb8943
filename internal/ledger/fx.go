package ledger

import (
	"github.com/darkziah/better-auth-paymongo/internal/ledger/repository"
	"github.com/darkziah/better-auth-paymongo/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
