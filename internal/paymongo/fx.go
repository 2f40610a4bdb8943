package paymongo

import (
	"github.com/darkziah/better-auth-paymongo/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("paymongo",
	fx.Provide(func(cfg config.Config) Gateway {
		return NewClient(cfg.PaymongoBaseURL, cfg.PaymongoSecretKey)
	}),
)
