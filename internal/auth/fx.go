package auth

import (
	"github.com/darkziah/better-auth-paymongo/internal/auth/repository"
	"github.com/darkziah/better-auth-paymongo/internal/auth/service"
	"github.com/darkziah/better-auth-paymongo/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
