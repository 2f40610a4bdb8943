package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/darkziah/better-auth-paymongo/internal/migration"
	"github.com/darkziah/better-auth-paymongo/internal/observability"
	"github.com/darkziah/better-auth-paymongo/internal/server"
	"github.com/darkziah/better-auth-paymongo/pkg/db"
	"github.com/darkziah/better-auth-paymongo/pkg/log"
)

func main() {
	fx.New(
		log.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	).Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
