// Package migration applies the database schema on startup. Postgres uses
// versioned SQL migrations; sqlite and mysql derive the schema from the
// models.
package migration

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/darkziah/better-auth-paymongo/internal/audit/domain"
	authdomain "github.com/darkziah/better-auth-paymongo/internal/auth/domain"
	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	"github.com/darkziah/better-auth-paymongo/internal/config"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var Module = fx.Invoke(Run)

func Run(cfg config.Config, db *gorm.DB, log *zap.Logger) error {
	if cfg.DBType == "postgres" {
		return runVersioned(db, log)
	}
	return db.AutoMigrate(
		&ledgerdomain.UsageRecord{},
		&billingdomain.SubscriptionRecord{},
		&billingdomain.CheckoutSession{},
		&authdomain.Session{},
		&auditdomain.AuditLog{},
	)
}

func runVersioned(db *gorm.DB, log *zap.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.Info("database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
