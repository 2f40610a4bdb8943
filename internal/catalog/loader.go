package catalog

import (
	"fmt"
	"sync/atomic"

	"github.com/darkziah/better-auth-paymongo/internal/config"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Service exposes the current catalog snapshot. Reloads swap the snapshot
// atomically; readers never observe a partially applied catalog.
type Service interface {
	Current() Catalog
}

type service struct {
	snapshot atomic.Pointer[Catalog]
}

func (s *service) Current() Catalog {
	return *s.snapshot.Load()
}

// NewService loads the catalog file and watches it for changes.
func NewService(cfg config.Config, log *zap.Logger) (Service, error) {
	v := viper.New()
	v.SetConfigFile(cfg.CatalogPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", cfg.CatalogPath, err)
	}

	svc := &service{}
	catalog, err := decode(v)
	if err != nil {
		return nil, err
	}
	svc.snapshot.Store(&catalog)

	logger := log.Named("catalog")
	v.OnConfigChange(func(fsnotify.Event) {
		reloaded, err := decode(v)
		if err != nil {
			logger.Warn("catalog reload failed, keeping previous snapshot", zap.Error(err))
			return
		}
		svc.snapshot.Store(&reloaded)
		logger.Info("catalog reloaded",
			zap.Int("plans", len(reloaded.Plans)),
			zap.Int("features", len(reloaded.Features)),
			zap.Int("addons", len(reloaded.Addons)),
		)
	})
	v.WatchConfig()

	logger.Info("catalog loaded",
		zap.String("path", cfg.CatalogPath),
		zap.Int("plans", len(catalog.Plans)),
		zap.Int("features", len(catalog.Features)),
		zap.Int("addons", len(catalog.Addons)),
	)
	return svc, nil
}

// NewStaticService wraps a fixed catalog, for tests.
func NewStaticService(catalog Catalog) Service {
	svc := &service{}
	svc.snapshot.Store(&catalog)
	return svc
}

func decode(v *viper.Viper) (Catalog, error) {
	var catalog Catalog
	if err := v.Unmarshal(&catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if len(catalog.Plans) == 0 {
		return Catalog{}, fmt.Errorf("catalog has no plans")
	}
	for planID, plan := range catalog.Plans {
		if plan.Interval != IntervalMonthly && plan.Interval != IntervalYearly {
			return Catalog{}, fmt.Errorf("plan %s: invalid interval %q", planID, plan.Interval)
		}
	}
	return catalog, nil
}
