package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists usage records. Find returns (nil, nil) when no
// record exists so callers can distinguish absence from failure.
type Repository interface {
	Find(ctx context.Context, db *gorm.DB, entityType EntityType, entityID, featureID string) (*UsageRecord, error)
	ListByEntity(ctx context.Context, db *gorm.DB, entityType EntityType, entityID string) ([]UsageRecord, error)
	Insert(ctx context.Context, db *gorm.DB, record *UsageRecord) error
	DeleteByEntity(ctx context.Context, db *gorm.DB, entityType EntityType, entityID string) error

	// AdjustBalance applies delta atomically, clamping the result at zero.
	AdjustBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64) error

	// ResetPeriod restores the balance and moves the period window.
	ResetPeriod(ctx context.Context, db *gorm.DB, record *UsageRecord) error
}
