// Package domain contains the audit trail of billing actions.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrInvalidAction = errors.New("invalid_action")

// AuditLog is one recorded billing action against an entity.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	Action     string            `gorm:"type:text;not null;index"`
	EntityType string            `gorm:"type:text;not null;index:idx_audit_entity"`
	EntityID   string            `gorm:"type:text;not null;index:idx_audit_entity"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// Service records billing actions. Recording is best-effort at call sites;
// callers log failures rather than failing the operation.
type Service interface {
	Record(ctx context.Context, action, entityType, entityID string, metadata map[string]any) error
	List(ctx context.Context, entityType, entityID string, limit int) ([]AuditLog, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	ListByEntity(ctx context.Context, db *gorm.DB, entityType, entityID string, limit int) ([]AuditLog, error)
}
