package repository

import (
	"context"

	auditdomain "github.com/darkziah/better-auth-paymongo/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListByEntity(ctx context.Context, db *gorm.DB, entityType, entityID string, limit int) ([]auditdomain.AuditLog, error) {
	var entries []auditdomain.AuditLog
	err := db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
