package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/darkziah/better-auth-paymongo/internal/auth/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() authdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, session *authdomain.Session) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*authdomain.Session, error) {
	var session authdomain.Session
	err := db.WithContext(ctx).
		Where("session_token_hash = ?", tokenHash).
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repo) Touch(ctx context.Context, db *gorm.DB, id snowflake.ID, lastSeenAt time.Time) error {
	return db.WithContext(ctx).
		Model(&authdomain.Session{}).
		Where("id = ?", id).
		Update("last_seen_at", lastSeenAt).Error
}

func (r *repo) Revoke(ctx context.Context, db *gorm.DB, id snowflake.ID, revokedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&authdomain.Session{}).
		Where("id = ?", id).
		Update("revoked_at", revokedAt).Error
}
