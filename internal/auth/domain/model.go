// Package domain contains core types for session authentication. User
// accounts live in the host application; this service only owns sessions.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session_not_found")
	ErrSessionExpired  = errors.New("session_expired")
	ErrSessionRevoked  = errors.New("session_revoked")
	ErrInvalidSession  = errors.New("invalid_session")
)

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           string       `gorm:"column:user_id;type:text;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

type CreateSessionResult struct {
	Token   string
	Session *Session
}

type Service interface {
	CreateSession(ctx context.Context, userID string) (*CreateSessionResult, error)
	Authenticate(ctx context.Context, token string) (*Session, error)
	Revoke(ctx context.Context, token string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *Session) error
	FindByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*Session, error)
	Touch(ctx context.Context, db *gorm.DB, id snowflake.ID, lastSeenAt time.Time) error
	Revoke(ctx context.Context, db *gorm.DB, id snowflake.ID, revokedAt time.Time) error
}
