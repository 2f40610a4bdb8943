package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/darkziah/better-auth-paymongo/internal/auth/domain"
	"github.com/darkziah/better-auth-paymongo/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  authdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  authdomain.Repository
}

func New(p Params) authdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("auth.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateSession(ctx context.Context, userID string) (*authdomain.CreateSessionResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, authdomain.ErrInvalidSession
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	session := &authdomain.Session{
		ID:               s.genID.Generate(),
		UserID:           userID,
		SessionTokenHash: hashToken(token),
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, session); err != nil {
		return nil, err
	}
	return &authdomain.CreateSessionResult{Token: token, Session: session}, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*authdomain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, authdomain.ErrInvalidSession
	}

	session, err := s.repo.FindByTokenHash(ctx, s.db, hashToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, authdomain.ErrSessionNotFound
	}
	if session.RevokedAt != nil {
		return nil, authdomain.ErrSessionRevoked
	}

	now := s.clock.Now().UTC()
	if now.After(session.ExpiresAt) {
		return nil, authdomain.ErrSessionExpired
	}

	if err := s.repo.Touch(ctx, s.db, session.ID, now); err != nil {
		s.log.Warn("session touch failed", zap.Error(err))
	}
	return session, nil
}

func (s *Service) Revoke(ctx context.Context, token string) error {
	session, err := s.repo.FindByTokenHash(ctx, s.db, hashToken(strings.TrimSpace(token)))
	if err != nil {
		return err
	}
	if session == nil {
		return authdomain.ErrSessionNotFound
	}
	return s.repo.Revoke(ctx, s.db, session.ID, s.clock.Now().UTC())
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
