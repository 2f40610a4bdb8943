package server

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/darkziah/better-auth-paymongo/pkg/log"
)

const contextUserIDKey = "user_id"

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, session.UserID)
		c.Next()
	}
}

// RateLimitTrack throttles the usage-tracking endpoints per entity. Limiter
// failures admit the request; tracking availability wins over strictness.
func (s *Server) RateLimitTrack() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.trackLimiter.Enabled() {
			c.Next()
			return
		}

		ref := s.entityRef(c, s.scopeParam(c))
		allowed, err := s.trackLimiter.Allow(c.Request.Context(), ref.EntityType, ref.EntityID)
		if err != nil {
			log.L(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// scopeParam resolves organizationId the same way the handlers do: query
// parameter first, then the JSON body. The body is restored so the handler's
// own binding still sees it.
func (s *Server) scopeParam(c *gin.Context) string {
	if v := c.Query("organizationId"); strings.TrimSpace(v) != "" {
		return v
	}
	if c.Request.Body == nil {
		return ""
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var payload struct {
		OrganizationID string `json:"organizationId"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.OrganizationID
}
