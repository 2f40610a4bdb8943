package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	authdomain "github.com/darkziah/better-auth-paymongo/internal/auth/domain"
	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	"github.com/darkziah/better-auth-paymongo/internal/catalog"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
	"github.com/darkziah/better-auth-paymongo/internal/paymongo"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

// ErrorHandlingMiddleware converts domain errors attached to the gin
// context into the JSON error envelope.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var gatewayErr *paymongo.Error

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}

	case errors.Is(err, billingdomain.ErrPaymentNotCompleted),
		errors.Is(err, billingdomain.ErrUsageLimitExceeded):
		return http.StatusPaymentRequired, errorPayload{Type: err.Error(), Message: "payment required"}

	case errors.Is(err, catalog.ErrPlanNotFound),
		errors.Is(err, catalog.ErrFeatureNotFound),
		errors.Is(err, catalog.ErrAddonNotFound),
		errors.Is(err, billingdomain.ErrSessionNotFound),
		errors.Is(err, billingdomain.ErrSubscriptionNotFound),
		errors.Is(err, ledgerdomain.ErrRecordNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: err.Error(), Message: "not found"}

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, billingdomain.ErrInvalidEntityType),
		errors.Is(err, billingdomain.ErrInvalidQuantity),
		errors.Is(err, billingdomain.ErrFeatureNotMetered),
		errors.Is(err, ledgerdomain.ErrInvalidEntityType),
		errors.Is(err, ledgerdomain.ErrInvalidQuantity):
		return http.StatusBadRequest, errorPayload{Type: err.Error(), Message: "invalid request"}

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}

	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway, errorPayload{Type: "gateway_error", Message: gatewayErr.Detail}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
