package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
)

func (s *Server) getSubscription(c *gin.Context) {
	view, err := s.billingSvc.GetSubscription(c.Request.Context(), s.entityRef(c, c.Query("organizationId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type cancelSubscriptionRequest struct {
	OrganizationID string `json:"organizationId"`
}

func (s *Server) cancelSubscription(c *gin.Context) {
	var req cancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	view, err := s.billingSvc.CancelSubscription(c.Request.Context(), s.entityRef(c, req.OrganizationID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type switchPlanRequest struct {
	PlanID         string `json:"planId"`
	OrganizationID string `json:"organizationId"`
}

func (s *Server) switchPlan(c *gin.Context) {
	var req switchPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	view, err := s.billingSvc.SwitchPlan(c.Request.Context(), billingdomain.SwitchPlanRequest{
		EntityRef: s.entityRef(c, req.OrganizationID),
		PlanID:    req.PlanID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type addAddonRequest struct {
	AddonID        string `json:"addonId"`
	Quantity       *int64 `json:"quantity"`
	OrganizationID string `json:"organizationId"`
}

func (s *Server) addAddon(c *gin.Context) {
	var req addAddonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.AddonID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	resp, err := s.billingSvc.AddAddon(c.Request.Context(), billingdomain.AddAddonRequest{
		EntityRef: s.entityRef(c, req.OrganizationID),
		AddonID:   req.AddonID,
		Quantity:  quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) checkUsage(c *gin.Context) {
	featureID := strings.TrimSpace(c.Query("featureId"))
	if featureID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	summary, err := s.billingSvc.CheckUsage(c.Request.Context(), s.entityRef(c, c.Query("organizationId")), featureID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type incrementUsageRequest struct {
	FeatureID      string `json:"featureId"`
	Quantity       *int64 `json:"quantity"`
	OrganizationID string `json:"organizationId"`
}

func (s *Server) incrementUsage(c *gin.Context) {
	var req incrementUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.FeatureID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	summary, err := s.billingSvc.IncrementUsage(c.Request.Context(), billingdomain.IncrementUsageRequest{
		EntityRef: s.entityRef(c, req.OrganizationID),
		FeatureID: req.FeatureID,
		Quantity:  quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type createPaymentIntentRequest struct {
	PlanID         string `json:"planId"`
	OrganizationID string `json:"organizationId"`
}

func (s *Server) createPaymentIntent(c *gin.Context) {
	var req createPaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.billingSvc.CreatePaymentIntent(c.Request.Context(), billingdomain.CreatePaymentIntentRequest{
		EntityRef: s.entityRef(c, req.OrganizationID),
		PlanID:    req.PlanID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type createSubscriptionRequest struct {
	PlanID          string `json:"planId"`
	PaymentIntentID string `json:"paymentIntentId"`
	OrganizationID  string `json:"organizationId"`
}

func (s *Server) createSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	view, err := s.billingSvc.CreateSubscription(c.Request.Context(), billingdomain.CreateSubscriptionRequest{
		EntityRef:       s.entityRef(c, req.OrganizationID),
		PlanID:          req.PlanID,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) organizationSeats(c *gin.Context) {
	organizationID := strings.TrimSpace(c.Query("organizationId"))
	if organizationID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	summary, err := s.billingSvc.OrganizationSeats(c.Request.Context(), organizationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
