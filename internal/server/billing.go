package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/darkziah/better-auth-paymongo/internal/billing/domain"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
)

// entityRef resolves the scope of a request. A present organizationId
// switches from the authenticated user to the organization.
func (s *Server) entityRef(c *gin.Context, organizationID string) billingdomain.EntityRef {
	if trimmed := strings.TrimSpace(organizationID); trimmed != "" {
		return billingdomain.EntityRef{EntityType: "organization", EntityID: trimmed}
	}
	return billingdomain.EntityRef{EntityType: "user", EntityID: c.GetString(contextUserIDKey)}
}

type attachRequest struct {
	PlanID         string `json:"planId"`
	SuccessURL     string `json:"successUrl"`
	CancelURL      string `json:"cancelUrl"`
	OrganizationID string `json:"organizationId"`
}

func (s *Server) attach(c *gin.Context) {
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.PlanID) == "" || strings.TrimSpace(req.SuccessURL) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.billingSvc.Attach(c.Request.Context(), billingdomain.AttachRequest{
		EntityRef:  s.entityRef(c, req.OrganizationID),
		PlanID:     req.PlanID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type verifyRequest struct {
	ReferenceID string `json:"referenceId"`
}

func (s *Server) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.ReferenceID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.billingSvc.Verify(c.Request.Context(), billingdomain.VerifyRequest{ReferenceID: req.ReferenceID})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Balance *int64 `json:"balance,omitempty"`
	Limit   *int64 `json:"limit,omitempty"`
	PlanID  string `json:"planId,omitempty"`
}

func (s *Server) check(c *gin.Context) {
	featureID := strings.TrimSpace(c.Query("featureId"))
	if featureID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ref := s.entityRef(c, c.Query("organizationId"))
	resp, err := s.ledgerSvc.Check(c.Request.Context(), ledgerdomain.CheckRequest{
		EntityType: ledgerdomain.EntityType(ref.EntityType),
		EntityID:   ref.EntityID,
		FeatureID:  featureID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkResponse{
		Allowed: resp.Allowed,
		Balance: resp.Balance,
		Limit:   resp.Limit,
		PlanID:  resp.PlanID,
	})
}

type trackRequest struct {
	FeatureID      string `json:"featureId"`
	Delta          *int64 `json:"delta"`
	OrganizationID string `json:"organizationId"`
}

type trackResponse struct {
	Success bool  `json:"success"`
	Balance int64 `json:"balance"`
	Limit   int64 `json:"limit"`
}

func (s *Server) track(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.FeatureID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	delta := int64(1)
	if req.Delta != nil {
		delta = *req.Delta
	}

	ref := s.entityRef(c, req.OrganizationID)
	resp, err := s.ledgerSvc.Track(c.Request.Context(), ledgerdomain.TrackRequest{
		EntityType: ledgerdomain.EntityType(ref.EntityType),
		EntityID:   ref.EntityID,
		FeatureID:  req.FeatureID,
		Delta:      delta,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, trackResponse{
		Success: resp.Success,
		Balance: resp.Balance,
		Limit:   resp.Limit,
	})
}

type setPlanRequest struct {
	PlanID         string `json:"planId"`
	OrganizationID string `json:"organizationId"`
}

func (s *Server) setPlan(c *gin.Context) {
	var req setPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.billingSvc.SetPlan(c.Request.Context(), billingdomain.SetPlanRequest{
		EntityRef: s.entityRef(c, req.OrganizationID),
		PlanID:    req.PlanID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
