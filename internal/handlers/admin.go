// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/services"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

type AdminHandler struct {
	dealService *services.DealService
}

func NewAdminHandler(dealService *services.DealService) *AdminHandler {
	return &AdminHandler{dealService: dealService}
}

// POST /admin/deals/:id/review-listing
func (h *AdminHandler) ReviewListing(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req decisionRequest
	if !bindRequest(c, &req, false) {
		return
	}

	deal, err := h.dealService.ReviewListing(c.Request.Context(), actor, dealID, *req.Approve, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, deal)
}

// POST /admin/deals/:id/review
func (h *AdminHandler) ReviewDeal(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req decisionRequest
	if !bindRequest(c, &req, false) {
		return
	}

	deal, err := h.dealService.AdminReviewDeal(c.Request.Context(), actor, dealID, *req.Approve, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, deal)
}

type resolveTerminationRequest struct {
	Approve   *bool                `json:"approve" validate:"required"`
	Reason    string               `json:"reason" validate:"max=2000"`
	EndReason models.DealEndReason `json:"end_reason" validate:"end_reason"`
}

// POST /admin/deals/:id/resolve-termination
func (h *AdminHandler) ResolveTermination(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req resolveTerminationRequest
	if !bindRequest(c, &req, false) {
		return
	}

	result, err := h.dealService.AdminResolveTermination(c.Request.Context(), actor, dealID, *req.Approve, req.Reason, req.EndReason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	terminationResponse(c, result)
}

type completeDealRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// POST /admin/deals/:id/complete
func (h *AdminHandler) CompleteDeal(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req completeDealRequest
	if !bindRequest(c, &req, true) {
		return
	}

	deal, err := h.dealService.CompleteDeal(c.Request.Context(), actor, dealID, req.Note)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, deal)
}

// POST /admin/deals/:id/capital-return/retry
func (h *AdminHandler) RetryCapitalReturn(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}

	deal, err := h.dealService.RetryCapitalReturn(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, deal)
}

// GET /admin/deals/:id/payment-issues
func (h *AdminHandler) ListPaymentIssues(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}

	issues, err := h.dealService.ListPaymentIssues(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, issues)
}
