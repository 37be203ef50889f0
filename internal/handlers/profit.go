// internal/handlers/profit.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/dealflow-backend/internal/i18n"
	"github.com/javajoker/dealflow-backend/internal/services"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

type ProfitHandler struct {
	dealService *services.DealService
}

func NewProfitHandler(dealService *services.DealService) *ProfitHandler {
	return &ProfitHandler{dealService: dealService}
}

// GET /deals/:id/profit-distributions
func (h *ProfitHandler) ListDistributions(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	distributions, err := h.dealService.ListProfitDistributions(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, distributions)
}

// POST /deals/:id/profit-distributions
func (h *ProfitHandler) CreateDistribution(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req services.ProfitDistributionInput
	if !bindRequest(c, &req, false) {
		return
	}

	dist, err := h.dealService.CreateProfitDistribution(c.Request.Context(), actor, dealID, req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, gin.H{
		"message":      i18n.T(utils.GetLangFromContext(c), i18n.KeyProfitDistributionSaved),
		"distribution": dist,
	})
}

// POST /admin/profit-distributions/:id/approve
func (h *ProfitHandler) ApproveDistribution(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	distID, ok := pathID(c, "id", "profit distribution")
	if !ok {
		return
	}
	dist, err := h.dealService.ApproveProfitDistribution(c.Request.Context(), actor, distID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, dist)
}

// POST /admin/profit-distributions/:id/reject
func (h *ProfitHandler) RejectDistribution(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	distID, ok := pathID(c, "id", "profit distribution")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindRequest(c, &req, true) {
		return
	}
	if err := h.dealService.RejectProfitDistribution(c.Request.Context(), actor, distID, req.Reason); err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"id": distID, "rejected": true})
}

// POST /admin/profit-distributions/:id/pay
func (h *ProfitHandler) PayDistribution(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	distID, ok := pathID(c, "id", "profit distribution")
	if !ok {
		return
	}
	payout, err := h.dealService.PayProfitDistribution(c.Request.Context(), actor, distID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, payout)
}

type recordSaleRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	SoldAt    time.Time `json:"sold_at"`
}

// POST /internal/sales
func (h *ProfitHandler) RecordSale(c *gin.Context) {
	var req recordSaleRequest
	if !bindRequest(c, &req, false) {
		return
	}
	if req.SoldAt.IsZero() {
		req.SoldAt = time.Now().UTC()
	}

	dist, err := h.dealService.RecordSale(c.Request.Context(), req.ProductID, req.SoldAt)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"distribution": dist})
}
