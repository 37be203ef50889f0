// internal/handlers/deal.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/dealflow-backend/internal/i18n"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/services"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

type DealHandler struct {
	dealService *services.DealService
}

func NewDealHandler(dealService *services.DealService) *DealHandler {
	return &DealHandler{dealService: dealService}
}

// POST /deals
func (h *DealHandler) CreateDeal(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	var req services.CreateDealInput
	if !bindRequest(c, &req, false) {
		return
	}

	deal, err := h.dealService.CreateDeal(c.Request.Context(), actor, req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyDealCreated),
		"deal":    deal,
	})
}

// GET /deals
func (h *DealHandler) ListDeals(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)
	deals, total, err := h.dealService.ListDiscoverableDeals(c.Request.Context(), actor, params)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(deals, total, params))
}

// GET /deals/mine
func (h *DealHandler) ListMyDeals(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)
	deals, total, err := h.dealService.ListMyDeals(c.Request.Context(), actor, params)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(deals, total, params))
}

// GET /deals/:id
func (h *DealHandler) GetDeal(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	deal, err := h.dealService.GetDeal(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, deal)
}

// GET /deals/:id/history
func (h *DealHandler) GetDealHistory(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	history, err := h.dealService.GetDealHistory(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, history)
}

type editDealRequest struct {
	models.DealTermsPatch
	Reason string `json:"reason" validate:"max=2000"`
}

// PUT /deals/:id
func (h *DealHandler) EditDeal(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req editDealRequest
	if !bindRequest(c, &req, false) {
		return
	}

	result, err := h.dealService.EditDeal(c.Request.Context(), actor, dealID, req.DealTermsPatch, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	key := i18n.KeyDealUpdated
	if !result.Applied {
		key = i18n.KeyChangeRequestSubmitted
	}
	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), key),
		"result":  result,
	})
}

// DELETE /deals/:id
func (h *DealHandler) DeleteDeal(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindRequest(c, &req, true) {
		return
	}

	result, err := h.dealService.DeleteDeal(c.Request.Context(), actor, dealID, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	key := i18n.KeyDealDeleted
	if !result.Deleted {
		key = i18n.KeyDeleteRequestSubmitted
	}
	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), key),
		"result":  result,
	})
}

type acceptOfferRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// POST /deals/:id/accept-offer
func (h *DealHandler) AcceptOffer(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req acceptOfferRequest
	if !bindRequest(c, &req, true) {
		return
	}

	deal, err := h.dealService.AcceptOffer(c.Request.Context(), actor, dealID, req.Note)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, deal)
}

type discussOfferRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// POST /deals/:id/discuss-offer
func (h *DealHandler) DiscussOffer(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req discussOfferRequest
	if !bindRequest(c, &req, false) {
		return
	}

	deal, err := h.dealService.DiscussOffer(c.Request.Context(), actor, dealID, req.Content)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, deal)
}

type respondToOfferRequest struct {
	Accept *bool  `json:"accept" validate:"required"`
	Reason string `json:"reason" validate:"max=2000"`
}

// POST /deals/:id/respond-to-offer
func (h *DealHandler) RespondToOffer(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req respondToOfferRequest
	if !bindRequest(c, &req, false) {
		return
	}

	deal, err := h.dealService.RespondToOffer(c.Request.Context(), actor, dealID, *req.Accept, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, deal)
}

// POST /deals/:id/sign
func (h *DealHandler) SignContract(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}

	deal, err := h.dealService.SignContract(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyContractSigned),
		"deal":    deal,
	})
}

// GET /deals/:id/contract/verify
func (h *DealHandler) VerifyContract(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}

	verification, err := h.dealService.VerifyContract(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, verification)
}

type terminateRequest struct {
	Reason    string               `json:"reason" validate:"required,max=2000"`
	EndReason models.DealEndReason `json:"end_reason" validate:"end_reason"`
}

// POST /deals/:id/terminate
func (h *DealHandler) RequestTermination(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req terminateRequest
	if !bindRequest(c, &req, false) {
		return
	}

	result, err := h.dealService.RequestTermination(c.Request.Context(), actor, dealID, req.Reason, req.EndReason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	terminationResponse(c, result)
}

// POST /deals/:id/respond-to-termination
func (h *DealHandler) RespondToTermination(c *gin.Context) {
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

	result, err := h.dealService.RespondToTermination(c.Request.Context(), actor, dealID, *req.Approve, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	terminationResponse(c, result)
}

func terminationResponse(c *gin.Context, result *services.TerminationResult) {
	key := i18n.KeyTerminationRequested
	if result.Terminated {
		key = i18n.KeyDealTerminated
	}
	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), key),
		"result":  result,
	})
}

// POST /deals/:id/renew
func (h *DealHandler) RequestRenewal(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}

	result, err := h.dealService.RequestRenewal(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}

// GET /deals/:id/messages
func (h *DealHandler) ListMessages(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)
	messages, total, err := h.dealService.ListMessages(c.Request.Context(), actor, dealID, params)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(messages, total, params))
}

// POST /messages/:id/read
func (h *DealHandler) MarkMessageRead(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "id", "message")
	if !ok {
		return
	}
	if err := h.dealService.MarkMessageRead(c.Request.Context(), actor, messageID); err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"id": messageID, "is_read": true})
}

// GET /deals/:id/transactions
func (h *DealHandler) ListTransactions(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)
	transactions, total, err := h.dealService.ListTransactions(c.Request.Context(), actor, dealID, params)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(transactions, total, params))
}
