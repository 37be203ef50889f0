// internal/handlers/payment.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/dealflow-backend/internal/i18n"
	"github.com/javajoker/dealflow-backend/internal/services"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// maxWebhookBody mirrors the gateway's documented payload ceiling.
const maxWebhookBody = 65536

type PaymentHandler struct {
	dealService    *services.DealService
	webhookService *services.WebhookService
}

func NewPaymentHandler(dealService *services.DealService, webhookService *services.WebhookService) *PaymentHandler {
	return &PaymentHandler{
		dealService:    dealService,
		webhookService: webhookService,
	}
}

// POST /deals/:id/fund
func (h *PaymentHandler) InitiateFunding(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindRequest(c, &req, false) {
		return
	}

	session, err := h.dealService.InitiateFunding(c.Request.Context(), actor, dealID, req.Platform)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, session)
}

// POST /deals/:id/fund/confirm
func (h *PaymentHandler) ConfirmFunding(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req confirmRequest
	if !bindRequest(c, &req, true) {
		return
	}

	outcome, err := h.dealService.ConfirmFunding(c.Request.Context(), actor, dealID, req.PaymentRef)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	outcomeResponse(c, outcome)
}

// POST /deals/:id/change-payment
func (h *PaymentHandler) ProcessChangePayment(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindRequest(c, &req, false) {
		return
	}

	result, err := h.dealService.ProcessChangePayment(c.Request.Context(), actor, dealID, req.Platform)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}

// POST /deals/:id/change-payment/confirm
func (h *PaymentHandler) ConfirmChangePayment(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	var req confirmRequest
	if !bindRequest(c, &req, true) {
		return
	}

	outcome, err := h.dealService.ConfirmChangePayment(c.Request.Context(), actor, dealID, req.PaymentRef)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	outcomeResponse(c, outcome)
}

func outcomeResponse(c *gin.Context, outcome *services.PaymentOutcome) {
	lang := utils.GetLangFromContext(c)
	switch outcome.Status {
	case services.ConfirmationSucceeded:
		utils.SuccessResponse(c, gin.H{
			"message": i18n.T(lang, i18n.KeyPaymentConfirmed),
			"status":  outcome.Status,
			"deal":    outcome.Deal,
		})
	case services.ConfirmationPending:
		c.JSON(http.StatusAccepted, utils.APIResponse{
			Success: true,
			Data: gin.H{
				"message": i18n.T(lang, i18n.KeyPaymentPending),
				"status":  outcome.Status,
				"deal":    outcome.Deal,
			},
		})
	default:
		utils.ErrorResponse(c, http.StatusPaymentRequired, "PAYMENT_FAILED",
			i18n.T(lang, i18n.KeyPaymentFailed), gin.H{"status": outcome.Status})
	}
}

// POST /webhooks/stripe
func (h *PaymentHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.BadRequestResponse(c, "", nil)
		return
	}

	if err := h.webhookService.HandlePayload(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
