// internal/handlers/request.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/dealflow-backend/internal/i18n"
	"github.com/javajoker/dealflow-backend/internal/services"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// RequestHandler serves the approval requests parties raise against each other.
type RequestHandler struct {
	dealService *services.DealService
}

func NewRequestHandler(dealService *services.DealService) *RequestHandler {
	return &RequestHandler{dealService: dealService}
}

// GET /deals/:id/change-requests
func (h *RequestHandler) ListChangeRequests(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	dealID, ok := pathID(c, "id", "deal")
	if !ok {
		return
	}
	requests, err := h.dealService.ListChangeRequests(c.Request.Context(), actor, dealID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, requests)
}

// POST /change-requests/:id/respond
func (h *RequestHandler) RespondToChangeRequest(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "id", "change request")
	if !ok {
		return
	}
	var req decisionRequest
	if !bindRequest(c, &req, false) {
		return
	}

	result, err := h.dealService.RespondToChangeRequest(c.Request.Context(), actor, requestID, *req.Approve, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}

// POST /delete-requests/:id/respond
func (h *RequestHandler) RespondToDeleteRequest(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "id", "delete request")
	if !ok {
		return
	}
	var req decisionRequest
	if !bindRequest(c, &req, false) {
		return
	}

	result, err := h.dealService.RespondToDeleteRequest(c.Request.Context(), actor, requestID, *req.Approve, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}
	if result.Deleted {
		utils.SuccessResponse(c, gin.H{
			"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyDealDeleted),
			"result":  result,
		})
		return
	}
	utils.SuccessResponse(c, result)
}
