// internal/handlers/handler.go
package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/dealflow-backend/internal/i18n"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// requestActor returns the authenticated caller or writes a 401.
func requestActor(c *gin.Context) (*models.Actor, bool) {
	actor, ok := utils.GetActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return nil, false
	}
	return actor, true
}

func pathID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyInvalidID, label), nil)
		return uuid.Nil, false
	}
	return id, true
}

// bindRequest decodes and validates the JSON body. An empty body is
// accepted when optional is set, leaving req at its zero value.
func bindRequest(c *gin.Context, req interface{}, optional bool) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "input"), err.Error())
			return false
		}
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

type decisionRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Reason  string `json:"reason" validate:"max=2000"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type paymentRequest struct {
	Platform models.Platform `json:"platform" validate:"required,platform"`
}

type confirmRequest struct {
	PaymentRef string `json:"payment_ref" validate:"max=255"`
}
