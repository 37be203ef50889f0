// internal/middleware/auth.go
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/i18n"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// ActorResolver turns a bearer token into a caller identity.
type ActorResolver interface {
	Resolve(ctx context.Context, token string) (*models.Actor, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	// Extract token from "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func AuthRequired(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			if c.GetHeader("Authorization") == "" {
				utils.UnauthorizedResponse(c, "")
			} else {
				utils.UnauthorizedResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAuthInvalidToken))
			}
			c.Abort()
			return
		}

		actor, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if apperrors.IsKind(err, apperrors.KindUnauthenticated) {
				utils.UnauthorizedResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAuthInvalidToken))
			} else {
				utils.DomainErrorResponse(c, err)
			}
			c.Abort()
			return
		}

		c.Set(utils.ContextKeyActor, actor)
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := utils.GetActorFromContext(c)
		if !ok || !actor.IsAdmin {
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SystemActor stores the deployment's system identity on every request
// context so services can act on its behalf.
func SystemActor(id uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != uuid.Nil {
			c.Request = c.Request.WithContext(models.ContextWithSystemActor(c.Request.Context(), id))
		}
		c.Next()
	}
}
