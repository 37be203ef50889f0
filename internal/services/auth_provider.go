// internal/services/auth_provider.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// AuthProvider resolves a bearer token into the caller's identity.
type AuthProvider interface {
	Resolve(ctx context.Context, token string) (*models.Actor, error)
}

// JWTAuthProvider validates locally signed tokens and reads the role flags
// from the user table on every call.
type JWTAuthProvider struct {
	users *repository.UserRepository
	log   *logrus.Logger
}

func NewJWTAuthProvider(users *repository.UserRepository, log *logrus.Logger) *JWTAuthProvider {
	return &JWTAuthProvider{users: users, log: log}
}

func (p *JWTAuthProvider) Resolve(ctx context.Context, token string) (*models.Actor, error) {
	if token == "" {
		return nil, apperrors.Unauthenticated("token is required")
	}
	claims, err := utils.ValidateJWT(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthenticated, err, "invalid token")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthenticated, err, "invalid token subject")
	}

	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.Unauthenticated("unknown user")
		}
		return nil, err
	}
	if user.IsSuspended {
		return nil, apperrors.Forbidden("account is suspended")
	}

	if err := p.users.Touch(ctx, user.ID, time.Now().UTC()); err != nil {
		p.log.WithError(err).WithField("user_id", user.ID).Debug("Failed to update last seen")
	}

	return &models.Actor{
		UserID:          user.ID,
		IsAdmin:         user.IsAdmin,
		IsInvestor:      user.IsInvestor,
		IsBusinessOwner: user.IsBusinessOwner,
	}, nil
}
