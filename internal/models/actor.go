// internal/models/actor.go
package models

import (
	"context"

	"github.com/google/uuid"
)

// Actor is the resolved identity behind a call into the deal engine.
type Actor struct {
	UserID          uuid.UUID `json:"user_id"`
	IsAdmin         bool      `json:"is_admin"`
	IsInvestor      bool      `json:"is_investor"`
	IsBusinessOwner bool      `json:"is_business_owner"`
	IsSystem        bool      `json:"is_system"`
}

func (a *Actor) Valid() bool {
	return a != nil && a.UserID != uuid.Nil
}

type systemActorKey struct{}

// ContextWithSystemActor stores the deployment's system identity on ctx.
func ContextWithSystemActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, systemActorKey{}, id)
}

// SystemActorFromContext returns the system identity carried by ctx, or uuid.Nil.
func SystemActorFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if id, ok := ctx.Value(systemActorKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// SystemActor builds the admin-capable actor used by schedulers and webhooks.
func SystemActor(ctx context.Context) *Actor {
	return &Actor{UserID: SystemActorFromContext(ctx), IsAdmin: true, IsSystem: true}
}
