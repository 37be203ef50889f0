// internal/services/approval_workflow.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
)

// ApprovalWorkflow is the propose, approve or reject, then apply protocol
// shared by change, delete and termination requests.
type ApprovalWorkflow[T repository.Request, P interface {
	*T
	models.ApprovalRecord
}] struct {
	repo *repository.RequestRepository[T]
}

func NewApprovalWorkflow[T repository.Request, P interface {
	*T
	models.ApprovalRecord
}](repo *repository.RequestRepository[T]) *ApprovalWorkflow[T, P] {
	return &ApprovalWorkflow[T, P]{repo: repo}
}

// Propose stores a new pending request. Only one may be pending per deal.
func (w *ApprovalWorkflow[T, P]) Propose(ctx context.Context, tx *gorm.DB, req P) error {
	repo := w.repo.WithTx(tx)
	pending, err := repo.FindPending(ctx, req.GetDealID())
	if err != nil {
		return err
	}
	if pending != nil {
		return apperrors.Conflict("a pending " + repo.Resource() + " already exists for this deal").
			WithDetail("request_id", P(pending).GetID())
	}
	return repo.Create(ctx, (*T)(req))
}

func (w *ApprovalWorkflow[T, P]) Find(ctx context.Context, tx *gorm.DB, id uuid.UUID) (P, error) {
	req, err := w.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return P(req), nil
}

// Pending returns the open request of a deal, or nil.
func (w *ApprovalWorkflow[T, P]) Pending(ctx context.Context, tx *gorm.DB, dealID uuid.UUID) (P, error) {
	req, err := w.repo.WithTx(tx).FindPending(ctx, dealID)
	if err != nil || req == nil {
		return nil, err
	}
	return P(req), nil
}

// Approve runs apply and then marks the request approved. An apply error leaves the request pending.
func (w *ApprovalWorkflow[T, P]) Approve(ctx context.Context, tx *gorm.DB, req P, by uuid.UUID, at time.Time, apply func(P) error) error {
	if err := w.ensurePending(req); err != nil {
		return err
	}
	if apply != nil {
		if err := apply(req); err != nil {
			return err
		}
	}
	req.Resolve(models.RequestStatusApproved, by, "", at)
	return w.repo.WithTx(tx).Save(ctx, (*T)(req))
}

// Reject marks the request rejected with a reason; the deal itself is not touched.
func (w *ApprovalWorkflow[T, P]) Reject(ctx context.Context, tx *gorm.DB, req P, by uuid.UUID, reason string, at time.Time) error {
	if err := w.ensurePending(req); err != nil {
		return err
	}
	req.Resolve(models.RequestStatusRejected, by, reason, at)
	return w.repo.WithTx(tx).Save(ctx, (*T)(req))
}

// Save persists extra fields on a request without changing its status.
func (w *ApprovalWorkflow[T, P]) Save(ctx context.Context, tx *gorm.DB, req P) error {
	return w.repo.WithTx(tx).Save(ctx, (*T)(req))
}

func (w *ApprovalWorkflow[T, P]) List(ctx context.Context, dealID uuid.UUID) ([]T, error) {
	return w.repo.ListByDeal(ctx, dealID)
}

func (w *ApprovalWorkflow[T, P]) ensurePending(req P) error {
	if req.GetStatus() != models.RequestStatusPending {
		return apperrors.InvalidState(w.repo.Resource() + " has already been resolved").
			WithDetail("status", string(req.GetStatus()))
	}
	return nil
}
