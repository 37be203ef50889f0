// internal/repository/request_repository.go
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

// Request constrains the approval record types stored by RequestRepository.
type Request interface {
	models.ChangeRequest | models.DeleteRequest | models.TerminationRequest
}

// RequestRepository stores one kind of approval request.
type RequestRepository[T Request] struct {
	base
	resource string
}

func NewRequestRepository[T Request](db *gorm.DB, resource string) *RequestRepository[T] {
	return &RequestRepository[T]{base: base{db: db}, resource: resource}
}

func (r *RequestRepository[T]) WithTx(tx *gorm.DB) *RequestRepository[T] {
	return &RequestRepository[T]{base: base{db: tx}, resource: r.resource}
}

func (r *RequestRepository[T]) Resource() string {
	return r.resource
}

func (r *RequestRepository[T]) Create(ctx context.Context, req *T) error {
	if err := r.conn(ctx).Create(req).Error; err != nil {
		return apperrors.Internal(err, "failed to create "+r.resource)
	}
	return nil
}

func (r *RequestRepository[T]) Save(ctx context.Context, req *T) error {
	if err := r.conn(ctx).Save(req).Error; err != nil {
		return apperrors.Internal(err, "failed to save "+r.resource)
	}
	return nil
}

func (r *RequestRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var req T
	if err := r.conn(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err, r.resource)
	}
	return &req, nil
}

// FindPending returns the open request for a deal, or nil when there is none.
func (r *RequestRepository[T]) FindPending(ctx context.Context, dealID uuid.UUID) (*T, error) {
	var req T
	err := r.conn(ctx).
		Where("deal_id = ? AND status = ?", dealID, models.RequestStatusPending).
		Order("created_at DESC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, r.resource)
	}
	return &req, nil
}

func (r *RequestRepository[T]) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]T, error) {
	var reqs []T
	err := r.conn(ctx).Where("deal_id = ?", dealID).Order("created_at DESC").Find(&reqs).Error
	return reqs, translate(err, r.resource)
}
