// internal/repository/payment_repository.go
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

type PaymentRepository struct {
	base
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{base{db: db}}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{base{db: tx}}
}

// FindAttemptByHash returns the attempt stored under an idempotency hash, or nil.
func (r *PaymentRepository) FindAttemptByHash(ctx context.Context, hash string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.conn(ctx).Where("hash = ?", hash).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "payment attempt")
	}
	return &attempt, nil
}

func (r *PaymentRepository) FindAttemptByRef(ctx context.Context, ref string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.conn(ctx).Where("gateway_ref = ?", ref).First(&attempt).Error; err != nil {
		return nil, translate(err, "payment attempt")
	}
	return &attempt, nil
}

func (r *PaymentRepository) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	if err := r.conn(ctx).Create(attempt).Error; err != nil {
		return apperrors.Internal(err, "failed to record payment attempt")
	}
	return nil
}

func (r *PaymentRepository) SaveAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	if err := r.conn(ctx).Save(attempt).Error; err != nil {
		return apperrors.Internal(err, "failed to update payment attempt")
	}
	return nil
}

func (r *PaymentRepository) LogFailure(ctx context.Context, entry *models.PaymentFailureLog) error {
	if err := r.conn(ctx).Create(entry).Error; err != nil {
		return apperrors.Internal(err, "failed to write payment failure log")
	}
	return nil
}

func (r *PaymentRepository) LogRefund(ctx context.Context, entry *models.PaymentRefundLog) error {
	if err := r.conn(ctx).Create(entry).Error; err != nil {
		return apperrors.Internal(err, "failed to write refund log")
	}
	return nil
}

func (r *PaymentRepository) ListFailures(ctx context.Context, dealID uuid.UUID) ([]models.PaymentFailureLog, error) {
	var logs []models.PaymentFailureLog
	err := r.conn(ctx).Where("deal_id = ?", dealID).Order("created_at DESC").Find(&logs).Error
	return logs, translate(err, "payment failure logs")
}

func (r *PaymentRepository) ListRefunds(ctx context.Context, dealID uuid.UUID) ([]models.PaymentRefundLog, error) {
	var logs []models.PaymentRefundLog
	err := r.conn(ctx).Where("deal_id = ?", dealID).Order("created_at DESC").Find(&logs).Error
	return logs, translate(err, "refund logs")
}
