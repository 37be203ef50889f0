// internal/repository/ledger_repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// TransactionRepository is append-only: entries are never updated or removed.
type TransactionRepository struct {
	base
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{base{db: db}}
}

func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{base{db: tx}}
}

func (r *TransactionRepository) Append(ctx context.Context, entries ...*models.Transaction) error {
	for _, entry := range entries {
		if err := r.conn(ctx).Create(entry).Error; err != nil {
			return apperrors.Internal(err, "failed to append transaction")
		}
	}
	return nil
}

func (r *TransactionRepository) ListByDeal(ctx context.Context, dealID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := r.conn(ctx).Model(&models.Transaction{}).Where("deal_id = ?", dealID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "transactions")
	}

	var txs []models.Transaction
	query = utils.ApplySort(query, params, []string{"created_at", "amount"})
	if err := utils.ApplyPagination(query, params).Find(&txs).Error; err != nil {
		return nil, 0, translate(err, "transactions")
	}
	return txs, total, nil
}

func (r *TransactionRepository) CountByDealAndType(ctx context.Context, dealID uuid.UUID, txType models.TransactionType) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&models.Transaction{}).
		Where("deal_id = ? AND transaction_type = ?", dealID, txType).
		Count(&count).Error
	return count, translate(err, "transactions")
}

type ProfitDistributionRepository struct {
	base
}

func NewProfitDistributionRepository(db *gorm.DB) *ProfitDistributionRepository {
	return &ProfitDistributionRepository{base{db: db}}
}

func (r *ProfitDistributionRepository) WithTx(tx *gorm.DB) *ProfitDistributionRepository {
	return &ProfitDistributionRepository{base{db: tx}}
}

func (r *ProfitDistributionRepository) Create(ctx context.Context, dist *models.ProfitDistribution) error {
	if err := r.conn(ctx).Create(dist).Error; err != nil {
		return apperrors.Internal(err, "failed to create profit distribution")
	}
	return nil
}

func (r *ProfitDistributionRepository) Save(ctx context.Context, dist *models.ProfitDistribution) error {
	if err := r.conn(ctx).Save(dist).Error; err != nil {
		return apperrors.Internal(err, "failed to save profit distribution")
	}
	return nil
}

func (r *ProfitDistributionRepository) Delete(ctx context.Context, dist *models.ProfitDistribution) error {
	if err := r.conn(ctx).Delete(dist).Error; err != nil {
		return apperrors.Internal(err, "failed to delete profit distribution")
	}
	return nil
}

func (r *ProfitDistributionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProfitDistribution, error) {
	var dist models.ProfitDistribution
	if err := r.conn(ctx).First(&dist, "id = ?", id).Error; err != nil {
		return nil, translate(err, "profit distribution")
	}
	return &dist, nil
}

// FindOpen returns the rolling distribution still accumulating sales, or nil.
func (r *ProfitDistributionRepository) FindOpen(ctx context.Context, dealID uuid.UUID) (*models.ProfitDistribution, error) {
	var dist models.ProfitDistribution
	err := r.conn(ctx).
		Where("deal_id = ? AND is_pending = ? AND is_approved_by_admin = ? AND is_paid = ?", dealID, true, false, false).
		Order("start_date DESC").
		First(&dist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "profit distribution")
	}
	return &dist, nil
}

// LatestEnd returns the end of the most recent distribution window, or nil.
func (r *ProfitDistributionRepository) LatestEnd(ctx context.Context, dealID uuid.UUID) (*time.Time, error) {
	var dist models.ProfitDistribution
	err := r.conn(ctx).Where("deal_id = ?", dealID).Order("end_date DESC").First(&dist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "profit distribution")
	}
	return &dist.EndDate, nil
}

// Overlaps reports whether any other distribution of the deal intersects [start, end).
func (r *ProfitDistributionRepository) Overlaps(ctx context.Context, dealID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	query := r.conn(ctx).Model(&models.ProfitDistribution{}).
		Where("deal_id = ? AND start_date < ? AND end_date > ?", dealID, end, start)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, translate(err, "profit distributions")
	}
	return count > 0, nil
}

func (r *ProfitDistributionRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.ProfitDistribution, error) {
	var dists []models.ProfitDistribution
	err := r.conn(ctx).Where("deal_id = ?", dealID).Order("start_date DESC").Find(&dists).Error
	return dists, translate(err, "profit distributions")
}
