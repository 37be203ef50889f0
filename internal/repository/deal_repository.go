// internal/repository/deal_repository.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

type DealRepository struct {
	base
}

func NewDealRepository(db *gorm.DB) *DealRepository {
	return &DealRepository{base{db: db}}
}

func (r *DealRepository) WithTx(tx *gorm.DB) *DealRepository {
	return &DealRepository{base{db: tx}}
}

func (r *DealRepository) Create(ctx context.Context, deal *models.Deal) error {
	if deal.Version == 0 {
		deal.Version = 1
	}
	if err := r.conn(ctx).Create(deal).Error; err != nil {
		return apperrors.Internal(err, "failed to create deal")
	}
	return nil
}

func (r *DealRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	if err := r.conn(ctx).First(&deal, "id = ?", id).Error; err != nil {
		return nil, translate(err, "deal")
	}
	return &deal, nil
}

// FindForUpdate loads the deal and holds a row lock until the surrounding transaction ends.
func (r *DealRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&deal, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "deal")
	}
	return &deal, nil
}

func (r *DealRepository) FindByProductID(ctx context.Context, productID uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	if err := r.conn(ctx).First(&deal, "product_id = ?", productID).Error; err != nil {
		return nil, translate(err, "deal")
	}
	return &deal, nil
}

// Save writes every column and bumps the version. A concurrent writer that
// saved first makes this call fail with a conflict.
func (r *DealRepository) Save(ctx context.Context, deal *models.Deal) error {
	current := deal.Version
	deal.Version = current + 1

	res := r.conn(ctx).
		Model(deal).
		Where("version = ?", current).
		Select("*").
		Omit("id", "created_at").
		Updates(deal)
	if res.Error != nil {
		deal.Version = current
		return apperrors.Internal(res.Error, "failed to save deal")
	}
	if res.RowsAffected == 0 {
		deal.Version = current
		return apperrors.Conflict("deal was modified concurrently, reload and retry")
	}
	return nil
}

func (r *DealRepository) Delete(ctx context.Context, deal *models.Deal) error {
	if err := r.conn(ctx).Delete(deal).Error; err != nil {
		return apperrors.Internal(err, "failed to delete deal")
	}
	return nil
}

func (r *DealRepository) RecordTransition(ctx context.Context, entry *models.DealAuditLog) error {
	if err := r.conn(ctx).Create(entry).Error; err != nil {
		return apperrors.Internal(err, "failed to write deal audit log")
	}
	return nil
}

func (r *DealRepository) ListHistory(ctx context.Context, dealID uuid.UUID) ([]models.DealAuditLog, error) {
	var logs []models.DealAuditLog
	err := r.conn(ctx).Where("deal_id = ?", dealID).Order("created_at ASC").Find(&logs).Error
	return logs, translate(err, "deal history")
}

// ListDiscoverable returns approved, visible listings still waiting for an
// investor. Listings holding an unanswered offer are left out.
func (r *DealRepository) ListDiscoverable(ctx context.Context, params utils.PaginationParams) ([]models.Deal, int64, error) {
	query := r.conn(ctx).Model(&models.Deal{}).
		Where("status = ? AND is_approved = ? AND is_visible = ?", models.DealStatusPending, true, true).
		Where("investor_id IS NULL AND pending_investor_id IS NULL")
	return r.page(query, params)
}

func (r *DealRepository) ListForUser(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Deal, int64, error) {
	query := r.conn(ctx).Model(&models.Deal{}).
		Where("author_id = ? OR investor_id = ?", userID, userID)
	return r.page(query, params)
}

func (r *DealRepository) page(query *gorm.DB, params utils.PaginationParams) ([]models.Deal, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "deals")
	}

	var deals []models.Deal
	query = utils.ApplySort(query, params, []string{"created_at", "offer_money", "offer_deal_percent", "duration_in_months"})
	if err := utils.ApplyPagination(query, params).Find(&deals).Error; err != nil {
		return nil, 0, translate(err, "deals")
	}
	return deals, total, nil
}

func (r *DealRepository) ListByStatus(ctx context.Context, status models.DealStatus) ([]models.Deal, error) {
	var deals []models.Deal
	err := r.conn(ctx).Where("status = ?", status).Order("created_at ASC").Find(&deals).Error
	return deals, translate(err, "deals")
}

// ListStaleListings returns unmatched pending deals created before the cutoff.
func (r *DealRepository) ListStaleListings(ctx context.Context, cutoff time.Time) ([]models.Deal, error) {
	var deals []models.Deal
	err := r.conn(ctx).
		Where("status = ? AND investor_id IS NULL AND pending_investor_id IS NULL AND created_at < ?",
			models.DealStatusPending, cutoff).
		Find(&deals).Error
	return deals, translate(err, "deals")
}
