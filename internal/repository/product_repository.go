// internal/repository/product_repository.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

type ProductRepository struct {
	base
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{base{db: db}}
}

func (r *ProductRepository) WithTx(tx *gorm.DB) *ProductRepository {
	return &ProductRepository{base{db: tx}}
}

func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.conn(ctx).Create(product).Error; err != nil {
		return apperrors.Internal(err, "failed to create product")
	}
	return nil
}

func (r *ProductRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.conn(ctx).First(&product, "deal_id = ?", dealID).Error; err != nil {
		return nil, translate(err, "product")
	}
	return &product, nil
}

func (r *ProductRepository) UpdateStatus(ctx context.Context, productID uuid.UUID, status models.ProductStatus) error {
	err := r.conn(ctx).Model(&models.Product{}).Where("id = ?", productID).Update("status", status).Error
	if err != nil {
		return apperrors.Internal(err, "failed to update product status")
	}
	return nil
}

// SaleLine is one settled order line of a product.
type SaleLine struct {
	UnitPrice float64
	Quantity  int
}

// SalesLedger reads settled order items written by the storefront.
type SalesLedger struct {
	base
}

func NewSalesLedger(db *gorm.DB) *SalesLedger {
	return &SalesLedger{base{db: db}}
}

func (l *SalesLedger) WithTx(tx *gorm.DB) *SalesLedger {
	return &SalesLedger{base{db: tx}}
}

// GetOrderItems returns the product's order lines settled in [start, end).
func (l *SalesLedger) GetOrderItems(ctx context.Context, productID uuid.UUID, start, end time.Time) ([]SaleLine, error) {
	var lines []SaleLine
	err := l.conn(ctx).Model(&models.OrderItem{}).
		Select("unit_price, quantity").
		Where("product_id = ? AND settled_at >= ? AND settled_at < ?", productID, start, end).
		Scan(&lines).Error
	return lines, translate(err, "order items")
}
