// internal/services/product_service.go
package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
)

// ProductService links each funded deal to exactly one storefront product.
type ProductService struct {
	products *repository.ProductRepository
	log      *logrus.Logger
}

func NewProductService(products *repository.ProductRepository, log *logrus.Logger) *ProductService {
	return &ProductService{products: products, log: log}
}

// CreateFromDeal creates the deal's product inside tx. Calling it again for
// the same deal returns the existing product.
func (s *ProductService) CreateFromDeal(ctx context.Context, tx *gorm.DB, deal *models.Deal) (*models.Product, error) {
	repo := s.products.WithTx(tx)

	if deal.IsProductCreated {
		return repo.FindByDealID(ctx, deal.ID)
	}

	existing, err := repo.FindByDealID(ctx, deal.ID)
	if err == nil {
		deal.ProductID = &existing.ID
		deal.IsProductCreated = true
		return existing, nil
	}
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, err
	}

	product := &models.Product{
		DealID:      deal.ID,
		OwnerID:     deal.AuthorID,
		Title:       deal.Title,
		Description: deal.Description,
		Price:       deal.EstimatedPrice,
		Images:      deal.ImageURLs,
		Status:      models.ProductStatusDraft,
	}
	if err := repo.Create(ctx, product); err != nil {
		return nil, err
	}

	deal.ProductID = &product.ID
	deal.IsProductCreated = true

	s.log.WithFields(logrus.Fields{
		"deal_id":    deal.ID,
		"product_id": product.ID,
	}).Info("Product created from funded deal")
	return product, nil
}

// SetStatus moves the deal's product between draft, active and suspended.
func (s *ProductService) SetStatus(ctx context.Context, tx *gorm.DB, deal *models.Deal, status models.ProductStatus) error {
	if deal.ProductID == nil {
		return nil
	}
	return s.products.WithTx(tx).UpdateStatus(ctx, *deal.ProductID, status)
}
