// Package repository holds the gorm-backed stores for deals and the records they own.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
)

// base binds a store to a connection or an open transaction.
type base struct {
	db *gorm.DB
}

func (b base) conn(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource)
	}
	return apperrors.Internal(err, "failed to access "+resource)
}
