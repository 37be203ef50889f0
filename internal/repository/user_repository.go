// internal/repository/user_repository.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/models"
)

type UserRepository struct {
	base
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{base{db: db}}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{base{db: tx}}
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// ListAdminIDs reads the current admin membership; callers must not cache it.
func (r *UserRepository) ListAdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.conn(ctx).Model(&models.User{}).
		Where("is_admin = ? AND is_suspended = ?", true, false).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, translate(err, "admins")
}

func (r *UserRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", at).Error
	return translate(err, "user")
}
