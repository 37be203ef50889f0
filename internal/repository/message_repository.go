// internal/repository/message_repository.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

type MessageRepository struct {
	base
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{base{db: db}}
}

func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{base{db: tx}}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.conn(ctx).Create(msg).Error; err != nil {
		return apperrors.Internal(err, "failed to write message")
	}
	return nil
}

// ListForDeal returns the messages of a deal visible to one user.
func (r *MessageRepository) ListForDeal(ctx context.Context, dealID, userID uuid.UUID, params utils.PaginationParams) ([]models.Message, int64, error) {
	query := r.conn(ctx).Model(&models.Message{}).
		Where("deal_id = ? AND (recipient_id = ? OR sender_id = ?)", dealID, userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "messages")
	}

	var msgs []models.Message
	query = utils.ApplySort(query, params, []string{"created_at"})
	if err := utils.ApplyPagination(query, params).Find(&msgs).Error; err != nil {
		return nil, 0, translate(err, "messages")
	}
	return msgs, total, nil
}

func (r *MessageRepository) ListByDealAndType(ctx context.Context, dealID uuid.UUID, msgType models.MessageType) ([]models.Message, error) {
	var msgs []models.Message
	err := r.conn(ctx).Where("deal_id = ? AND message_type = ?", dealID, msgType).Order("created_at ASC").Find(&msgs).Error
	return msgs, translate(err, "messages")
}

func (r *MessageRepository) MarkRead(ctx context.Context, messageID, recipientID uuid.UUID, at time.Time) error {
	res := r.conn(ctx).Model(&models.Message{}).
		Where("id = ? AND recipient_id = ?", messageID, recipientID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return apperrors.Internal(res.Error, "failed to mark message read")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("message")
	}
	return nil
}
