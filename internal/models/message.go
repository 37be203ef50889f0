// internal/models/message.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	BaseModel
	DealID               uuid.UUID   `json:"deal_id" gorm:"type:uuid;not null;index"`
	SenderID             uuid.UUID   `json:"sender_id" gorm:"type:uuid;not null"`
	RecipientID          uuid.UUID   `json:"recipient_id" gorm:"type:uuid;not null;index"`
	Content              string      `json:"content" gorm:"type:text;not null"`
	MessageType          MessageType `json:"message_type" gorm:"type:varchar(40);not null;index"`
	ChangeRequestID      *uuid.UUID  `json:"change_request_id,omitempty" gorm:"type:uuid"`
	DeleteRequestID      *uuid.UUID  `json:"delete_request_id,omitempty" gorm:"type:uuid"`
	ProfitDistributionID *uuid.UUID  `json:"profit_distribution_id,omitempty" gorm:"type:uuid"`
	ContractURL          string      `json:"contract_url,omitempty" gorm:"size:500"`
	IsRead               bool        `json:"is_read" gorm:"default:false;index"`
	ReadAt               *time.Time  `json:"read_at"`
}
