// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is an append-only ledger entry.
type Transaction struct {
	BaseModel
	DealID               uuid.UUID         `json:"deal_id" gorm:"type:uuid;not null;index"`
	TransactionType      TransactionType   `json:"transaction_type" gorm:"type:varchar(40);not null;index"`
	Amount               float64           `json:"amount" gorm:"type:decimal(15,2);not null"`
	FromUserID           *uuid.UUID        `json:"from_user_id" gorm:"type:uuid;index"`
	ToUserID             *uuid.UUID        `json:"to_user_id" gorm:"type:uuid;index"`
	ProfitDistributionID *uuid.UUID        `json:"profit_distribution_id,omitempty" gorm:"type:uuid;index"`
	GatewayRef           string            `json:"gateway_ref" gorm:"size:255;index"`
	Status               TransactionStatus `json:"status" gorm:"type:varchar(20);not null"`
	Description          string            `json:"description" gorm:"type:text"`
	ProcessedAt          *time.Time        `json:"processed_at"`
}

type ProfitDistribution struct {
	BaseModel
	DealID            uuid.UUID  `json:"deal_id" gorm:"type:uuid;not null;index"`
	TotalRevenue      float64    `json:"total_revenue" gorm:"type:decimal(15,2);not null"`
	TotalQuantitySold int        `json:"total_quantity_sold" gorm:"not null;default:0"`
	ManufacturingCost float64    `json:"manufacturing_cost" gorm:"type:decimal(15,2);not null"`
	OtherCosts        float64    `json:"other_costs" gorm:"type:decimal(15,2);not null;default:0"`
	NetProfit         float64    `json:"net_profit" gorm:"type:decimal(15,2);not null"`
	PlatformFee       float64    `json:"platform_fee" gorm:"type:decimal(15,2);not null"`
	InvestorShare     float64    `json:"investor_share" gorm:"type:decimal(15,2);not null"`
	OwnerShare        float64    `json:"owner_share" gorm:"type:decimal(15,2);not null"`
	StartDate         time.Time  `json:"start_date" gorm:"not null"`
	EndDate           time.Time  `json:"end_date" gorm:"not null"`
	IsPending         bool       `json:"is_pending" gorm:"index"`
	IsApprovedByAdmin bool       `json:"is_approved_by_admin"`
	ApprovedBy        *uuid.UUID `json:"approved_by,omitempty" gorm:"type:uuid"`
	ApprovedAt        *time.Time `json:"approved_at"`
	IsPaid            bool       `json:"is_paid"`
	PaidAt            *time.Time `json:"paid_at"`
	CreatedBy         uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	Notes             string     `json:"notes,omitempty" gorm:"type:text"`
}

// PaymentAttempt stores the outcome of one idempotency-guarded gateway call.
type PaymentAttempt struct {
	BaseModel
	Hash         string               `json:"hash" gorm:"size:64;not null;uniqueIndex"`
	DealID       uuid.UUID            `json:"deal_id" gorm:"type:uuid;not null;index"`
	Operation    PaymentOperation     `json:"operation" gorm:"type:varchar(30);not null"`
	Amount       float64              `json:"amount" gorm:"type:decimal(15,2);not null"`
	PayerID      uuid.UUID            `json:"payer_id" gorm:"type:uuid;not null"`
	Platform     Platform             `json:"platform,omitempty" gorm:"type:varchar(10)"`
	GatewayRef   string               `json:"gateway_ref" gorm:"size:255;index"`
	ClientSecret string               `json:"-" gorm:"size:255"`
	CheckoutURL  string               `json:"checkout_url,omitempty" gorm:"size:1000"`
	Status       PaymentAttemptStatus `json:"status" gorm:"type:varchar(20);not null"`
	ConfirmedAt  *time.Time           `json:"confirmed_at"`
}

type PaymentFailureLog struct {
	BaseModel
	DealID       uuid.UUID        `json:"deal_id" gorm:"type:uuid;not null;index"`
	Operation    PaymentOperation `json:"operation" gorm:"type:varchar(30);not null"`
	Amount       float64          `json:"amount" gorm:"type:decimal(15,2)"`
	PayerID      *uuid.UUID       `json:"payer_id" gorm:"type:uuid"`
	GatewayRef   string           `json:"gateway_ref,omitempty" gorm:"size:255"`
	ErrorMessage string           `json:"error_message" gorm:"type:text;not null"`
	Retryable    bool             `json:"retryable"`
}

type PaymentRefundLog struct {
	BaseModel
	DealID     uuid.UUID     `json:"deal_id" gorm:"type:uuid;not null;index"`
	PaymentRef string        `json:"payment_ref" gorm:"size:255;not null"`
	RefundRef  string        `json:"refund_ref" gorm:"size:255;not null;index"`
	Amount     float64       `json:"amount" gorm:"type:decimal(15,2);not null"`
	Reason     DealEndReason `json:"reason" gorm:"type:varchar(30)"`
	Multiplier float64       `json:"multiplier" gorm:"type:decimal(6,4)"`
}
