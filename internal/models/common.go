// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the identity client side so every dialect behaves the same.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	return scanJSON(value, j)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}

// Enums
type DealStatus string

const (
	DealStatusPending       DealStatus = "pending"
	DealStatusOwnerAccepted DealStatus = "owner_accepted"
	DealStatusAdminApproved DealStatus = "admin_approved"
	DealStatusActive        DealStatus = "active"
	DealStatusCompleted     DealStatus = "completed"
	DealStatusTerminated    DealStatus = "terminated"
	DealStatusRejected      DealStatus = "rejected"
	DealStatusExpired       DealStatus = "expired"
	DealStatusRenewed       DealStatus = "renewed"
)

// IsTerminal reports whether no further lifecycle transition (other than renewal) is possible.
func (s DealStatus) IsTerminal() bool {
	switch s {
	case DealStatusCompleted, DealStatusTerminated, DealStatusRejected, DealStatusExpired, DealStatusRenewed:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusNone      PaymentStatus = ""
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformMobile Platform = "mobile"
)

func (p Platform) Valid() bool {
	return p == PlatformWeb || p == PlatformMobile
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

type DealEndReason string

const (
	EndReasonNone               DealEndReason = ""
	EndReasonCompleted          DealEndReason = "completed"
	EndReasonMutualAgreement    DealEndReason = "mutual_agreement"
	EndReasonOwnerTerminated    DealEndReason = "owner_terminated"
	EndReasonInvestorTerminated DealEndReason = "investor_terminated"
	EndReasonAdminTerminated    DealEndReason = "admin_terminated"
	EndReasonBreachOfContract   DealEndReason = "breach_of_contract"
	EndReasonExpired            DealEndReason = "expired"
)

type ContractType string

const (
	ContractTypeInitial   ContractType = "initial"
	ContractTypeAmendment ContractType = "amendment"
	ContractTypeRenewal   ContractType = "renewal"
)

type TransactionType string

const (
	TransactionTypeInitialInvestment            TransactionType = "initial_investment"
	TransactionTypeProfitDistributionToInvestor TransactionType = "profit_distribution_investor"
	TransactionTypeProfitDistributionToOwner    TransactionType = "profit_distribution_owner"
	TransactionTypeRefund                       TransactionType = "refund"
	TransactionTypePlatformFee                  TransactionType = "platform_fee"
	TransactionTypeCapitalReturn                TransactionType = "capital_return"
	TransactionTypeChangePayment                TransactionType = "change_payment"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type MessageType string

const (
	MessageTypeGeneral                MessageType = "general"
	MessageTypeOfferDiscussion        MessageType = "offer_discussion"
	MessageTypeOfferReceived          MessageType = "offer_received"
	MessageTypeOfferAccepted          MessageType = "offer_accepted"
	MessageTypeOfferRejected          MessageType = "offer_rejected"
	MessageTypeListingReview          MessageType = "listing_review"
	MessageTypeApprovalRequired       MessageType = "approval_required"
	MessageTypeDealApproved           MessageType = "deal_approved"
	MessageTypeDealRejected           MessageType = "deal_rejected"
	MessageTypePaymentReceived        MessageType = "payment_received"
	MessageTypeContractReady          MessageType = "contract_ready"
	MessageTypeSignatureRequired      MessageType = "signature_required"
	MessageTypeDealActivated          MessageType = "deal_activated"
	MessageTypeEditRequest            MessageType = "edit_request"
	MessageTypeEditApproved           MessageType = "edit_approved"
	MessageTypeEditRejected           MessageType = "edit_rejected"
	MessageTypeChangePaymentRequired  MessageType = "change_payment_required"
	MessageTypeDealAmended            MessageType = "deal_amended"
	MessageTypeDeleteRequest          MessageType = "delete_request"
	MessageTypeDeleteApproved         MessageType = "delete_approved"
	MessageTypeDeleteRejected         MessageType = "delete_rejected"
	MessageTypeTerminationRequest     MessageType = "termination_request"
	MessageTypeTerminationRejected    MessageType = "termination_rejected"
	MessageTypeTerminationEscalated   MessageType = "termination_escalated"
	MessageTypeDealTerminated         MessageType = "deal_terminated"
	MessageTypeDealCompleted          MessageType = "deal_completed"
	MessageTypeRenewalRequest         MessageType = "renewal_request"
	MessageTypeDealRenewed            MessageType = "deal_renewed"
	MessageTypeProfitDistribution     MessageType = "profit_distribution"
	MessageTypeProfitDistributionPaid MessageType = "profit_distribution_paid"
	MessageTypeCapitalReturn          MessageType = "capital_return"
)

type PaymentOperation string

const (
	PaymentOperationFunding          PaymentOperation = "funding"
	PaymentOperationChangePayment    PaymentOperation = "change_payment"
	PaymentOperationChangeRefund     PaymentOperation = "change_refund"
	PaymentOperationInvestorTransfer PaymentOperation = "investor_transfer"
	PaymentOperationOwnerTransfer    PaymentOperation = "owner_transfer"
	PaymentOperationCapitalReturn    PaymentOperation = "capital_return"
)

type PaymentAttemptStatus string

const (
	PaymentAttemptCreated   PaymentAttemptStatus = "created"
	PaymentAttemptSucceeded PaymentAttemptStatus = "succeeded"
	PaymentAttemptFailed    PaymentAttemptStatus = "failed"
)

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusActive    ProductStatus = "active"
	ProductStatusSuspended ProductStatus = "suspended"
)
