// internal/models/deal.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Deal struct {
	BaseModel
	AuthorID          uuid.UUID      `json:"author_id" gorm:"type:uuid;not null;index"`
	InvestorID        *uuid.UUID     `json:"investor_id" gorm:"type:uuid;index"`
	PendingInvestorID *uuid.UUID     `json:"pending_investor_id,omitempty" gorm:"type:uuid"`
	Title             string         `json:"title" gorm:"size:255;not null"`
	Description       string         `json:"description" gorm:"type:text"`
	ImageURLs         pq.StringArray `json:"image_urls" gorm:"type:text[]"`

	OfferMoney               float64 `json:"offer_money" gorm:"type:decimal(15,2);not null"`
	OfferDealPercent         float64 `json:"offer_deal_percent" gorm:"type:decimal(5,2);not null"`
	ManufacturingCostPerUnit float64 `json:"manufacturing_cost_per_unit" gorm:"type:decimal(15,2);not null"`
	EstimatedPrice           float64 `json:"estimated_price" gorm:"type:decimal(15,2);not null"`
	DurationInMonths         int     `json:"duration_in_months" gorm:"not null"`
	PlatformFeePercent       float64 `json:"platform_fee_percent" gorm:"type:decimal(5,2);not null"`

	Status            DealStatus    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	IsApproved        bool          `json:"is_approved" gorm:"default:false;index"`
	IsVisible         bool          `json:"is_visible" gorm:"index"`
	AcceptedByOwnerAt *time.Time    `json:"accepted_by_owner_at"`
	ApprovedByAdminAt *time.Time    `json:"approved_by_admin_at"`
	CompletedAt       *time.Time    `json:"completed_at"`
	ActualEndDate     *time.Time    `json:"actual_end_date"`
	EndReason         DealEndReason `json:"end_reason,omitempty" gorm:"type:varchar(30)"`

	// Payment linkage
	PaymentIntentRef         string        `json:"payment_intent_ref,omitempty" gorm:"size:255;index"`
	PaymentStatus            PaymentStatus `json:"payment_status" gorm:"type:varchar(20)"`
	IsPaymentProcessed       bool          `json:"is_payment_processed" gorm:"default:false"`
	Platform                 Platform      `json:"platform,omitempty" gorm:"type:varchar(10)"`
	LastProcessedPaymentHash string        `json:"-" gorm:"size:64"`

	// Contract linkage
	ContractDocumentURL         string       `json:"contract_document_url,omitempty" gorm:"size:500"`
	PreviousContractDocumentURL string       `json:"previous_contract_document_url,omitempty" gorm:"size:500"`
	ContractVersion             int          `json:"contract_version" gorm:"not null;default:1"`
	ContractType                ContractType `json:"contract_type,omitempty" gorm:"type:varchar(20)"`
	ContractHash                string       `json:"contract_hash,omitempty" gorm:"size:64"`
	ContractGeneratedAt         *time.Time   `json:"contract_generated_at"`
	IsOwnerSigned               bool         `json:"is_owner_signed" gorm:"default:false"`
	OwnerSignedAt               *time.Time   `json:"owner_signed_at"`
	IsInvestorSigned            bool         `json:"is_investor_signed" gorm:"default:false"`
	InvestorSignedAt            *time.Time   `json:"investor_signed_at"`

	// Change tracking
	ChangeAmountDifference   float64    `json:"change_amount_difference" gorm:"type:decimal(15,2);default:0"`
	IsChangePaymentRequired  bool       `json:"is_change_payment_required" gorm:"default:false"`
	IsChangePaymentProcessed bool       `json:"is_change_payment_processed" gorm:"default:false"`
	PendingChangeRequestID   *uuid.UUID `json:"pending_change_request_id,omitempty" gorm:"type:uuid"`
	ChangePaymentRef         string     `json:"change_payment_ref,omitempty" gorm:"size:255"`

	// Termination tracking
	TerminationRequestedByOwner    bool       `json:"termination_requested_by_owner" gorm:"default:false"`
	OwnerTerminationRequestedAt    *time.Time `json:"owner_termination_requested_at"`
	TerminationRequestedByInvestor bool       `json:"termination_requested_by_investor" gorm:"default:false"`
	InvestorTerminationRequestedAt *time.Time `json:"investor_termination_requested_at"`
	TerminationReason              string     `json:"termination_reason,omitempty" gorm:"type:text"`
	IsTerminationEscalatedToAdmin  bool       `json:"is_termination_escalated_to_admin" gorm:"default:false"`
	CapitalReturnAmount            float64    `json:"capital_return_amount" gorm:"type:decimal(15,2);default:0"`
	IsCapitalReturned              bool       `json:"is_capital_returned" gorm:"default:false"`
	CapitalReturnRef               string     `json:"capital_return_ref,omitempty" gorm:"size:255"`

	// Renewal tracking
	RenewalRequestedByOwner    bool       `json:"renewal_requested_by_owner" gorm:"default:false"`
	RenewalRequestedByInvestor bool       `json:"renewal_requested_by_investor" gorm:"default:false"`
	PreviousDealID             *uuid.UUID `json:"previous_deal_id,omitempty" gorm:"type:uuid;index"`
	RenewedDealID              *uuid.UUID `json:"renewed_deal_id,omitempty" gorm:"type:uuid"`

	// Product linkage
	ProductID        *uuid.UUID `json:"product_id,omitempty" gorm:"type:uuid;index"`
	IsProductCreated bool       `json:"is_product_created" gorm:"default:false"`

	Version int `json:"version" gorm:"not null;default:1"`
}

// IsParty reports whether the user is the owner or the linked investor.
func (d *Deal) IsParty(userID uuid.UUID) bool {
	return d.AuthorID == userID || d.IsInvestor(userID)
}

func (d *Deal) IsInvestor(userID uuid.UUID) bool {
	return d.InvestorID != nil && *d.InvestorID == userID
}

// CounterParty returns the other side of the agreement for a party.
func (d *Deal) CounterParty(userID uuid.UUID) *uuid.UUID {
	if d.AuthorID == userID {
		return d.InvestorID
	}
	if d.IsInvestor(userID) {
		author := d.AuthorID
		return &author
	}
	return nil
}

// ScheduledEndDate is the activation date plus the agreed duration.
func (d *Deal) ScheduledEndDate() *time.Time {
	if d.CompletedAt == nil {
		return nil
	}
	end := d.CompletedAt.AddDate(0, d.DurationInMonths, 0)
	return &end
}

// ElapsedFraction returns how much of the agreed term has passed at the given time, clamped to [0,1].
func (d *Deal) ElapsedFraction(at time.Time) float64 {
	end := d.ScheduledEndDate()
	if d.CompletedAt == nil || end == nil || !end.After(*d.CompletedAt) {
		return 0
	}
	total := end.Sub(*d.CompletedAt)
	elapsed := at.Sub(*d.CompletedAt)
	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= total:
		return 1
	}
	return float64(elapsed) / float64(total)
}

func (d *Deal) HasContract() bool {
	return d.ContractDocumentURL != ""
}

// Terms returns the commercial terms as a fully populated patch.
func (d *Deal) Terms() DealTermsPatch {
	return DealTermsPatch{
		Title:                    &d.Title,
		Description:              &d.Description,
		OfferMoney:               &d.OfferMoney,
		OfferDealPercent:         &d.OfferDealPercent,
		ManufacturingCostPerUnit: &d.ManufacturingCostPerUnit,
		EstimatedPrice:           &d.EstimatedPrice,
		DurationInMonths:         &d.DurationInMonths,
	}.Clone()
}

type DealAuditLog struct {
	BaseModel
	DealID     uuid.UUID  `json:"deal_id" gorm:"type:uuid;not null;index"`
	ActorID    uuid.UUID  `json:"actor_id" gorm:"type:uuid;not null"`
	Action     string     `json:"action" gorm:"size:100;not null"`
	FromStatus DealStatus `json:"from_status" gorm:"type:varchar(20)"`
	ToStatus   DealStatus `json:"to_status" gorm:"type:varchar(20)"`
	Note       string     `json:"note,omitempty" gorm:"type:text"`
}
