// internal/models/request.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalRecord is the shared shape of change, delete and termination requests.
type ApprovalRecord interface {
	GetID() uuid.UUID
	GetDealID() uuid.UUID
	GetRequestedBy() uuid.UUID
	GetStatus() RequestStatus
	Resolve(status RequestStatus, by uuid.UUID, reason string, at time.Time)
}

type RequestFields struct {
	DealID          uuid.UUID     `json:"deal_id" gorm:"type:uuid;not null;index"`
	RequestedBy     uuid.UUID     `json:"requested_by" gorm:"type:uuid;not null"`
	Status          RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Reason          string        `json:"reason,omitempty" gorm:"type:text"`
	RespondedBy     *uuid.UUID    `json:"responded_by,omitempty" gorm:"type:uuid"`
	RespondedAt     *time.Time    `json:"responded_at"`
	RejectionReason string        `json:"rejection_reason,omitempty" gorm:"type:text"`
}

func (a *RequestFields) GetDealID() uuid.UUID      { return a.DealID }
func (a *RequestFields) GetRequestedBy() uuid.UUID { return a.RequestedBy }
func (a *RequestFields) GetStatus() RequestStatus  { return a.Status }

func (a *RequestFields) Resolve(status RequestStatus, by uuid.UUID, reason string, at time.Time) {
	a.Status = status
	a.RespondedBy = &by
	a.RespondedAt = &at
	if status == RequestStatusRejected {
		a.RejectionReason = reason
	}
}

type ChangeRequest struct {
	BaseModel
	RequestFields
	OriginalValues   DealTermsPatch `json:"original_values" gorm:"type:jsonb"`
	RequestedValues  DealTermsPatch `json:"requested_values" gorm:"type:jsonb"`
	AmountDifference float64        `json:"amount_difference" gorm:"type:decimal(15,2);default:0"`
	RequiresPayment  bool           `json:"requires_payment" gorm:"default:false"`
	PaymentDirection string         `json:"payment_direction,omitempty" gorm:"size:20"`
	IsApplied        bool           `json:"is_applied" gorm:"default:false"`
	AppliedAt        *time.Time     `json:"applied_at"`
}

func (r *ChangeRequest) GetID() uuid.UUID { return r.ID }

type DeleteRequest struct {
	BaseModel
	RequestFields
}

func (r *DeleteRequest) GetID() uuid.UUID { return r.ID }

// TerminationRequest records a party's proposal to end an active deal.
// The deal's per-party flags remain the source of truth for execution.
type TerminationRequest struct {
	BaseModel
	RequestFields
	EscalatedToAdmin bool `json:"escalated_to_admin" gorm:"default:false"`
}

func (r *TerminationRequest) GetID() uuid.UUID { return r.ID }

const (
	PaymentDirectionInvestorPays = "investor_pays"
	PaymentDirectionOwnerRefunds = "owner_refunds"
)
