// internal/models/user.go
package models

import (
	"time"
)

// User is the local projection of an identity managed elsewhere. Only the
// role flags and payout details the deal engine needs are kept here.
type User struct {
	BaseModel
	Email           string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	DisplayName     string     `json:"display_name" gorm:"size:100"`
	IsAdmin         bool       `json:"is_admin" gorm:"default:false;index"`
	IsInvestor      bool       `json:"is_investor" gorm:"default:false"`
	IsBusinessOwner bool       `json:"is_business_owner" gorm:"default:false"`
	IsSuspended     bool       `json:"is_suspended" gorm:"default:false"`
	PayoutAccountID string     `json:"-" gorm:"size:255"`
	LastSeenAt      *time.Time `json:"last_seen_at"`
}
