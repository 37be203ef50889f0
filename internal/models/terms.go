// internal/models/terms.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// DealTermsPatch is a set of optional edits to a deal's commercial terms.
// Nil fields are left untouched when the patch is applied.
type DealTermsPatch struct {
	Title                    *string  `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description              *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	OfferMoney               *float64 `json:"offer_money,omitempty" validate:"omitempty,gt=0"`
	OfferDealPercent         *float64 `json:"offer_deal_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	ManufacturingCostPerUnit *float64 `json:"manufacturing_cost_per_unit,omitempty" validate:"omitempty,gte=0"`
	EstimatedPrice           *float64 `json:"estimated_price,omitempty" validate:"omitempty,gt=0"`
	DurationInMonths         *int     `json:"duration_in_months,omitempty" validate:"omitempty,min=1,max=120"`
}

func (p DealTermsPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.OfferMoney == nil && p.OfferDealPercent == nil &&
		p.ManufacturingCostPerUnit == nil && p.EstimatedPrice == nil && p.DurationInMonths == nil
}

// Apply writes every set field onto the deal.
func (p DealTermsPatch) Apply(d *Deal) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.OfferMoney != nil {
		d.OfferMoney = *p.OfferMoney
	}
	if p.OfferDealPercent != nil {
		d.OfferDealPercent = *p.OfferDealPercent
	}
	if p.ManufacturingCostPerUnit != nil {
		d.ManufacturingCostPerUnit = *p.ManufacturingCostPerUnit
	}
	if p.EstimatedPrice != nil {
		d.EstimatedPrice = *p.EstimatedPrice
	}
	if p.DurationInMonths != nil {
		d.DurationInMonths = *p.DurationInMonths
	}
}

// SnapshotOf captures the deal's current values for exactly the fields this patch sets.
func (p DealTermsPatch) SnapshotOf(d *Deal) DealTermsPatch {
	current := d.Terms()
	var out DealTermsPatch
	if p.Title != nil {
		out.Title = current.Title
	}
	if p.Description != nil {
		out.Description = current.Description
	}
	if p.OfferMoney != nil {
		out.OfferMoney = current.OfferMoney
	}
	if p.OfferDealPercent != nil {
		out.OfferDealPercent = current.OfferDealPercent
	}
	if p.ManufacturingCostPerUnit != nil {
		out.ManufacturingCostPerUnit = current.ManufacturingCostPerUnit
	}
	if p.EstimatedPrice != nil {
		out.EstimatedPrice = current.EstimatedPrice
	}
	if p.DurationInMonths != nil {
		out.DurationInMonths = current.DurationInMonths
	}
	return out
}

// Clone returns a copy that shares no pointers with the receiver.
func (p DealTermsPatch) Clone() DealTermsPatch {
	var out DealTermsPatch
	if p.Title != nil {
		v := *p.Title
		out.Title = &v
	}
	if p.Description != nil {
		v := *p.Description
		out.Description = &v
	}
	if p.OfferMoney != nil {
		v := *p.OfferMoney
		out.OfferMoney = &v
	}
	if p.OfferDealPercent != nil {
		v := *p.OfferDealPercent
		out.OfferDealPercent = &v
	}
	if p.ManufacturingCostPerUnit != nil {
		v := *p.ManufacturingCostPerUnit
		out.ManufacturingCostPerUnit = &v
	}
	if p.EstimatedPrice != nil {
		v := *p.EstimatedPrice
		out.EstimatedPrice = &v
	}
	if p.DurationInMonths != nil {
		v := *p.DurationInMonths
		out.DurationInMonths = &v
	}
	return out
}

func (p DealTermsPatch) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *DealTermsPatch) Scan(value interface{}) error {
	if p == nil {
		return errors.New("scan into nil DealTermsPatch")
	}
	*p = DealTermsPatch{}
	return scanJSON(value, p)
}

// AffectsMoney reports whether the patch changes the invested amount.
func (p DealTermsPatch) AffectsMoney(d *Deal) bool {
	return p.OfferMoney != nil && *p.OfferMoney != d.OfferMoney
}
