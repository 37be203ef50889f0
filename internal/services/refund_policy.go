// internal/services/refund_policy.go
package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/javajoker/dealflow-backend/internal/models"
)

// RefundRule describes how much capital goes back to the investor when a deal ends.
type RefundRule struct {
	// Multiplier is applied to the invested amount.
	Multiplier float64
	// ProRata scales the refund by the unexpired share of the term.
	ProRata               bool
	RequiresCapitalReturn bool
}

// RefundPolicy maps an end reason to its rule.
type RefundPolicy map[models.DealEndReason]RefundRule

// DefaultRefundPolicy: a breach returns the whole investment, an owner who
// walks away returns most of it regardless of elapsed time, the investor
// carries capital risk when they leave early, and a natural end settles
// through profit distributions alone.
func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{
		models.EndReasonMutualAgreement:    {Multiplier: 1.0, ProRata: true, RequiresCapitalReturn: true},
		models.EndReasonOwnerTerminated:    {Multiplier: 0.9, ProRata: false, RequiresCapitalReturn: true},
		models.EndReasonInvestorTerminated: {Multiplier: 0.5, ProRata: true, RequiresCapitalReturn: true},
		models.EndReasonAdminTerminated:    {Multiplier: 0.75, ProRata: true, RequiresCapitalReturn: true},
		models.EndReasonBreachOfContract:   {Multiplier: 1.0, ProRata: false, RequiresCapitalReturn: true},
		models.EndReasonCompleted:          {Multiplier: 0, RequiresCapitalReturn: false},
		models.EndReasonExpired:            {Multiplier: 0, RequiresCapitalReturn: false},
	}
}

func (p RefundPolicy) Rule(reason models.DealEndReason) (RefundRule, error) {
	rule, ok := p[reason]
	if !ok {
		return RefundRule{}, fmt.Errorf("no refund rule for end reason %q", reason)
	}
	return rule, nil
}

// CapitalReturn is the amount owed to the investor, fixed at termination time.
type CapitalReturn struct {
	Reason          models.DealEndReason `json:"reason"`
	Amount          float64              `json:"amount"`
	Multiplier      float64              `json:"multiplier"`
	ElapsedFraction float64              `json:"elapsed_fraction"`
}

// Compute applies the rule for reason to the deal at the given moment.
func (p RefundPolicy) Compute(deal *models.Deal, reason models.DealEndReason, at time.Time) (*CapitalReturn, error) {
	rule, err := p.Rule(reason)
	if err != nil {
		return nil, err
	}

	elapsed := deal.ElapsedFraction(at)
	effective := decimal.NewFromFloat(rule.Multiplier)
	if rule.ProRata {
		effective = effective.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(elapsed)))
	}
	if !rule.RequiresCapitalReturn {
		effective = decimal.Zero
	}

	amount := roundCents(decimal.NewFromFloat(deal.OfferMoney).Mul(effective))
	return &CapitalReturn{
		Reason:          reason,
		Amount:          amount.InexactFloat64(),
		Multiplier:      effective.Round(4).InexactFloat64(),
		ElapsedFraction: elapsed,
	}, nil
}
