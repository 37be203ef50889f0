// internal/services/profit_calculator.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
)

// SalesSource feeds the calculator with settled order lines.
type SalesSource interface {
	GetOrderItems(ctx context.Context, productID uuid.UUID, start, end time.Time) ([]repository.SaleLine, error)
}

type ProfitResult struct {
	DealID            uuid.UUID `json:"deal_id"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	TotalRevenue      float64   `json:"total_revenue"`
	TotalQuantitySold int       `json:"total_quantity_sold"`
	ManufacturingCost float64   `json:"manufacturing_cost"`
	OtherCosts        float64   `json:"other_costs"`
	NetProfit         float64   `json:"net_profit"`
	PlatformFee       float64   `json:"platform_fee"`
	InvestorShare     float64   `json:"investor_share"`
	OwnerShare        float64   `json:"owner_share"`
}

// HasProfit reports whether the period may be persisted as a distribution.
func (r *ProfitResult) HasProfit() bool {
	return r.NetProfit > 0
}

// SplitTerms are the deal terms the split depends on.
type SplitTerms struct {
	ManufacturingCostPerUnit float64
	PlatformFeePercent       float64
	OfferDealPercent         float64
}

func splitTermsOf(deal *models.Deal) SplitTerms {
	return SplitTerms{
		ManufacturingCostPerUnit: deal.ManufacturingCostPerUnit,
		PlatformFeePercent:       deal.PlatformFeePercent,
		OfferDealPercent:         deal.OfferDealPercent,
	}
}

var hundred = decimal.NewFromInt(100)

// SplitProfit computes revenue, costs and the three-way split for a set of
// sale lines. Intermediate values keep full precision; each output is rounded
// half away from zero to cents once at the end.
func SplitProfit(lines []repository.SaleLine, terms SplitTerms, otherCosts float64) ProfitResult {
	revenue := decimal.Zero
	quantity := int64(0)
	for _, line := range lines {
		revenue = revenue.Add(decimal.NewFromFloat(line.UnitPrice).Mul(decimal.NewFromInt(int64(line.Quantity))))
		quantity += int64(line.Quantity)
	}

	manufacturing := decimal.NewFromFloat(terms.ManufacturingCostPerUnit).Mul(decimal.NewFromInt(quantity))
	other := decimal.NewFromFloat(otherCosts)
	net := revenue.Sub(manufacturing).Sub(other)
	fee := net.Mul(decimal.NewFromFloat(terms.PlatformFeePercent)).Div(hundred)
	investor := net.Sub(fee).Mul(decimal.NewFromFloat(terms.OfferDealPercent)).Div(hundred)

	// The owner share is derived from the rounded figures so the three parts
	// always add back to the rounded net profit.
	netR := roundCents(net)
	feeR := roundCents(fee)
	investorR := roundCents(investor)
	ownerR := netR.Sub(feeR).Sub(investorR)

	return ProfitResult{
		TotalRevenue:      roundCents(revenue).InexactFloat64(),
		TotalQuantitySold: int(quantity),
		ManufacturingCost: roundCents(manufacturing).InexactFloat64(),
		OtherCosts:        roundCents(other).InexactFloat64(),
		NetProfit:         netR.InexactFloat64(),
		PlatformFee:       feeR.InexactFloat64(),
		InvestorShare:     investorR.InexactFloat64(),
		OwnerShare:        ownerR.InexactFloat64(),
	}
}

// roundCents rounds to two places, half away from zero.
func roundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToCents converts a currency amount to minor units, rounding half away from zero.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units back to a currency amount.
func FromCents(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// RoundMoney rounds an amount to cents.
func RoundMoney(amount float64) float64 {
	return roundCents(decimal.NewFromFloat(amount)).InexactFloat64()
}

type ProfitCalculator struct {
	sales SalesSource
}

func NewProfitCalculator(sales SalesSource) *ProfitCalculator {
	return &ProfitCalculator{sales: sales}
}

// CalculateProfit computes the split for the deal's product sales in [start, end).
func (c *ProfitCalculator) CalculateProfit(ctx context.Context, deal *models.Deal, start, end time.Time, otherCosts float64) (*ProfitResult, error) {
	if !end.After(start) {
		return nil, apperrors.Validation("end date must be after start date")
	}
	if otherCosts < 0 {
		return nil, apperrors.Validation("other costs cannot be negative")
	}

	var lines []repository.SaleLine
	if deal.ProductID != nil {
		var err error
		lines, err = c.sales.GetOrderItems(ctx, *deal.ProductID, start, end)
		if err != nil {
			return nil, err
		}
	}

	result := SplitProfit(lines, splitTermsOf(deal), otherCosts)
	result.DealID = deal.ID
	result.StartDate = start
	result.EndDate = end
	return &result, nil
}
