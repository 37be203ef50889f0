package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/dealflow-backend/internal/models"
)

func activeDeal(started time.Time, months int) *models.Deal {
	return &models.Deal{OfferMoney: 10000, DurationInMonths: months, CompletedAt: &started}
}

func TestRefundPolicyReasonsAreDistinct(t *testing.T) {
	policy := DefaultRefundPolicy()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deal := activeDeal(start, 10)
	at := start.AddDate(0, 5, 0)

	cases := map[models.DealEndReason]float64{
		models.EndReasonMutualAgreement:    5000,
		models.EndReasonOwnerTerminated:    9000,
		models.EndReasonInvestorTerminated: 2500,
		models.EndReasonAdminTerminated:    3750,
		models.EndReasonBreachOfContract:   10000,
		models.EndReasonCompleted:          0,
	}

	for reason, want := range cases {
		got, err := policy.Compute(deal, reason, at)
		require.NoError(t, err, reason)
		assert.InDelta(t, want, got.Amount, 40, reason)
	}

	seen := map[RefundRule]models.DealEndReason{}
	for reason, rule := range policy {
		if !rule.RequiresCapitalReturn {
			continue
		}
		other, dup := seen[rule]
		assert.False(t, dup, "%s and %s share a refund rule", reason, other)
		seen[rule] = reason
	}
}

func TestRefundPolicyBeforeActivationReturnsFullProRata(t *testing.T) {
	deal := &models.Deal{OfferMoney: 8000, DurationInMonths: 12}

	got, err := DefaultRefundPolicy().Compute(deal, models.EndReasonMutualAgreement, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 8000.0, got.Amount)
	assert.Equal(t, 0.0, got.ElapsedFraction)
}

func TestRefundPolicyAfterTermEndsProRataIsZero(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	deal := activeDeal(start, 6)

	got, err := DefaultRefundPolicy().Compute(deal, models.EndReasonMutualAgreement, start.AddDate(1, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, 0.0, got.Amount)
	assert.Equal(t, 1.0, got.ElapsedFraction)
}

func TestRefundPolicyUnknownReason(t *testing.T) {
	_, err := DefaultRefundPolicy().Compute(&models.Deal{}, models.DealEndReason("vanished"), time.Now())
	assert.Error(t, err)
}

func TestRefundPolicyIsTunable(t *testing.T) {
	policy := DefaultRefundPolicy()
	policy[models.EndReasonInvestorTerminated] = RefundRule{Multiplier: 0, RequiresCapitalReturn: false}

	got, err := policy.Compute(activeDeal(time.Now(), 12), models.EndReasonInvestorTerminated, time.Now())
	require.NoError(t, err)
	assert.Zero(t, got.Amount)
}
