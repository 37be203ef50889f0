package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

func TestExpireStaleListings(t *testing.T) {
	fx := newDealFixture(t)
	stale := fx.createListing()
	fresh := fx.createListing()
	matched := fx.createListing()
	_, err := fx.svc.AcceptOffer(fx.ctx, fx.investor, matched.ID, "")
	require.NoError(t, err)

	old := fx.clock.Add(-31 * 24 * time.Hour)
	for _, id := range []uuid.UUID{stale.ID, matched.ID} {
		require.NoError(t, fx.db.Model(&models.Deal{}).Where("id = ?", id).UpdateColumn("created_at", old).Error)
	}
	require.NoError(t, fx.db.Model(&models.Deal{}).Where("id = ?", fresh.ID).UpdateColumn("created_at", fx.clock).Error)

	n, err := fx.svc.ExpireStaleListings(fx.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired := fx.reload(stale.ID)
	assert.Equal(t, models.DealStatusExpired, expired.Status)
	assert.Equal(t, models.EndReasonExpired, expired.EndReason)
	assert.False(t, expired.IsVisible)
	assert.Equal(t, models.DealStatusPending, fx.reload(fresh.ID).Status)
	assert.Equal(t, models.DealStatusPending, fx.reload(matched.ID).Status)

	n, err = fx.svc.ExpireStaleListings(fx.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompleteElapsedDeals(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	n, err := fx.svc.CompleteElapsedDeals(fx.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	fx.advance(366 * 24 * time.Hour)
	n, err = fx.svc.CompleteElapsedDeals(fx.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	completed := fx.reload(deal.ID)
	assert.Equal(t, models.DealStatusCompleted, completed.Status)
	assert.Equal(t, models.EndReasonCompleted, completed.EndReason)
	assert.Zero(t, completed.CapitalReturnAmount)
	assert.Empty(t, fx.gateway.refunds)
}

func TestCompleteDealRequiresAdmin(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	_, err := fx.svc.CompleteDeal(fx.ctx, fx.owner, deal.ID, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	completed, err := fx.svc.CompleteDeal(fx.ctx, fx.admin, deal.ID, "closed early by ops")
	require.NoError(t, err)
	assert.Equal(t, models.DealStatusCompleted, completed.Status)
}

func TestRenewalNeedsBothParties(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()
	_, err := fx.svc.CompleteDeal(fx.ctx, fx.admin, deal.ID, "")
	require.NoError(t, err)

	first, err := fx.svc.RequestRenewal(fx.ctx, fx.owner, deal.ID)
	require.NoError(t, err)
	assert.Nil(t, first.Renewed)
	assert.True(t, first.Deal.RenewalRequestedByOwner)

	_, err = fx.svc.RequestRenewal(fx.ctx, fx.owner, deal.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	second, err := fx.svc.RequestRenewal(fx.ctx, fx.investor, deal.ID)
	require.NoError(t, err)
	require.NotNil(t, second.Renewed)

	assert.Equal(t, models.DealStatusRenewed, second.Deal.Status)
	assert.Equal(t, second.Renewed.ID, *second.Deal.RenewedDealID)

	renewed := fx.reload(second.Renewed.ID)
	assert.Equal(t, models.DealStatusOwnerAccepted, renewed.Status)
	assert.Equal(t, deal.ID, *renewed.PreviousDealID)
	assert.Equal(t, fx.investor.UserID, *renewed.InvestorID)
	assert.Equal(t, deal.ContractVersion+1, renewed.ContractVersion)
	assert.Equal(t, models.ContractTypeRenewal, renewed.ContractType)
	assert.False(t, renewed.IsPaymentProcessed)

	_, err = fx.svc.RequestRenewal(fx.ctx, fx.investor, deal.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
}

func TestRenewalOfActiveDealIsRejected(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	_, err := fx.svc.RequestRenewal(fx.ctx, fx.owner, deal.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
}
