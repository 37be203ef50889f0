package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/events"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
	"github.com/javajoker/dealflow-backend/internal/testutil"
)

type fakeGateway struct {
	mu        sync.Mutex
	status    ConfirmationStatus
	refundErr error
	seq       int
	checkouts int
	intents   int
	confirms  int
	refunds   []RefundRequest
	transfers []TransferRequest
}

func (g *fakeGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_test_%d", prefix, g.seq)
}

func (g *fakeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts++
	ref := g.next("cs")
	return &CheckoutSession{Ref: ref, URL: "https://checkout.test/" + ref}, nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*GatewayIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents++
	ref := g.next("pi")
	return &GatewayIntent{Ref: ref, ClientSecret: ref + "_secret"}, nil
}

func (g *fakeGateway) Confirm(ctx context.Context, ref string) (*PaymentConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirms++
	status := g.status
	if status == "" {
		status = ConfirmationSucceeded
	}
	return &PaymentConfirmation{Ref: ref, Status: status, PaymentRef: "pi_paid_" + ref}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req RefundRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds = append(g.refunds, req)
	return g.next("re"), nil
}

func (g *fakeGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transfers = append(g.transfers, req)
	return g.next("tr"), nil
}

type dealFixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	svc      *DealService
	gateway  *fakeGateway
	events   *events.Recorder
	owner    *models.Actor
	investor *models.Actor
	admin    *models.Actor
	system   *models.Actor
	clock    time.Time
}

func seedUser(t *testing.T, db *gorm.DB, email string, mutate func(*models.User)) *models.Actor {
	t.Helper()
	user := &models.User{Email: email, DisplayName: email, PayoutAccountID: "acct_" + email}
	mutate(user)
	require.NoError(t, db.Create(user).Error)
	return &models.Actor{
		UserID:          user.ID,
		IsAdmin:         user.IsAdmin,
		IsInvestor:      user.IsInvestor,
		IsBusinessOwner: user.IsBusinessOwner,
	}
}

func newDealFixture(t *testing.T) *dealFixture {
	t.Helper()

	db := testutil.NewDB(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	fx := &dealFixture{
		t:       t,
		db:      db,
		gateway: &fakeGateway{},
		events:  &events.Recorder{},
		clock:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	fx.owner = seedUser(t, db, "owner", func(u *models.User) { u.IsBusinessOwner = true })
	fx.investor = seedUser(t, db, "investor", func(u *models.User) { u.IsInvestor = true })
	fx.admin = seedUser(t, db, "admin", func(u *models.User) { u.IsAdmin = true })
	systemUser := seedUser(t, db, "system", func(u *models.User) {})
	fx.system = &models.Actor{UserID: systemUser.UserID, IsAdmin: true, IsSystem: true}
	fx.ctx = models.ContextWithSystemActor(context.Background(), fx.system.UserID)

	storage, err := NewStorageService(config.AWSConfig{
		LocalStoragePath: t.TempDir(),
		LocalBaseURL:     "http://files.test",
	}, log)
	require.NoError(t, err)
	store, err := NewHTMLContractStore(storage)
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	paymentCfg := config.PaymentConfig{Currency: "usd", PlatformFeePercent: 1}

	fx.svc = NewDealService(DealServiceDeps{
		DB:           db,
		Orchestrator: NewPaymentOrchestrator(fx.gateway, repository.NewPaymentRepository(db), paymentCfg, log),
		Contracts:    NewContractManager(store, storage, users, "usd", log),
		Notifier:     NewNotificationService(repository.NewMessageRepository(db), users, fx.events, nil, log),
		Calculator:   NewProfitCalculator(repository.NewSalesLedger(db)),
		Products:     NewProductService(repository.NewProductRepository(db), log),
		Files:        storage,
		DealConfig: config.DealConfig{
			SystemActorID:       fx.system.UserID,
			ListingTTLDays:      30,
			ChangeAmountEpsilon: 0.01,
		},
		Payment: paymentCfg,
		Logger:  log,
	})
	fx.svc.now = func() time.Time { return fx.clock }
	return fx
}

func (fx *dealFixture) advance(d time.Duration) {
	fx.clock = fx.clock.Add(d)
}

func (fx *dealFixture) createListing() *models.Deal {
	fx.t.Helper()
	deal, err := fx.svc.CreateDeal(fx.ctx, fx.owner, CreateDealInput{
		Title:                    "Solar lantern batch",
		Description:              "First production run",
		ImageURLs:                []string{"https://img.test/lantern.png"},
		OfferMoney:               10000,
		OfferDealPercent:         20,
		ManufacturingCostPerUnit: 20,
		EstimatedPrice:           50,
		DurationInMonths:         12,
	})
	require.NoError(fx.t, err)
	_, err = fx.svc.ReviewListing(fx.ctx, fx.admin, deal.ID, true, "")
	require.NoError(fx.t, err)
	return deal
}

func (fx *dealFixture) approvedDeal() *models.Deal {
	fx.t.Helper()
	deal := fx.createListing()
	_, err := fx.svc.AcceptOffer(fx.ctx, fx.investor, deal.ID, "happy to fund")
	require.NoError(fx.t, err)
	_, err = fx.svc.RespondToOffer(fx.ctx, fx.owner, deal.ID, true, "")
	require.NoError(fx.t, err)
	deal, err = fx.svc.AdminReviewDeal(fx.ctx, fx.admin, deal.ID, true, "")
	require.NoError(fx.t, err)
	return deal
}

func (fx *dealFixture) fundedDeal() *models.Deal {
	fx.t.Helper()
	deal := fx.approvedDeal()
	session, err := fx.svc.InitiateFunding(fx.ctx, fx.investor, deal.ID, models.PlatformWeb)
	require.NoError(fx.t, err)
	outcome, err := fx.svc.ConfirmFunding(fx.ctx, fx.investor, deal.ID, session.PaymentRef)
	require.NoError(fx.t, err)
	require.Equal(fx.t, ConfirmationSucceeded, outcome.Status)
	return outcome.Deal
}

func (fx *dealFixture) activeDeal() *models.Deal {
	fx.t.Helper()
	deal := fx.fundedDeal()
	_, err := fx.svc.SignContract(fx.ctx, fx.owner, deal.ID)
	require.NoError(fx.t, err)
	deal, err = fx.svc.SignContract(fx.ctx, fx.investor, deal.ID)
	require.NoError(fx.t, err)
	require.Equal(fx.t, models.DealStatusActive, deal.Status)
	return deal
}

func (fx *dealFixture) reload(id uuid.UUID) *models.Deal {
	fx.t.Helper()
	deal, err := repository.NewDealRepository(fx.db).FindByID(fx.ctx, id)
	require.NoError(fx.t, err)
	return deal
}

func (fx *dealFixture) countTransactions(dealID uuid.UUID, txType models.TransactionType) int64 {
	fx.t.Helper()
	n, err := repository.NewTransactionRepository(fx.db).CountByDealAndType(fx.ctx, dealID, txType)
	require.NoError(fx.t, err)
	return n
}

func (fx *dealFixture) refundLogs(dealID uuid.UUID) []models.PaymentRefundLog {
	fx.t.Helper()
	logs, err := repository.NewPaymentRepository(fx.db).ListRefunds(fx.ctx, dealID)
	require.NoError(fx.t, err)
	return logs
}

func TestDealLifecycleReachesActive(t *testing.T) {
	fx := newDealFixture(t)

	deal := fx.activeDeal()

	assert.True(t, deal.IsPaymentProcessed)
	assert.True(t, deal.IsOwnerSigned)
	assert.True(t, deal.IsInvestorSigned)
	assert.NotNil(t, deal.CompletedAt)
	assert.Equal(t, 1, deal.ContractVersion)
	assert.NotEmpty(t, deal.ContractHash)
	require.NotNil(t, deal.ProductID)
	assert.Equal(t, "pi_paid_cs_test_1", deal.PaymentIntentRef)
	assert.Equal(t, int64(1), fx.countTransactions(deal.ID, models.TransactionTypeInitialInvestment))

	verification, err := fx.svc.VerifyContract(fx.ctx, fx.investor, deal.ID)
	require.NoError(t, err)
	assert.True(t, verification.Valid)

	history, err := fx.svc.GetDealHistory(fx.ctx, fx.owner, deal.ID)
	require.NoError(t, err)
	var statuses []models.DealStatus
	for _, entry := range history {
		if entry.FromStatus != entry.ToStatus {
			statuses = append(statuses, entry.ToStatus)
		}
	}
	assert.Equal(t, []models.DealStatus{
		models.DealStatusOwnerAccepted,
		models.DealStatusAdminApproved,
		models.DealStatusActive,
	}, statuses)
	assert.Contains(t, fx.events.Types(), "status_changed")
}

func TestCreateDealRequiresBusinessOwner(t *testing.T) {
	fx := newDealFixture(t)

	_, err := fx.svc.CreateDeal(fx.ctx, fx.investor, CreateDealInput{
		Title:            "Not mine to list",
		ImageURLs:        []string{"https://img.test/x.png"},
		OfferMoney:       100,
		OfferDealPercent: 10,
		EstimatedPrice:   5,
		DurationInMonths: 1,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestSecondOfferConflictsWhileFirstIsPending(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.createListing()
	other := seedUser(t, fx.db, "investor2", func(u *models.User) { u.IsInvestor = true })

	_, err := fx.svc.AcceptOffer(fx.ctx, fx.investor, deal.ID, "")
	require.NoError(t, err)
	_, err = fx.svc.AcceptOffer(fx.ctx, other, deal.ID, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestSigningBeforeFundingIsRejected(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.approvedDeal()

	_, err := fx.svc.SignContract(fx.ctx, fx.owner, deal.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
	assert.Equal(t, models.DealStatusAdminApproved, fx.reload(deal.ID).Status)
}

func TestOneSignatureDoesNotActivate(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.fundedDeal()

	deal, err := fx.svc.SignContract(fx.ctx, fx.investor, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealStatusAdminApproved, deal.Status)

	again, err := fx.svc.SignContract(fx.ctx, fx.investor, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, deal.Version, again.Version)
}

func TestInitiateFundingReplaysSameDayAttempt(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.approvedDeal()

	first, err := fx.svc.InitiateFunding(fx.ctx, fx.investor, deal.ID, models.PlatformWeb)
	require.NoError(t, err)
	second, err := fx.svc.InitiateFunding(fx.ctx, fx.investor, deal.ID, models.PlatformWeb)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.PaymentRef, second.PaymentRef)
	assert.Equal(t, 1, fx.gateway.checkouts)
}

func TestConfirmFundingIsIdempotent(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.fundedDeal()

	outcome, err := fx.svc.ConfirmFunding(fx.ctx, fx.investor, deal.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ConfirmationSucceeded, outcome.Status)
	assert.Equal(t, 1, fx.gateway.confirms)
	assert.Equal(t, int64(1), fx.countTransactions(deal.ID, models.TransactionTypeInitialInvestment))
}

func TestFailedFundingLeavesDealUnfunded(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.approvedDeal()
	fx.gateway.status = ConfirmationFailed

	session, err := fx.svc.InitiateFunding(fx.ctx, fx.investor, deal.ID, models.PlatformMobile)
	require.NoError(t, err)
	outcome, err := fx.svc.ConfirmFunding(fx.ctx, fx.investor, deal.ID, session.PaymentRef)
	require.NoError(t, err)

	assert.Equal(t, ConfirmationFailed, outcome.Status)
	assert.False(t, outcome.Deal.IsPaymentProcessed)
	assert.Equal(t, models.PaymentStatusFailed, outcome.Deal.PaymentStatus)
	assert.Zero(t, fx.countTransactions(deal.ID, models.TransactionTypeInitialInvestment))

	issues, err := fx.svc.ListPaymentIssues(fx.ctx, fx.admin, deal.ID)
	require.NoError(t, err)
	assert.Len(t, issues.Failures, 1)
}

func TestApprovedIncreaseWaitsForPayment(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	raised := 12000.0
	edit, err := fx.svc.EditDeal(fx.ctx, fx.owner, deal.ID, models.DealTermsPatch{OfferMoney: &raised}, "bigger batch")
	require.NoError(t, err)
	assert.False(t, edit.Applied)
	require.NotNil(t, edit.ChangeRequest)

	resp, err := fx.svc.RespondToChangeRequest(fx.ctx, fx.investor, edit.ChangeRequest.ID, true, "")
	require.NoError(t, err)
	assert.True(t, resp.RequiresPayment)
	assert.False(t, resp.Applied)
	assert.Equal(t, models.PaymentDirectionInvestorPays, resp.PaymentDirection)
	assert.Equal(t, 2000.0, resp.PaymentAmount)

	pending := fx.reload(deal.ID)
	assert.Equal(t, 10000.0, pending.OfferMoney)
	assert.Equal(t, 1, pending.ContractVersion)
	assert.True(t, pending.IsChangePaymentRequired)

	// A second proposal must wait until the first change is paid.
	_, err = fx.svc.EditDeal(fx.ctx, fx.owner, deal.ID, models.DealTermsPatch{OfferMoney: &raised}, "again")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))

	payment, err := fx.svc.ProcessChangePayment(fx.ctx, fx.investor, deal.ID, models.PlatformWeb)
	require.NoError(t, err)
	require.NotNil(t, payment.Session)
	assert.Equal(t, 2000.0, payment.Session.Amount)

	outcome, err := fx.svc.ConfirmChangePayment(fx.ctx, fx.investor, deal.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ConfirmationSucceeded, outcome.Status)
	assert.Equal(t, 12000.0, outcome.Deal.OfferMoney)
	assert.Equal(t, 2, outcome.Deal.ContractVersion)
	assert.True(t, outcome.Deal.IsChangePaymentProcessed)
	assert.Nil(t, outcome.Deal.PendingChangeRequestID)
	assert.Equal(t, int64(1), fx.countTransactions(deal.ID, models.TransactionTypeChangePayment))
}

func TestApprovedDecreaseRefundsInvestor(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	lowered := 8000.0
	edit, err := fx.svc.EditDeal(fx.ctx, fx.owner, deal.ID, models.DealTermsPatch{OfferMoney: &lowered}, "smaller batch")
	require.NoError(t, err)
	resp, err := fx.svc.RespondToChangeRequest(fx.ctx, fx.investor, edit.ChangeRequest.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentDirectionOwnerRefunds, resp.PaymentDirection)

	result, err := fx.svc.ProcessChangePayment(fx.ctx, fx.owner, deal.ID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.RefundRef)
	assert.Equal(t, 8000.0, result.Deal.OfferMoney)
	require.Len(t, fx.gateway.refunds, 1)
	assert.Equal(t, 2000.0, fx.gateway.refunds[0].Amount)
	assert.Equal(t, deal.PaymentIntentRef, fx.gateway.refunds[0].PaymentRef)
	assert.Len(t, fx.refundLogs(deal.ID), 1)
}

func TestRejectedChangeLeavesTermsAlone(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	title := "Renamed lantern batch"
	edit, err := fx.svc.EditDeal(fx.ctx, fx.owner, deal.ID, models.DealTermsPatch{Title: &title}, "")
	require.NoError(t, err)
	_, err = fx.svc.RespondToChangeRequest(fx.ctx, fx.investor, edit.ChangeRequest.ID, false, "keep it")
	require.NoError(t, err)

	current := fx.reload(deal.ID)
	assert.Equal(t, "Solar lantern batch", current.Title)
	assert.Nil(t, current.PendingChangeRequestID)
}

func TestConcurrentTerminationApprovalsTerminateOnce(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	requested, err := fx.svc.RequestTermination(fx.ctx, fx.investor, deal.ID, "market changed", "")
	require.NoError(t, err)
	assert.False(t, requested.Terminated)
	require.NotNil(t, requested.Request)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.RespondToTermination(fx.ctx, fx.owner, deal.ID, true, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState), err)
	}
	assert.Equal(t, 1, succeeded)

	current := fx.reload(deal.ID)
	assert.Equal(t, models.DealStatusTerminated, current.Status)
	assert.Equal(t, models.EndReasonMutualAgreement, current.EndReason)
	assert.True(t, current.IsCapitalReturned)
	assert.Len(t, fx.gateway.refunds, 1)
	assert.Equal(t, int64(1), fx.countTransactions(deal.ID, models.TransactionTypeCapitalReturn))
}

func TestRepeatedTerminationRequestConflicts(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	_, err := fx.svc.RequestTermination(fx.ctx, fx.owner, deal.ID, "first", "")
	require.NoError(t, err)
	_, err = fx.svc.RequestTermination(fx.ctx, fx.owner, deal.ID, "second", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestRefundFailureStillTerminates(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()
	fx.gateway.refundErr = errors.New("card_declined")

	result, err := fx.svc.RequestTermination(fx.ctx, fx.admin, deal.ID, "breach", models.EndReasonBreachOfContract)
	require.NoError(t, err)

	assert.True(t, result.Terminated)
	assert.True(t, result.CapitalReturnPending)
	assert.Contains(t, result.CapitalReturnError, "payment gateway call failed")

	current := fx.reload(deal.ID)
	assert.Equal(t, models.DealStatusTerminated, current.Status)
	assert.Equal(t, 10000.0, current.CapitalReturnAmount)
	assert.False(t, current.IsCapitalReturned)
	assert.Zero(t, fx.countTransactions(deal.ID, models.TransactionTypeCapitalReturn))
	assert.Empty(t, fx.refundLogs(deal.ID))

	issues, err := fx.svc.ListPaymentIssues(fx.ctx, fx.admin, deal.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, issues.Failures)

	fx.gateway.refundErr = nil
	retried, err := fx.svc.RetryCapitalReturn(fx.ctx, fx.admin, deal.ID)
	require.NoError(t, err)
	assert.True(t, retried.IsCapitalReturned)
	assert.Equal(t, int64(1), fx.countTransactions(deal.ID, models.TransactionTypeCapitalReturn))
	require.Len(t, fx.refundLogs(deal.ID), 1)
	assert.Equal(t, 1.0, fx.refundLogs(deal.ID)[0].Multiplier)
}

func TestRejectedTerminationEscalatesToAdmin(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()

	_, err := fx.svc.RequestTermination(fx.ctx, fx.owner, deal.ID, "supplier gone", "")
	require.NoError(t, err)
	result, err := fx.svc.RespondToTermination(fx.ctx, fx.investor, deal.ID, false, "not agreed")
	require.NoError(t, err)
	assert.False(t, result.Terminated)
	assert.True(t, result.Deal.IsTerminationEscalatedToAdmin)

	_, err = fx.svc.RespondToTermination(fx.ctx, fx.investor, deal.ID, false, "still not agreed")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
	assert.True(t, fx.reload(deal.ID).IsTerminationEscalatedToAdmin)

	dismissed, err := fx.svc.AdminResolveTermination(fx.ctx, fx.admin, deal.ID, false, "keep going", "")
	require.NoError(t, err)
	assert.Equal(t, models.DealStatusActive, dismissed.Deal.Status)
	assert.False(t, dismissed.Deal.TerminationRequestedByOwner)
	assert.False(t, dismissed.Deal.IsTerminationEscalatedToAdmin)
}

func TestAdminEditOfActiveDealAppliesImmediately(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()
	checkouts := fx.gateway.checkouts

	raised := 15000.0
	edit, err := fx.svc.EditDeal(fx.ctx, fx.admin, deal.ID, models.DealTermsPatch{OfferMoney: &raised}, "")
	require.NoError(t, err)

	assert.True(t, edit.Applied)
	assert.Nil(t, edit.ChangeRequest)
	assert.Equal(t, 15000.0, edit.Deal.OfferMoney)
	assert.Equal(t, deal.ContractVersion+1, edit.Deal.ContractVersion)
	assert.Equal(t, deal.ContractDocumentURL, edit.Deal.PreviousContractDocumentURL)
	assert.False(t, edit.Deal.IsChangePaymentRequired)
	assert.Equal(t, checkouts, fx.gateway.checkouts)

	requests, err := fx.svc.ListChangeRequests(fx.ctx, fx.admin, deal.ID)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestDeleteUnmatchedListing(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.createListing()

	result, err := fx.svc.DeleteDeal(fx.ctx, fx.owner, deal.ID, "")
	require.NoError(t, err)
	assert.True(t, result.Deleted)

	_, err = fx.svc.GetDeal(fx.ctx, fx.owner, deal.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestDeleteMatchedDealNeedsInvestorApproval(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.approvedDeal()

	result, err := fx.svc.DeleteDeal(fx.ctx, fx.owner, deal.ID, "cancelled supplier")
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	require.NotNil(t, result.DeleteRequest)

	approved, err := fx.svc.RespondToDeleteRequest(fx.ctx, fx.investor, result.DeleteRequest.ID, true, "")
	require.NoError(t, err)
	assert.True(t, approved.Deleted)
}

func seedSale(t *testing.T, db *gorm.DB, productID uuid.UUID, price float64, qty int, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.OrderItem{
		OrderID:   uuid.New(),
		ProductID: productID,
		UnitPrice: price,
		Quantity:  qty,
		SettledAt: at,
	}).Error)
}

func TestProfitDistributionSplitAndPayout(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()
	start := *deal.CompletedAt

	seedSale(t, fx.db, *deal.ProductID, 50, 100, start.Add(24*time.Hour))
	fx.advance(31 * 24 * time.Hour)

	dist, err := fx.svc.CreateProfitDistribution(fx.ctx, fx.owner, deal.ID, ProfitDistributionInput{
		StartDate: start,
		EndDate:   start.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, dist.IsPending)
	assert.Equal(t, 5000.0, dist.TotalRevenue)
	assert.Equal(t, 3000.0, dist.NetProfit)
	assert.Equal(t, 30.0, dist.PlatformFee)
	assert.Equal(t, 594.0, dist.InvestorShare)
	assert.Equal(t, 2376.0, dist.OwnerShare)

	_, err = fx.svc.CreateProfitDistribution(fx.ctx, fx.owner, deal.ID, ProfitDistributionInput{
		StartDate: start.Add(10 * 24 * time.Hour),
		EndDate:   start.Add(40 * 24 * time.Hour),
	})
	assert.Error(t, err)

	_, err = fx.svc.PayProfitDistribution(fx.ctx, fx.admin, dist.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))

	_, err = fx.svc.ApproveProfitDistribution(fx.ctx, fx.admin, dist.ID)
	require.NoError(t, err)
	payout, err := fx.svc.PayProfitDistribution(fx.ctx, fx.admin, dist.ID)
	require.NoError(t, err)
	assert.True(t, payout.Distribution.IsPaid)
	assert.NotEmpty(t, payout.InvestorTransferRef)
	assert.NotEmpty(t, payout.OwnerTransferRef)
	require.Len(t, fx.gateway.transfers, 2)
	assert.Equal(t, "acct_investor", fx.gateway.transfers[0].Destination)

	again, err := fx.svc.PayProfitDistribution(fx.ctx, fx.admin, dist.ID)
	require.NoError(t, err)
	assert.True(t, again.Distribution.IsPaid)
	assert.Len(t, fx.gateway.transfers, 2)

	assert.Equal(t, int64(1), fx.countTransactions(deal.ID, models.TransactionTypeProfitDistributionToInvestor))
	assert.Equal(t, int64(1), fx.countTransactions(deal.ID, models.TransactionTypeProfitDistributionToOwner))
	assert.Equal(t, int64(1), fx.countTransactions(deal.ID, models.TransactionTypePlatformFee))
}

func TestProfitDistributionWithoutProfitIsRejected(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()
	start := *deal.CompletedAt

	_, err := fx.svc.CreateProfitDistribution(fx.ctx, fx.owner, deal.ID, ProfitDistributionInput{
		StartDate: start,
		EndDate:   start.Add(24 * time.Hour),
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestRecordSaleMaintainsRollingDistribution(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.activeDeal()
	start := *deal.CompletedAt

	first := start.Add(time.Hour)
	seedSale(t, fx.db, *deal.ProductID, 50, 40, first)
	dist, err := fx.svc.RecordSale(fx.ctx, *deal.ProductID, first)
	require.NoError(t, err)
	require.NotNil(t, dist)
	assert.Equal(t, fx.system.UserID, dist.CreatedBy)
	assert.Equal(t, 1200.0, dist.NetProfit)

	second := start.Add(2 * time.Hour)
	seedSale(t, fx.db, *deal.ProductID, 50, 60, second)
	dist, err = fx.svc.RecordSale(fx.ctx, *deal.ProductID, second)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, dist.NetProfit)
	assert.Equal(t, 594.0, dist.InvestorShare)

	all, err := fx.svc.ListProfitDistributions(fx.ctx, fx.owner, deal.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordSaleIgnoresInactiveDeals(t *testing.T) {
	fx := newDealFixture(t)
	deal := fx.fundedDeal()

	dist, err := fx.svc.RecordSale(fx.ctx, *deal.ProductID, fx.clock)
	require.NoError(t, err)
	assert.Nil(t, dist)
}
