// internal/services/payment_orchestrator.go
package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// PaymentOrchestrator runs every money movement through an idempotency guard
// and records failures outside the caller's transaction.
type PaymentOrchestrator struct {
	gateway  PaymentGateway
	payments *repository.PaymentRepository
	cfg      config.PaymentConfig
	log      *logrus.Logger
}

func NewPaymentOrchestrator(gateway PaymentGateway, payments *repository.PaymentRepository, cfg config.PaymentConfig, log *logrus.Logger) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		gateway:  gateway,
		payments: payments,
		cfg:      cfg,
		log:      log,
	}
}

// IdempotencyHash identifies one logical payment per deal, operation, amount,
// payer and UTC day. Scope narrows it further, e.g. to one distribution.
func IdempotencyHash(dealID uuid.UUID, op models.PaymentOperation, amount float64, payerID uuid.UUID, at time.Time, scope ...string) string {
	parts := []string{
		dealID.String(),
		string(op),
		strconv.FormatInt(ToCents(amount), 10),
		payerID.String(),
		at.UTC().Format("2006-01-02"),
	}
	return utils.HashParts(append(parts, scope...)...)
}

type ChargeRequest struct {
	DealID      uuid.UUID
	Operation   models.PaymentOperation
	Amount      float64
	PayerID     uuid.UUID
	Platform    models.Platform
	Description string
	At          time.Time
}

type ChargeResult struct {
	Attempt  *models.PaymentAttempt
	Replayed bool
}

// Charge opens a collection from the payer: a checkout session on web, a
// payment intent on mobile. A repeat of the same logical payment returns the
// stored attempt instead of calling the gateway again.
func (o *PaymentOrchestrator) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Amount <= 0 {
		return nil, apperrors.Validation("payment amount must be positive")
	}
	if !req.Platform.Valid() {
		return nil, apperrors.Validation("platform must be web or mobile")
	}

	hash := IdempotencyHash(req.DealID, req.Operation, req.Amount, req.PayerID, req.At)
	existing, err := o.payments.FindAttemptByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != models.PaymentAttemptFailed {
		o.log.WithFields(logrus.Fields{
			"deal_id":   req.DealID,
			"operation": req.Operation,
			"ref":       existing.GatewayRef,
		}).Info("Replaying stored payment attempt")
		return &ChargeResult{Attempt: existing, Replayed: true}, nil
	}

	metadata := paymentMetadata(req.DealID, req.Operation, req.PayerID, hash)
	key := hash
	if existing != nil {
		key = hash + "-" + strconv.FormatInt(existing.UpdatedAt.Unix(), 10)
	}

	attempt := existing
	if attempt == nil {
		attempt = &models.PaymentAttempt{Hash: hash}
	}
	attempt.DealID = req.DealID
	attempt.Operation = req.Operation
	attempt.Amount = RoundMoney(req.Amount)
	attempt.PayerID = req.PayerID
	attempt.Platform = req.Platform
	attempt.Status = models.PaymentAttemptCreated

	switch req.Platform {
	case models.PlatformWeb:
		session, err := o.gateway.CreateCheckout(ctx, CheckoutRequest{
			Amount:         req.Amount,
			Currency:       o.cfg.Currency,
			Description:    req.Description,
			SuccessURL:     o.cfg.CheckoutSuccessURL,
			CancelURL:      o.cfg.CheckoutCancelURL,
			Metadata:       metadata,
			IdempotencyKey: key,
		})
		if err != nil {
			return nil, o.fail(ctx, req.DealID, req.Operation, req.Amount, &req.PayerID, "", err)
		}
		attempt.GatewayRef = session.Ref
		attempt.CheckoutURL = session.URL
	case models.PlatformMobile:
		intent, err := o.gateway.CreatePaymentIntent(ctx, IntentRequest{
			Amount:         req.Amount,
			Currency:       o.cfg.Currency,
			Description:    req.Description,
			Metadata:       metadata,
			IdempotencyKey: key,
		})
		if err != nil {
			return nil, o.fail(ctx, req.DealID, req.Operation, req.Amount, &req.PayerID, "", err)
		}
		attempt.GatewayRef = intent.Ref
		attempt.ClientSecret = intent.ClientSecret
	}

	if existing != nil {
		err = o.payments.SaveAttempt(ctx, attempt)
	} else {
		err = o.payments.CreateAttempt(ctx, attempt)
	}
	if err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"deal_id":   req.DealID,
		"operation": req.Operation,
		"platform":  req.Platform,
		"ref":       attempt.GatewayRef,
	}).Info("Payment attempt created")

	return &ChargeResult{Attempt: attempt}, nil
}

type ConfirmResult struct {
	Attempt      *models.PaymentAttempt
	Confirmation *PaymentConfirmation
}

// Confirm asks the gateway for the outcome of an attempt. A failed payment is
// marked on the attempt and logged; a success is left for the caller to
// commit together with the state change it unlocks.
func (o *PaymentOrchestrator) Confirm(ctx context.Context, ref string) (*ConfirmResult, error) {
	attempt, err := o.payments.FindAttemptByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.PaymentAttemptSucceeded {
		return &ConfirmResult{
			Attempt:      attempt,
			Confirmation: &PaymentConfirmation{Ref: ref, Status: ConfirmationSucceeded, Amount: attempt.Amount},
		}, nil
	}

	confirmation, err := o.gateway.Confirm(ctx, ref)
	if err != nil {
		return nil, o.fail(ctx, attempt.DealID, attempt.Operation, attempt.Amount, &attempt.PayerID, ref, err)
	}

	if confirmation.Status == ConfirmationFailed {
		attempt.Status = models.PaymentAttemptFailed
		if err := o.payments.SaveAttempt(ctx, attempt); err != nil {
			return nil, err
		}
		o.logFailure(ctx, &models.PaymentFailureLog{
			DealID:       attempt.DealID,
			Operation:    attempt.Operation,
			Amount:       attempt.Amount,
			PayerID:      &attempt.PayerID,
			GatewayRef:   ref,
			ErrorMessage: "payment was declined or expired",
			Retryable:    true,
		})
	}

	return &ConfirmResult{Attempt: attempt, Confirmation: confirmation}, nil
}

// MarkSucceeded records a confirmed attempt inside the caller's transaction.
func (o *PaymentOrchestrator) MarkSucceeded(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, at time.Time) error {
	if attempt.Status == models.PaymentAttemptSucceeded {
		return nil
	}
	attempt.Status = models.PaymentAttemptSucceeded
	attempt.ConfirmedAt = &at
	return o.payments.WithTx(tx).SaveAttempt(ctx, attempt)
}

type DisbursementRequest struct {
	DealID      uuid.UUID
	Operation   models.PaymentOperation
	Amount      float64
	RecipientID uuid.UUID
	// PaymentRef is the captured payment a refund draws from.
	PaymentRef string
	// Destination is the connected payout account a transfer goes to.
	Destination string
	Reason      string
	// Scope is appended to the idempotency hash when set.
	Scope string
	At    time.Time
}

// Refund returns money to the original payer of PaymentRef.
func (o *PaymentOrchestrator) Refund(ctx context.Context, req DisbursementRequest) (*ChargeResult, error) {
	if req.PaymentRef == "" {
		return nil, apperrors.InvalidState("no captured payment to refund")
	}
	return o.disburse(ctx, req, func(metadata map[string]string, key string) (string, error) {
		return o.gateway.Refund(ctx, RefundRequest{
			PaymentRef:     req.PaymentRef,
			Amount:         req.Amount,
			Reason:         req.Reason,
			Metadata:       metadata,
			IdempotencyKey: key,
		})
	})
}

// Transfer pays out to a party's connected account.
func (o *PaymentOrchestrator) Transfer(ctx context.Context, req DisbursementRequest) (*ChargeResult, error) {
	if req.Destination == "" {
		return nil, apperrors.InvalidState("recipient has no payout account")
	}
	return o.disburse(ctx, req, func(metadata map[string]string, key string) (string, error) {
		return o.gateway.Transfer(ctx, TransferRequest{
			Amount:         req.Amount,
			Currency:       o.cfg.Currency,
			Destination:    req.Destination,
			SourceRef:      req.PaymentRef,
			Metadata:       metadata,
			IdempotencyKey: key,
		})
	})
}

func (o *PaymentOrchestrator) disburse(ctx context.Context, req DisbursementRequest, call func(map[string]string, string) (string, error)) (*ChargeResult, error) {
	if req.Amount <= 0 {
		return nil, apperrors.Validation("disbursement amount must be positive")
	}

	var scope []string
	if req.Scope != "" {
		scope = append(scope, req.Scope)
	}
	hash := IdempotencyHash(req.DealID, req.Operation, req.Amount, req.RecipientID, req.At, scope...)
	existing, err := o.payments.FindAttemptByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == models.PaymentAttemptSucceeded {
		return &ChargeResult{Attempt: existing, Replayed: true}, nil
	}

	ref, err := call(paymentMetadata(req.DealID, req.Operation, req.RecipientID, hash), hash)
	if err != nil {
		return nil, o.fail(ctx, req.DealID, req.Operation, req.Amount, &req.RecipientID, req.PaymentRef, err)
	}

	at := req.At.UTC()
	attempt := existing
	if attempt == nil {
		attempt = &models.PaymentAttempt{Hash: hash}
	}
	attempt.DealID = req.DealID
	attempt.Operation = req.Operation
	attempt.Amount = RoundMoney(req.Amount)
	attempt.PayerID = req.RecipientID
	attempt.GatewayRef = ref
	attempt.Status = models.PaymentAttemptSucceeded
	attempt.ConfirmedAt = &at

	if existing != nil {
		err = o.payments.SaveAttempt(ctx, attempt)
	} else {
		err = o.payments.CreateAttempt(ctx, attempt)
	}
	if err != nil {
		// The money moved; the attempt row is only the replay guard.
		o.log.WithError(err).WithFields(logrus.Fields{
			"deal_id": req.DealID,
			"ref":     ref,
		}).Error("Failed to persist completed disbursement attempt")
	}

	return &ChargeResult{Attempt: attempt}, nil
}

func (o *PaymentOrchestrator) fail(ctx context.Context, dealID uuid.UUID, op models.PaymentOperation, amount float64, payerID *uuid.UUID, ref string, cause error) error {
	o.logFailure(ctx, &models.PaymentFailureLog{
		DealID:       dealID,
		Operation:    op,
		Amount:       RoundMoney(amount),
		PayerID:      payerID,
		GatewayRef:   ref,
		ErrorMessage: cause.Error(),
		Retryable:    true,
	})
	return apperrors.GatewayFailure(cause, "payment gateway call failed").
		WithDetail("operation", string(op))
}

// logFailure never fails the caller; the log write is best effort.
func (o *PaymentOrchestrator) logFailure(ctx context.Context, entry *models.PaymentFailureLog) {
	if err := o.payments.LogFailure(ctx, entry); err != nil {
		o.log.WithError(err).WithField("deal_id", entry.DealID).Error("Failed to write payment failure log")
	}
	o.log.WithFields(logrus.Fields{
		"deal_id":   entry.DealID,
		"operation": entry.Operation,
		"amount":    entry.Amount,
	}).Warn("Payment operation failed: " + entry.ErrorMessage)
}

func paymentMetadata(dealID uuid.UUID, op models.PaymentOperation, partyID uuid.UUID, hash string) map[string]string {
	return map[string]string{
		"deal_id":          dealID.String(),
		"operation":        string(op),
		"party_id":         partyID.String(),
		"idempotency_hash": hash,
	}
}
