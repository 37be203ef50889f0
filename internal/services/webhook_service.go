// internal/services/webhook_service.go
package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/cache"
	"github.com/javajoker/dealflow-backend/internal/models"
)

// WebhookService turns signed gateway callbacks into payment confirmations.
type WebhookService struct {
	deals  *DealService
	guard  *cache.IdempotencyGuard
	secret string
	log    *logrus.Logger
}

func NewWebhookService(deals *DealService, guard *cache.IdempotencyGuard, secret string, log *logrus.Logger) *WebhookService {
	return &WebhookService{deals: deals, guard: guard, secret: secret, log: log}
}

// HandlePayload verifies the signature and processes each event id once.
func (s *WebhookService) HandlePayload(ctx context.Context, payload []byte, signature string) error {
	if strings.TrimSpace(signature) == "" {
		return apperrors.Unauthenticated("missing webhook signature")
	}
	if s.secret == "" {
		return apperrors.New(apperrors.KindInternal, "webhook secret is not configured")
	}

	event, err := webhook.ConstructEvent(payload, signature, s.secret)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUnauthenticated, err, "invalid webhook signature")
	}

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, err, "check webhook idempotency")
		}
		if seen {
			s.log.WithField("event_id", event.ID).Debug("Duplicate webhook ignored")
			return nil
		}
	}

	if err := s.HandleEvent(ctx, &event); err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
				s.log.WithError(delErr).WithField("event_id", event.ID).Warn("Failed to release webhook mark")
			}
		}
		return err
	}
	return nil
}

// HandleEvent dispatches a verified event.
func (s *WebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return apperrors.Validation("event is required")
	}
	entry := s.log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})

	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, err, "decode checkout session")
		}
		return s.settle(ctx, session.ID, session.Metadata)

	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, err, "decode payment intent")
		}
		return s.settle(ctx, intent.ID, intent.Metadata)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, err, "decode charge")
		}
		entry.WithFields(logrus.Fields{
			"charge_id":       charge.ID,
			"amount_refunded": charge.AmountRefunded,
			"deal_id":         charge.Metadata["deal_id"],
		}).Info("Charge refunded")

	case "transfer.created", "transfer.reversed":
		var transfer stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &transfer); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, err, "decode transfer")
		}
		entry.WithFields(logrus.Fields{
			"transfer_id": transfer.ID,
			"amount":      transfer.Amount,
			"deal_id":     transfer.Metadata["deal_id"],
		}).Info("Transfer event received")

	case "account.updated":
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, err, "decode account")
		}
		entry.WithFields(logrus.Fields{
			"account_id":      account.ID,
			"payouts_enabled": account.PayoutsEnabled,
		}).Info("Connected account updated")

	default:
		entry.Debug("Unhandled webhook event")
	}
	return nil
}

// settle confirms the attempt behind a gateway reference. Business errors
// are logged and swallowed so the gateway does not redeliver forever.
func (s *WebhookService) settle(ctx context.Context, ref string, metadata map[string]string) error {
	entry := s.log.WithField("payment_ref", ref)
	dealID, err := uuid.Parse(metadata["deal_id"])
	if err != nil {
		entry.Debug("Webhook without deal metadata ignored")
		return nil
	}
	entry = entry.WithField("deal_id", dealID)

	actor := s.deals.systemActor(ctx)
	ctx = models.ContextWithSystemActor(ctx, actor.UserID)

	var outcome *PaymentOutcome
	switch models.PaymentOperation(metadata["operation"]) {
	case models.PaymentOperationFunding:
		outcome, err = s.deals.ConfirmFunding(ctx, actor, dealID, ref)
	case models.PaymentOperationChangePayment:
		outcome, err = s.deals.ConfirmChangePayment(ctx, actor, dealID, ref)
	default:
		entry.WithField("operation", metadata["operation"]).Debug("Webhook for operation without confirmation step")
		return nil
	}

	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindNotFound, apperrors.KindInvalidState, apperrors.KindValidation, apperrors.KindConflict:
			entry.WithError(err).Warn("Webhook confirmation skipped")
			return nil
		}
		return err
	}
	entry.WithField("status", outcome.Status).Info("Webhook confirmation processed")
	return nil
}
