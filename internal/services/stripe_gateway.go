// internal/services/stripe_gateway.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v74"
	checkoutsession "github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
	"github.com/stripe/stripe-go/v74/transfer"

	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/metrics"
)

// StripeGateway implements PaymentGateway on Stripe behind a circuit breaker.
type StripeGateway struct {
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Recorder
	log     *logrus.Logger
}

func NewStripeGateway(paymentCfg config.PaymentConfig, breakerCfg config.BreakerConfig, rec *metrics.Recorder, log *logrus.Logger) *StripeGateway {
	stripe.Key = paymentCfg.StripeSecretKey

	settings := gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= breakerCfg.ConsecutiveFailures ||
				(counts.Requests >= 10 && failureRatio >= 0.5)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Payment gateway circuit breaker state changed")
			rec.BreakerOpen(name, to == gobreaker.StateOpen)
		},
	}

	return &StripeGateway{
		breaker: gobreaker.NewCircuitBreaker(settings),
		metrics: rec,
		log:     log,
	}
}

func (g *StripeGateway) execute(operation string, fn func() (interface{}, error)) (interface{}, error) {
	started := time.Now()
	result, err := g.breaker.Execute(fn)
	g.metrics.GatewayCall(operation, time.Since(started), err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("payment gateway unavailable: %w", err)
	}
	return result, err
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(ToCents(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	result, err := g.execute("create_checkout", func() (interface{}, error) {
		return checkoutsession.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	sess := result.(*stripe.CheckoutSession)
	return &CheckoutSession{Ref: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*GatewayIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(ToCents(req.Amount)),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	result, err := g.execute("create_payment_intent", func() (interface{}, error) {
		return paymentintent.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	pi := result.(*stripe.PaymentIntent)
	return &GatewayIntent{Ref: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) Confirm(ctx context.Context, ref string) (*PaymentConfirmation, error) {
	if isCheckoutRef(ref) {
		return g.confirmCheckout(ctx, ref)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	result, err := g.execute("confirm", func() (interface{}, error) {
		return paymentintent.Get(ref, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}

	pi := result.(*stripe.PaymentIntent)
	confirmation := &PaymentConfirmation{
		Ref:        pi.ID,
		PaymentRef: pi.ID,
		Amount:     FromCents(pi.Amount),
		Metadata:   pi.Metadata,
		Status:     ConfirmationPending,
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		confirmation.Status = ConfirmationSucceeded
	case stripe.PaymentIntentStatusCanceled:
		confirmation.Status = ConfirmationFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			confirmation.Status = ConfirmationFailed
		}
	}
	return confirmation, nil
}

func (g *StripeGateway) confirmCheckout(ctx context.Context, ref string) (*PaymentConfirmation, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	result, err := g.execute("confirm", func() (interface{}, error) {
		return checkoutsession.Get(ref, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}

	sess := result.(*stripe.CheckoutSession)
	confirmation := &PaymentConfirmation{
		Ref:      sess.ID,
		Amount:   FromCents(sess.AmountTotal),
		Metadata: sess.Metadata,
		Status:   ConfirmationPending,
	}
	if sess.PaymentIntent != nil {
		confirmation.PaymentRef = sess.PaymentIntent.ID
	}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		confirmation.Status = ConfirmationSucceeded
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		confirmation.Status = ConfirmationFailed
	}
	return confirmation, nil
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (string, error) {
	paymentRef := req.PaymentRef
	if isCheckoutRef(paymentRef) {
		confirmation, err := g.confirmCheckout(ctx, paymentRef)
		if err != nil {
			return "", err
		}
		if confirmation.PaymentRef == "" {
			return "", fmt.Errorf("checkout session %s has no captured payment", paymentRef)
		}
		paymentRef = confirmation.PaymentRef
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(ToCents(req.Amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("reason", req.Reason)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	result, err := g.execute("refund", func() (interface{}, error) {
		return refund.New(params)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create refund: %w", err)
	}
	return result.(*stripe.Refund).ID, nil
}

func (g *StripeGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(ToCents(req.Amount)),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.Destination),
	}
	if strings.HasPrefix(req.SourceRef, "ch_") {
		params.SourceTransaction = stripe.String(req.SourceRef)
	}
	if group, ok := req.Metadata["deal_id"]; ok {
		params.TransferGroup = stripe.String(group)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	result, err := g.execute("transfer", func() (interface{}, error) {
		return transfer.New(params)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create transfer: %w", err)
	}
	return result.(*stripe.Transfer).ID, nil
}

func isCheckoutRef(ref string) bool {
	return strings.HasPrefix(ref, "cs_")
}
