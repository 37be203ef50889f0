// internal/services/payment_gateway.go
package services

import "context"

// PaymentGateway is the external payment processor. Every call carries an
// idempotency key so retried requests never create a second charge.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*GatewayIntent, error)
	Confirm(ctx context.Context, ref string) (*PaymentConfirmation, error)
	Refund(ctx context.Context, req RefundRequest) (string, error)
	Transfer(ctx context.Context, req TransferRequest) (string, error)
}

type CheckoutRequest struct {
	Amount         float64
	Currency       string
	Description    string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

type CheckoutSession struct {
	Ref string
	URL string
}

type IntentRequest struct {
	Amount         float64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type GatewayIntent struct {
	Ref          string
	ClientSecret string
}

type ConfirmationStatus string

const (
	ConfirmationSucceeded ConfirmationStatus = "succeeded"
	ConfirmationFailed    ConfirmationStatus = "failed"
	ConfirmationPending   ConfirmationStatus = "pending"
)

type PaymentConfirmation struct {
	Ref    string
	Status ConfirmationStatus
	Amount float64
	// PaymentRef is the underlying captured payment, which differs from Ref for checkout sessions.
	PaymentRef string
	Metadata   map[string]string
}

type RefundRequest struct {
	PaymentRef     string
	Amount         float64
	Reason         string
	Metadata       map[string]string
	IdempotencyKey string
}

type TransferRequest struct {
	Amount         float64
	Currency       string
	Destination    string
	SourceRef      string
	Metadata       map[string]string
	IdempotencyKey string
}
