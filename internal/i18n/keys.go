// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAdminAccessDenied = "auth.admin_required"

	// Validation
	KeyValidationInvalid = "validation.invalid"
	KeyInvalidID         = "validation.invalid_id"

	// Rate limiting
	KeyRateLimited = "rate_limit.exceeded"

	// Deals
	KeyDealCreated             = "deal.created"
	KeyDealUpdated             = "deal.updated"
	KeyDealDeleted             = "deal.deleted"
	KeyChangeRequestSubmitted  = "deal.change_request_submitted"
	KeyDeleteRequestSubmitted  = "deal.delete_request_submitted"
	KeyTerminationRequested    = "deal.termination_requested"
	KeyDealTerminated          = "deal.terminated"
	KeyContractSigned          = "deal.contract_signed"
	KeyPaymentConfirmed        = "payment.confirmed"
	KeyPaymentPending          = "payment.pending"
	KeyPaymentFailed           = "error.payment_failed"
	KeyProfitDistributionSaved = "profit.distribution_saved"
)
