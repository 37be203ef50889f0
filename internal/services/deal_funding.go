// internal/services/deal_funding.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

// PaymentSession tells the client how to complete a collection.
type PaymentSession struct {
	DealID       uuid.UUID               `json:"deal_id"`
	Operation    models.PaymentOperation `json:"operation"`
	Amount       float64                 `json:"amount"`
	PaymentRef   string                  `json:"payment_ref"`
	CheckoutURL  string                  `json:"checkout_url,omitempty"`
	ClientSecret string                  `json:"client_secret,omitempty"`
	Replayed     bool                    `json:"replayed"`
}

func sessionFrom(dealID uuid.UUID, result *ChargeResult) *PaymentSession {
	return &PaymentSession{
		DealID:       dealID,
		Operation:    result.Attempt.Operation,
		Amount:       result.Attempt.Amount,
		PaymentRef:   result.Attempt.GatewayRef,
		CheckoutURL:  result.Attempt.CheckoutURL,
		ClientSecret: result.Attempt.ClientSecret,
		Replayed:     result.Replayed,
	}
}

// PaymentOutcome is the settled state of a confirmation call.
type PaymentOutcome struct {
	Deal   *models.Deal       `json:"deal"`
	Status ConfirmationStatus `json:"status"`
}

func checkFundable(deal *models.Deal, actor *models.Actor) error {
	if !deal.IsInvestor(actor.UserID) {
		return apperrors.Forbidden("only the deal investor can fund it")
	}
	if err := requireStatus(deal, models.DealStatusAdminApproved); err != nil {
		return err
	}
	if deal.IsPaymentProcessed {
		return apperrors.InvalidState("deal has already been funded")
	}
	return nil
}

// InitiateFunding opens the investor's payment for the full offer amount.
func (s *DealService) InitiateFunding(ctx context.Context, actor *models.Actor, dealID uuid.UUID, platform models.Platform) (*PaymentSession, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !platform.Valid() {
		return nil, apperrors.Validation("platform must be web or mobile")
	}

	release := s.locker.Lock(dealID)
	defer release()

	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := checkFundable(deal, actor); err != nil {
		return nil, err
	}

	result, err := s.orchestrator.Charge(ctx, ChargeRequest{
		DealID:      deal.ID,
		Operation:   models.PaymentOperationFunding,
		Amount:      deal.OfferMoney,
		PayerID:     actor.UserID,
		Platform:    platform,
		Description: "Investment in " + deal.Title,
		At:          s.now(),
	})
	if err != nil {
		return nil, err
	}

	_, err = s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := checkFundable(d.deal, actor); err != nil {
			return err
		}
		d.deal.PaymentIntentRef = result.Attempt.GatewayRef
		d.deal.PaymentStatus = models.PaymentStatusPending
		d.deal.Platform = platform
		return d.audit(ctx, "funding_initiated", result.Attempt.GatewayRef)
	})
	if err != nil {
		return nil, err
	}
	return sessionFrom(dealID, result), nil
}

// ConfirmFunding settles the investor's payment. Success marks the deal
// funded, writes the investment to the ledger and creates the product, all in
// one transaction; the contract is rendered afterwards and a rendering error
// leaves the deal funded with its contract pending.
func (s *DealService) ConfirmFunding(ctx context.Context, actor *models.Actor, dealID uuid.UUID, ref string) (*PaymentOutcome, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	release := s.locker.Lock(dealID)
	defer release()

	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !deal.IsInvestor(actor.UserID) {
		return nil, apperrors.Forbidden("only the deal investor can confirm funding")
	}
	if deal.IsPaymentProcessed {
		return &PaymentOutcome{Deal: deal, Status: ConfirmationSucceeded}, nil
	}
	if ref == "" {
		ref = deal.PaymentIntentRef
	}
	if ref == "" {
		return nil, apperrors.InvalidState("no funding payment has been initiated")
	}

	confirmed, err := s.orchestrator.Confirm(ctx, ref)
	if err != nil {
		return nil, err
	}
	attempt := confirmed.Attempt
	if attempt.DealID != dealID || attempt.Operation != models.PaymentOperationFunding {
		return nil, apperrors.Validation("payment reference does not belong to this deal's funding")
	}

	switch confirmed.Confirmation.Status {
	case ConfirmationPending:
		return &PaymentOutcome{Deal: deal, Status: ConfirmationPending}, nil
	case ConfirmationFailed:
		updated, err := s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
			if d.deal.IsPaymentProcessed {
				d.skipSave = true
				return nil
			}
			d.deal.PaymentStatus = models.PaymentStatusFailed
			return d.audit(ctx, "funding_failed", ref)
		})
		if err != nil {
			return nil, err
		}
		return &PaymentOutcome{Deal: updated, Status: ConfirmationFailed}, nil
	}

	updated, err := s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if d.deal.IsPaymentProcessed {
			d.skipSave = true
			return nil
		}
		if err := requireStatus(d.deal, models.DealStatusAdminApproved); err != nil {
			return err
		}
		if err := s.orchestrator.MarkSucceeded(ctx, d.tx, attempt, d.now); err != nil {
			return err
		}

		d.deal.IsPaymentProcessed = true
		d.deal.PaymentStatus = models.PaymentStatusCompleted
		d.deal.LastProcessedPaymentHash = attempt.Hash
		if paid := confirmed.Confirmation.PaymentRef; paid != "" {
			d.deal.PaymentIntentRef = paid
		}

		investor := *d.deal.InvestorID
		author := d.deal.AuthorID
		if err := d.record(ctx, &models.Transaction{
			TransactionType: models.TransactionTypeInitialInvestment,
			Amount:          attempt.Amount,
			FromUserID:      &investor,
			ToUserID:        &author,
			GatewayRef:      attempt.GatewayRef,
			Description:     "Initial investment",
		}); err != nil {
			return err
		}
		if _, err := s.products.CreateFromDeal(ctx, d.tx, d.deal); err != nil {
			return err
		}

		d.notifyParties(ctx, Notification{
			Content: "Payment of " + money(attempt.Amount) + " for \"" + d.deal.Title + "\" was received.",
			Type:    models.MessageTypePaymentReceived,
		})
		return d.audit(ctx, "funding_confirmed", attempt.GatewayRef)
	})
	if err != nil {
		return nil, err
	}

	if withContract, err := s.issueContract(ctx, actor, dealID); err == nil {
		updated = withContract
	}
	return &PaymentOutcome{Deal: updated, Status: ConfirmationSucceeded}, nil
}

// issueContract renders the first document of a funded deal and asks both
// parties to sign. The caller holds the deal lock.
func (s *DealService) issueContract(ctx context.Context, actor *models.Actor, dealID uuid.UUID) (*models.Deal, error) {
	deal, err := s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if d.deal.HasContract() {
			d.skipSave = true
			return nil
		}
		if err := s.contracts.WithTx(d.tx).Generate(ctx, d.deal, contractTypeFor(d.deal), d.now); err != nil {
			return err
		}
		n := Notification{
			Content:     "The contract for \"" + d.deal.Title + "\" is ready for signature.",
			Type:        models.MessageTypeContractReady,
			ContractURL: d.deal.ContractDocumentURL,
		}
		d.notifyParties(ctx, n)
		return d.audit(ctx, "contract_generated", d.deal.ContractDocumentURL)
	})
	if err != nil {
		s.log.WithError(err).WithField("deal_id", dealID).Error("Funded deal is waiting for its contract")
		return nil, err
	}
	return deal, nil
}

func contractTypeFor(deal *models.Deal) models.ContractType {
	if deal.PreviousDealID != nil {
		return models.ContractTypeRenewal
	}
	return models.ContractTypeInitial
}

// SignContract records one party's signature. The deal activates once both
// parties have signed a funded contract.
func (s *DealService) SignContract(ctx context.Context, actor *models.Actor, dealID uuid.UUID) (*models.Deal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if !d.deal.IsParty(actor.UserID) {
			return apperrors.Forbidden("only the deal parties can sign the contract")
		}
		if err := requireStatus(d.deal, models.DealStatusAdminApproved); err != nil {
			return err
		}
		if !d.deal.IsPaymentProcessed {
			return apperrors.InvalidState("the investment must be funded before signing")
		}

		contracts := s.contracts.WithTx(d.tx)
		rendered := false
		if !d.deal.HasContract() {
			if err := contracts.Generate(ctx, d.deal, contractTypeFor(d.deal), d.now); err != nil {
				return err
			}
			rendered = true
		}

		owner := d.deal.AuthorID == actor.UserID
		party := "investor"
		if owner {
			party = "owner"
		}
		if (owner && d.deal.IsOwnerSigned) || (!owner && d.deal.IsInvestorSigned) {
			d.skipSave = !rendered
			return nil
		}

		if err := contracts.RecordSignature(ctx, d.deal, party, actor.UserID, d.now); err != nil {
			return err
		}
		if owner {
			d.deal.IsOwnerSigned = true
			d.deal.OwnerSignedAt = &d.now
		} else {
			d.deal.IsInvestorSigned = true
			d.deal.InvestorSignedAt = &d.now
		}
		if err := d.audit(ctx, "contract_signed", party); err != nil {
			return err
		}

		if d.deal.IsOwnerSigned && d.deal.IsInvestorSigned {
			return s.activate(ctx, d)
		}

		if other := d.deal.CounterParty(actor.UserID); other != nil {
			d.notify(ctx, *other, Notification{
				Content:     "The other party signed the contract for \"" + d.deal.Title + "\". Your signature is required.",
				Type:        models.MessageTypeSignatureRequired,
				ContractURL: d.deal.ContractDocumentURL,
			})
		}
		return nil
	})
}

func (s *DealService) activate(ctx context.Context, d *dealTx) error {
	if !d.deal.IsOwnerSigned || !d.deal.IsInvestorSigned || !d.deal.IsPaymentProcessed {
		return apperrors.InvalidState("deal cannot be activated before both signatures and funding")
	}
	d.deal.CompletedAt = &d.now
	if err := s.products.SetStatus(ctx, d.tx, d.deal, models.ProductStatusActive); err != nil {
		return err
	}
	d.notifyParties(ctx, Notification{
		Content: "Deal \"" + d.deal.Title + "\" is now active.",
		Type:    models.MessageTypeDealActivated,
	})

	s.log.WithFields(logrus.Fields{
		"deal_id": d.deal.ID,
		"version": d.deal.ContractVersion,
	}).Info("Deal activated")
	return d.transition(ctx, models.DealStatusActive, "activated", "")
}

// VerifyContract checks the stored contract hash against the deal's current terms.
func (s *DealService) VerifyContract(ctx context.Context, actor *models.Actor, dealID uuid.UUID) (*ContractVerification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := requirePartyOrAdmin(deal, actor); err != nil {
		return nil, err
	}
	return s.contracts.Verify(deal)
}
