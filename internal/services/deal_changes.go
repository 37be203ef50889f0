// internal/services/deal_changes.go
package services

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

type EditResult struct {
	Deal          *models.Deal          `json:"deal"`
	Applied       bool                  `json:"applied"`
	ChangeRequest *models.ChangeRequest `json:"change_request,omitempty"`
}

type ChangeResponse struct {
	Deal             *models.Deal          `json:"deal"`
	ChangeRequest    *models.ChangeRequest `json:"change_request"`
	Applied          bool                  `json:"applied"`
	RequiresPayment  bool                  `json:"requires_payment"`
	PaymentDirection string                `json:"payment_direction,omitempty"`
	PaymentAmount    float64               `json:"payment_amount,omitempty"`
}

type ChangePaymentResult struct {
	Deal      *models.Deal    `json:"deal"`
	Direction string          `json:"direction"`
	Session   *PaymentSession `json:"session,omitempty"`
	RefundRef string          `json:"refund_ref,omitempty"`
	Replayed  bool            `json:"replayed"`
}

type DeleteResult struct {
	Deleted       bool                  `json:"deleted"`
	DeleteRequest *models.DeleteRequest `json:"delete_request,omitempty"`
}

func roundPatch(p models.DealTermsPatch) models.DealTermsPatch {
	out := p.Clone()
	for _, v := range []*float64{out.OfferMoney, out.ManufacturingCostPerUnit, out.EstimatedPrice} {
		if v != nil {
			*v = RoundMoney(*v)
		}
	}
	return out
}

// EditDeal changes the commercial terms. Unmatched deals and admin edits apply
// at once; an owner edit of a matched deal becomes a change request the
// investor must approve.
func (s *DealService) EditDeal(ctx context.Context, actor *models.Actor, dealID uuid.UUID, patch models.DealTermsPatch, reason string) (*EditResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperrors.Validation("no changes were provided")
	}
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	patch = roundPatch(patch)

	result := &EditResult{}
	deal, err := s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requireOwnerOrAdmin(d.deal, actor); err != nil {
			return err
		}
		if d.deal.Status.IsTerminal() {
			return apperrors.InvalidState("a closed deal cannot be edited").
				WithDetail("status", string(d.deal.Status))
		}

		if d.deal.InvestorID == nil || actor.IsAdmin {
			result.Applied = true
			return s.editDirectly(ctx, d, patch)
		}

		if d.deal.IsChangePaymentRequired && !d.deal.IsChangePaymentProcessed {
			return apperrors.InvalidState("a change payment is still outstanding")
		}
		cr := &models.ChangeRequest{
			RequestFields: models.RequestFields{
				DealID:      d.deal.ID,
				RequestedBy: actor.UserID,
				Status:      models.RequestStatusPending,
				Reason:      reason,
			},
			OriginalValues:  patch.SnapshotOf(d.deal),
			RequestedValues: patch,
		}
		if err := s.changes.Propose(ctx, d.tx, cr); err != nil {
			return err
		}
		result.ChangeRequest = cr
		d.deal.PendingChangeRequestID = &cr.ID

		d.notify(ctx, *d.deal.InvestorID, Notification{
			Content:         "The owner proposed changes to \"" + d.deal.Title + "\". " + reason,
			Type:            models.MessageTypeEditRequest,
			ChangeRequestID: &cr.ID,
		})
		return d.audit(ctx, "change_requested", reason)
	})
	if err != nil {
		return nil, err
	}
	result.Deal = deal
	return result, nil
}

func (s *DealService) editDirectly(ctx context.Context, d *dealTx, patch models.DealTermsPatch) error {
	patch.Apply(d.deal)
	if !d.actor.IsAdmin {
		d.deal.IsApproved = false
	}
	if d.deal.InvestorID == nil {
		if !d.deal.IsApproved {
			d.notifyAdmins(ctx, Notification{
				Content: "Edited listing \"" + d.deal.Title + "\" needs review.",
				Type:    models.MessageTypeListingReview,
			})
		}
		return d.audit(ctx, "terms_edited", "")
	}

	s.amendContract(ctx, d)
	d.notifyParties(ctx, Notification{
		Content:     "The terms of \"" + d.deal.Title + "\" were amended.",
		Type:        models.MessageTypeDealAmended,
		ContractURL: d.deal.ContractDocumentURL,
	})
	return d.audit(ctx, "terms_amended", "")
}

// RespondToChangeRequest is the investor's answer to a proposed change. An
// approval that moves money on a funded deal only records the payment due;
// the change is applied once that payment settles.
func (s *DealService) RespondToChangeRequest(ctx context.Context, actor *models.Actor, requestID uuid.UUID, approve bool, reason string) (*ChangeResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	found, err := s.changes.Find(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}

	resp := &ChangeResponse{}
	deal, err := s.mutate(ctx, actor, found.DealID, func(ctx context.Context, d *dealTx) error {
		if !actor.IsAdmin && !d.deal.IsInvestor(actor.UserID) {
			return apperrors.Forbidden("only the deal investor can respond to a change request")
		}
		cr, err := s.changes.Find(ctx, d.tx, requestID)
		if err != nil {
			return err
		}
		resp.ChangeRequest = cr

		if !approve {
			if cr.Status == models.RequestStatusPending && cr.RequiresPayment {
				return apperrors.InvalidState("change was approved and its payment is due; it can no longer be rejected").
					WithDetail("payment_direction", cr.PaymentDirection)
			}
			if err := s.changes.Reject(ctx, d.tx, cr, actor.UserID, reason, d.now); err != nil {
				return err
			}
			s.clearChange(d.deal)
			d.notify(ctx, cr.RequestedBy, Notification{
				Content:         "Your proposed changes to \"" + d.deal.Title + "\" were rejected: " + reason,
				Type:            models.MessageTypeEditRejected,
				ChangeRequestID: &cr.ID,
			})
			return d.audit(ctx, "change_rejected", reason)
		}

		if cr.Status != models.RequestStatusPending {
			return apperrors.InvalidState("change request has already been resolved").
				WithDetail("status", string(cr.Status))
		}
		if cr.RequiresPayment {
			d.skipSave = true
			resp.RequiresPayment = true
			resp.PaymentDirection = cr.PaymentDirection
			resp.PaymentAmount = cr.AmountDifference
			return nil
		}

		diff := s.amountDifference(d.deal, cr)
		if diff.Abs().LessThan(decimal.NewFromFloat(s.cfg.ChangeAmountEpsilon)) || !d.deal.IsPaymentProcessed {
			resp.Applied = true
			return s.applyChange(ctx, d, cr)
		}

		direction := models.PaymentDirectionInvestorPays
		payer := *d.deal.InvestorID
		if diff.IsNegative() {
			direction = models.PaymentDirectionOwnerRefunds
			payer = d.deal.AuthorID
		}
		amount := roundCents(diff.Abs()).InexactFloat64()

		cr.AmountDifference = amount
		cr.RequiresPayment = true
		cr.PaymentDirection = direction
		if err := s.changes.Save(ctx, d.tx, cr); err != nil {
			return err
		}

		d.deal.ChangeAmountDifference = roundCents(diff).InexactFloat64()
		d.deal.IsChangePaymentRequired = true
		d.deal.IsChangePaymentProcessed = false
		d.deal.ChangePaymentRef = ""

		resp.RequiresPayment = true
		resp.PaymentDirection = direction
		resp.PaymentAmount = amount

		d.notify(ctx, payer, Notification{
			Content:         "A payment of " + money(amount) + " is required before the changes to \"" + d.deal.Title + "\" take effect.",
			Type:            models.MessageTypeChangePaymentRequired,
			ChangeRequestID: &cr.ID,
		})
		return d.audit(ctx, "change_payment_required", direction)
	})
	if err != nil {
		return nil, err
	}
	resp.Deal = deal
	return resp, nil
}

func (s *DealService) amountDifference(deal *models.Deal, cr *models.ChangeRequest) decimal.Decimal {
	if cr.RequestedValues.OfferMoney == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*cr.RequestedValues.OfferMoney).Sub(decimal.NewFromFloat(deal.OfferMoney))
}

func (s *DealService) clearChange(deal *models.Deal) {
	deal.PendingChangeRequestID = nil
	deal.IsChangePaymentRequired = false
	deal.ChangeAmountDifference = 0
	deal.ChangePaymentRef = ""
}

// applyChange writes the requested terms, approves the request and moves the
// contract to its next version.
func (s *DealService) applyChange(ctx context.Context, d *dealTx, cr *models.ChangeRequest) error {
	err := s.changes.Approve(ctx, d.tx, cr, d.actor.UserID, d.now, func(cr *models.ChangeRequest) error {
		cr.RequestedValues.Apply(d.deal)
		cr.IsApplied = true
		cr.AppliedAt = &d.now
		return nil
	})
	if err != nil {
		return err
	}

	d.deal.PendingChangeRequestID = nil
	d.deal.IsChangePaymentRequired = false
	s.amendContract(ctx, d)

	d.notify(ctx, cr.RequestedBy, Notification{
		Content:         "Your proposed changes to \"" + d.deal.Title + "\" were approved.",
		Type:            models.MessageTypeEditApproved,
		ChangeRequestID: &cr.ID,
	})
	d.notifyParties(ctx, Notification{
		Content:         "The terms of \"" + d.deal.Title + "\" were amended.",
		Type:            models.MessageTypeDealAmended,
		ChangeRequestID: &cr.ID,
		ContractURL:     d.deal.ContractDocumentURL,
	})
	return d.audit(ctx, "change_applied", cr.ID.String())
}

// amendContract moves the deal to its next contract version. A funded deal
// that is still collecting signatures needs both parties to sign the new one.
func (s *DealService) amendContract(ctx context.Context, d *dealTx) {
	resign := d.deal.Status != models.DealStatusActive && d.deal.IsPaymentProcessed
	// A failed render leaves the new version with its document pending.
	_ = s.contracts.WithTx(d.tx).Amend(ctx, d.deal, models.ContractTypeAmendment, d.now)
	if resign {
		d.notifyParties(ctx, Notification{
			Content:     "The contract for \"" + d.deal.Title + "\" changed. Please sign version " + strconv.Itoa(d.deal.ContractVersion) + ".",
			Type:        models.MessageTypeSignatureRequired,
			ContractURL: d.deal.ContractDocumentURL,
		})
	}
}

func (s *DealService) pendingPaidChange(ctx context.Context, deal *models.Deal) (*models.ChangeRequest, error) {
	if !deal.IsChangePaymentRequired || deal.IsChangePaymentProcessed {
		return nil, apperrors.InvalidState("no change payment is required")
	}
	cr, err := s.changes.Pending(ctx, s.db, deal.ID)
	if err != nil {
		return nil, err
	}
	if cr == nil || !cr.RequiresPayment {
		return nil, apperrors.InvalidState("no change payment is required")
	}
	return cr, nil
}

// ProcessChangePayment settles the money side of an approved change. When the
// investor owes the difference a payment session is opened; when the amount
// went down the difference is refunded from the original investment and the
// change applies immediately.
func (s *DealService) ProcessChangePayment(ctx context.Context, actor *models.Actor, dealID uuid.UUID, platform models.Platform) (*ChangePaymentResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	release := s.locker.Lock(dealID)
	defer release()

	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	cr, err := s.pendingPaidChange(ctx, deal)
	if err != nil {
		return nil, err
	}

	if cr.PaymentDirection == models.PaymentDirectionInvestorPays {
		return s.chargeChange(ctx, actor, deal, cr, platform)
	}
	return s.refundChange(ctx, actor, deal, cr)
}

func (s *DealService) chargeChange(ctx context.Context, actor *models.Actor, deal *models.Deal, cr *models.ChangeRequest, platform models.Platform) (*ChangePaymentResult, error) {
	if !deal.IsInvestor(actor.UserID) {
		return nil, apperrors.Forbidden("only the deal investor can pay for this change")
	}
	if !platform.Valid() {
		return nil, apperrors.Validation("platform must be web or mobile")
	}

	result, err := s.orchestrator.Charge(ctx, ChargeRequest{
		DealID:      deal.ID,
		Operation:   models.PaymentOperationChangePayment,
		Amount:      cr.AmountDifference,
		PayerID:     actor.UserID,
		Platform:    platform,
		Description: "Additional investment in " + deal.Title,
		At:          s.now(),
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.apply(ctx, actor, deal.ID, func(ctx context.Context, d *dealTx) error {
		if !d.deal.IsChangePaymentRequired || d.deal.IsChangePaymentProcessed {
			return apperrors.InvalidState("no change payment is required")
		}
		d.deal.ChangePaymentRef = result.Attempt.GatewayRef
		return d.audit(ctx, "change_payment_initiated", result.Attempt.GatewayRef)
	})
	if err != nil {
		return nil, err
	}
	return &ChangePaymentResult{
		Deal:      updated,
		Direction: cr.PaymentDirection,
		Session:   sessionFrom(deal.ID, result),
		Replayed:  result.Replayed,
	}, nil
}

func (s *DealService) refundChange(ctx context.Context, actor *models.Actor, deal *models.Deal, cr *models.ChangeRequest) (*ChangePaymentResult, error) {
	if err := requireOwnerOrAdmin(deal, actor); err != nil {
		return nil, err
	}

	result, err := s.orchestrator.Refund(ctx, DisbursementRequest{
		DealID:      deal.ID,
		Operation:   models.PaymentOperationChangeRefund,
		Amount:      cr.AmountDifference,
		RecipientID: *deal.InvestorID,
		PaymentRef:  deal.PaymentIntentRef,
		Reason:      "change_request",
		Scope:       cr.ID.String(),
		At:          s.now(),
	})
	if err != nil {
		return nil, err
	}
	attempt := result.Attempt

	updated, err := s.apply(ctx, actor, deal.ID, func(ctx context.Context, d *dealTx) error {
		if d.deal.IsChangePaymentProcessed {
			d.skipSave = true
			return nil
		}
		current, err := s.changes.Find(ctx, d.tx, cr.ID)
		if err != nil {
			return err
		}
		if err := s.applyChange(ctx, d, current); err != nil {
			return err
		}
		d.deal.IsChangePaymentProcessed = true
		d.deal.LastProcessedPaymentHash = attempt.Hash
		d.deal.ChangePaymentRef = attempt.GatewayRef

		investor := *d.deal.InvestorID
		author := d.deal.AuthorID
		if err := d.record(ctx, &models.Transaction{
			TransactionType: models.TransactionTypeRefund,
			Amount:          attempt.Amount,
			FromUserID:      &author,
			ToUserID:        &investor,
			GatewayRef:      attempt.GatewayRef,
			Description:     "Refund of reduced investment",
		}); err != nil {
			return err
		}
		return s.payments.WithTx(d.tx).LogRefund(ctx, &models.PaymentRefundLog{
			DealID:     d.deal.ID,
			PaymentRef: d.deal.PaymentIntentRef,
			RefundRef:  attempt.GatewayRef,
			Amount:     attempt.Amount,
			Multiplier: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return &ChangePaymentResult{
		Deal:      updated,
		Direction: cr.PaymentDirection,
		RefundRef: attempt.GatewayRef,
		Replayed:  result.Replayed,
	}, nil
}

// ConfirmChangePayment applies the change once the investor's extra payment
// has settled. Repeating it after success returns the amended deal.
func (s *DealService) ConfirmChangePayment(ctx context.Context, actor *models.Actor, dealID uuid.UUID, ref string) (*PaymentOutcome, error) {
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
		return nil, apperrors.Forbidden("only the deal investor can confirm a change payment")
	}
	if !deal.IsChangePaymentRequired {
		return s.settledChangePayment(ctx, deal, ref)
	}
	if ref == "" {
		ref = deal.ChangePaymentRef
	}
	if ref == "" {
		return nil, apperrors.InvalidState("no change payment has been initiated")
	}

	confirmed, err := s.orchestrator.Confirm(ctx, ref)
	if err != nil {
		return nil, err
	}
	attempt := confirmed.Attempt
	if attempt.DealID != dealID || attempt.Operation != models.PaymentOperationChangePayment {
		return nil, apperrors.Validation("payment reference does not belong to this deal's change payment")
	}
	if confirmed.Confirmation.Status != ConfirmationSucceeded {
		return &PaymentOutcome{Deal: deal, Status: confirmed.Confirmation.Status}, nil
	}

	updated, err := s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if d.deal.IsChangePaymentProcessed || !d.deal.IsChangePaymentRequired {
			d.skipSave = true
			return nil
		}
		cr, err := s.changes.Pending(ctx, d.tx, d.deal.ID)
		if err != nil {
			return err
		}
		if cr == nil {
			return apperrors.InvalidState("no change request is waiting for payment")
		}
		if err := s.orchestrator.MarkSucceeded(ctx, d.tx, attempt, d.now); err != nil {
			return err
		}
		if err := s.applyChange(ctx, d, cr); err != nil {
			return err
		}
		d.deal.IsChangePaymentProcessed = true
		d.deal.LastProcessedPaymentHash = attempt.Hash
		d.deal.ChangePaymentRef = attempt.GatewayRef

		investor := *d.deal.InvestorID
		author := d.deal.AuthorID
		return d.record(ctx, &models.Transaction{
			TransactionType: models.TransactionTypeChangePayment,
			Amount:          attempt.Amount,
			FromUserID:      &investor,
			ToUserID:        &author,
			GatewayRef:      attempt.GatewayRef,
			Description:     "Additional investment for approved change",
		})
	})
	if err != nil {
		return nil, err
	}
	return &PaymentOutcome{Deal: updated, Status: ConfirmationSucceeded}, nil
}

// settledChangePayment answers a confirmation that arrives after the change
// was applied. Success is only reported for a reference that was reconciled
// as this deal's change payment.
func (s *DealService) settledChangePayment(ctx context.Context, deal *models.Deal, ref string) (*PaymentOutcome, error) {
	if !deal.IsChangePaymentProcessed {
		return nil, apperrors.InvalidState("no change payment is required")
	}
	if ref == "" || ref == deal.ChangePaymentRef {
		return &PaymentOutcome{Deal: deal, Status: ConfirmationSucceeded}, nil
	}
	attempt, err := s.payments.FindAttemptByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if attempt.DealID != deal.ID || attempt.Operation != models.PaymentOperationChangePayment ||
		attempt.Status != models.PaymentAttemptSucceeded {
		return nil, apperrors.InvalidState("payment reference was not reconciled with this deal").
			WithDetail("payment_ref", ref)
	}
	return &PaymentOutcome{Deal: deal, Status: ConfirmationSucceeded}, nil
}

// DeleteDeal removes an unfunded deal, directly when no investor is linked or
// the caller is an admin, otherwise through a delete request.
func (s *DealService) DeleteDeal(ctx context.Context, actor *models.Actor, dealID uuid.UUID, reason string) (*DeleteResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	_, err := s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requireOwnerOrAdmin(d.deal, actor); err != nil {
			return err
		}
		if err := ensureDeletable(d.deal); err != nil {
			return err
		}

		if d.deal.InvestorID == nil || actor.IsAdmin {
			result.Deleted = true
			return s.removeDeal(ctx, d, reason)
		}

		req := &models.DeleteRequest{
			RequestFields: models.RequestFields{
				DealID:      d.deal.ID,
				RequestedBy: actor.UserID,
				Status:      models.RequestStatusPending,
				Reason:      reason,
			},
		}
		if err := s.deletes.Propose(ctx, d.tx, req); err != nil {
			return err
		}
		result.DeleteRequest = req

		d.notify(ctx, *d.deal.InvestorID, Notification{
			Content:         "The owner asked to delete \"" + d.deal.Title + "\". " + reason,
			Type:            models.MessageTypeDeleteRequest,
			DeleteRequestID: &req.ID,
		})
		return d.audit(ctx, "delete_requested", reason)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func ensureDeletable(deal *models.Deal) error {
	if deal.IsPaymentProcessed || deal.Status == models.DealStatusActive {
		return apperrors.InvalidState("a funded deal cannot be deleted, terminate it instead")
	}
	return nil
}

func (s *DealService) removeDeal(ctx context.Context, d *dealTx, reason string) error {
	if err := d.audit(ctx, "deleted", reason); err != nil {
		return err
	}
	if d.deal.InvestorID != nil && !d.deal.IsInvestor(d.actor.UserID) {
		d.notify(ctx, *d.deal.InvestorID, Notification{
			Content: "Deal \"" + d.deal.Title + "\" was deleted.",
			Type:    models.MessageTypeDeleteApproved,
		})
	}
	if err := s.deals.WithTx(d.tx).Delete(ctx, d.deal); err != nil {
		return err
	}
	d.deleted = true

	deal := *d.deal
	d.afterCommit(func(ctx context.Context) {
		s.contracts.RemoveDocuments(ctx, &deal)
		s.removeImages(ctx, &deal)
	})
	return nil
}

// removeImages deletes the listing pictures this service stored itself.
func (s *DealService) removeImages(ctx context.Context, deal *models.Deal) {
	prefix := "deals/" + deal.ID.String() + "/"
	for _, raw := range deal.ImageURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		key := strings.TrimPrefix(u.Path, "/")
		if i := strings.Index(key, prefix); i >= 0 {
			key = key[i:]
		} else {
			continue
		}
		if err := s.files.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("deal_id", deal.ID).Warn("Failed to delete deal image")
		}
	}
}

// RespondToDeleteRequest is the investor's answer to a delete request.
func (s *DealService) RespondToDeleteRequest(ctx context.Context, actor *models.Actor, requestID uuid.UUID, approve bool, reason string) (*DeleteResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	found, err := s.deletes.Find(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	_, err = s.mutate(ctx, actor, found.DealID, func(ctx context.Context, d *dealTx) error {
		if !actor.IsAdmin && !d.deal.IsInvestor(actor.UserID) {
			return apperrors.Forbidden("only the deal investor can respond to a delete request")
		}
		req, err := s.deletes.Find(ctx, d.tx, requestID)
		if err != nil {
			return err
		}
		result.DeleteRequest = req

		if !approve {
			if err := s.deletes.Reject(ctx, d.tx, req, actor.UserID, reason, d.now); err != nil {
				return err
			}
			d.notify(ctx, req.RequestedBy, Notification{
				Content:         "Your request to delete \"" + d.deal.Title + "\" was rejected: " + reason,
				Type:            models.MessageTypeDeleteRejected,
				DeleteRequestID: &req.ID,
			})
			return d.audit(ctx, "delete_rejected", reason)
		}

		if err := ensureDeletable(d.deal); err != nil {
			return err
		}
		err = s.deletes.Approve(ctx, d.tx, req, actor.UserID, d.now, func(*models.DeleteRequest) error {
			d.notify(ctx, req.RequestedBy, Notification{
				Content:         "Your request to delete \"" + d.deal.Title + "\" was approved.",
				Type:            models.MessageTypeDeleteApproved,
				DeleteRequestID: &req.ID,
			})
			return s.removeDeal(ctx, d, req.Reason)
		})
		if err != nil {
			return err
		}
		result.Deleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
