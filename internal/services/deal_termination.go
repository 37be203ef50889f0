// internal/services/deal_termination.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

type TerminationResult struct {
	Deal                 *models.Deal               `json:"deal"`
	Terminated           bool                       `json:"terminated"`
	Request              *models.TerminationRequest `json:"termination_request,omitempty"`
	CapitalReturn        *CapitalReturn             `json:"capital_return,omitempty"`
	CapitalReturnPending bool                       `json:"capital_return_pending"`
	CapitalReturnError   string                     `json:"capital_return_error,omitempty"`
}

type RenewalResult struct {
	Deal    *models.Deal `json:"deal"`
	Renewed *models.Deal `json:"renewed,omitempty"`
}

// RequestTermination records a party's wish to end an active deal. The deal
// terminates once both parties have asked, or at once when an admin asks.
func (s *DealService) RequestTermination(ctx context.Context, actor *models.Actor, dealID uuid.UUID, reason string, endReason models.DealEndReason) (*TerminationResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.IsAdmin {
		if endReason == models.EndReasonNone {
			endReason = models.EndReasonAdminTerminated
		}
		if _, err := s.policy.Rule(endReason); err != nil {
			return nil, apperrors.Validation("unsupported end reason").WithDetail("end_reason", string(endReason))
		}
	}

	release := s.locker.Lock(dealID)
	defer release()

	result := &TerminationResult{}
	deal, err := s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requirePartyOrAdmin(d.deal, actor); err != nil {
			return err
		}
		if err := requireStatus(d.deal, models.DealStatusActive); err != nil {
			return err
		}

		if actor.IsAdmin {
			d.deal.TerminationReason = reason
			return s.executeTermination(ctx, d, endReason, reason, result)
		}

		owner := d.deal.AuthorID == actor.UserID
		if (owner && d.deal.TerminationRequestedByOwner) || (!owner && d.deal.TerminationRequestedByInvestor) {
			return apperrors.Conflict("termination has already been requested by this party")
		}
		markTerminationRequested(d, owner)
		d.deal.TerminationReason = reason

		if d.deal.TerminationRequestedByOwner && d.deal.TerminationRequestedByInvestor {
			return s.executeTermination(ctx, d, models.EndReasonMutualAgreement, reason, result)
		}

		req := &models.TerminationRequest{
			RequestFields: models.RequestFields{
				DealID:      d.deal.ID,
				RequestedBy: actor.UserID,
				Status:      models.RequestStatusPending,
				Reason:      reason,
			},
		}
		if err := s.terminations.Propose(ctx, d.tx, req); err != nil {
			return err
		}
		result.Request = req

		if other := d.deal.CounterParty(actor.UserID); other != nil {
			d.notify(ctx, *other, Notification{
				Content: "The other party asked to terminate \"" + d.deal.Title + "\": " + reason,
				Type:    models.MessageTypeTerminationRequest,
			})
		}
		return d.audit(ctx, "termination_requested", reason)
	})
	if err != nil {
		return nil, err
	}
	return s.finishTermination(ctx, actor, deal, result), nil
}

func markTerminationRequested(d *dealTx, owner bool) {
	if owner {
		d.deal.TerminationRequestedByOwner = true
		d.deal.OwnerTerminationRequestedAt = &d.now
		return
	}
	d.deal.TerminationRequestedByInvestor = true
	d.deal.InvestorTerminationRequestedAt = &d.now
}

// RespondToTermination is the counter-party's answer to a termination
// request. Approval terminates by mutual agreement; rejection escalates the
// dispute to the admins.
func (s *DealService) RespondToTermination(ctx context.Context, actor *models.Actor, dealID uuid.UUID, approve bool, reason string) (*TerminationResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	release := s.locker.Lock(dealID)
	defer release()

	result := &TerminationResult{}
	deal, err := s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if !d.deal.IsParty(actor.UserID) {
			return apperrors.Forbidden("only the deal parties can respond to a termination request")
		}
		if err := requireStatus(d.deal, models.DealStatusActive); err != nil {
			return err
		}
		req, err := s.terminations.Pending(ctx, d.tx, d.deal.ID)
		if err != nil {
			return err
		}
		if req == nil || req.RequestedBy == actor.UserID {
			return apperrors.InvalidState("no termination request is waiting for your response")
		}
		result.Request = req

		if approve {
			markTerminationRequested(d, d.deal.AuthorID == actor.UserID)
			return s.executeTermination(ctx, d, models.EndReasonMutualAgreement, d.deal.TerminationReason, result)
		}

		if req.EscalatedToAdmin {
			return apperrors.InvalidState("termination request was already escalated to the platform").
				WithDetail("request_id", req.ID)
		}
		req.EscalatedToAdmin = true
		if err := s.terminations.Save(ctx, d.tx, req); err != nil {
			return err
		}
		d.deal.IsTerminationEscalatedToAdmin = true

		d.notify(ctx, req.RequestedBy, Notification{
			Content: "Your termination request for \"" + d.deal.Title + "\" was declined and sent to the platform for review.",
			Type:    models.MessageTypeTerminationRejected,
		})
		d.notifyAdmins(ctx, Notification{
			Content: "A termination dispute on \"" + d.deal.Title + "\" needs a decision: " + reason,
			Type:    models.MessageTypeTerminationEscalated,
		})
		return d.audit(ctx, "termination_escalated", reason)
	})
	if err != nil {
		return nil, err
	}
	return s.finishTermination(ctx, actor, deal, result), nil
}

// AdminResolveTermination settles an escalated termination dispute.
func (s *DealService) AdminResolveTermination(ctx context.Context, actor *models.Actor, dealID uuid.UUID, approve bool, reason string, endReason models.DealEndReason) (*TerminationResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if endReason == models.EndReasonNone {
		endReason = models.EndReasonAdminTerminated
	}
	if _, err := s.policy.Rule(endReason); err != nil {
		return nil, apperrors.Validation("unsupported end reason").WithDetail("end_reason", string(endReason))
	}

	release := s.locker.Lock(dealID)
	defer release()

	result := &TerminationResult{}
	deal, err := s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requireStatus(d.deal, models.DealStatusActive); err != nil {
			return err
		}
		if approve {
			if reason != "" {
				d.deal.TerminationReason = reason
			}
			return s.executeTermination(ctx, d, endReason, reason, result)
		}

		req, err := s.terminations.Pending(ctx, d.tx, d.deal.ID)
		if err != nil {
			return err
		}
		if req != nil {
			if err := s.terminations.Reject(ctx, d.tx, req, actor.UserID, reason, d.now); err != nil {
				return err
			}
			result.Request = req
		}

		d.deal.TerminationRequestedByOwner = false
		d.deal.OwnerTerminationRequestedAt = nil
		d.deal.TerminationRequestedByInvestor = false
		d.deal.InvestorTerminationRequestedAt = nil
		d.deal.IsTerminationEscalatedToAdmin = false
		d.deal.TerminationReason = ""

		d.notifyParties(ctx, Notification{
			Content: "The platform decided \"" + d.deal.Title + "\" continues: " + reason,
			Type:    models.MessageTypeTerminationRejected,
		})
		return d.audit(ctx, "termination_dismissed", reason)
	})
	if err != nil {
		return nil, err
	}
	return s.finishTermination(ctx, actor, deal, result), nil
}

// executeTermination ends the deal and fixes the capital owed to the
// investor. The refund itself runs after commit.
func (s *DealService) executeTermination(ctx context.Context, d *dealTx, reason models.DealEndReason, note string, result *TerminationResult) error {
	capital, err := s.policy.Compute(d.deal, reason, d.now)
	if err != nil {
		return apperrors.Validation(err.Error())
	}

	pending, err := s.terminations.Pending(ctx, d.tx, d.deal.ID)
	if err != nil {
		return err
	}
	if pending != nil {
		if err := s.terminations.Approve(ctx, d.tx, pending, d.actor.UserID, d.now, nil); err != nil {
			return err
		}
		result.Request = pending
	}

	d.deal.ActualEndDate = &d.now
	d.deal.EndReason = reason
	d.deal.CapitalReturnAmount = capital.Amount
	d.deal.IsTerminationEscalatedToAdmin = false
	if err := s.products.SetStatus(ctx, d.tx, d.deal, models.ProductStatusSuspended); err != nil {
		return err
	}

	d.notifyParties(ctx, Notification{
		Content: "Deal \"" + d.deal.Title + "\" was terminated (" + string(reason) + "). Capital to return: " + money(capital.Amount) + ".",
		Type:    models.MessageTypeDealTerminated,
	})

	result.Terminated = true
	result.CapitalReturn = capital
	return d.transition(ctx, models.DealStatusTerminated, "terminated", note)
}

// finishTermination attempts the capital return of a freshly terminated
// deal. A gateway failure leaves the deal terminated with the return pending.
func (s *DealService) finishTermination(ctx context.Context, actor *models.Actor, deal *models.Deal, result *TerminationResult) *TerminationResult {
	result.Deal = deal
	if !result.Terminated || deal.CapitalReturnAmount <= 0 || deal.IsCapitalReturned {
		return result
	}

	settled, err := s.settleCapitalReturn(ctx, actor, deal)
	if err != nil {
		result.CapitalReturnPending = true
		result.CapitalReturnError = err.Error()
		return result
	}
	result.Deal = settled
	return result
}

// settleCapitalReturn refunds the fixed capital amount from the investment.
// The hash is bucketed on the termination date, so retries never pay twice.
func (s *DealService) settleCapitalReturn(ctx context.Context, actor *models.Actor, deal *models.Deal) (*models.Deal, error) {
	if deal.InvestorID == nil || deal.ActualEndDate == nil {
		return nil, apperrors.InvalidState("deal has no capital to return")
	}

	res, err := s.orchestrator.Refund(ctx, DisbursementRequest{
		DealID:      deal.ID,
		Operation:   models.PaymentOperationCapitalReturn,
		Amount:      deal.CapitalReturnAmount,
		RecipientID: *deal.InvestorID,
		PaymentRef:  deal.PaymentIntentRef,
		Reason:      string(deal.EndReason),
		At:          *deal.ActualEndDate,
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"deal_id": deal.ID,
			"amount":  deal.CapitalReturnAmount,
		}).Error("Capital return failed, deal stays terminated with the return pending")
		return nil, err
	}
	attempt := res.Attempt

	return s.apply(ctx, actor, deal.ID, func(ctx context.Context, d *dealTx) error {
		if d.deal.IsCapitalReturned {
			d.skipSave = true
			return nil
		}
		d.deal.IsCapitalReturned = true
		d.deal.CapitalReturnRef = attempt.GatewayRef

		investor := *d.deal.InvestorID
		author := d.deal.AuthorID
		if err := d.record(ctx, &models.Transaction{
			TransactionType: models.TransactionTypeCapitalReturn,
			Amount:          attempt.Amount,
			FromUserID:      &author,
			ToUserID:        &investor,
			GatewayRef:      attempt.GatewayRef,
			Description:     "Capital return on termination",
		}); err != nil {
			return err
		}
		if err := s.payments.WithTx(d.tx).LogRefund(ctx, &models.PaymentRefundLog{
			DealID:     d.deal.ID,
			PaymentRef: d.deal.PaymentIntentRef,
			RefundRef:  attempt.GatewayRef,
			Amount:     attempt.Amount,
			Reason:     d.deal.EndReason,
			Multiplier: returnMultiplier(d.deal),
		}); err != nil {
			return err
		}

		d.notifyParties(ctx, Notification{
			Content: money(attempt.Amount) + " of capital was returned to the investor of \"" + d.deal.Title + "\".",
			Type:    models.MessageTypeCapitalReturn,
		})
		return d.audit(ctx, "capital_returned", attempt.GatewayRef)
	})
}

func returnMultiplier(deal *models.Deal) float64 {
	if deal.OfferMoney <= 0 {
		return 0
	}
	return decimal.NewFromFloat(deal.CapitalReturnAmount).
		Div(decimal.NewFromFloat(deal.OfferMoney)).
		Round(4).InexactFloat64()
}

// RetryCapitalReturn re-attempts a capital return that failed at termination.
func (s *DealService) RetryCapitalReturn(ctx context.Context, actor *models.Actor, dealID uuid.UUID) (*models.Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	release := s.locker.Lock(dealID)
	defer release()

	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(deal, models.DealStatusTerminated); err != nil {
		return nil, err
	}
	if deal.IsCapitalReturned {
		return deal, nil
	}
	if deal.CapitalReturnAmount <= 0 {
		return nil, apperrors.InvalidState("deal has no capital to return")
	}
	return s.settleCapitalReturn(ctx, actor, deal)
}

// CompleteDeal closes an active deal at the end of its term.
func (s *DealService) CompleteDeal(ctx context.Context, actor *models.Actor, dealID uuid.UUID, note string) (*models.Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requireStatus(d.deal, models.DealStatusActive); err != nil {
			return err
		}
		return s.complete(ctx, d, note)
	})
}

func (s *DealService) complete(ctx context.Context, d *dealTx, note string) error {
	d.deal.ActualEndDate = &d.now
	d.deal.EndReason = models.EndReasonCompleted
	d.deal.CapitalReturnAmount = 0
	if err := s.products.SetStatus(ctx, d.tx, d.deal, models.ProductStatusSuspended); err != nil {
		return err
	}
	d.notifyParties(ctx, Notification{
		Content: "Deal \"" + d.deal.Title + "\" has completed its term.",
		Type:    models.MessageTypeDealCompleted,
	})
	return d.transition(ctx, models.DealStatusCompleted, "completed", note)
}

// RequestRenewal records a party's wish to continue a closed deal. When both
// parties agree, or an admin asks, a fresh deal is opened for admin approval
// and the old one is marked renewed.
func (s *DealService) RequestRenewal(ctx context.Context, actor *models.Actor, dealID uuid.UUID) (*RenewalResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	result := &RenewalResult{}
	deal, err := s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requirePartyOrAdmin(d.deal, actor); err != nil {
			return err
		}
		if err := requireStatus(d.deal, models.DealStatusCompleted, models.DealStatusTerminated); err != nil {
			return err
		}
		if d.deal.InvestorID == nil {
			return apperrors.InvalidState("deal has no investor to renew with")
		}

		if d.deal.IsParty(actor.UserID) {
			owner := d.deal.AuthorID == actor.UserID
			if (owner && d.deal.RenewalRequestedByOwner) || (!owner && d.deal.RenewalRequestedByInvestor) {
				return apperrors.Conflict("renewal has already been requested by this party")
			}
			if owner {
				d.deal.RenewalRequestedByOwner = true
			} else {
				d.deal.RenewalRequestedByInvestor = true
			}
		}

		if !actor.IsAdmin && !(d.deal.RenewalRequestedByOwner && d.deal.RenewalRequestedByInvestor) {
			if other := d.deal.CounterParty(actor.UserID); other != nil {
				d.notify(ctx, *other, Notification{
					Content: "The other party would like to renew \"" + d.deal.Title + "\".",
					Type:    models.MessageTypeRenewalRequest,
				})
			}
			return d.audit(ctx, "renewal_requested", "")
		}

		renewed, err := s.renew(ctx, d)
		if err != nil {
			return err
		}
		result.Renewed = renewed
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Deal = deal
	return result, nil
}

func (s *DealService) renew(ctx context.Context, d *dealTx) (*models.Deal, error) {
	old := d.deal
	investor := *old.InvestorID
	renewed := &models.Deal{
		AuthorID:                    old.AuthorID,
		InvestorID:                  &investor,
		Title:                       old.Title,
		Description:                 old.Description,
		ImageURLs:                   append([]string(nil), old.ImageURLs...),
		OfferMoney:                  old.OfferMoney,
		OfferDealPercent:            old.OfferDealPercent,
		ManufacturingCostPerUnit:    old.ManufacturingCostPerUnit,
		EstimatedPrice:              old.EstimatedPrice,
		DurationInMonths:            old.DurationInMonths,
		PlatformFeePercent:          old.PlatformFeePercent,
		Status:                      models.DealStatusOwnerAccepted,
		IsApproved:                  true,
		IsVisible:                   false,
		AcceptedByOwnerAt:           &d.now,
		PreviousDealID:              &old.ID,
		ContractVersion:             old.ContractVersion + 1,
		ContractType:                models.ContractTypeRenewal,
		PreviousContractDocumentURL: old.ContractDocumentURL,
	}

	repo := s.deals.WithTx(d.tx)
	if err := repo.Create(ctx, renewed); err != nil {
		return nil, err
	}
	if err := repo.RecordTransition(ctx, &models.DealAuditLog{
		DealID:   renewed.ID,
		ActorID:  d.actor.UserID,
		Action:   "created_by_renewal",
		ToStatus: renewed.Status,
		Note:     old.ID.String(),
	}); err != nil {
		return nil, err
	}

	old.RenewedDealID = &renewed.ID
	d.notifyParties(ctx, Notification{
		Content: "Deal \"" + old.Title + "\" was renewed and awaits platform approval.",
		Type:    models.MessageTypeDealRenewed,
	})
	s.notifier.BroadcastToAdmins(ctx, d.tx, Notification{
		DealID:  renewed.ID,
		Content: "Renewed deal \"" + renewed.Title + "\" needs approval.",
		Type:    models.MessageTypeApprovalRequired,
	})

	s.log.WithFields(logrus.Fields{
		"deal_id":         old.ID,
		"renewed_deal_id": renewed.ID,
	}).Info("Deal renewed")
	return renewed, d.transition(ctx, models.DealStatusRenewed, "renewed", renewed.ID.String())
}

// ExpireStaleListings closes unmatched listings older than the listing TTL.
func (s *DealService) ExpireStaleListings(ctx context.Context) (int, error) {
	actor := s.systemActor(ctx)
	cutoff := s.now().Add(-time.Duration(s.cfg.ListingTTLDays) * 24 * time.Hour)

	stale, err := s.deals.ListStaleListings(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, deal := range stale {
		changed := false
		_, err := s.mutate(ctx, actor, deal.ID, func(ctx context.Context, d *dealTx) error {
			if d.deal.Status != models.DealStatusPending || d.deal.InvestorID != nil ||
				d.deal.PendingInvestorID != nil || !d.deal.CreatedAt.Before(cutoff) {
				d.skipSave = true
				return nil
			}
			d.deal.ActualEndDate = &d.now
			d.deal.EndReason = models.EndReasonExpired
			d.deal.IsVisible = false
			d.notify(ctx, d.deal.AuthorID, Notification{
				Content: "Your listing \"" + d.deal.Title + "\" expired without an investor.",
				Type:    models.MessageTypeListingReview,
			})
			changed = true
			return d.transition(ctx, models.DealStatusExpired, "expired", "")
		})
		if err != nil {
			s.log.WithError(err).WithField("deal_id", deal.ID).Warn("Failed to expire listing")
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

// CompleteElapsedDeals completes every active deal whose term has ended.
func (s *DealService) CompleteElapsedDeals(ctx context.Context) (int, error) {
	actor := s.systemActor(ctx)
	active, err := s.deals.ListByStatus(ctx, models.DealStatusActive)
	if err != nil {
		return 0, err
	}

	completed := 0
	now := s.now()
	for _, deal := range active {
		end := deal.ScheduledEndDate()
		if end == nil || end.After(now) {
			continue
		}
		changed := false
		_, err := s.mutate(ctx, actor, deal.ID, func(ctx context.Context, d *dealTx) error {
			if d.deal.Status != models.DealStatusActive {
				d.skipSave = true
				return nil
			}
			changed = true
			return s.complete(ctx, d, "term elapsed")
		})
		if err != nil {
			s.log.WithError(err).WithField("deal_id", deal.ID).Warn("Failed to complete elapsed deal")
			continue
		}
		if changed {
			completed++
		}
	}
	return completed, nil
}
