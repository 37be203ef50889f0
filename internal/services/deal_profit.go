// internal/services/deal_profit.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

type ProfitDistributionInput struct {
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	OtherCosts float64   `json:"other_costs" validate:"gte=0"`
	Notes      string    `json:"notes" validate:"max=2000"`
}

type ProfitPayout struct {
	Distribution        *models.ProfitDistribution `json:"distribution"`
	InvestorTransferRef string                     `json:"investor_transfer_ref,omitempty"`
	OwnerTransferRef    string                     `json:"owner_transfer_ref,omitempty"`
}

func fillDistribution(dist *models.ProfitDistribution, result *ProfitResult) {
	dist.StartDate = result.StartDate
	dist.EndDate = result.EndDate
	dist.TotalRevenue = result.TotalRevenue
	dist.TotalQuantitySold = result.TotalQuantitySold
	dist.ManufacturingCost = result.ManufacturingCost
	dist.OtherCosts = result.OtherCosts
	dist.NetProfit = result.NetProfit
	dist.PlatformFee = result.PlatformFee
	dist.InvestorShare = result.InvestorShare
	dist.OwnerShare = result.OwnerShare
}

func requireDistributable(deal *models.Deal) error {
	if deal.InvestorID == nil || !deal.IsPaymentProcessed {
		return apperrors.InvalidState("deal has not been funded")
	}
	return requireStatus(deal, models.DealStatusActive, models.DealStatusCompleted, models.DealStatusTerminated)
}

// CreateProfitDistribution records the split for a closed sales period. An
// owner's submission waits for admin approval; an admin's is approved at once.
func (s *DealService) CreateProfitDistribution(ctx context.Context, actor *models.Actor, dealID uuid.UUID, input ProfitDistributionInput) (*models.ProfitDistribution, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	start, end := input.StartDate.UTC(), input.EndDate.UTC()

	release := s.locker.Lock(dealID)
	defer release()

	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(deal, actor); err != nil {
		return nil, err
	}
	if err := requireDistributable(deal); err != nil {
		return nil, err
	}

	result, err := s.calculator.CalculateProfit(ctx, deal, start, end, input.OtherCosts)
	if err != nil {
		return nil, err
	}
	if !result.HasProfit() {
		return nil, apperrors.Validation("the period has no net profit to distribute").
			WithDetail("net_profit", result.NetProfit)
	}

	dist := &models.ProfitDistribution{
		DealID:    dealID,
		CreatedBy: actor.UserID,
		Notes:     input.Notes,
		IsPending: true,
	}
	fillDistribution(dist, result)
	if actor.IsAdmin {
		now := s.now()
		dist.IsPending = false
		dist.IsApprovedByAdmin = true
		dist.ApprovedBy = &actor.UserID
		dist.ApprovedAt = &now
	}

	_, err = s.apply(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		d.skipSave = true
		repo := s.distributions.WithTx(d.tx)
		overlaps, err := repo.Overlaps(ctx, dealID, start, end, nil)
		if err != nil {
			return err
		}
		if overlaps {
			return apperrors.Conflict("another profit distribution already covers part of this period")
		}
		if err := repo.Create(ctx, dist); err != nil {
			return err
		}

		n := Notification{
			Content:              "A profit distribution of " + money(dist.NetProfit) + " was recorded for \"" + d.deal.Title + "\".",
			Type:                 models.MessageTypeProfitDistribution,
			ProfitDistributionID: &dist.ID,
		}
		if dist.IsApprovedByAdmin {
			d.notifyParties(ctx, n)
		} else {
			n.Content = "A profit distribution for \"" + d.deal.Title + "\" is awaiting approval."
			d.notifyAdmins(ctx, n)
		}
		return d.audit(ctx, "profit_distribution_created", dist.ID.String())
	})
	if err != nil {
		return nil, err
	}
	return dist, nil
}

// withDistribution runs fn for a distribution under its deal's lock.
func (s *DealService) withDistribution(ctx context.Context, actor *models.Actor, distID uuid.UUID, fn func(context.Context, *dealTx, *models.ProfitDistribution) error) (*models.ProfitDistribution, error) {
	found, err := s.distributions.FindByID(ctx, distID)
	if err != nil {
		return nil, err
	}

	var dist *models.ProfitDistribution
	_, err = s.mutate(ctx, actor, found.DealID, func(ctx context.Context, d *dealTx) error {
		d.skipSave = true
		current, err := s.distributions.WithTx(d.tx).FindByID(ctx, distID)
		if err != nil {
			return err
		}
		dist = current
		return fn(ctx, d, current)
	})
	if err != nil {
		return nil, err
	}
	return dist, nil
}

// ApproveProfitDistribution closes a pending distribution for payment.
func (s *DealService) ApproveProfitDistribution(ctx context.Context, actor *models.Actor, distID uuid.UUID) (*models.ProfitDistribution, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.withDistribution(ctx, actor, distID, func(ctx context.Context, d *dealTx, dist *models.ProfitDistribution) error {
		if dist.IsApprovedByAdmin {
			return nil
		}
		if dist.NetProfit <= 0 {
			return apperrors.Validation("the period has no net profit to distribute")
		}
		dist.IsPending = false
		dist.IsApprovedByAdmin = true
		dist.ApprovedBy = &actor.UserID
		dist.ApprovedAt = &d.now
		if err := s.distributions.WithTx(d.tx).Save(ctx, dist); err != nil {
			return err
		}

		d.notifyParties(ctx, Notification{
			Content:              "A profit distribution of " + money(dist.NetProfit) + " for \"" + d.deal.Title + "\" was approved.",
			Type:                 models.MessageTypeProfitDistribution,
			ProfitDistributionID: &dist.ID,
		})
		return d.audit(ctx, "profit_distribution_approved", dist.ID.String())
	})
}

// RejectProfitDistribution discards an unpaid distribution.
func (s *DealService) RejectProfitDistribution(ctx context.Context, actor *models.Actor, distID uuid.UUID, reason string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	_, err := s.withDistribution(ctx, actor, distID, func(ctx context.Context, d *dealTx, dist *models.ProfitDistribution) error {
		if dist.IsPaid {
			return apperrors.InvalidState("a paid profit distribution cannot be rejected")
		}
		if err := s.distributions.WithTx(d.tx).Delete(ctx, dist); err != nil {
			return err
		}
		if dist.CreatedBy != d.actor.UserID && dist.CreatedBy != s.cfg.SystemActorID {
			d.notify(ctx, dist.CreatedBy, Notification{
				Content: "Your profit distribution for \"" + d.deal.Title + "\" was rejected: " + reason,
				Type:    models.MessageTypeProfitDistribution,
			})
		}
		return d.audit(ctx, "profit_distribution_rejected", reason)
	})
	return err
}

// PayProfitDistribution transfers both shares of an approved distribution and
// writes the three ledger entries. Transfers are keyed to the distribution, so
// a retry after a partial failure only pays the share still outstanding.
func (s *DealService) PayProfitDistribution(ctx context.Context, actor *models.Actor, distID uuid.UUID) (*ProfitPayout, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	dist, err := s.distributions.FindByID(ctx, distID)
	if err != nil {
		return nil, err
	}

	release := s.locker.Lock(dist.DealID)
	defer release()

	if dist, err = s.distributions.FindByID(ctx, distID); err != nil {
		return nil, err
	}
	if dist.IsPaid {
		return &ProfitPayout{Distribution: dist}, nil
	}
	if !dist.IsApprovedByAdmin || dist.ApprovedAt == nil {
		return nil, apperrors.InvalidState("profit distribution has not been approved")
	}

	deal, err := s.deals.FindByID(ctx, dist.DealID)
	if err != nil {
		return nil, err
	}
	if deal.InvestorID == nil {
		return nil, apperrors.InvalidState("deal has no investor")
	}
	investor, err := s.users.FindByID(ctx, *deal.InvestorID)
	if err != nil {
		return nil, err
	}
	owner, err := s.users.FindByID(ctx, deal.AuthorID)
	if err != nil {
		return nil, err
	}

	payout := &ProfitPayout{}
	transfer := func(op models.PaymentOperation, amount float64, recipient *models.User) (*models.PaymentAttempt, error) {
		if amount <= 0 {
			return nil, nil
		}
		res, err := s.orchestrator.Transfer(ctx, DisbursementRequest{
			DealID:      deal.ID,
			Operation:   op,
			Amount:      amount,
			RecipientID: recipient.ID,
			PaymentRef:  deal.PaymentIntentRef,
			Destination: recipient.PayoutAccountID,
			Scope:       dist.ID.String(),
			At:          *dist.ApprovedAt,
		})
		if err != nil {
			return nil, err
		}
		return res.Attempt, nil
	}

	investorAttempt, err := transfer(models.PaymentOperationInvestorTransfer, dist.InvestorShare, investor)
	if err != nil {
		return nil, err
	}
	ownerAttempt, err := transfer(models.PaymentOperationOwnerTransfer, dist.OwnerShare, owner)
	if err != nil {
		return nil, err
	}

	_, err = s.apply(ctx, actor, deal.ID, func(ctx context.Context, d *dealTx) error {
		d.skipSave = true
		repo := s.distributions.WithTx(d.tx)
		current, err := repo.FindByID(ctx, distID)
		if err != nil {
			return err
		}
		if current.IsPaid {
			dist = current
			return nil
		}
		current.IsPaid = true
		current.PaidAt = &d.now
		current.IsPending = false
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		dist = current

		author := d.deal.AuthorID
		entries := []*models.Transaction{}
		if investorAttempt != nil {
			entries = append(entries, &models.Transaction{
				TransactionType:      models.TransactionTypeProfitDistributionToInvestor,
				Amount:               current.InvestorShare,
				ToUserID:             d.deal.InvestorID,
				ProfitDistributionID: &current.ID,
				GatewayRef:           investorAttempt.GatewayRef,
				Description:          "Investor profit share",
			})
			payout.InvestorTransferRef = investorAttempt.GatewayRef
		}
		if ownerAttempt != nil {
			entries = append(entries, &models.Transaction{
				TransactionType:      models.TransactionTypeProfitDistributionToOwner,
				Amount:               current.OwnerShare,
				ToUserID:             &author,
				ProfitDistributionID: &current.ID,
				GatewayRef:           ownerAttempt.GatewayRef,
				Description:          "Owner profit share",
			})
			payout.OwnerTransferRef = ownerAttempt.GatewayRef
		}
		if current.PlatformFee > 0 {
			entries = append(entries, &models.Transaction{
				TransactionType:      models.TransactionTypePlatformFee,
				Amount:               current.PlatformFee,
				ProfitDistributionID: &current.ID,
				Description:          "Platform fee",
			})
		}
		if err := d.record(ctx, entries...); err != nil {
			return err
		}

		d.notifyParties(ctx, Notification{
			Content:              "Profit shares for \"" + d.deal.Title + "\" were paid out.",
			Type:                 models.MessageTypeProfitDistributionPaid,
			ProfitDistributionID: &current.ID,
		})
		return d.audit(ctx, "profit_distribution_paid", current.ID.String())
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"deal_id":         deal.ID,
		"distribution_id": distID,
		"investor_share":  dist.InvestorShare,
		"owner_share":     dist.OwnerShare,
	}).Info("Profit distribution paid")
	payout.Distribution = dist
	return payout, nil
}

// RecordSale folds a settled sale into the deal's rolling distribution. The
// open window is recomputed from the sales ledger, created on the first
// profitable sale and dropped again while the period shows no profit.
func (s *DealService) RecordSale(ctx context.Context, productID uuid.UUID, at time.Time) (*models.ProfitDistribution, error) {
	at = at.UTC()
	deal, err := s.deals.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if deal.Status != models.DealStatusActive {
		return nil, nil
	}

	actor := s.systemActor(ctx)
	release := s.locker.Lock(deal.ID)
	defer release()

	if deal, err = s.deals.FindByID(ctx, deal.ID); err != nil {
		return nil, err
	}
	if deal.Status != models.DealStatusActive {
		return nil, nil
	}

	open, err := s.distributions.FindOpen(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	if open != nil && open.CreatedBy != actor.UserID {
		open = nil
	}

	start, otherCosts := at, 0.0
	switch {
	case open != nil:
		start, otherCosts = open.StartDate, open.OtherCosts
	default:
		latest, err := s.distributions.LatestEnd(ctx, deal.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			start = *latest
		} else if deal.CompletedAt != nil {
			start = deal.CompletedAt.UTC()
		}
	}
	end := at.Add(time.Millisecond)
	if open != nil && open.EndDate.After(end) {
		end = open.EndDate
	}
	if !end.After(start) {
		return open, nil
	}

	result, err := s.calculator.CalculateProfit(ctx, deal, start, end, otherCosts)
	if err != nil {
		return nil, err
	}

	var dist *models.ProfitDistribution
	_, err = s.apply(ctx, actor, deal.ID, func(ctx context.Context, d *dealTx) error {
		d.skipSave = true
		repo := s.distributions.WithTx(d.tx)

		if open != nil {
			if !result.HasProfit() {
				return repo.Delete(ctx, open)
			}
			fillDistribution(open, result)
			dist = open
			return repo.Save(ctx, open)
		}

		if !result.HasProfit() {
			return nil
		}
		overlaps, err := repo.Overlaps(ctx, deal.ID, start, end, nil)
		if err != nil {
			return err
		}
		if overlaps {
			return apperrors.Conflict("sales period overlaps an existing profit distribution")
		}
		dist = &models.ProfitDistribution{
			DealID:    deal.ID,
			CreatedBy: actor.UserID,
			IsPending: true,
			Notes:     "rolling sales period",
		}
		fillDistribution(dist, result)
		if err := repo.Create(ctx, dist); err != nil {
			return err
		}
		return d.audit(ctx, "profit_period_opened", dist.ID.String())
	})
	if err != nil {
		return nil, err
	}
	return dist, nil
}
