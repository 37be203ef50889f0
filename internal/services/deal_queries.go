// internal/services/deal_queries.go
package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// readableDeal loads a deal the caller is a party to, or any deal for admins.
func (s *DealService) readableDeal(ctx context.Context, actor *models.Actor, dealID uuid.UUID) (*models.Deal, error) {
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
	return deal, nil
}

// ListMessages returns the deal messages sent to or by the caller.
func (s *DealService) ListMessages(ctx context.Context, actor *models.Actor, dealID uuid.UUID, params utils.PaginationParams) ([]models.Message, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	if _, err := s.deals.FindByID(ctx, dealID); err != nil {
		return nil, 0, err
	}
	return s.messages.ListForDeal(ctx, dealID, actor.UserID, params.Normalize())
}

func (s *DealService) MarkMessageRead(ctx context.Context, actor *models.Actor, messageID uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return s.messages.MarkRead(ctx, messageID, actor.UserID, s.now())
}

func (s *DealService) ListTransactions(ctx context.Context, actor *models.Actor, dealID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	if _, err := s.readableDeal(ctx, actor, dealID); err != nil {
		return nil, 0, err
	}
	return s.transactions.ListByDeal(ctx, dealID, params.Normalize())
}

func (s *DealService) ListProfitDistributions(ctx context.Context, actor *models.Actor, dealID uuid.UUID) ([]models.ProfitDistribution, error) {
	if _, err := s.readableDeal(ctx, actor, dealID); err != nil {
		return nil, err
	}
	return s.distributions.ListByDeal(ctx, dealID)
}

func (s *DealService) ListChangeRequests(ctx context.Context, actor *models.Actor, dealID uuid.UUID) ([]models.ChangeRequest, error) {
	if _, err := s.readableDeal(ctx, actor, dealID); err != nil {
		return nil, err
	}
	return s.changes.List(ctx, dealID)
}

// PaymentIssues is the failure and refund history of a deal, for admins.
type PaymentIssues struct {
	Failures []models.PaymentFailureLog `json:"failures"`
	Refunds  []models.PaymentRefundLog  `json:"refunds"`
}

func (s *DealService) ListPaymentIssues(ctx context.Context, actor *models.Actor, dealID uuid.UUID) (*PaymentIssues, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	failures, err := s.payments.ListFailures(ctx, dealID)
	if err != nil {
		return nil, err
	}
	refunds, err := s.payments.ListRefunds(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return &PaymentIssues{Failures: failures, Refunds: refunds}, nil
}
