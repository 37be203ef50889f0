// internal/services/deal_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/database"
	"github.com/javajoker/dealflow-backend/internal/events"
	"github.com/javajoker/dealflow-backend/internal/metrics"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

// DealService is the deal state machine. Every mutation of one deal runs
// under the deal's in-process lock, inside a transaction holding the row
// lock, and is saved with an optimistic version check.
type DealService struct {
	db            *gorm.DB
	deals         *repository.DealRepository
	transactions  *repository.TransactionRepository
	distributions *repository.ProfitDistributionRepository
	messages      *repository.MessageRepository
	users         *repository.UserRepository
	payments      *repository.PaymentRepository

	changes      *ApprovalWorkflow[models.ChangeRequest, *models.ChangeRequest]
	deletes      *ApprovalWorkflow[models.DeleteRequest, *models.DeleteRequest]
	terminations *ApprovalWorkflow[models.TerminationRequest, *models.TerminationRequest]

	orchestrator *PaymentOrchestrator
	contracts    *ContractManager
	notifier     Notifier
	calculator   *ProfitCalculator
	products     *ProductService
	files        FileStore
	policy       RefundPolicy
	metrics      *metrics.Recorder

	cfg        config.DealConfig
	paymentCfg config.PaymentConfig
	log        *logrus.Logger
	locker     *dealLocker
	now        func() time.Time
}

// DealServiceDeps lists the collaborators of the state machine.
type DealServiceDeps struct {
	DB           *gorm.DB
	Orchestrator *PaymentOrchestrator
	Contracts    *ContractManager
	Notifier     Notifier
	Calculator   *ProfitCalculator
	Products     *ProductService
	Files        FileStore
	Policy       RefundPolicy
	Metrics      *metrics.Recorder
	DealConfig   config.DealConfig
	Payment      config.PaymentConfig
	Logger       *logrus.Logger
}

func NewDealService(deps DealServiceDeps) *DealService {
	policy := deps.Policy
	if policy == nil {
		policy = DefaultRefundPolicy()
	}

	return &DealService{
		db:            deps.DB,
		deals:         repository.NewDealRepository(deps.DB),
		transactions:  repository.NewTransactionRepository(deps.DB),
		distributions: repository.NewProfitDistributionRepository(deps.DB),
		messages:      repository.NewMessageRepository(deps.DB),
		users:         repository.NewUserRepository(deps.DB),
		payments:      repository.NewPaymentRepository(deps.DB),
		changes: NewApprovalWorkflow[models.ChangeRequest, *models.ChangeRequest](
			repository.NewRequestRepository[models.ChangeRequest](deps.DB, "change request")),
		deletes: NewApprovalWorkflow[models.DeleteRequest, *models.DeleteRequest](
			repository.NewRequestRepository[models.DeleteRequest](deps.DB, "delete request")),
		terminations: NewApprovalWorkflow[models.TerminationRequest, *models.TerminationRequest](
			repository.NewRequestRepository[models.TerminationRequest](deps.DB, "termination request")),
		orchestrator: deps.Orchestrator,
		contracts:    deps.Contracts,
		notifier:     deps.Notifier,
		calculator:   deps.Calculator,
		products:     deps.Products,
		files:        deps.Files,
		policy:       policy,
		metrics:      deps.Metrics,
		cfg:          deps.DealConfig,
		paymentCfg:   deps.Payment,
		log:          deps.Logger,
		locker:       newDealLocker(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// dealTx is the unit of work for one deal mutation.
type dealTx struct {
	svc         *DealService
	tx          *gorm.DB
	deal        *models.Deal
	actor       *models.Actor
	now         time.Time
	events      []events.DealEvent
	after       []func(context.Context)
	transitions [][2]models.DealStatus
	deleted     bool
	skipSave    bool
}

func (d *dealTx) transition(ctx context.Context, to models.DealStatus, action, note string) error {
	from := d.deal.Status
	d.deal.Status = to
	d.transitions = append(d.transitions, [2]models.DealStatus{from, to})
	d.emit("status_changed", map[string]interface{}{"from": from, "to": to, "action": action})
	return d.svc.deals.WithTx(d.tx).RecordTransition(ctx, &models.DealAuditLog{
		DealID:     d.deal.ID,
		ActorID:    d.actor.UserID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	})
}

// audit records an action that does not change the status.
func (d *dealTx) audit(ctx context.Context, action, note string) error {
	d.emit(action, nil)
	return d.svc.deals.WithTx(d.tx).RecordTransition(ctx, &models.DealAuditLog{
		DealID:     d.deal.ID,
		ActorID:    d.actor.UserID,
		Action:     action,
		FromStatus: d.deal.Status,
		ToStatus:   d.deal.Status,
		Note:       note,
	})
}

func (d *dealTx) emit(eventType string, data map[string]interface{}) {
	evt := events.DealEvent{
		EventType: eventType,
		DealID:    d.deal.ID,
		ActorID:   d.actor.UserID,
		ToStatus:  string(d.deal.Status),
		Data:      data,
		Timestamp: d.now,
	}
	if from, ok := data["from"].(models.DealStatus); ok {
		evt.FromStatus = string(from)
	}
	d.events = append(d.events, evt)
}

func (d *dealTx) notify(ctx context.Context, recipient uuid.UUID, n Notification) {
	d.svc.notifier.Send(ctx, d.tx, recipient, d.fill(n))
}

// notifyParties messages the owner and, when linked, the investor.
func (d *dealTx) notifyParties(ctx context.Context, n Notification) {
	d.notify(ctx, d.deal.AuthorID, n)
	if d.deal.InvestorID != nil {
		d.notify(ctx, *d.deal.InvestorID, n)
	}
}

func (d *dealTx) notifyAdmins(ctx context.Context, n Notification) {
	d.svc.notifier.BroadcastToAdmins(ctx, d.tx, d.fill(n))
}

func (d *dealTx) fill(n Notification) Notification {
	n.DealID = d.deal.ID
	if n.SenderID == uuid.Nil {
		n.SenderID = d.actor.UserID
	}
	return n
}

// record appends completed ledger entries for the deal.
func (d *dealTx) record(ctx context.Context, entries ...*models.Transaction) error {
	for _, entry := range entries {
		entry.DealID = d.deal.ID
		if entry.Status == "" {
			entry.Status = models.TransactionStatusCompleted
		}
		if entry.ProcessedAt == nil {
			entry.ProcessedAt = &d.now
		}
	}
	return d.svc.transactions.WithTx(d.tx).Append(ctx, entries...)
}

// afterCommit schedules work to run once the transaction has committed.
func (d *dealTx) afterCommit(fn func(context.Context)) {
	d.after = append(d.after, fn)
}

type dealLoader func(ctx context.Context, tx *gorm.DB) (*models.Deal, error)

func (s *DealService) lockedLoader(dealID uuid.UUID) dealLoader {
	return func(ctx context.Context, tx *gorm.DB) (*models.Deal, error) {
		return s.deals.WithTx(tx).FindForUpdate(ctx, dealID)
	}
}

// mutate serializes fn against every other mutation of the same deal.
func (s *DealService) mutate(ctx context.Context, actor *models.Actor, dealID uuid.UUID, fn func(context.Context, *dealTx) error) (*models.Deal, error) {
	release := s.locker.Lock(dealID)
	defer release()
	return s.apply(ctx, actor, dealID, fn)
}

// apply is mutate for callers that already hold the deal lock.
func (s *DealService) apply(ctx context.Context, actor *models.Actor, dealID uuid.UUID, fn func(context.Context, *dealTx) error) (*models.Deal, error) {
	dtx, err := s.run(ctx, actor, s.lockedLoader(dealID), fn)
	if err != nil {
		return nil, err
	}
	return dtx.deal, nil
}

func (s *DealService) run(ctx context.Context, actor *models.Actor, load dealLoader, fn func(context.Context, *dealTx) error) (*dealTx, error) {
	var dtx *dealTx
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		deal, err := load(ctx, tx)
		if err != nil {
			return err
		}
		dtx = &dealTx{svc: s, tx: tx, deal: deal, actor: actor, now: s.now()}
		if err := fn(ctx, dtx); err != nil {
			return err
		}
		if dtx.deleted || dtx.skipSave {
			return nil
		}
		return s.deals.WithTx(tx).Save(ctx, deal)
	})
	if err != nil {
		return nil, err
	}

	for _, t := range dtx.transitions {
		s.metrics.Transition(string(t[0]), string(t[1]))
	}
	s.notifier.Publish(ctx, dtx.events...)
	for _, fn := range dtx.after {
		fn(ctx)
	}
	return dtx, nil
}

// systemActor is the identity scheduled jobs and webhooks act as.
func (s *DealService) systemActor(ctx context.Context) *models.Actor {
	actor := models.SystemActor(ctx)
	if actor.UserID == uuid.Nil {
		actor.UserID = s.cfg.SystemActorID
	}
	return actor
}

func requireActor(actor *models.Actor) error {
	if !actor.Valid() {
		return apperrors.Unauthenticated("caller identity is required")
	}
	return nil
}

func requireAdmin(actor *models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin {
		return apperrors.Forbidden("admin access required")
	}
	return nil
}

func requireOwner(deal *models.Deal, actor *models.Actor) error {
	if deal.AuthorID != actor.UserID {
		return apperrors.Forbidden("only the deal owner can perform this action")
	}
	return nil
}

func requireOwnerOrAdmin(deal *models.Deal, actor *models.Actor) error {
	if actor.IsAdmin {
		return nil
	}
	return requireOwner(deal, actor)
}

func requirePartyOrAdmin(deal *models.Deal, actor *models.Actor) error {
	if actor.IsAdmin || deal.IsParty(actor.UserID) {
		return nil
	}
	return apperrors.Forbidden("only the deal parties can perform this action")
}

func requireStatus(deal *models.Deal, allowed ...models.DealStatus) error {
	for _, status := range allowed {
		if deal.Status == status {
			return nil
		}
	}
	return apperrors.InvalidState("action not allowed while deal is " + string(deal.Status)).
		WithDetail("status", string(deal.Status))
}

func validateInput(v interface{}) error {
	if err := utils.ValidateStruct(v); err != nil {
		return apperrors.Validation("invalid input").WithDetail("fields", utils.GetValidationErrors(err))
	}
	return nil
}

type CreateDealInput struct {
	Title                    string   `json:"title" validate:"required,min=3,max=255"`
	Description              string   `json:"description" validate:"max=5000"`
	ImageURLs                []string `json:"image_urls" validate:"required,min=1,max=10,dive,required"`
	OfferMoney               float64  `json:"offer_money" validate:"required,gt=0"`
	OfferDealPercent         float64  `json:"offer_deal_percent" validate:"gte=0,lte=100"`
	ManufacturingCostPerUnit float64  `json:"manufacturing_cost_per_unit" validate:"gte=0"`
	EstimatedPrice           float64  `json:"estimated_price" validate:"required,gt=0"`
	DurationInMonths         int      `json:"duration_in_months" validate:"required,min=1,max=120"`
}

// CreateDeal lists a new deal. Listings by admins are approved at once;
// everyone else waits for ReviewListing.
func (s *DealService) CreateDeal(ctx context.Context, actor *models.Actor, input CreateDealInput) (*models.Deal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsBusinessOwner && !actor.IsAdmin {
		return nil, apperrors.Forbidden("only business owners can create deals")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	deal := &models.Deal{
		AuthorID:                 actor.UserID,
		Title:                    input.Title,
		Description:              input.Description,
		ImageURLs:                input.ImageURLs,
		OfferMoney:               RoundMoney(input.OfferMoney),
		OfferDealPercent:         input.OfferDealPercent,
		ManufacturingCostPerUnit: RoundMoney(input.ManufacturingCostPerUnit),
		EstimatedPrice:           RoundMoney(input.EstimatedPrice),
		DurationInMonths:         input.DurationInMonths,
		PlatformFeePercent:       s.paymentCfg.PlatformFeePercent,
		Status:                   models.DealStatusPending,
		IsApproved:               actor.IsAdmin,
		IsVisible:                true,
		ContractVersion:          1,
	}

	load := func(context.Context, *gorm.DB) (*models.Deal, error) { return deal, nil }
	dtx, err := s.run(ctx, actor, load, func(ctx context.Context, d *dealTx) error {
		d.skipSave = true
		if err := s.deals.WithTx(d.tx).Create(ctx, d.deal); err != nil {
			return err
		}
		if err := d.audit(ctx, "created", ""); err != nil {
			return err
		}
		if !d.deal.IsApproved {
			d.notifyAdmins(ctx, Notification{
				Content: "New deal listing \"" + d.deal.Title + "\" is awaiting review.",
				Type:    models.MessageTypeListingReview,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"deal_id":   dtx.deal.ID,
		"author_id": actor.UserID,
	}).Info("Deal created")
	return dtx.deal, nil
}

// GetDeal returns a deal the caller may see: parties and admins always,
// others only while it is an approved public listing.
func (s *DealService) GetDeal(ctx context.Context, actor *models.Actor, dealID uuid.UUID) (*models.Deal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin || deal.IsParty(actor.UserID) {
		return deal, nil
	}
	if deal.PendingInvestorID != nil && *deal.PendingInvestorID == actor.UserID {
		return deal, nil
	}
	if deal.Status == models.DealStatusPending && deal.IsApproved && deal.IsVisible {
		return deal, nil
	}
	return nil, apperrors.Forbidden("deal is not visible to this user")
}

func (s *DealService) ListDiscoverableDeals(ctx context.Context, actor *models.Actor, params utils.PaginationParams) ([]models.Deal, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	return s.deals.ListDiscoverable(ctx, params.Normalize())
}

func (s *DealService) ListMyDeals(ctx context.Context, actor *models.Actor, params utils.PaginationParams) ([]models.Deal, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	return s.deals.ListForUser(ctx, actor.UserID, params.Normalize())
}

func (s *DealService) GetDealHistory(ctx context.Context, actor *models.Actor, dealID uuid.UUID) ([]models.DealAuditLog, error) {
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
	return s.deals.ListHistory(ctx, dealID)
}

// ReviewListing lets an admin publish or withdraw a pending listing.
func (s *DealService) ReviewListing(ctx context.Context, actor *models.Actor, dealID uuid.UUID, approve bool, reason string) (*models.Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requireStatus(d.deal, models.DealStatusPending); err != nil {
			return err
		}
		d.deal.IsApproved = approve

		content := "Your listing \"" + d.deal.Title + "\" is now public."
		action := "listing_approved"
		if !approve {
			content = "Your listing \"" + d.deal.Title + "\" was not approved: " + reason
			action = "listing_withdrawn"
		}
		d.notify(ctx, d.deal.AuthorID, Notification{Content: content, Type: models.MessageTypeListingReview})
		return d.audit(ctx, action, reason)
	})
}

// AcceptOffer records an investor's offer on an approved listing. The owner
// answers with RespondToOffer.
func (s *DealService) AcceptOffer(ctx context.Context, actor *models.Actor, dealID uuid.UUID, note string) (*models.Deal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsInvestor {
		return nil, apperrors.Forbidden("only investors can make offers")
	}
	return s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := s.ensureOpenListing(d.deal, actor); err != nil {
			return err
		}
		if d.deal.PendingInvestorID != nil {
			return apperrors.Conflict("another offer is awaiting the owner's response")
		}

		d.deal.PendingInvestorID = &actor.UserID
		content := "An investor accepted your offer on \"" + d.deal.Title + "\"."
		if note != "" {
			content += " " + note
		}
		d.notify(ctx, d.deal.AuthorID, Notification{Content: content, Type: models.MessageTypeOfferReceived})
		return d.audit(ctx, "offer_received", note)
	})
}

// DiscussOffer exchanges a message about a listing before any investor is linked.
func (s *DealService) DiscussOffer(ctx context.Context, actor *models.Actor, dealID uuid.UUID, content string) (*models.Deal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, apperrors.Validation("message content is required")
	}
	return s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		d.skipSave = true

		if d.deal.AuthorID == actor.UserID {
			if d.deal.PendingInvestorID == nil {
				return apperrors.InvalidState("no investor is discussing this deal")
			}
			if err := requireStatus(d.deal, models.DealStatusPending); err != nil {
				return err
			}
			d.notify(ctx, *d.deal.PendingInvestorID, Notification{Content: content, Type: models.MessageTypeOfferDiscussion})
			return nil
		}

		if !actor.IsInvestor {
			return apperrors.Forbidden("only investors can discuss offers")
		}
		if err := s.ensureOpenListing(d.deal, actor); err != nil {
			return err
		}
		d.notify(ctx, d.deal.AuthorID, Notification{Content: content, Type: models.MessageTypeOfferDiscussion})
		return nil
	})
}

func (s *DealService) ensureOpenListing(deal *models.Deal, actor *models.Actor) error {
	if deal.AuthorID == actor.UserID {
		return apperrors.Forbidden("owners cannot invest in their own deal")
	}
	if err := requireStatus(deal, models.DealStatusPending); err != nil {
		return err
	}
	if !deal.IsApproved || !deal.IsVisible {
		return apperrors.InvalidState("deal is not open for offers")
	}
	if deal.InvestorID != nil {
		return apperrors.InvalidState("deal already has an investor")
	}
	return nil
}

// RespondToOffer is the owner's answer to a pending investor offer.
func (s *DealService) RespondToOffer(ctx context.Context, actor *models.Actor, dealID uuid.UUID, accept bool, reason string) (*models.Deal, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requireOwner(d.deal, actor); err != nil {
			return err
		}
		if err := requireStatus(d.deal, models.DealStatusPending); err != nil {
			return err
		}
		if d.deal.PendingInvestorID == nil {
			return apperrors.InvalidState("no offer is awaiting a response")
		}
		if d.deal.InvestorID != nil {
			return apperrors.InvalidState("deal already has an investor")
		}

		investorID := *d.deal.PendingInvestorID
		d.deal.PendingInvestorID = nil

		if !accept {
			d.deal.InvestorID = nil
			d.deal.IsVisible = true
			d.notify(ctx, investorID, Notification{
				Content: "The owner declined your offer on \"" + d.deal.Title + "\". " + reason,
				Type:    models.MessageTypeOfferRejected,
			})
			return d.transition(ctx, models.DealStatusRejected, "offer_rejected", reason)
		}

		d.deal.InvestorID = &investorID
		d.deal.AcceptedByOwnerAt = &d.now
		d.deal.IsVisible = false
		d.notify(ctx, investorID, Notification{
			Content: "The owner accepted your offer on \"" + d.deal.Title + "\". It is now awaiting admin approval.",
			Type:    models.MessageTypeOfferAccepted,
		})
		d.notifyAdmins(ctx, Notification{
			Content: "Deal \"" + d.deal.Title + "\" has a matched investor and needs approval.",
			Type:    models.MessageTypeApprovalRequired,
		})
		return d.transition(ctx, models.DealStatusOwnerAccepted, "offer_accepted", "")
	})
}

// AdminReviewDeal approves or rejects a matched deal.
func (s *DealService) AdminReviewDeal(ctx context.Context, actor *models.Actor, dealID uuid.UUID, approve bool, reason string) (*models.Deal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, dealID, func(ctx context.Context, d *dealTx) error {
		if err := requireStatus(d.deal, models.DealStatusOwnerAccepted); err != nil {
			return err
		}

		if approve {
			d.deal.ApprovedByAdminAt = &d.now
			d.notifyParties(ctx, Notification{
				Content: "Deal \"" + d.deal.Title + "\" was approved. The investor can now fund it.",
				Type:    models.MessageTypeDealApproved,
			})
			return d.transition(ctx, models.DealStatusAdminApproved, "admin_approved", "")
		}

		d.notifyParties(ctx, Notification{
			Content: "Deal \"" + d.deal.Title + "\" was rejected by the platform: " + reason,
			Type:    models.MessageTypeDealRejected,
		})
		d.deal.InvestorID = nil
		d.deal.IsVisible = true
		return d.transition(ctx, models.DealStatusRejected, "admin_rejected", reason)
	})
}
