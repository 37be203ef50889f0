// internal/services/notification_service.go
package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/events"
	"github.com/javajoker/dealflow-backend/internal/metrics"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
)

// Notification is one message about a deal, addressed later to a user or to all admins.
type Notification struct {
	DealID               uuid.UUID
	SenderID             uuid.UUID
	Content              string
	Type                 models.MessageType
	ChangeRequestID      *uuid.UUID
	DeleteRequestID      *uuid.UUID
	ProfitDistributionID *uuid.UUID
	ContractURL          string
}

// Notifier writes deal messages inside the caller's transaction. Delivery is
// best effort: a failed write is rolled back to a savepoint and logged, and
// never fails the surrounding deal mutation.
type Notifier interface {
	Send(ctx context.Context, tx *gorm.DB, recipientID uuid.UUID, n Notification)
	BroadcastToAdmins(ctx context.Context, tx *gorm.DB, n Notification)
	Publish(ctx context.Context, evts ...events.DealEvent)
}

type NotificationService struct {
	messages  *repository.MessageRepository
	users     *repository.UserRepository
	publisher events.Publisher
	metrics   *metrics.Recorder
	log       *logrus.Logger
}

func NewNotificationService(messages *repository.MessageRepository, users *repository.UserRepository, publisher events.Publisher, rec *metrics.Recorder, log *logrus.Logger) *NotificationService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &NotificationService{
		messages:  messages,
		users:     users,
		publisher: publisher,
		metrics:   rec,
		log:       log,
	}
}

func (s *NotificationService) Send(ctx context.Context, tx *gorm.DB, recipientID uuid.UUID, n Notification) {
	if recipientID == uuid.Nil {
		return
	}
	s.write(ctx, tx, n, []uuid.UUID{recipientID})
}

// BroadcastToAdmins resolves the admin membership at call time and writes one message per admin.
func (s *NotificationService) BroadcastToAdmins(ctx context.Context, tx *gorm.DB, n Notification) {
	admins, err := s.users.WithTx(tx).ListAdminIDs(ctx)
	if err != nil {
		s.log.WithError(err).WithField("deal_id", n.DealID).Error("Failed to resolve admins for notification")
		s.metrics.Notification("admin_broadcast", err)
		return
	}

	sender := s.sender(ctx, n)
	recipients := make([]uuid.UUID, 0, len(admins))
	for _, id := range admins {
		if id != sender {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		s.log.WithField("deal_id", n.DealID).Warn("No admins to notify")
		return
	}
	s.write(ctx, tx, n, recipients)
}

func (s *NotificationService) write(ctx context.Context, tx *gorm.DB, n Notification, recipients []uuid.UUID) {
	savepoint := "notify_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := tx.SavePoint(savepoint).Error; err != nil {
		s.log.WithError(err).WithField("deal_id", n.DealID).Error("Failed to open notification savepoint")
		s.metrics.Notification("message", err)
		return
	}

	sender := s.sender(ctx, n)
	repo := s.messages.WithTx(tx)
	for _, recipient := range recipients {
		msg := &models.Message{
			DealID:               n.DealID,
			SenderID:             sender,
			RecipientID:          recipient,
			Content:              n.Content,
			MessageType:          n.Type,
			ChangeRequestID:      n.ChangeRequestID,
			DeleteRequestID:      n.DeleteRequestID,
			ProfitDistributionID: n.ProfitDistributionID,
			ContractURL:          n.ContractURL,
		}
		if err := repo.Create(ctx, msg); err != nil {
			tx.RollbackTo(savepoint)
			s.log.WithError(err).WithFields(logrus.Fields{
				"deal_id":      n.DealID,
				"recipient_id": recipient,
				"type":         n.Type,
			}).Error("Failed to write notification")
			s.metrics.Notification("message", err)
			return
		}
	}
	s.metrics.Notification("message", nil)
}

// Publish emits lifecycle events after commit; failures are only logged.
func (s *NotificationService) Publish(ctx context.Context, evts ...events.DealEvent) {
	for _, evt := range evts {
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"deal_id":    evt.DealID,
				"event_type": evt.EventType,
			}).Warn("Failed to publish deal event")
			s.metrics.Notification("event", err)
			continue
		}
		s.metrics.Notification("event", nil)
	}
}

func (s *NotificationService) sender(ctx context.Context, n Notification) uuid.UUID {
	if n.SenderID != uuid.Nil {
		return n.SenderID
	}
	return models.SystemActorFromContext(ctx)
}
