package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/events"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
	"github.com/javajoker/dealflow-backend/internal/testutil"
)

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, events.DealEvent) error {
	p.calls++
	return errors.New("broker down")
}

func (p *failingPublisher) Close() {}

func newTestNotifier(t *testing.T, publisher events.Publisher) (*gorm.DB, *NotificationService) {
	t.Helper()
	db := testutil.NewDB(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return db, NewNotificationService(repository.NewMessageRepository(db), repository.NewUserRepository(db), publisher, nil, log)
}

func TestNotificationBroadcastSkipsSender(t *testing.T) {
	db, notifier := newTestNotifier(t, nil)
	first := seedUser(t, db, "admin1@test", func(u *models.User) { u.IsAdmin = true })
	seedUser(t, db, "admin2@test", func(u *models.User) { u.IsAdmin = true })
	seedUser(t, db, "someone@test", func(*models.User) {})
	dealID := uuid.New()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		notifier.BroadcastToAdmins(context.Background(), tx, Notification{
			DealID:   dealID,
			SenderID: first.UserID,
			Content:  "review needed",
			Type:     models.MessageTypeListingReview,
		})
		return nil
	}))

	var msgs []models.Message
	require.NoError(t, db.Where("deal_id = ?", dealID).Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.NotEqual(t, first.UserID, msgs[0].RecipientID)
	assert.Equal(t, first.UserID, msgs[0].SenderID)
}

func TestNotificationDefaultsSenderToSystemActor(t *testing.T) {
	db, notifier := newTestNotifier(t, nil)
	system := uuid.New()
	recipient := uuid.New()
	ctx := models.ContextWithSystemActor(context.Background(), system)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		notifier.Send(ctx, tx, recipient, Notification{DealID: uuid.New(), Content: "hello", Type: models.MessageTypeGeneral})
		notifier.Send(ctx, tx, uuid.Nil, Notification{DealID: uuid.New(), Content: "dropped", Type: models.MessageTypeGeneral})
		return nil
	}))

	var msgs []models.Message
	require.NoError(t, db.Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, system, msgs[0].SenderID)
	assert.Equal(t, recipient, msgs[0].RecipientID)
}

func TestNotificationFailureDoesNotAbortTransaction(t *testing.T) {
	db, notifier := newTestNotifier(t, nil)
	require.NoError(t, db.Migrator().DropTable(&models.Message{}))

	err := db.Transaction(func(tx *gorm.DB) error {
		notifier.Send(context.Background(), tx, uuid.New(), Notification{DealID: uuid.New(), Content: "lost", Type: models.MessageTypeGeneral})
		return tx.Create(&models.User{Email: "kept@test"}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "kept@test").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNotificationPublishSwallowsBrokerErrors(t *testing.T) {
	publisher := &failingPublisher{}
	_, notifier := newTestNotifier(t, publisher)

	notifier.Publish(context.Background(),
		events.DealEvent{EventType: "deal.created", DealID: uuid.New()},
		events.DealEvent{EventType: "deal.funded", DealID: uuid.New()},
	)
	assert.Equal(t, 2, publisher.calls)
}
