// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dealflow-backend/internal/config"
)

// DealEvent is published after a deal mutation commits.
type DealEvent struct {
	EventType  string                 `json:"event_type"`
	DealID     uuid.UUID              `json:"deal_id"`
	ActorID    uuid.UUID              `json:"actor_id"`
	FromStatus string                 `json:"from_status,omitempty"`
	ToStatus   string                 `json:"to_status,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Publisher delivers deal events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event DealEvent) error
	Close()
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, DealEvent) error { return nil }
func (NoopPublisher) Close()                                   {}

// NATSPublisher publishes deal events to a JetStream stream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
	log    *logrus.Logger
}

func NewNATSPublisher(cfg config.NATSConfig, log *logrus.Logger) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL is required")
	}

	opts := []nats.Option{
		nats.Name("dealflow-backend"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Deal lifecycle events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Storage:     nats.FileStorage,
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Discard:     nats.DiscardOld,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		log.WithError(err).Warn("Could not create NATS stream, it may already exist")
	}

	log.WithFields(logrus.Fields{
		"url":    cfg.URL,
		"stream": cfg.StreamName,
	}).Info("Connected to NATS")

	return &NATSPublisher{conn: conn, js: js, prefix: cfg.SubjectPrefix, log: log}, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, event DealEvent) error {
	if p.conn == nil || !p.conn.IsConnected() {
		p.log.Warn("NATS not connected, skipping event publish")
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal deal event: %w", err)
	}

	subject := p.Subject(event.EventType)
	ack, err := p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(event.DealID.String()+":"+event.EventType+":"+event.Timestamp.Format(time.RFC3339Nano)))
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"deal_id":    event.DealID,
			"event_type": event.EventType,
			"subject":    subject,
		}).WithError(err).Error("Failed to publish deal event")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"deal_id":    event.DealID,
		"event_type": event.EventType,
		"sequence":   ack.Sequence,
	}).Debug("Published deal event")
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}
