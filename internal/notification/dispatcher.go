package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Exchange is the fanout exchange SMS and push workers consume from
const Exchange = "staff_notifications"

// Dispatcher delivers a message body to staff outside the app (SMS, push)
type Dispatcher interface {
	Dispatch(ctx context.Context, recipients []Recipient, msg Message) error
}

// Sender is the broker operation the AMQP dispatcher needs
type Sender interface {
	Publish(ctx context.Context, exchange, key string, body []byte) error
}

type envelope struct {
	Type       NotificationType `json:"type"`
	Body       string           `json:"body"`
	EntityType string           `json:"entity_type,omitempty"`
	EntityID   int64            `json:"entity_id,omitempty"`
	Recipients []Recipient      `json:"recipients"`
	SentAt     time.Time        `json:"sent_at"`
}

// AMQPDispatcher hands messages to the delivery workers through RabbitMQ
type AMQPDispatcher struct {
	sender   Sender
	exchange string
}

// NewAMQPDispatcher creates a dispatcher publishing to the given exchange
func NewAMQPDispatcher(sender Sender, exchange string) *AMQPDispatcher {
	if exchange == "" {
		exchange = Exchange
	}
	return &AMQPDispatcher{sender: sender, exchange: exchange}
}

// Dispatch publishes one message for all recipients
func (d *AMQPDispatcher) Dispatch(ctx context.Context, recipients []Recipient, msg Message) error {
	if len(recipients) == 0 {
		return nil
	}
	body, err := json.Marshal(envelope{
		Type:       msg.Type,
		Body:       msg.Body,
		EntityType: msg.EntityType,
		EntityID:   msg.EntityID,
		Recipients: recipients,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := d.sender.Publish(ctx, d.exchange, string(msg.Type), body); err != nil {
		return fmt.Errorf("failed to dispatch notification: %w", err)
	}
	return nil
}

// LogDispatcher writes messages to the log
type LogDispatcher struct{}

// Dispatch logs the message
func (LogDispatcher) Dispatch(_ context.Context, recipients []Recipient, msg Message) error {
	log.WithFields(log.Fields{
		"type":       msg.Type,
		"recipients": len(recipients),
	}).Info(msg.Body)
	return nil
}
