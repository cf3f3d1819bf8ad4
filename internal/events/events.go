// Package events emits domain events that live table and staff views
// subscribe to.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Type names a domain event
type Type string

// IssueChanged tells table and staff views that an order changed
const IssueChanged Type = "ISSUE_CHANGED"

// Exchange is the fanout exchange domain events are published to
const Exchange = "table_events"

// Event is the payload published for every change
type Event struct {
	Type     Type      `json:"type"`
	TableID  int64     `json:"table_id"`
	BranchID int64     `json:"branch_id,omitempty"`
	OrderID  int64     `json:"order_id,omitempty"`
	At       time.Time `json:"at"`
}

// OrderChanged builds an ISSUE_CHANGED event
func OrderChanged(tableID, branchID, orderID int64) Event {
	return Event{Type: IssueChanged, TableID: tableID, BranchID: branchID, OrderID: orderID, At: time.Now().UTC()}
}

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Sender is the broker operation the AMQP publisher needs
type Sender interface {
	Publish(ctx context.Context, exchange, key string, body []byte) error
}

// AMQPPublisher publishes events to a RabbitMQ fanout exchange
type AMQPPublisher struct {
	sender   Sender
	exchange string
}

// NewAMQPPublisher creates a publisher on the given exchange
func NewAMQPPublisher(sender Sender, exchange string) *AMQPPublisher {
	if exchange == "" {
		exchange = Exchange
	}
	return &AMQPPublisher{sender: sender, exchange: exchange}
}

// Publish encodes and sends the event keyed by table
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	key := fmt.Sprintf("table.%d", e.TableID)
	if err := p.sender.Publish(ctx, p.exchange, key, body); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}

// LogPublisher logs events; used when no broker is configured
type LogPublisher struct{}

// Publish writes the event to the log
func (LogPublisher) Publish(_ context.Context, e Event) error {
	log.WithFields(log.Fields{
		"event":     e.Type,
		"table_id":  e.TableID,
		"branch_id": e.BranchID,
		"order_id":  e.OrderID,
	}).Info("domain event")
	return nil
}

// Emit publishes best-effort: failures are logged and never returned
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.WithError(err).WithField("table_id", e.TableID).Warn("failed to emit domain event")
	}
}
