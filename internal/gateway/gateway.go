// Package gateway talks to the hosted-checkout payment provider.
package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/pkg/apperr"
)

// CheckoutRequest describes one hosted checkout
type CheckoutRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	Metadata    Metadata
	SuccessURL  string
	CancelURL   string
}

// Session is a checkout session as the provider reports it
type Session struct {
	ID       string
	URL      string
	Paid     bool
	Metadata Metadata
}

// WebhookKind classifies a provider callback
type WebhookKind string

const (
	WebhookCompleted WebhookKind = "completed"
	WebhookFailed    WebhookKind = "failed"
	WebhookIgnored   WebhookKind = "ignored"
)

// WebhookEvent is a verified provider callback
type WebhookEvent struct {
	Kind    WebhookKind
	Type    string
	Session *Session
}

// Gateway is the external payment provider
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// ErrNotConfigured is returned when card payments have no provider
var ErrNotConfigured = apperr.Gateway("card payments are not configured", nil)

// ErrBadMetadata is returned when a session does not carry what settlement needs
var ErrBadMetadata = apperr.Validation("checkout session metadata is incomplete")

// Metadata is the context embedded in a checkout session so the callback can
// commit the payment without client state
type Metadata struct {
	OrderID   int64
	TableID   int64
	BranchID  int64
	DinerID   int64
	SplitType string
	ItemIDs   []int64
	Amount    decimal.Decimal
	Tip       decimal.Decimal
	Currency  string
}

// Encode flattens the metadata to provider key/value pairs
func (m Metadata) Encode() map[string]string {
	ids := make([]string, len(m.ItemIDs))
	for i, id := range m.ItemIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return map[string]string{
		"order_id":   strconv.FormatInt(m.OrderID, 10),
		"table_id":   strconv.FormatInt(m.TableID, 10),
		"branch_id":  strconv.FormatInt(m.BranchID, 10),
		"diner_id":   strconv.FormatInt(m.DinerID, 10),
		"split_type": m.SplitType,
		"item_ids":   strings.Join(ids, ","),
		"amount":     m.Amount.StringFixed(2),
		"tip":        m.Tip.StringFixed(2),
		"currency":   m.Currency,
	}
}

// DecodeMetadata parses what Encode produced
func DecodeMetadata(kv map[string]string) (Metadata, error) {
	var m Metadata
	var err error

	ints := []struct {
		key string
		dst *int64
	}{
		{"order_id", &m.OrderID},
		{"table_id", &m.TableID},
		{"branch_id", &m.BranchID},
		{"diner_id", &m.DinerID},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.ParseInt(kv[f.key], 10, 64); err != nil {
			return m, fmt.Errorf("%w: %s", ErrBadMetadata, f.key)
		}
	}

	if m.Amount, err = decimal.NewFromString(kv["amount"]); err != nil {
		return m, fmt.Errorf("%w: amount", ErrBadMetadata)
	}
	if m.Tip, err = decimal.NewFromString(kv["tip"]); err != nil {
		return m, fmt.Errorf("%w: tip", ErrBadMetadata)
	}

	m.SplitType = kv["split_type"]
	m.Currency = kv["currency"]
	if m.SplitType == "" || m.Currency == "" {
		return m, fmt.Errorf("%w: split_type/currency", ErrBadMetadata)
	}

	if raw := kv["item_ids"]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return m, fmt.Errorf("%w: item_ids", ErrBadMetadata)
			}
			m.ItemIDs = append(m.ItemIDs, id)
		}
	}
	return m, nil
}
