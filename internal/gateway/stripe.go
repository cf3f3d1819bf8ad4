package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/fkhayef/tablepay/pkg/apperr"
)

// Stripe implements Gateway with Stripe Checkout
type Stripe struct {
	api           *client.API
	webhookSecret string
}

// NewStripe creates a Stripe gateway
func NewStripe(secretKey, webhookSecret string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api, webhookSecret: webhookSecret}
}

// CreateCheckout opens a hosted checkout for a single line of the full charge
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata.Encode() {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, apperr.Gateway("failed to create checkout session", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL, Metadata: req.Metadata}, nil
}

// GetSession fetches a checkout session and decodes its metadata
func (s *Stripe) GetSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, apperr.Gateway("failed to fetch checkout session", err)
	}
	return toSession(sess)
}

// ParseWebhook verifies the signature and classifies the event
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid webhook: %v", err))
	}

	kind := WebhookIgnored
	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		kind = WebhookCompleted
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		kind = WebhookFailed
	default:
		return &WebhookEvent{Kind: WebhookIgnored, Type: string(event.Type)}, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid checkout session payload: %v", err))
	}
	sess, err := toSession(&cs)
	if err != nil {
		return nil, err
	}
	// a completed checkout with a delayed method settles on async_payment_succeeded
	if kind == WebhookCompleted && !sess.Paid {
		kind = WebhookIgnored
	}
	return &WebhookEvent{Kind: kind, Type: string(event.Type), Session: sess}, nil
}

func toSession(cs *stripe.CheckoutSession) (*Session, error) {
	meta, err := DecodeMetadata(cs.Metadata)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:       cs.ID,
		URL:      cs.URL,
		Paid:     cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: meta,
	}, nil
}
