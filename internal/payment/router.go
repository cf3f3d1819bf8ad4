package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/events"
	"github.com/fkhayef/tablepay/internal/gateway"
	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/internal/notification"
	"github.com/fkhayef/tablepay/internal/order/split"
)

// ResultKind tells the client what to do next
type ResultKind string

const (
	// ResultRedirect sends the diner to RedirectURL (table view or gateway)
	ResultRedirect ResultKind = "redirect"
	// ResultConfirm asks the diner to confirm a capped amount with the
	// overage folded into the tip. It is not a failure.
	ResultConfirm ResultKind = "confirm"
)

// Result is the single outcome type for every payment path
type Result struct {
	Kind        ResultKind
	Method      Method
	RedirectURL string
	Amount      decimal.Decimal
	Tip         decimal.Decimal
	Fee         decimal.Decimal
	Currency    string
	FullyPaid   bool
	Intent      *Intent
	SessionID   string
	Overage     decimal.Decimal
}

// RouteRequest is a guarded payment ready to be routed
type RouteRequest struct {
	Method      Method
	OrderID     int64
	TableID     int64
	TableNumber int
	BranchID    int64
	DinerID     int64
	DinerName   string
	SplitType   split.Type
	ItemIDs     []int64
	Amount      decimal.Decimal
	Tip         decimal.Decimal
	Currency    string
	FullyPaid   bool
}

// Notifier tells the staff of a branch about payments
type Notifier interface {
	NotifyStaff(ctx context.Context, branchID int64, msg notification.Message) ([]*notification.Notification, error)
}

// Router sends a payment down the cash or card path
type Router struct {
	store      Store
	notifier   Notifier
	publisher  events.Publisher
	gateway    gateway.Gateway
	currencies *money.Catalog
	baseURL    string
}

// NewRouter creates a payment method router. gw may be nil when card
// payments are not configured.
func NewRouter(store Store, notifier Notifier, publisher events.Publisher, gw gateway.Gateway, currencies *money.Catalog, baseURL string) *Router {
	if currencies == nil {
		currencies = money.Default()
	}
	return &Router{
		store:      store,
		notifier:   notifier,
		publisher:  publisher,
		gateway:    gw,
		currencies: currencies,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// TableURL is the diner's table view
func (r *Router) TableURL(tableID int64) string {
	return fmt.Sprintf("%s/tables/%d", r.baseURL, tableID)
}

// Route creates a pending cash intent or a hosted card checkout. Neither path
// writes to the ledger.
func (r *Router) Route(ctx context.Context, req RouteRequest) (*Result, error) {
	switch req.Method {
	case MethodCash:
		return r.routeCash(ctx, req)
	case MethodCard:
		return r.routeCard(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
}

func (r *Router) routeCash(ctx context.Context, req RouteRequest) (*Result, error) {
	intent, err := r.store.CreateIntent(ctx, &Intent{
		OrderID:   req.OrderID,
		DinerID:   req.DinerID,
		SplitType: string(req.SplitType),
		ItemIDs:   req.ItemIDs,
		Amount:    req.Amount,
		Tip:       req.Tip,
	})
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Table %d: %s wants to pay %s in cash (%s + %s tip)",
		req.TableNumber, req.DinerName,
		r.format(req.Amount.Add(req.Tip), req.Currency),
		r.format(req.Amount, req.Currency),
		r.format(req.Tip, req.Currency))
	notifyBestEffort(ctx, r.notifier, req.BranchID, notification.Message{
		Type:       notification.NotificationTypeCashRequested,
		Body:       body,
		EntityType: "PAYMENT_INTENT",
		EntityID:   intent.ID,
	})
	events.Emit(ctx, r.publisher, events.OrderChanged(req.TableID, req.BranchID, req.OrderID))

	return &Result{
		Kind:        ResultRedirect,
		Method:      MethodCash,
		RedirectURL: r.TableURL(req.TableID),
		Amount:      req.Amount,
		Tip:         req.Tip,
		Fee:         decimal.Zero,
		Currency:    req.Currency,
		FullyPaid:   req.FullyPaid,
		Intent:      intent,
	}, nil
}

func (r *Router) routeCard(ctx context.Context, req RouteRequest) (*Result, error) {
	if r.gateway == nil {
		return nil, gateway.ErrNotConfigured
	}

	gross := req.Amount.Add(req.Tip)
	fee := Fee(MethodCard, gross)
	minor, err := r.currencies.ToMinor(gross.Add(fee), req.Currency)
	if err != nil {
		return nil, err
	}

	sess, err := r.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		AmountMinor: minor,
		Currency:    req.Currency,
		Description: fmt.Sprintf("Table %d bill", req.TableNumber),
		SuccessURL:  r.baseURL + "/api/v1/payments/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   r.TableURL(req.TableID),
		Metadata: gateway.Metadata{
			OrderID:   req.OrderID,
			TableID:   req.TableID,
			BranchID:  req.BranchID,
			DinerID:   req.DinerID,
			SplitType: string(req.SplitType),
			ItemIDs:   req.ItemIDs,
			Amount:    req.Amount,
			Tip:       req.Tip,
			Currency:  req.Currency,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Kind:        ResultRedirect,
		Method:      MethodCard,
		RedirectURL: sess.URL,
		Amount:      req.Amount,
		Tip:         req.Tip,
		Fee:         fee,
		Currency:    req.Currency,
		FullyPaid:   req.FullyPaid,
		SessionID:   sess.ID,
	}, nil
}

func (r *Router) format(amount decimal.Decimal, currency string) string {
	s, err := r.currencies.Format(amount, currency)
	if err != nil {
		return money.MustFormat(amount, currency)
	}
	return s
}
