package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/fkhayef/tablepay/internal/diner"
	"github.com/fkhayef/tablepay/internal/events"
	"github.com/fkhayef/tablepay/internal/gateway"
	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/internal/notification"
	"github.com/fkhayef/tablepay/internal/order"
	"github.com/fkhayef/tablepay/internal/order/split"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

// Common errors
var (
	ErrUnsupportedMethod   = apperr.UnsupportedMethod("unsupported payment method")
	ErrIntentNotFound      = apperr.NotFound("payment intent not found")
	ErrInvalidStatusChange = apperr.Conflict("payment intent is no longer pending")
	ErrInvalidConfirmation = apperr.Validation("confirmation needs a positive amount and a non-negative tip")
	ErrDuplicateSession    = errors.New("checkout session already recorded")
)

// Store is the persistence the payment service needs
type Store interface {
	// WithinTx runs fn in one transaction; an error rolls everything back
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	CreateIntent(ctx context.Context, in *Intent) (*Intent, error)
	GetIntent(ctx context.Context, id int64) (*Intent, error)
	FindBySession(ctx context.Context, sessionID string) (*Payment, error)
	InsertRejected(ctx context.Context, p *Payment) error
	ListByOrder(ctx context.Context, orderID int64) ([]*Payment, error)
}

// Tx is the transactional part of the store used by settlement
type Tx interface {
	// LockOrder reads the order under a row lock; nil when it does not exist
	LockOrder(ctx context.Context, orderID int64) (*LockedOrder, error)
	InsertPayment(ctx context.Context, p *Payment) error
	// AddToDiner increments the diner accumulators and returns the diner name
	AddToDiner(ctx context.Context, dinerID int64, amount, tip decimal.Decimal) (string, error)
	AddOrderTip(ctx context.Context, orderID int64, tip decimal.Decimal) error
	MarkOrderPaid(ctx context.Context, orderID int64) error
	// MarkItemsPaid flags still-unpaid items and returns how many changed
	MarkItemsPaid(ctx context.Context, orderID int64, itemIDs []int64, paidBy string) (int, error)
	// ResolveIntent moves a pending intent to status; ErrInvalidStatusChange
	// when it is no longer pending
	ResolveIntent(ctx context.Context, intentID int64, status Status, paymentID *int64, employeeID int64, reason *string) error
	DinerTotals(ctx context.Context, orderID int64) ([]DinerTotals, error)
	SetDinerTotals(ctx context.Context, dinerID int64, paid, tip decimal.Decimal) error
}

// OrderReader reads fresh order snapshots
type OrderReader interface {
	Ledger(ctx context.Context, tableID int64) (*order.Ledger, error)
}

// DinerLookup checks that a diner sits at a table
type DinerLookup interface {
	AtTable(ctx context.Context, id, tableID int64) (*diner.Diner, error)
}

// Deps are the collaborators of the payment service
type Deps struct {
	Store      Store
	Orders     OrderReader
	Diners     DinerLookup
	Notifier   Notifier
	Publisher  events.Publisher
	Gateway    gateway.Gateway
	Currencies *money.Catalog
	BaseURL    string
}

// Service computes, guards, routes, and settles payments
type Service struct {
	store      Store
	orders     OrderReader
	diners     DinerLookup
	notifier   Notifier
	publisher  events.Publisher
	gateway    gateway.Gateway
	currencies *money.Catalog
	router     *Router
	factory    *split.Factory
}

// NewService creates a new payment service
func NewService(d Deps) *Service {
	if d.Currencies == nil {
		d.Currencies = money.Default()
	}
	return &Service{
		store:      d.Store,
		orders:     d.Orders,
		diners:     d.Diners,
		notifier:   d.Notifier,
		publisher:  d.Publisher,
		gateway:    d.Gateway,
		currencies: d.Currencies,
		router:     NewRouter(d.Store, d.Notifier, d.Publisher, d.Gateway, d.Currencies, d.BaseURL),
		factory:    split.NewFactory(),
	}
}

// Pay prices the diner's selection against a fresh ledger, guards it, and
// routes it. An overshooting selection comes back as a confirm result.
func (s *Service) Pay(ctx context.Context, tableID, dinerID int64, req *PayRequest) (*Result, error) {
	method, err := ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}
	strategy, err := s.factory.CreateFromString(req.SplitType)
	if err != nil {
		return nil, err
	}
	if err := strategy.Validate(req.Input); err != nil {
		return nil, err
	}

	d, err := s.diners.AtTable(ctx, dinerID, tableID)
	if err != nil {
		return nil, err
	}

	ledger, err := s.orders.Ledger(ctx, tableID)
	if err != nil {
		return nil, err
	}

	amount, err := strategy.Calculate(ledger.ForSplit(), req.Input)
	if err != nil {
		return nil, err
	}
	tip, err := req.Tip.Compute(amount)
	if err != nil {
		return nil, err
	}

	decision, err := Guard(amount, tip, ledger.Balance.Remaining)
	if err != nil {
		return nil, err
	}
	o := ledger.Order
	if decision.Divert {
		return &Result{
			Kind:      ResultConfirm,
			Method:    method,
			Amount:    decision.Capped,
			Tip:       tip.Add(decision.ExtraTip),
			Overage:   decision.Overage,
			Currency:  o.CurrencyCode,
			FullyPaid: true,
		}, nil
	}

	var itemIDs []int64
	if strategy.Type() == split.TypePerDish {
		itemIDs = split.Unique(req.ItemIDs)
	}

	return s.router.Route(ctx, RouteRequest{
		Method:      method,
		OrderID:     o.ID,
		TableID:     o.TableID,
		TableNumber: o.TableNumber,
		BranchID:    o.BranchID,
		DinerID:     d.ID,
		DinerName:   d.Name,
		SplitType:   strategy.Type(),
		ItemIDs:     itemIDs,
		Amount:      amount,
		Tip:         tip,
		Currency:    o.CurrencyCode,
		FullyPaid:   decision.FullyPaid,
	})
}

// Confirm pays the capped amount and tip offered by a confirm result. It is
// guarded again against the balance at this moment.
func (s *Service) Confirm(ctx context.Context, tableID, dinerID int64, req *ConfirmRequest) (*Result, error) {
	if !req.Amount.IsPositive() || req.Tip.IsNegative() {
		return nil, ErrInvalidConfirmation
	}
	amount, tip := req.Amount, req.Tip
	return s.Pay(ctx, tableID, dinerID, &PayRequest{
		Method:    req.Method,
		SplitType: string(split.TypeCustom),
		Input:     split.Input{Amount: &amount},
		Tip:       split.Tip{Amount: &tip},
	})
}

// AcceptIntent settles a pending cash payment collected by a staff member.
// An intent that no longer fits the balance fails with *OverpaymentError and
// stays pending.
func (s *Service) AcceptIntent(ctx context.Context, intentID, employeeID int64) (*Payment, error) {
	intent, err := s.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != StatusPending {
		return nil, ErrInvalidStatusChange
	}

	return s.commit(ctx, settlement{
		OrderID:    intent.OrderID,
		DinerID:    intent.DinerID,
		Method:     MethodCash,
		SplitType:  intent.SplitType,
		ItemIDs:    intent.ItemIDs,
		Amount:     intent.Amount,
		Tip:        intent.Tip,
		IntentID:   intent.ID,
		EmployeeID: employeeID,
	}, divertOverpayment)
}

// RejectIntent closes a pending cash payment without touching the ledger
func (s *Service) RejectIntent(ctx context.Context, intentID, employeeID int64, reason string) (*Intent, error) {
	intent, err := s.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != StatusPending {
		return nil, ErrInvalidStatusChange
	}

	var why *string
	if reason != "" {
		why = &reason
	}
	if err := s.store.WithinTx(ctx, func(tx Tx) error {
		return tx.ResolveIntent(ctx, intentID, StatusRejected, nil, employeeID, why)
	}); err != nil {
		return nil, err
	}

	intent.Status = StatusRejected
	intent.Reason = why
	intent.ResolvedBy = &employeeID
	events.Emit(ctx, s.publisher, events.OrderChanged(intent.TableID, intent.BranchID, intent.OrderID))
	notifyBestEffort(ctx, s.notifier, intent.BranchID, notification.Message{
		Type:       notification.NotificationTypeCashRejected,
		Body:       fmt.Sprintf("Cash payment of %s was rejected", money.MustFormat(intent.Amount.Add(intent.Tip), intent.CurrencyCode)),
		EntityType: "PAYMENT_INTENT",
		EntityID:   intent.ID,
	})
	return intent, nil
}

// GetIntent retrieves a cash intent by its ID
func (s *Service) GetIntent(ctx context.Context, id int64) (*Intent, error) {
	intent, err := s.store.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

// CompleteCheckout settles a paid gateway session exactly once. Replays of
// the same session return the payment already recorded.
func (s *Service) CompleteCheckout(ctx context.Context, sess *gateway.Session) (*Payment, error) {
	if existing, err := s.store.FindBySession(ctx, sess.ID); err != nil || existing != nil {
		return existing, err
	}

	m := sess.Metadata
	sessionID := sess.ID
	p, err := s.commit(ctx, settlement{
		OrderID:   m.OrderID,
		DinerID:   m.DinerID,
		Method:    MethodCard,
		SplitType: m.SplitType,
		ItemIDs:   m.ItemIDs,
		Amount:    m.Amount,
		Tip:       m.Tip,
		SessionID: &sessionID,
	}, foldOverpaymentIntoTip)
	if errors.Is(err, ErrDuplicateSession) {
		return s.store.FindBySession(ctx, sess.ID)
	}
	return p, err
}

// FailCheckout records an expired or failed gateway session as a rejected
// payment. The ledger is not touched.
func (s *Service) FailCheckout(ctx context.Context, sess *gateway.Session) error {
	existing, err := s.store.FindBySession(ctx, sess.ID)
	if err != nil || existing != nil {
		return err
	}

	m := sess.Metadata
	sessionID := sess.ID
	gross := m.Amount.Add(m.Tip)
	err = s.store.InsertRejected(ctx, &Payment{
		OrderID:           m.OrderID,
		DinerID:           m.DinerID,
		Method:            MethodCard,
		SplitType:         m.SplitType,
		Amount:            m.Amount,
		Tip:               m.Tip,
		Total:             gross,
		Fee:               Fee(MethodCard, gross),
		CurrencyCode:      m.Currency,
		Status:            StatusRejected,
		CheckoutSessionID: &sessionID,
	})
	if errors.Is(err, ErrDuplicateSession) {
		return nil
	}
	if err != nil {
		return err
	}

	events.Emit(ctx, s.publisher, events.OrderChanged(m.TableID, m.BranchID, m.OrderID))
	notifyBestEffort(ctx, s.notifier, m.BranchID, notification.Message{
		Type:       notification.NotificationTypeCheckoutFailed,
		Body:       fmt.Sprintf("Card payment of %s did not complete", money.MustFormat(gross, m.Currency)),
		EntityType: "ORDER",
		EntityID:   m.OrderID,
	})
	return nil
}

// HandleWebhook verifies a gateway callback and settles or fails the session.
// Callbacks that cannot be settled are logged for reconciliation and
// acknowledged so the gateway stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*Payment, error) {
	if s.gateway == nil {
		return nil, gateway.ErrNotConfigured
	}
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}

	logger := log.WithField("event", ev.Type)
	switch ev.Kind {
	case gateway.WebhookCompleted:
		p, err := s.CompleteCheckout(ctx, ev.Session)
		if err != nil {
			if isSettlementRefusal(err) {
				logger.WithError(err).WithField("session_id", ev.Session.ID).
					Error("captured card payment could not be settled; reconcile manually")
				return nil, nil
			}
			return nil, err
		}
		return p, nil
	case gateway.WebhookFailed:
		return nil, s.FailCheckout(ctx, ev.Session)
	default:
		logger.Debug("ignoring gateway event")
		return nil, nil
	}
}

// CheckoutSuccess settles the session the diner was redirected back with.
// It returns the table view URL to send the diner to.
func (s *Service) CheckoutSuccess(ctx context.Context, sessionID string) (*Payment, string, error) {
	if s.gateway == nil {
		return nil, "", gateway.ErrNotConfigured
	}
	sess, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	tableURL := s.router.TableURL(sess.Metadata.TableID)
	if !sess.Paid {
		return nil, tableURL, nil
	}

	p, err := s.CompleteCheckout(ctx, sess)
	if err != nil {
		return nil, "", err
	}
	return p, tableURL, nil
}

// ListByOrder retrieves all payments of an order
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]*Payment, error) {
	return s.store.ListByOrder(ctx, orderID)
}

// Reconcile rebuilds each diner's accumulators from their accepted payments
// on the order and returns the diners that changed
func (s *Service) Reconcile(ctx context.Context, orderID int64) ([]Correction, error) {
	var corrections []Correction
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		lo, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if lo == nil || !lo.Active {
			return order.ErrOrderNotFound
		}

		totals, err := tx.DinerTotals(ctx, orderID)
		if err != nil {
			return err
		}
		for _, t := range totals {
			want := t.PaymentPaid.Add(t.PaymentTip)
			if t.Paid.Equal(t.PaymentPaid) && t.Tip.Equal(t.PaymentTip) && t.Total.Equal(want) {
				continue
			}
			if err := tx.SetDinerTotals(ctx, t.DinerID, t.PaymentPaid, t.PaymentTip); err != nil {
				return err
			}
			corrections = append(corrections, Correction{
				DinerID: t.DinerID,
				Name:    t.Name,
				OldPaid: t.Paid,
				OldTip:  t.Tip,
				NewPaid: t.PaymentPaid,
				NewTip:  t.PaymentTip,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range corrections {
		log.WithFields(log.Fields{
			"order_id": orderID,
			"diner_id": c.DinerID,
			"old_paid": c.OldPaid.StringFixed(2),
			"new_paid": c.NewPaid.StringFixed(2),
		}).Warn("diner accumulators reconciled")
	}
	return corrections, nil
}

// isSettlementRefusal reports errors that retrying the callback cannot fix
func isSettlementRefusal(err error) bool {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return false
	}
	return kind == apperr.KindNotFound || kind == apperr.KindValidation || kind == apperr.KindConflict
}

func notifyBestEffort(ctx context.Context, n Notifier, branchID int64, msg notification.Message) {
	if n == nil {
		return
	}
	if _, err := n.NotifyStaff(ctx, branchID, msg); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"branch_id": branchID,
			"type":      msg.Type,
		}).Warn("failed to notify staff")
	}
}
