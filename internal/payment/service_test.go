package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tablepay/internal/diner"
	"github.com/fkhayef/tablepay/internal/events"
	"github.com/fkhayef/tablepay/internal/gateway"
	"github.com/fkhayef/tablepay/internal/notification"
	"github.com/fkhayef/tablepay/internal/order"
	"github.com/fkhayef/tablepay/internal/order/split"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

const baseURL = "http://localhost:8080"

// world is an in-memory table with one order, serialised the way row locks
// serialise settlement in the database
type world struct {
	mu       sync.Mutex
	order    *order.Order
	items    []*order.CartItem
	diners   map[int64]*diner.Diner
	intents  map[int64]*Intent
	payments []*Payment
	nextID   int64
}

func newWorld(total string) *world {
	orderID := int64(1)
	return &world{
		order: &order.Order{
			ID: orderID, TableID: 5, Active: true, Total: decimal.NewNullDecimal(d(total)),
			TableNumber: 5, BranchID: 1, CurrencyCode: "USD", CreatedAt: time.Now(),
		},
		diners: map[int64]*diner.Diner{
			1: {ID: 1, TableID: 5, OrderID: &orderID, Name: "Alice", Active: true},
			2: {ID: 2, TableID: 5, OrderID: &orderID, Name: "Bob", Active: true},
		},
		intents: map[int64]*Intent{},
		nextID:  100,
	}
}

func (w *world) id() int64 {
	w.nextID++
	return w.nextID
}

func (w *world) paidSum() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range w.payments {
		if p.OrderID == w.order.ID && p.Status == StatusAccepted {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}

func (w *world) accepted() []*Payment {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*Payment
	for _, p := range w.payments {
		if p.Status == StatusAccepted {
			out = append(out, p)
		}
	}
	return out
}

func (w *world) diner(id int64) diner.Diner {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.diners[id]
}

func (w *world) intent(id int64) Intent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.intents[id]
}

type worldState struct {
	order    order.Order
	items    []order.CartItem
	diners   map[int64]diner.Diner
	intents  map[int64]Intent
	payments []*Payment
}

func (w *world) snapshot() worldState {
	s := worldState{
		order:    *w.order,
		diners:   map[int64]diner.Diner{},
		intents:  map[int64]Intent{},
		payments: append([]*Payment(nil), w.payments...),
	}
	for _, it := range w.items {
		s.items = append(s.items, *it)
	}
	for id, dn := range w.diners {
		s.diners[id] = *dn
	}
	for id, in := range w.intents {
		s.intents[id] = *in
	}
	return s
}

func (w *world) restore(s worldState) {
	o := s.order
	w.order = &o
	w.items = nil
	for i := range s.items {
		it := s.items[i]
		w.items = append(w.items, &it)
	}
	w.diners = map[int64]*diner.Diner{}
	for id, dn := range s.diners {
		dn := dn
		w.diners[id] = &dn
	}
	w.intents = map[int64]*Intent{}
	for id, in := range s.intents {
		in := in
		w.intents[id] = &in
	}
	w.payments = s.payments
}

// Store

func (w *world) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	before := w.snapshot()
	if err := fn(worldTx{w}); err != nil {
		w.restore(before)
		return err
	}
	return nil
}

func (w *world) CreateIntent(_ context.Context, in *Intent) (*Intent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := *in
	out.ID = w.id()
	out.Status = StatusPending
	out.CreatedAt = time.Now()
	w.intents[out.ID] = &out
	cp := out
	return &cp, nil
}

func (w *world) GetIntent(_ context.Context, id int64) (*Intent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	in, ok := w.intents[id]
	if !ok {
		return nil, nil
	}
	out := *in
	out.TableID = w.order.TableID
	out.BranchID = w.order.BranchID
	out.CurrencyCode = w.order.CurrencyCode
	return &out, nil
}

func (w *world) FindBySession(_ context.Context, sessionID string) (*Payment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.payments {
		if p.CheckoutSessionID != nil && *p.CheckoutSessionID == sessionID {
			return p, nil
		}
	}
	return nil, nil
}

func (w *world) InsertRejected(_ context.Context, p *Payment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return worldTx{w}.InsertPayment(context.Background(), p)
}

func (w *world) ListByOrder(_ context.Context, orderID int64) ([]*Payment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := []*Payment{}
	for _, p := range w.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// Tx; the world lock is already held

type worldTx struct{ w *world }

func (t worldTx) LockOrder(_ context.Context, orderID int64) (*LockedOrder, error) {
	o := t.w.order
	if o.ID != orderID {
		return nil, nil
	}
	return &LockedOrder{
		ID: o.ID, TableID: o.TableID, TableNumber: o.TableNumber, BranchID: o.BranchID,
		Active: o.Active, Total: o.TotalOrZero(), Paid: t.w.paidSum(), CurrencyCode: o.CurrencyCode,
	}, nil
}

func (t worldTx) InsertPayment(_ context.Context, p *Payment) error {
	if p.CheckoutSessionID != nil {
		for _, existing := range t.w.payments {
			if existing.CheckoutSessionID != nil && *existing.CheckoutSessionID == *p.CheckoutSessionID {
				return ErrDuplicateSession
			}
		}
	}
	p.ID = t.w.id()
	p.CreatedAt = time.Now()
	cp := *p
	t.w.payments = append(t.w.payments, &cp)
	return nil
}

func (t worldTx) AddToDiner(_ context.Context, dinerID int64, amount, tip decimal.Decimal) (string, error) {
	dn, ok := t.w.diners[dinerID]
	if !ok {
		return "", diner.ErrDinerNotFound
	}
	dn.Paid = dn.Paid.Add(amount)
	dn.Tip = dn.Tip.Add(tip)
	dn.Total = dn.Total.Add(amount).Add(tip)
	return dn.Name, nil
}

func (t worldTx) AddOrderTip(_ context.Context, _ int64, tip decimal.Decimal) error {
	t.w.order.Tip = t.w.order.Tip.Add(tip)
	return nil
}

func (t worldTx) MarkOrderPaid(_ context.Context, _ int64) error {
	t.w.order.Paid = true
	return nil
}

func (t worldTx) MarkItemsPaid(_ context.Context, _ int64, itemIDs []int64, paidBy string) (int, error) {
	n := 0
	for _, it := range t.w.items {
		for _, id := range itemIDs {
			if it.ID == id && it.Active && !it.Paid {
				it.Paid = true
				by := paidBy
				it.PaidBy = &by
				n++
			}
		}
	}
	return n, nil
}

func (t worldTx) ResolveIntent(_ context.Context, intentID int64, status Status, paymentID *int64, employeeID int64, reason *string) error {
	in, ok := t.w.intents[intentID]
	if !ok || in.Status != StatusPending {
		return ErrInvalidStatusChange
	}
	in.Status = status
	in.PaymentID = paymentID
	in.ResolvedBy = &employeeID
	in.Reason = reason
	return nil
}

func (t worldTx) DinerTotals(_ context.Context, orderID int64) ([]DinerTotals, error) {
	var out []DinerTotals
	for _, dn := range t.w.diners {
		tot := DinerTotals{DinerID: dn.ID, Name: dn.Name, Paid: dn.Paid, Tip: dn.Tip, Total: dn.Total}
		for _, p := range t.w.payments {
			if p.DinerID == dn.ID && p.OrderID == orderID && p.Status == StatusAccepted {
				tot.PaymentPaid = tot.PaymentPaid.Add(p.Amount)
				tot.PaymentTip = tot.PaymentTip.Add(p.Tip)
			}
		}
		out = append(out, tot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DinerID < out[j].DinerID })
	return out, nil
}

func (t worldTx) SetDinerTotals(_ context.Context, dinerID int64, paid, tip decimal.Decimal) error {
	dn := t.w.diners[dinerID]
	dn.Paid, dn.Tip, dn.Total = paid, tip, paid.Add(tip)
	return nil
}

// OrderReader and DinerLookup

func (w *world) Ledger(_ context.Context, tableID int64) (*order.Ledger, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.order.TableID != tableID || !w.order.Active {
		return nil, order.ErrNoActiveOrder
	}
	o := *w.order
	items := make([]*order.CartItem, len(w.items))
	for i, it := range w.items {
		cp := *it
		items[i] = &cp
	}
	return &order.Ledger{Order: &o, Items: items, Balance: order.NewBalance(&o, w.paidSum())}, nil
}

func (w *world) AtTable(_ context.Context, id, tableID int64) (*diner.Diner, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	dn, ok := w.diners[id]
	if !ok {
		return nil, diner.ErrDinerNotFound
	}
	if dn.TableID != tableID {
		return nil, diner.ErrNotAtTable
	}
	cp := *dn
	return &cp, nil
}

type notifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *notifier) NotifyStaff(_ context.Context, _ int64, msg notification.Message) ([]*notification.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil, nil
}

func (n *notifier) types() []notification.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.NotificationType, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Type
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type fakeGateway struct {
	requests []gateway.CheckoutRequest
	sessions map[string]*gateway.Session
	err      error
	event    *gateway.WebhookEvent
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req gateway.CheckoutRequest) (*gateway.Session, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	id := fmt.Sprintf("cs_test_%d", len(g.requests))
	sess := &gateway.Session{ID: id, URL: "https://checkout.example/" + id, Metadata: req.Metadata}
	if g.sessions == nil {
		g.sessions = map[string]*gateway.Session{}
	}
	g.sessions[id] = sess
	return sess, nil
}

func (g *fakeGateway) GetSession(_ context.Context, id string) (*gateway.Session, error) {
	sess, ok := g.sessions[id]
	if !ok {
		return nil, apperr.Gateway("no such session", nil)
	}
	return sess, nil
}

func (g *fakeGateway) ParseWebhook(_ []byte, signature string) (*gateway.WebhookEvent, error) {
	if signature != "sig" {
		return nil, apperr.Validation("invalid webhook signature")
	}
	return g.event, nil
}

type fixture struct {
	svc      *Service
	world    *world
	notifier *notifier
	events   *recorder
	gateway  *fakeGateway
}

func newFixture(total string) *fixture {
	f := &fixture{world: newWorld(total), notifier: &notifier{}, events: &recorder{}, gateway: &fakeGateway{}}
	f.svc = NewService(Deps{
		Store:     f.world,
		Orders:    f.world,
		Diners:    f.world,
		Notifier:  f.notifier,
		Publisher: f.events,
		Gateway:   f.gateway,
		BaseURL:   baseURL,
	})
	return f
}

func cashFullBill(tipPct string) *PayRequest {
	return &PayRequest{Method: "CASH", SplitType: "FULL_BILL", Tip: split.Tip{Percentage: dp(tipPct)}}
}

func custom(method, amount string) *PayRequest {
	return &PayRequest{Method: method, SplitType: "CUSTOM", Input: split.Input{Amount: dp(amount)}}
}

func TestCashPaymentEndToEnd(t *testing.T) {
	f := newFixture("300")
	ctx := context.Background()

	res, err := f.svc.Pay(ctx, 5, 1, cashFullBill("10"))
	require.NoError(t, err)
	assert.Equal(t, ResultRedirect, res.Kind)
	assert.Equal(t, baseURL+"/tables/5", res.RedirectURL)
	assert.True(t, res.FullyPaid)
	require.NotNil(t, res.Intent)
	assert.Equal(t, StatusPending, res.Intent.Status)
	assertAmount(t, "300", res.Intent.Amount)
	assertAmount(t, "30", res.Intent.Tip)

	// nothing is settled until staff collect the cash
	assert.Empty(t, f.world.accepted())
	require.Len(t, f.notifier.msgs, 1)
	assert.Equal(t, notification.NotificationTypeCashRequested, f.notifier.msgs[0].Type)
	assert.Contains(t, f.notifier.msgs[0].Body, "$330.00")
	assert.Equal(t, res.Intent.ID, f.notifier.msgs[0].EntityID)

	p, err := f.svc.AcceptIntent(ctx, res.Intent.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, p.Status)
	assert.Equal(t, MethodCash, p.Method)
	assertAmount(t, "300", p.Amount)
	assertAmount(t, "30", p.Tip)
	assertAmount(t, "330", p.Total)
	assertAmount(t, "0", p.Fee)
	assert.Equal(t, "USD", p.CurrencyCode)

	alice := f.world.diner(1)
	assertAmount(t, "300", alice.Paid)
	assertAmount(t, "30", alice.Tip)
	assertAmount(t, "330", alice.Total)
	assert.True(t, f.world.order.Paid)
	assertAmount(t, "30", f.world.order.Tip)

	in := f.world.intent(res.Intent.ID)
	assert.Equal(t, StatusAccepted, in.Status)
	require.NotNil(t, in.PaymentID)
	assert.Equal(t, p.ID, *in.PaymentID)
	assert.Equal(t, int64(7), *in.ResolvedBy)

	assert.Equal(t, []notification.NotificationType{
		notification.NotificationTypeCashRequested,
		notification.NotificationTypePaymentSettled,
	}, f.notifier.types())
	assert.Contains(t, f.notifier.msgs[1].Body, "fully paid")
	assert.Len(t, f.events.events, 2)

	_, err = f.svc.AcceptIntent(ctx, res.Intent.ID, 7)
	require.ErrorIs(t, err, ErrInvalidStatusChange)

	_, err = f.svc.Pay(ctx, 5, 2, custom("CASH", "10"))
	require.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestSecondCashIntentIsReguardedAgainstFreshBalance(t *testing.T) {
	f := newFixture("300")
	ctx := context.Background()

	first, err := f.svc.Pay(ctx, 5, 1, custom("CASH", "200"))
	require.NoError(t, err)
	second, err := f.svc.Pay(ctx, 5, 2, custom("CASH", "200"))
	require.NoError(t, err)

	_, err = f.svc.AcceptIntent(ctx, first.Intent.ID, 7)
	require.NoError(t, err)

	_, err = f.svc.AcceptIntent(ctx, second.Intent.ID, 7)
	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	assertAmount(t, "100", over.Decision.Capped)
	assertAmount(t, "100", over.Decision.Overage)

	assert.Equal(t, StatusPending, f.world.intent(second.Intent.ID).Status)
	assert.Len(t, f.world.accepted(), 1)
	assert.False(t, f.world.order.Paid)
	assertAmount(t, "0", f.world.diner(2).Paid)
}

func TestConcurrentAcceptsSettleOnlyWhatFits(t *testing.T) {
	f := newFixture("300")
	ctx := context.Background()

	a, err := f.svc.Pay(ctx, 5, 1, custom("CASH", "200"))
	require.NoError(t, err)
	b, err := f.svc.Pay(ctx, 5, 2, custom("CASH", "200"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{a.Intent.ID, b.Intent.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = f.svc.AcceptIntent(ctx, id, 7)
		}(i, id)
	}
	wg.Wait()

	var succeeded, diverted int
	for _, err := range errs {
		var over *OverpaymentError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &over):
			diverted++
			assertAmount(t, "100", over.Decision.Capped)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, diverted)
	assert.Len(t, f.world.accepted(), 1)
}

func TestOverpaymentDivertsToConfirm(t *testing.T) {
	f := newFixture("300")
	ctx := context.Background()

	first, err := f.svc.Pay(ctx, 5, 1, custom("CASH", "200"))
	require.NoError(t, err)
	_, err = f.svc.AcceptIntent(ctx, first.Intent.ID, 7)
	require.NoError(t, err)

	res, err := f.svc.Pay(ctx, 5, 2, custom("CASH", "200"))
	require.NoError(t, err)
	assert.Equal(t, ResultConfirm, res.Kind)
	assert.Nil(t, res.Intent)
	assertAmount(t, "100", res.Amount)
	assertAmount(t, "100", res.Overage)
	// no tip chosen: the overage plus the 12% fallback
	assertAmount(t, "112", res.Tip)
	assert.True(t, res.FullyPaid)
	assert.Len(t, f.world.intents, 1)

	confirmed, err := f.svc.Confirm(ctx, 5, 2, &ConfirmRequest{Method: "CASH", Amount: d("100"), Tip: d("100")})
	require.NoError(t, err)
	assert.Equal(t, ResultRedirect, confirmed.Kind)
	require.NotNil(t, confirmed.Intent)
	assert.Equal(t, string(split.TypeCustom), confirmed.Intent.SplitType)

	p, err := f.svc.AcceptIntent(ctx, confirmed.Intent.ID, 7)
	require.NoError(t, err)
	assertAmount(t, "100", p.Amount)
	assertAmount(t, "100", p.Tip)
	assert.True(t, f.world.order.Paid)

	_, err = f.svc.Confirm(ctx, 5, 2, &ConfirmRequest{Method: "CASH", Amount: d("0"), Tip: d("1")})
	require.ErrorIs(t, err, ErrInvalidConfirmation)
}

func TestPerDishSettlementMarksItems(t *testing.T) {
	f := newFixture("134")
	f.world.items = []*order.CartItem{
		{ID: 10, OrderID: 1, Name: "Pizza", UnitPrice: d("12.50"), Quantity: 2, Active: true},
		{ID: 11, OrderID: 1, Name: "Pasta", UnitPrice: d("9.00"), Quantity: 1, Active: true},
		{ID: 12, OrderID: 1, Name: "Wine", UnitPrice: d("100.00"), Quantity: 1, Active: true},
	}
	ctx := context.Background()
	perDish := &PayRequest{Method: "CASH", SplitType: "PER_DISH", Input: split.Input{ItemIDs: []int64{10, 10}}}

	first, err := f.svc.Pay(ctx, 5, 1, perDish)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, first.Intent.ItemIDs)
	assertAmount(t, "25", first.Intent.Amount)

	second, err := f.svc.Pay(ctx, 5, 2, perDish)
	require.NoError(t, err)

	_, err = f.svc.AcceptIntent(ctx, first.Intent.ID, 7)
	require.NoError(t, err)
	require.True(t, f.world.items[0].Paid)
	assert.Equal(t, "Alice", *f.world.items[0].PaidBy)

	// the same dish cannot be settled twice; nothing of the second commit sticks
	_, err = f.svc.AcceptIntent(ctx, second.Intent.ID, 7)
	require.ErrorIs(t, err, split.ErrItemAlreadyPaid)
	assert.Len(t, f.world.accepted(), 1)
	assertAmount(t, "0", f.world.diner(2).Paid)
	assert.Equal(t, StatusPending, f.world.intent(second.Intent.ID).Status)

	_, err = f.svc.Pay(ctx, 5, 2, perDish)
	require.ErrorIs(t, err, split.ErrItemAlreadyPaid)
}

func TestRejectIntent(t *testing.T) {
	f := newFixture("300")
	ctx := context.Background()

	res, err := f.svc.Pay(ctx, 5, 1, custom("CASH", "50"))
	require.NoError(t, err)

	in, err := f.svc.RejectIntent(ctx, res.Intent.ID, 7, "customer left")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, in.Status)
	require.NotNil(t, in.Reason)
	assert.Equal(t, "customer left", *in.Reason)

	assert.Equal(t, StatusRejected, f.world.intent(res.Intent.ID).Status)
	assert.Empty(t, f.world.accepted())
	assert.Contains(t, f.notifier.types(), notification.NotificationTypeCashRejected)

	_, err = f.svc.AcceptIntent(ctx, res.Intent.ID, 7)
	require.ErrorIs(t, err, ErrInvalidStatusChange)

	_, err = f.svc.RejectIntent(ctx, 999, 7, "")
	require.ErrorIs(t, err, ErrIntentNotFound)
}

func TestPayValidation(t *testing.T) {
	f := newFixture("300")
	ctx := context.Background()

	_, err := f.svc.Pay(ctx, 5, 1, custom("BITCOIN", "10"))
	require.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = f.svc.Pay(ctx, 5, 1, &PayRequest{Method: "CASH", SplitType: "HALF"})
	require.ErrorIs(t, err, split.ErrUnknownType)

	_, err = f.svc.Pay(ctx, 5, 1, &PayRequest{Method: "CASH", SplitType: "CUSTOM"})
	require.ErrorIs(t, err, split.ErrMissingAmount)

	_, err = f.svc.Pay(ctx, 6, 1, custom("CASH", "10"))
	require.ErrorIs(t, err, diner.ErrNotAtTable)

	_, err = f.svc.Pay(ctx, 5, 42, custom("CASH", "10"))
	require.ErrorIs(t, err, diner.ErrDinerNotFound)

	_, err = f.svc.Pay(ctx, 5, 1, &PayRequest{Method: "CASH", SplitType: "CUSTOM",
		Input: split.Input{Amount: dp("10")}, Tip: split.Tip{Percentage: dp("150")}})
	require.ErrorIs(t, err, split.ErrInvalidTipPercentage)

	assert.Empty(t, f.world.intents)
	assert.Empty(t, f.notifier.msgs)
}

func TestCardCheckoutSettlesOncePerSession(t *testing.T) {
	f := newFixture("100")
	ctx := context.Background()

	res, err := f.svc.Pay(ctx, 5, 1, &PayRequest{Method: "card", SplitType: "FULL_BILL", Tip: split.Tip{Amount: dp("20")}})
	require.NoError(t, err)
	assert.Equal(t, ResultRedirect, res.Kind)
	assert.Equal(t, "https://checkout.example/cs_test_1", res.RedirectURL)
	assertAmount(t, "6", res.Fee)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, int64(12600), req.AmountMinor)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, int64(1), req.Metadata.OrderID)
	assert.Equal(t, int64(5), req.Metadata.TableID)
	assert.Equal(t, "FULL_BILL", req.Metadata.SplitType)
	assertAmount(t, "100", req.Metadata.Amount)
	assertAmount(t, "20", req.Metadata.Tip)
	assert.Empty(t, f.world.payments)

	sess := f.gateway.sessions[res.SessionID]
	sess.Paid = true
	f.gateway.event = &gateway.WebhookEvent{Kind: gateway.WebhookCompleted, Type: "checkout.session.completed", Session: sess}

	p, err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, MethodCard, p.Method)
	assertAmount(t, "100", p.Amount)
	assertAmount(t, "20", p.Tip)
	assertAmount(t, "6", p.Fee)

	replay, err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, p.ID, replay.ID)

	// the diner's redirect arrives after the webhook
	again, tableURL, err := f.svc.CheckoutSuccess(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, baseURL+"/tables/5", tableURL)

	assert.Len(t, f.world.accepted(), 1)
	assertAmount(t, "100", f.world.diner(1).Paid)
	assert.True(t, f.world.order.Paid)

	_, err = f.svc.HandleWebhook(ctx, []byte(`{}`), "forged")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCapturedCardOverpaymentFoldsIntoTip(t *testing.T) {
	f := newFixture("100")
	ctx := context.Background()

	cash, err := f.svc.Pay(ctx, 5, 2, custom("CASH", "60"))
	require.NoError(t, err)
	_, err = f.svc.AcceptIntent(ctx, cash.Intent.ID, 7)
	require.NoError(t, err)

	p, err := f.svc.CompleteCheckout(ctx, &gateway.Session{ID: "cs_late", Paid: true, Metadata: gateway.Metadata{
		OrderID: 1, TableID: 5, BranchID: 1, DinerID: 1, SplitType: "FULL_BILL",
		Amount: d("100"), Tip: decimal.Zero, Currency: "USD",
	}})
	require.NoError(t, err)
	assertAmount(t, "40", p.Amount)
	assertAmount(t, "60", p.Tip)
	assertAmount(t, "100", p.Total)
	assertAmount(t, "5", p.Fee)
	assert.True(t, f.world.order.Paid)
}

func TestUnsettleableWebhookIsAcknowledged(t *testing.T) {
	f := newFixture("100")
	f.world.order.Active = false
	f.gateway.event = &gateway.WebhookEvent{Kind: gateway.WebhookCompleted, Session: &gateway.Session{
		ID: "cs_orphan", Paid: true,
		Metadata: gateway.Metadata{OrderID: 1, TableID: 5, DinerID: 1, SplitType: "FULL_BILL", Amount: d("100"), Currency: "USD"},
	}}

	p, err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, f.world.payments)
}

func TestFailedCheckoutIsRecordedAsRejected(t *testing.T) {
	f := newFixture("100")
	ctx := context.Background()
	sess := &gateway.Session{ID: "cs_failed", Metadata: gateway.Metadata{
		OrderID: 1, TableID: 5, BranchID: 1, DinerID: 1, SplitType: "FULL_BILL", Amount: d("100"), Tip: d("10"), Currency: "USD",
	}}
	f.gateway.event = &gateway.WebhookEvent{Kind: gateway.WebhookFailed, Session: sess}

	_, err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)
	_, err = f.svc.HandleWebhook(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)

	require.Len(t, f.world.payments, 1)
	assert.Equal(t, StatusRejected, f.world.payments[0].Status)
	assertAmount(t, "110", f.world.payments[0].Total)
	assert.Empty(t, f.world.accepted())
	assert.False(t, f.world.order.Paid)
	assert.Equal(t, []notification.NotificationType{notification.NotificationTypeCheckoutFailed}, f.notifier.types())
}

func TestGatewayFailureRecordsNothing(t *testing.T) {
	f := newFixture("100")
	f.gateway.err = apperr.Gateway("failed to create checkout session", errors.New("timeout"))

	_, err := f.svc.Pay(context.Background(), 5, 1, custom("CARD", "50"))
	require.ErrorIs(t, err, apperr.ErrGateway)
	assert.Empty(t, f.world.payments)
	assert.Empty(t, f.world.intents)
}

func TestCardWithoutGateway(t *testing.T) {
	w := newWorld("100")
	svc := NewService(Deps{Store: w, Orders: w, Diners: w, BaseURL: baseURL})

	_, err := svc.Pay(context.Background(), 5, 1, custom("CARD", "50"))
	require.ErrorIs(t, err, gateway.ErrNotConfigured)

	_, err = svc.HandleWebhook(context.Background(), nil, "sig")
	require.ErrorIs(t, err, gateway.ErrNotConfigured)
}

func TestCheckoutSuccessBeforePayment(t *testing.T) {
	f := newFixture("100")
	ctx := context.Background()

	res, err := f.svc.Pay(ctx, 5, 1, custom("CARD", "50"))
	require.NoError(t, err)

	p, tableURL, err := f.svc.CheckoutSuccess(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, baseURL+"/tables/5", tableURL)
	assert.Empty(t, f.world.payments)
}

func TestReconcileRebuildsDinerTotals(t *testing.T) {
	f := newFixture("300")
	ctx := context.Background()

	res, err := f.svc.Pay(ctx, 5, 1, cashFullBill("10"))
	require.NoError(t, err)
	_, err = f.svc.AcceptIntent(ctx, res.Intent.ID, 7)
	require.NoError(t, err)

	corrections, err := f.svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, corrections)

	f.world.diners[1].Paid = d("999")
	corrections, err = f.svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	require.Len(t, corrections, 1)
	assert.Equal(t, int64(1), corrections[0].DinerID)
	assertAmount(t, "999", corrections[0].OldPaid)
	assertAmount(t, "300", corrections[0].NewPaid)

	alice := f.world.diner(1)
	assertAmount(t, "300", alice.Paid)
	assertAmount(t, "330", alice.Total)

	_, err = f.svc.Reconcile(ctx, 2)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}
