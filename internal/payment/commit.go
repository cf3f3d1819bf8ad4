package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/events"
	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/internal/notification"
	"github.com/fkhayef/tablepay/internal/order"
	"github.com/fkhayef/tablepay/internal/order/split"
)

// overpaymentPolicy decides what a commit does when the payment no longer
// fits the balance it is guarded against
type overpaymentPolicy int

const (
	// divertOverpayment refuses the commit with *OverpaymentError
	divertOverpayment overpaymentPolicy = iota
	// foldOverpaymentIntoTip records money that was already captured, moving
	// the overage into the tip
	foldOverpaymentIntoTip
)

// settlement is one payment about to be written to the ledger
type settlement struct {
	OrderID    int64
	DinerID    int64
	Method     Method
	SplitType  string
	ItemIDs    []int64
	Amount     decimal.Decimal
	Tip        decimal.Decimal
	SessionID  *string
	IntentID   int64
	EmployeeID int64
}

// committed carries what the post-commit side effects need
type committed struct {
	payment   *Payment
	order     *LockedOrder
	dinerName string
	fullyPaid bool
}

// commit re-guards the settlement against the locked order and writes the
// payment, the diner and order accumulators, the paid items, and the intent
// resolution in one transaction
func (s *Service) commit(ctx context.Context, st settlement, policy overpaymentPolicy) (*Payment, error) {
	var c committed
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		lo, err := tx.LockOrder(ctx, st.OrderID)
		if err != nil {
			return err
		}
		if lo == nil || !lo.Active {
			return order.ErrOrderNotFound
		}

		remaining := order.Remaining(lo.Total, lo.Paid)
		amount, tip := st.Amount, st.Tip
		decision, err := Guard(amount, tip, remaining)
		switch {
		case err == nil && decision.Divert:
			if policy == divertOverpayment {
				return &OverpaymentError{Decision: decision}
			}
			amount = decision.Capped
			tip = tip.Add(decision.Overage)
		case err == nil:
		case errors.Is(err, ErrAlreadyPaid) && policy == foldOverpaymentIntoTip:
			tip = tip.Add(amount)
			amount = decimal.Zero
		default:
			return err
		}

		gross := amount.Add(tip)
		p := &Payment{
			Reference:         uuid.New(),
			OrderID:           lo.ID,
			DinerID:           st.DinerID,
			Method:            st.Method,
			SplitType:         st.SplitType,
			Amount:            amount,
			Tip:               tip,
			Total:             gross,
			Fee:               Fee(st.Method, gross),
			CurrencyCode:      lo.CurrencyCode,
			Status:            StatusAccepted,
			CheckoutSessionID: st.SessionID,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}

		name, err := tx.AddToDiner(ctx, st.DinerID, amount, tip)
		if err != nil {
			return err
		}
		if tip.IsPositive() {
			if err := tx.AddOrderTip(ctx, lo.ID, tip); err != nil {
				return err
			}
		}

		if st.SplitType == string(split.TypePerDish) && len(st.ItemIDs) > 0 {
			n, err := tx.MarkItemsPaid(ctx, lo.ID, st.ItemIDs, name)
			if err != nil {
				return err
			}
			if n < len(st.ItemIDs) && policy == divertOverpayment {
				return split.ErrItemAlreadyPaid
			}
		}

		fullyPaid := !amount.LessThan(remaining)
		if fullyPaid {
			if err := tx.MarkOrderPaid(ctx, lo.ID); err != nil {
				return err
			}
		}

		if st.IntentID != 0 {
			paymentID := p.ID
			if err := tx.ResolveIntent(ctx, st.IntentID, StatusAccepted, &paymentID, st.EmployeeID, nil); err != nil {
				return err
			}
		}

		c = committed{payment: p, order: lo, dinerName: name, fullyPaid: fullyPaid}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, c)
	return c.payment, nil
}

// afterCommit publishes the change and tells the staff; neither can undo the
// payment
func (s *Service) afterCommit(ctx context.Context, c committed) {
	lo, p := c.order, c.payment
	events.Emit(ctx, s.publisher, events.OrderChanged(lo.TableID, lo.BranchID, lo.ID))

	body := fmt.Sprintf("Table %d: %s paid %s by %s",
		lo.TableNumber, c.dinerName, s.format(p.Total, p.CurrencyCode), p.Method)
	if c.fullyPaid {
		body += ". The bill is fully paid"
	}
	notifyBestEffort(ctx, s.notifier, lo.BranchID, notification.Message{
		Type:       notification.NotificationTypePaymentSettled,
		Body:       body,
		EntityType: "PAYMENT",
		EntityID:   p.ID,
	})
}

func (s *Service) format(amount decimal.Decimal, currency string) string {
	out, err := s.currencies.Format(amount, currency)
	if err != nil {
		return money.MustFormat(amount, currency)
	}
	return out
}
