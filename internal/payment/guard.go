package payment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

// FallbackTipPercent is suggested on the confirm path when the diner chose
// no tip
var FallbackTipPercent = decimal.NewFromInt(12)

var (
	ErrNothingToPay = apperr.Validation("nothing selected to pay")
	ErrAlreadyPaid  = apperr.Validation("order is already paid")
	ErrOverpayment  = apperr.Conflict("payment exceeds the remaining balance")
)

// Decision is the outcome of checking a candidate amount against the
// remaining balance
type Decision struct {
	// Divert means the candidate overshoots and must be confirmed at the
	// capped amount instead of being committed
	Divert    bool
	Capped    decimal.Decimal
	Overage   decimal.Decimal
	ExtraTip  decimal.Decimal
	FullyPaid bool
}

// Guard checks candidate (before tip) against remaining. tip is the tip the
// diner already chose.
func Guard(candidate, tip, remaining decimal.Decimal) (Decision, error) {
	if !candidate.IsPositive() {
		return Decision{}, ErrNothingToPay
	}
	if !remaining.IsPositive() {
		return Decision{}, ErrAlreadyPaid
	}

	switch candidate.Cmp(remaining) {
	case 1:
		overage := candidate.Sub(remaining)
		extra := overage
		if !tip.IsPositive() {
			extra = extra.Add(money.Percent(remaining, FallbackTipPercent))
		}
		return Decision{
			Divert:    true,
			Capped:    remaining,
			Overage:   overage,
			ExtraTip:  extra,
			FullyPaid: true,
		}, nil
	case 0:
		return Decision{Capped: candidate, FullyPaid: true}, nil
	default:
		return Decision{Capped: candidate}, nil
	}
}

// OverpaymentError carries the diversion when a commit finds the balance
// smaller than the payment
type OverpaymentError struct {
	Decision Decision
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("%s: only %s remains", ErrOverpayment.Msg, e.Decision.Capped.StringFixed(2))
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }
