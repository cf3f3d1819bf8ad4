package split

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

var (
	ErrInvalidTipPercentage = apperr.Validation("tip percentage must be between 0 and 100")
	ErrNegativeTip          = apperr.Validation("tip cannot be negative")
)

// Tip is either a percentage of the amount or a flat override
type Tip struct {
	Percentage *decimal.Decimal `json:"tip_percentage,omitempty"`
	Amount     *decimal.Decimal `json:"tip_amount,omitempty"`
}

// Compute returns the tip for amount. A flat amount wins over a percentage;
// no tip given means zero.
func (t Tip) Compute(amount decimal.Decimal) (decimal.Decimal, error) {
	if t.Amount != nil {
		if t.Amount.IsNegative() {
			return decimal.Zero, ErrNegativeTip
		}
		return money.Round(*t.Amount), nil
	}
	if t.Percentage == nil {
		return decimal.Zero, nil
	}
	pct := *t.Percentage
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, ErrInvalidTipPercentage
	}
	return money.Percent(amount, pct), nil
}
