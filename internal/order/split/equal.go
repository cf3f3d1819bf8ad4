package split

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/money"
)

// =============================================================================
// EQUAL PARTS STRATEGY
// Divides the order total into personCount parts and pays payingFor of them
// =============================================================================

// EqualPartsStrategy implements the Strategy interface for equal shares
type EqualPartsStrategy struct{}

// Type returns the split type identifier
func (s *EqualPartsStrategy) Type() Type {
	return TypeEqualParts
}

// Validate checks 1 <= payingFor <= personCount
func (s *EqualPartsStrategy) Validate(in Input) error {
	if in.PersonCount < 1 {
		return ErrInvalidPersonCount
	}
	if in.PayingFor < 1 || in.PayingFor > in.PersonCount {
		return ErrInvalidPayingFor
	}
	return nil
}

// Calculate returns (total / personCount) × payingFor. Paying for everyone
// settles the remaining balance so rounding never leaves cents behind.
func (s *EqualPartsStrategy) Calculate(ledger Ledger, in Input) (decimal.Decimal, error) {
	if err := s.Validate(in); err != nil {
		return decimal.Zero, err
	}
	if in.PayingFor == in.PersonCount {
		return ledger.Remaining, nil
	}

	share := ledger.Total.Div(decimal.NewFromInt(int64(in.PersonCount)))
	return money.Round(share.Mul(decimal.NewFromInt(int64(in.PayingFor)))), nil
}
