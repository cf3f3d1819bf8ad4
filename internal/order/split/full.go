package split

import "github.com/shopspring/decimal"

// =============================================================================
// FULL BILL STRATEGY
// Pays whatever is left on the order at computation time
// =============================================================================

// FullBillStrategy implements the Strategy interface for paying the whole bill
type FullBillStrategy struct{}

// Type returns the split type identifier
func (s *FullBillStrategy) Type() Type {
	return TypeFullBill
}

// Validate accepts any input; the client cannot influence the amount
func (s *FullBillStrategy) Validate(in Input) error {
	return nil
}

// Calculate returns the remaining balance, ignoring any client figure
func (s *FullBillStrategy) Calculate(ledger Ledger, in Input) (decimal.Decimal, error) {
	return ledger.Remaining, nil
}

// =============================================================================
// CUSTOM AMOUNT STRATEGY
// The diner names the amount; the overpayment guard caps it later
// =============================================================================

// CustomStrategy implements the Strategy interface for a free amount
type CustomStrategy struct{}

// Type returns the split type identifier
func (s *CustomStrategy) Type() Type {
	return TypeCustom
}

// Validate requires a positive amount
func (s *CustomStrategy) Validate(in Input) error {
	if in.Amount == nil {
		return ErrMissingAmount
	}
	if !in.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	return nil
}

// Calculate returns the requested amount rounded to cents
func (s *CustomStrategy) Calculate(ledger Ledger, in Input) (decimal.Decimal, error) {
	if err := s.Validate(in); err != nil {
		return decimal.Zero, err
	}
	return in.Amount.Round(2), nil
}
