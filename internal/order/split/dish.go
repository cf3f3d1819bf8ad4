package split

import "github.com/shopspring/decimal"

// =============================================================================
// PER-DISH STRATEGY
// Pays for an explicit set of cart items, priced from storage
// =============================================================================

// PerDishStrategy implements the Strategy interface for item selection
type PerDishStrategy struct{}

// Type returns the split type identifier
func (s *PerDishStrategy) Type() Type {
	return TypePerDish
}

// Validate requires at least one selected item
func (s *PerDishStrategy) Validate(in Input) error {
	if len(in.ItemIDs) == 0 {
		return ErrNothingSelected
	}
	return nil
}

// Calculate sums the persisted line totals of the selected items. Duplicate
// ids count once; unknown or already paid items reject the whole selection.
func (s *PerDishStrategy) Calculate(ledger Ledger, in Input) (decimal.Decimal, error) {
	if err := s.Validate(in); err != nil {
		return decimal.Zero, err
	}

	byID := indexItems(ledger.Items)
	total := decimal.Zero
	for _, id := range Unique(in.ItemIDs) {
		item, ok := byID[id]
		if !ok {
			return decimal.Zero, ErrUnknownItem
		}
		if item.Paid {
			return decimal.Zero, ErrItemAlreadyPaid
		}
		total = total.Add(item.LineTotal())
	}
	return total, nil
}
