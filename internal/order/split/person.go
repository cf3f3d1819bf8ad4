package split

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PER-PERSON STRATEGY
// Pays the shares of one or more diners; a dish owned by k diners
// contributes 1/k of its line total to each of them
// =============================================================================

// PerPersonStrategy implements the Strategy interface for paying by diner
type PerPersonStrategy struct{}

// Type returns the split type identifier
func (s *PerPersonStrategy) Type() Type {
	return TypePerPerson
}

// Validate requires at least one selected diner
func (s *PerPersonStrategy) Validate(in Input) error {
	if len(in.DinerIDs) == 0 {
		return ErrNothingSelected
	}
	return nil
}

// Calculate sums the selected diners' shares of the items still unpaid
func (s *PerPersonStrategy) Calculate(ledger Ledger, in Input) (decimal.Decimal, error) {
	if err := s.Validate(in); err != nil {
		return decimal.Zero, err
	}

	unpaid := make([]Item, 0, len(ledger.Items))
	for _, it := range ledger.Items {
		if !it.Paid {
			unpaid = append(unpaid, it)
		}
	}
	shares := Shares(unpaid)

	total := decimal.Zero
	for _, id := range Unique(in.DinerIDs) {
		total = total.Add(shares[id])
	}
	return total, nil
}

// Shares builds the per-diner total map. Each line is split in whole cents
// among its owners (lowest diner id first receives the leftover cents), so the
// shares always add up to the sum of the owned line totals. Items without
// owners are not attributable and are skipped.
func Shares(items []Item) map[int64]decimal.Decimal {
	shares := make(map[int64]decimal.Decimal)
	for _, it := range items {
		owners := Unique(it.OwnerIDs)
		if len(owners) == 0 {
			continue
		}
		sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

		cents := it.LineTotal().Shift(2).IntPart()
		n := int64(len(owners))
		base, remainder := cents/n, cents%n
		for i, owner := range owners {
			c := base
			if int64(i) < remainder {
				c++
			}
			shares[owner] = shares[owner].Add(decimal.New(c, -2))
		}
	}
	return shares
}
