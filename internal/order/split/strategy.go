package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

// Type defines the type of split strategy
type Type string

const (
	TypeFullBill   Type = "FULL_BILL"
	TypePerDish    Type = "PER_DISH"
	TypePerPerson  Type = "PER_PERSON"
	TypeEqualParts Type = "EQUAL_PARTS"
	TypeCustom     Type = "CUSTOM"
)

// Modifier is an extra priced option attached to a cart item
type Modifier struct {
	Price    decimal.Decimal
	Quantity int
}

// Item is the persisted view of a cart line that strategies price from.
// Prices come from storage, never from the client.
type Item struct {
	ID        int64
	UnitPrice decimal.Decimal
	Quantity  int
	Modifiers []Modifier
	Paid      bool
	OwnerIDs  []int64
}

// LineTotal is unit price × quantity plus every modifier's price × quantity
func (i Item) LineTotal() decimal.Decimal {
	total := i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
	for _, m := range i.Modifiers {
		total = total.Add(m.Price.Mul(decimal.NewFromInt(int64(m.Quantity))))
	}
	return money.Round(total)
}

// Ledger is the authoritative order state a strategy prices against. It must
// be read fresh for every pricing decision.
type Ledger struct {
	Total     decimal.Decimal
	Remaining decimal.Decimal
	Items     []Item
}

// Input is the diner's selection for one payment request
type Input struct {
	ItemIDs     []int64          `json:"item_ids,omitempty"`     // PER_DISH
	DinerIDs    []int64          `json:"diner_ids,omitempty"`    // PER_PERSON
	PersonCount int              `json:"person_count,omitempty"` // EQUAL_PARTS
	PayingFor   int              `json:"paying_for,omitempty"`   // EQUAL_PARTS
	Amount      *decimal.Decimal `json:"amount,omitempty"`       // CUSTOM
}

// Strategy is the interface that all split strategies must implement
type Strategy interface {
	// Calculate returns the amount before tip this payment should cover
	Calculate(ledger Ledger, in Input) (decimal.Decimal, error)

	// Type returns the type identifier for this strategy
	Type() Type

	// Validate checks the selection independently of the ledger
	Validate(in Input) error
}

// Factory creates split strategies based on the requested type
type Factory struct{}

// NewFactory creates a new factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// Create returns the strategy implementation for the type
func (f *Factory) Create(t Type) (Strategy, error) {
	switch t {
	case TypeFullBill:
		return &FullBillStrategy{}, nil
	case TypePerDish:
		return &PerDishStrategy{}, nil
	case TypePerPerson:
		return &PerPersonStrategy{}, nil
	case TypeEqualParts:
		return &EqualPartsStrategy{}, nil
	case TypeCustom:
		return &CustomStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// CreateFromString creates a strategy from a string type (useful for API requests)
func (f *Factory) CreateFromString(t string) (Strategy, error) {
	return f.Create(Type(t))
}

var (
	ErrUnknownType        = apperr.Validation("unknown split type")
	ErrNothingSelected    = apperr.Validation("nothing selected to pay")
	ErrUnknownItem        = apperr.Validation("selected item is not on this order")
	ErrItemAlreadyPaid    = apperr.Validation("selected item is already paid")
	ErrInvalidPersonCount = apperr.Validation("person count must be at least 1")
	ErrInvalidPayingFor   = apperr.Validation("paying for must be between 1 and the person count")
	ErrMissingAmount      = apperr.Validation("amount required for a custom split")
	ErrNonPositiveAmount  = apperr.Validation("amount must be > 0")
)

func indexItems(items []Item) map[int64]Item {
	byID := make(map[int64]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return byID
}

// Unique drops repeated ids, keeping first-seen order
func Unique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
