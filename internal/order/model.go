package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/order/split"
)

// Order is the running tab of one table. At most one order per table is
// active at a time.
type Order struct {
	ID        int64               `json:"id"`
	TableID   int64               `json:"table_id"`
	Active    bool                `json:"active"`
	Total     decimal.NullDecimal `json:"total"`
	Tip       decimal.Decimal     `json:"tip"`
	Paid      bool                `json:"paid"`
	PaidAt    *time.Time          `json:"paid_at,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	EndedAt   *time.Time          `json:"ended_at,omitempty"`

	// Populated via JOIN
	TableNumber  int    `json:"table_number"`
	BranchID     int64  `json:"branch_id"`
	CurrencyCode string `json:"currency_code"`
}

// TotalOrZero returns the cached total, treating NULL as zero
func (o *Order) TotalOrZero() decimal.Decimal {
	if !o.Total.Valid {
		return decimal.Zero
	}
	return o.Total.Decimal
}

// Modifier is an extra priced option on a cart item
type Modifier struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// CartItem is a line committed to an order. Committed items are never
// deleted, only flagged.
type CartItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Active    bool            `json:"active"`
	Paid      bool            `json:"paid"`
	PaidBy    *string         `json:"paid_by,omitempty"`
	Modifiers []Modifier      `json:"modifiers,omitempty"`
	OwnerIDs  []int64         `json:"owner_ids,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToSplitItem converts to the split package's priced view
func (c *CartItem) ToSplitItem() split.Item {
	mods := make([]split.Modifier, len(c.Modifiers))
	for i, m := range c.Modifiers {
		mods[i] = split.Modifier{Price: m.Price, Quantity: m.Quantity}
	}
	return split.Item{
		ID:        c.ID,
		UnitPrice: c.UnitPrice,
		Quantity:  c.Quantity,
		Modifiers: mods,
		Paid:      c.Paid,
		OwnerIDs:  c.OwnerIDs,
	}
}

// LineTotal is quantity × unit price plus modifiers
func (c *CartItem) LineTotal() decimal.Decimal {
	return c.ToSplitItem().LineTotal()
}

// Balance is the accounting view of an order
type Balance struct {
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Remaining is total minus what accepted payments already covered
func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	return total.Sub(paid)
}

// NewBalance builds the balance of an order from the sum of accepted payments
func NewBalance(o *Order, paid decimal.Decimal) Balance {
	total := o.TotalOrZero()
	return Balance{Total: total, Paid: paid, Remaining: Remaining(total, paid)}
}

// Ledger is a fresh snapshot of a table's active order that pricing decisions
// are made against
type Ledger struct {
	Order   *Order
	Items   []*CartItem
	Balance Balance
}

// ForSplit returns the view split strategies price against
func (l *Ledger) ForSplit() split.Ledger {
	items := make([]split.Item, len(l.Items))
	for i, it := range l.Items {
		items[i] = it.ToSplitItem()
	}
	return split.Ledger{Total: l.Balance.Total, Remaining: l.Balance.Remaining, Items: items}
}

// CartLine is one typed line of a cart snapshot
type CartLine struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Modifiers []CartModifier  `json:"modifiers,omitempty"`
	OwnerIDs  []int64         `json:"owner_ids,omitempty"`
}

// CartModifier is a priced option chosen for a cart line
type CartModifier struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// LineTotal is quantity × unit price plus modifiers
func (l CartLine) LineTotal() decimal.Decimal {
	item := split.Item{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	for _, m := range l.Modifiers {
		item.Modifiers = append(item.Modifiers, split.Modifier{Price: m.Price, Quantity: m.Quantity})
	}
	return item.LineTotal()
}
