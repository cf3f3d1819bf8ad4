package order

import (
	"github.com/fkhayef/tablepay/internal/money"
)

// CartSnapshot is the diner's session cart submitted to the table's order
type CartSnapshot struct {
	Lines []CartLine `json:"lines" validate:"required,min=1"`
}

// BalanceResponse represents the accounting view of an order
type BalanceResponse struct {
	OrderID      int64  `json:"order_id"`
	CurrencyCode string `json:"currency_code"`
	Total        string `json:"total"`
	Paid         string `json:"paid"`
	Remaining    string `json:"remaining"`
	Display      string `json:"display"`
}

// ModifierResponse represents a modifier in a response
type ModifierResponse struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// CartItemResponse represents a cart item in a response
type CartItemResponse struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	UnitPrice string              `json:"unit_price"`
	Quantity  int                 `json:"quantity"`
	LineTotal string              `json:"line_total"`
	Paid      bool                `json:"paid"`
	PaidBy    *string             `json:"paid_by,omitempty"`
	Modifiers []*ModifierResponse `json:"modifiers,omitempty"`
	OwnerIDs  []int64             `json:"owner_ids,omitempty"`
}

// OrderResponse represents the response for a table's active order
type OrderResponse struct {
	ID        int64               `json:"id"`
	TableID   int64               `json:"table_id"`
	Number    int                 `json:"table_number"`
	BranchID  int64               `json:"branch_id"`
	Active    bool                `json:"active"`
	Tip       string              `json:"tip"`
	Paid      bool                `json:"paid"`
	PaidAt    *string             `json:"paid_at,omitempty"`
	CreatedAt string              `json:"created_at"`
	Balance   *BalanceResponse    `json:"balance"`
	Items     []*CartItemResponse `json:"items"`
}

// ToResponse converts a Balance to a BalanceResponse DTO
func (b Balance) ToResponse(orderID int64, currency string) *BalanceResponse {
	return &BalanceResponse{
		OrderID:      orderID,
		CurrencyCode: currency,
		Total:        b.Total.StringFixed(2),
		Paid:         b.Paid.StringFixed(2),
		Remaining:    b.Remaining.StringFixed(2),
		Display:      money.MustFormat(b.Remaining, currency),
	}
}

// ToResponse converts a CartItem model to a CartItemResponse DTO
func (c *CartItem) ToResponse() *CartItemResponse {
	resp := &CartItemResponse{
		ID:        c.ID,
		Name:      c.Name,
		UnitPrice: c.UnitPrice.StringFixed(2),
		Quantity:  c.Quantity,
		LineTotal: c.LineTotal().StringFixed(2),
		Paid:      c.Paid,
		PaidBy:    c.PaidBy,
		OwnerIDs:  c.OwnerIDs,
	}
	for _, m := range c.Modifiers {
		resp.Modifiers = append(resp.Modifiers, &ModifierResponse{
			Name:     m.Name,
			Price:    m.Price.StringFixed(2),
			Quantity: m.Quantity,
		})
	}
	return resp
}

// ToResponse converts a Ledger to an OrderResponse DTO
func (l *Ledger) ToResponse() *OrderResponse {
	o := l.Order
	resp := &OrderResponse{
		ID:        o.ID,
		TableID:   o.TableID,
		Number:    o.TableNumber,
		BranchID:  o.BranchID,
		Active:    o.Active,
		Tip:       o.Tip.StringFixed(2),
		Paid:      o.Paid,
		CreatedAt: o.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Balance:   l.Balance.ToResponse(o.ID, o.CurrencyCode),
		Items:     make([]*CartItemResponse, len(l.Items)),
	}
	if o.PaidAt != nil {
		paidAt := o.PaidAt.Format("2006-01-02T15:04:05Z")
		resp.PaidAt = &paidAt
	}
	for i, it := range l.Items {
		resp.Items[i] = it.ToResponse()
	}
	return resp
}
