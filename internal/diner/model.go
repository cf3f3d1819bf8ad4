package diner

import (
	"time"

	"github.com/shopspring/decimal"
)

// Diner is a table-scoped guest identified by the browser session. The
// accumulators are written only by payment settlement and reset when the
// order ends.
type Diner struct {
	ID        int64           `json:"id"`
	TableID   int64           `json:"table_id"`
	OrderID   *int64          `json:"order_id,omitempty"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Paid      decimal.Decimal `json:"paid"`
	Tip       decimal.Decimal `json:"tip"`
	Total     decimal.Decimal `json:"total"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}
