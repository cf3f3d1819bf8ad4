package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/money"
)

// Method is how a diner pays
type Method string

const (
	MethodCash Method = "CASH"
	MethodCard Method = "CARD"
)

// ParseMethod accepts cash or card in any case; anything else is unsupported
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodCash:
		return MethodCash, nil
	case MethodCard:
		return MethodCard, nil
	default:
		return "", ErrUnsupportedMethod
	}
}

// CardFeePercent is the surcharge applied to card payments
var CardFeePercent = decimal.NewFromInt(5)

// Fee is the surcharge for paying gross (amount + tip) with a method
func Fee(m Method, gross decimal.Decimal) decimal.Decimal {
	if m != MethodCard {
		return decimal.Zero
	}
	return money.Percent(gross, CardFeePercent)
}

// Status represents the status of a payment or a cash intent
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Payment is an immutable settlement record. Accepted amounts are never
// revised; corrections are new rows.
type Payment struct {
	ID                int64           `json:"id"`
	Reference         uuid.UUID       `json:"reference"`
	OrderID           int64           `json:"order_id"`
	DinerID           int64           `json:"diner_id"`
	Method            Method          `json:"method"`
	SplitType         string          `json:"split_type"`
	Amount            decimal.Decimal `json:"amount"`
	Tip               decimal.Decimal `json:"tip"`
	Total             decimal.Decimal `json:"total"`
	Fee               decimal.Decimal `json:"fee"`
	CurrencyCode      string          `json:"currency_code"`
	Status            Status          `json:"status"`
	CheckoutSessionID *string         `json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Intent is a cash payment waiting for a staff member to collect it
type Intent struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"order_id"`
	DinerID    int64           `json:"diner_id"`
	SplitType  string          `json:"split_type"`
	ItemIDs    []int64         `json:"item_ids,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Tip        decimal.Decimal `json:"tip"`
	Status     Status          `json:"status"`
	Reason     *string         `json:"reason,omitempty"`
	PaymentID  *int64          `json:"payment_id,omitempty"`
	ResolvedBy *int64          `json:"resolved_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`

	// Populated via JOIN
	TableID      int64  `json:"table_id,omitempty"`
	BranchID     int64  `json:"branch_id,omitempty"`
	CurrencyCode string `json:"currency_code,omitempty"`
}

// LockedOrder is the order row as read under the settlement lock, with the
// sum of accepted payment amounts
type LockedOrder struct {
	ID           int64
	TableID      int64
	TableNumber  int
	BranchID     int64
	Active       bool
	Total        decimal.Decimal
	Paid         decimal.Decimal
	CurrencyCode string
}

// DinerTotals compares a diner's accumulators with what their accepted
// payments add up to
type DinerTotals struct {
	DinerID     int64
	Name        string
	Paid        decimal.Decimal
	Tip         decimal.Decimal
	Total       decimal.Decimal
	PaymentPaid decimal.Decimal
	PaymentTip  decimal.Decimal
}

// Correction is one diner whose accumulators were rebuilt from payments
type Correction struct {
	DinerID int64           `json:"diner_id"`
	Name    string          `json:"name"`
	OldPaid decimal.Decimal `json:"old_paid"`
	OldTip  decimal.Decimal `json:"old_tip"`
	NewPaid decimal.Decimal `json:"new_paid"`
	NewTip  decimal.Decimal `json:"new_tip"`
}
