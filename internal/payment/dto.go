package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/order/split"
)

// PayRequest represents the request body for paying part of a table's bill
type PayRequest struct {
	Method    string `json:"method" validate:"required,oneof=CASH CARD"`
	SplitType string `json:"split_type" validate:"required"`
	split.Input
	split.Tip
}

// ConfirmRequest accepts the capped amount and tip offered after an
// overpayment was diverted
type ConfirmRequest struct {
	Method string          `json:"method" validate:"required,oneof=CASH CARD"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Tip    decimal.Decimal `json:"tip"`
}

// RejectIntentRequest carries the staff member's reason for refusing cash
type RejectIntentRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ResultResponse represents the outcome of a payment request
type ResultResponse struct {
	Kind        ResultKind      `json:"kind"`
	Method      Method          `json:"method"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Amount      string          `json:"amount"`
	Tip         string          `json:"tip"`
	Fee         string          `json:"fee"`
	Total       string          `json:"total"`
	Currency    string          `json:"currency_code"`
	FullyPaid   bool            `json:"fully_paid"`
	Overage     string          `json:"overage,omitempty"`
	Intent      *IntentResponse `json:"intent,omitempty"`
}

// IntentResponse represents a cash intent in a response
type IntentResponse struct {
	ID         int64   `json:"id"`
	OrderID    int64   `json:"order_id"`
	DinerID    int64   `json:"diner_id"`
	SplitType  string  `json:"split_type"`
	ItemIDs    []int64 `json:"item_ids,omitempty"`
	Amount     string  `json:"amount"`
	Tip        string  `json:"tip"`
	Status     Status  `json:"status"`
	Reason     *string `json:"reason,omitempty"`
	PaymentID  *int64  `json:"payment_id,omitempty"`
	ResolvedBy *int64  `json:"resolved_by,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// PaymentResponse represents a settlement record in a response
type PaymentResponse struct {
	ID                int64  `json:"id"`
	Reference         string `json:"reference"`
	OrderID           int64  `json:"order_id"`
	DinerID           int64  `json:"diner_id"`
	Method            Method `json:"method"`
	SplitType         string `json:"split_type"`
	Amount            string `json:"amount"`
	Tip               string `json:"tip"`
	Total             string `json:"total"`
	Fee               string `json:"fee"`
	CurrencyCode      string `json:"currency_code"`
	Status            Status `json:"status"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// OverpaymentResponse is returned with 409 when an intent no longer fits the
// balance; the diner can confirm the capped amount instead
type OverpaymentResponse struct {
	Remaining string `json:"remaining"`
	Overage   string `json:"overage"`
	ExtraTip  string `json:"extra_tip"`
}

// CorrectionResponse represents one reconciled diner
type CorrectionResponse struct {
	DinerID int64  `json:"diner_id"`
	Name    string `json:"name"`
	OldPaid string `json:"old_paid"`
	OldTip  string `json:"old_tip"`
	NewPaid string `json:"new_paid"`
	NewTip  string `json:"new_tip"`
}

// ToResponse converts a Result to a ResultResponse DTO
func (r *Result) ToResponse() *ResultResponse {
	resp := &ResultResponse{
		Kind:        r.Kind,
		Method:      r.Method,
		RedirectURL: r.RedirectURL,
		Amount:      r.Amount.StringFixed(2),
		Tip:         r.Tip.StringFixed(2),
		Fee:         r.Fee.StringFixed(2),
		Total:       r.Amount.Add(r.Tip).Add(r.Fee).StringFixed(2),
		Currency:    r.Currency,
		FullyPaid:   r.FullyPaid,
	}
	if r.Overage.IsPositive() {
		resp.Overage = r.Overage.StringFixed(2)
	}
	if r.Intent != nil {
		resp.Intent = r.Intent.ToResponse()
	}
	return resp
}

// ToResponse converts an Intent model to an IntentResponse DTO
func (i *Intent) ToResponse() *IntentResponse {
	return &IntentResponse{
		ID:         i.ID,
		OrderID:    i.OrderID,
		DinerID:    i.DinerID,
		SplitType:  i.SplitType,
		ItemIDs:    i.ItemIDs,
		Amount:     i.Amount.StringFixed(2),
		Tip:        i.Tip.StringFixed(2),
		Status:     i.Status,
		Reason:     i.Reason,
		PaymentID:  i.PaymentID,
		ResolvedBy: i.ResolvedBy,
		CreatedAt:  i.CreatedAt.Format(time.RFC3339),
	}
}

// ToResponse converts a Payment model to a PaymentResponse DTO
func (p *Payment) ToResponse() *PaymentResponse {
	resp := &PaymentResponse{
		ID:           p.ID,
		Reference:    p.Reference.String(),
		OrderID:      p.OrderID,
		DinerID:      p.DinerID,
		Method:       p.Method,
		SplitType:    p.SplitType,
		Amount:       p.Amount.StringFixed(2),
		Tip:          p.Tip.StringFixed(2),
		Total:        p.Total.StringFixed(2),
		Fee:          p.Fee.StringFixed(2),
		CurrencyCode: p.CurrencyCode,
		Status:       p.Status,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
	if p.CheckoutSessionID != nil {
		resp.CheckoutSessionID = *p.CheckoutSessionID
	}
	return resp
}

// ToResponse converts an OverpaymentError to an OverpaymentResponse DTO
func (e *OverpaymentError) ToResponse() *OverpaymentResponse {
	return &OverpaymentResponse{
		Remaining: e.Decision.Capped.StringFixed(2),
		Overage:   e.Decision.Overage.StringFixed(2),
		ExtraTip:  e.Decision.ExtraTip.StringFixed(2),
	}
}

// ToResponse converts a Correction to a CorrectionResponse DTO
func (c Correction) ToResponse() *CorrectionResponse {
	return &CorrectionResponse{
		DinerID: c.DinerID,
		Name:    c.Name,
		OldPaid: c.OldPaid.StringFixed(2),
		OldTip:  c.OldTip.StringFixed(2),
		NewPaid: c.NewPaid.StringFixed(2),
		NewTip:  c.NewTip.StringFixed(2),
	}
}
