package order

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/branch"
	"github.com/fkhayef/tablepay/internal/events"
	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

// Common errors
var (
	ErrOrderNotFound    = apperr.NotFound("order not found")
	ErrNoActiveOrder    = apperr.NotFound("table has no active order")
	ErrEmptyCart        = apperr.Validation("cart is empty")
	ErrInvalidLine      = apperr.Validation("cart line needs a name, a quantity of at least 1 and a non-negative price")
	ErrInvalidModifier  = apperr.Validation("modifier needs a quantity of at least 1 and a non-negative price")
	ErrUnknownOwner     = apperr.Validation("dish owners must be diners seated at this table")
	ErrOrderAlreadyPaid = apperr.Conflict("order is already paid")
)

// Store is the persistence the order service needs
type Store interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetActiveByTable(ctx context.Context, tableID int64) (*Order, error)
	GetItems(ctx context.Context, orderID int64) ([]*CartItem, error)
	PaidSum(ctx context.Context, orderID int64) (decimal.Decimal, error)
	SubmitCart(ctx context.Context, tableID int64, lines []CartLine) (*Order, error)
	End(ctx context.Context, orderID int64) error
}

// TableLookup resolves a table id
type TableLookup interface {
	GetTable(ctx context.Context, tableID int64) (*branch.Table, error)
}

// Service handles order accounting and lifecycle
type Service struct {
	repo      Store
	tables    TableLookup
	publisher events.Publisher
}

// NewService creates a new order service
func NewService(repo Store, tables TableLookup, publisher events.Publisher) *Service {
	return &Service{repo: repo, tables: tables, publisher: publisher}
}

// Balance returns total, paid, and remaining for an active order along with
// the order itself. It reads storage on every call.
func (s *Service) Balance(ctx context.Context, orderID int64) (*Order, *Balance, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o == nil || !o.Active {
		return nil, nil, ErrOrderNotFound
	}

	paid, err := s.repo.PaidSum(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	b := NewBalance(o, paid)
	return o, &b, nil
}

// Ledger returns a fresh snapshot of the table's active order
func (s *Service) Ledger(ctx context.Context, tableID int64) (*Ledger, error) {
	o, err := s.repo.GetActiveByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		if _, err := s.tables.GetTable(ctx, tableID); err != nil {
			return nil, err
		}
		return nil, ErrNoActiveOrder
	}

	items, err := s.repo.GetItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	paid, err := s.repo.PaidSum(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	return &Ledger{Order: o, Items: items, Balance: NewBalance(o, paid)}, nil
}

// SubmitCart commits the diner's cart to the table's order. Lines without
// owners belong to the submitting diner.
func (s *Service) SubmitCart(ctx context.Context, tableID, dinerID int64, cart *CartSnapshot) (*Ledger, error) {
	if cart == nil || len(cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]CartLine, len(cart.Lines))
	for i, line := range cart.Lines {
		normalized, err := normalizeLine(line, dinerID)
		if err != nil {
			return nil, err
		}
		lines[i] = normalized
	}

	if _, err := s.tables.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	o, err := s.repo.SubmitCart(ctx, tableID, lines)
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.publisher, events.OrderChanged(tableID, o.BranchID, o.ID))

	return s.Ledger(ctx, tableID)
}

func normalizeLine(line CartLine, dinerID int64) (CartLine, error) {
	line.Name = strings.TrimSpace(line.Name)
	if line.Name == "" || line.Quantity < 1 || line.UnitPrice.IsNegative() {
		return line, ErrInvalidLine
	}
	line.UnitPrice = money.Round(line.UnitPrice)

	mods := make([]CartModifier, len(line.Modifiers))
	for i, m := range line.Modifiers {
		if m.Quantity < 1 || m.Price.IsNegative() {
			return line, ErrInvalidModifier
		}
		m.Price = money.Round(m.Price)
		mods[i] = m
	}
	line.Modifiers = mods

	if len(line.OwnerIDs) == 0 {
		line.OwnerIDs = []int64{dinerID}
	}
	return line, nil
}

// End closes the table's active order
func (s *Service) End(ctx context.Context, tableID int64) (*Order, error) {
	o, err := s.repo.GetActiveByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNoActiveOrder
	}

	if err := s.repo.End(ctx, o.ID); err != nil {
		return nil, err
	}
	o.Active = false
	events.Emit(ctx, s.publisher, events.OrderChanged(tableID, o.BranchID, o.ID))

	return o, nil
}
