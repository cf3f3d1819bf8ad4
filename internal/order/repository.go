package order

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/database"
)

// Repository handles order and cart persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new order repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const orderSelect = `
	SELECT o.id, o.table_id, o.active, o.total, o.tip, o.paid, o.paid_at,
	       o.created_at, o.ended_at, t.number, t.branch_id, b.currency_code
	FROM orders o
	JOIN dining_tables t ON t.id = o.table_id
	JOIN branches b ON b.id = t.branch_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	o := &Order{}
	var paidAt, endedAt sql.NullTime
	if err := row.Scan(
		&o.ID,
		&o.TableID,
		&o.Active,
		&o.Total,
		&o.Tip,
		&o.Paid,
		&paidAt,
		&o.CreatedAt,
		&endedAt,
		&o.TableNumber,
		&o.BranchID,
		&o.CurrencyCode,
	); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if endedAt.Valid {
		o.EndedAt = &endedAt.Time
	}
	return o, nil
}

// GetByID retrieves an order by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// GetActiveByTable retrieves the active order of a table
func (r *Repository) GetActiveByTable(ctx context.Context, tableID int64) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+` WHERE o.table_id = $1 AND o.active`, tableID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active order: %w", err)
	}
	return o, nil
}

// GetItems retrieves the cart items of an order with modifiers and owners
func (r *Repository) GetItems(ctx context.Context, orderID int64) ([]*CartItem, error) {
	query := `
		SELECT id, order_id, name, unit_price, quantity, active, paid, paid_by, created_at
		FROM cart_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	var items []*CartItem
	byID := make(map[int64]*CartItem)
	for rows.Next() {
		it := &CartItem{}
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.Name,
			&it.UnitPrice,
			&it.Quantity,
			&it.Active,
			&it.Paid,
			&it.PaidBy,
			&it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
		byID[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	if err := r.loadModifiers(ctx, orderID, byID); err != nil {
		return nil, err
	}
	if err := r.loadOwners(ctx, orderID, byID); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) loadModifiers(ctx context.Context, orderID int64, byID map[int64]*CartItem) error {
	query := `
		SELECT m.id, m.cart_item_id, m.name, m.price, m.quantity
		FROM cart_item_modifiers m
		JOIN cart_items c ON c.id = m.cart_item_id
		WHERE c.order_id = $1
		ORDER BY m.id
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return fmt.Errorf("failed to get modifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Modifier
		var itemID int64
		if err := rows.Scan(&m.ID, &itemID, &m.Name, &m.Price, &m.Quantity); err != nil {
			return fmt.Errorf("failed to scan modifier: %w", err)
		}
		if it, ok := byID[itemID]; ok {
			it.Modifiers = append(it.Modifiers, m)
		}
	}
	return rows.Err()
}

func (r *Repository) loadOwners(ctx context.Context, orderID int64, byID map[int64]*CartItem) error {
	query := `
		SELECT o.cart_item_id, o.diner_id
		FROM cart_item_owners o
		JOIN cart_items c ON c.id = o.cart_item_id
		WHERE c.order_id = $1
		ORDER BY o.cart_item_id, o.diner_id
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return fmt.Errorf("failed to get item owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, dinerID int64
		if err := rows.Scan(&itemID, &dinerID); err != nil {
			return fmt.Errorf("failed to scan item owner: %w", err)
		}
		if it, ok := byID[itemID]; ok {
			it.OwnerIDs = append(it.OwnerIDs, dinerID)
		}
	}
	return rows.Err()
}

// PaidSum returns the sum of accepted payment amounts (tips excluded)
func (r *Repository) PaidSum(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var paid decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1 AND status = 'ACCEPTED'`
	if err := r.db.QueryRowContext(ctx, query, orderID).Scan(&paid); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	return paid, nil
}

// SubmitCart appends the cart lines to the table's active order, creating the
// order on first submission, and raises the order total by the lines' sum
func (r *Repository) SubmitCart(ctx context.Context, tableID int64, lines []CartLine) (*Order, error) {
	var order *Order
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (table_id, total)
			VALUES ($1, 0)
			ON CONFLICT (table_id) WHERE active DO NOTHING
		`, tableID); err != nil {
			return fmt.Errorf("failed to open order: %w", err)
		}

		var err error
		order, err = scanOrder(tx.QueryRowContext(ctx, orderSelect+` WHERE o.table_id = $1 AND o.active FOR UPDATE OF o`, tableID))
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if order.Paid {
			return ErrOrderAlreadyPaid
		}

		if err := checkOwners(ctx, tx, tableID, lines); err != nil {
			return err
		}

		sum := decimal.Zero
		for _, line := range lines {
			if err := insertLine(ctx, tx, order.ID, line); err != nil {
				return err
			}
			sum = sum.Add(line.LineTotal())
		}

		if err := tx.QueryRowContext(ctx, `
			UPDATE orders SET total = COALESCE(total, 0) + $2
			WHERE id = $1
			RETURNING total
		`, order.ID, sum).Scan(&order.Total); err != nil {
			return fmt.Errorf("failed to update order total: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE diners SET order_id = $1
			WHERE table_id = $2 AND active AND order_id IS NULL
		`, order.ID, tableID); err != nil {
			return fmt.Errorf("failed to attach diners: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func checkOwners(ctx context.Context, tx *sql.Tx, tableID int64, lines []CartLine) error {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, line := range lines {
		for _, id := range line.OwnerIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	var seated int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM diners
		WHERE table_id = $1 AND active AND id = ANY($2)
	`, tableID, pq.Array(ids)).Scan(&seated); err != nil {
		return fmt.Errorf("failed to check item owners: %w", err)
	}
	if seated != len(ids) {
		return ErrUnknownOwner
	}
	return nil
}

func insertLine(ctx context.Context, tx *sql.Tx, orderID int64, line CartLine) error {
	var itemID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO cart_items (order_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, orderID, line.Name, line.UnitPrice, line.Quantity).Scan(&itemID); err != nil {
		return fmt.Errorf("failed to insert cart item: %w", err)
	}

	for _, m := range line.Modifiers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_item_modifiers (cart_item_id, name, price, quantity)
			VALUES ($1, $2, $3, $4)
		`, itemID, m.Name, m.Price, m.Quantity); err != nil {
			return fmt.Errorf("failed to insert modifier: %w", err)
		}
	}

	for _, dinerID := range line.OwnerIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_item_owners (cart_item_id, diner_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, itemID, dinerID); err != nil {
			return fmt.Errorf("failed to link item owner: %w", err)
		}
	}
	return nil
}

// End deactivates an order, retires its items, and detaches its diners with
// their running totals cleared
func (r *Repository) End(ctx context.Context, orderID int64) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var tableID int64
		err := tx.QueryRowContext(ctx, `
			UPDATE orders SET active = FALSE, ended_at = NOW()
			WHERE id = $1 AND active
			RETURNING table_id
		`, orderID).Scan(&tableID)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to end order: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE cart_items SET active = FALSE WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("failed to retire cart items: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE diners
			SET active = FALSE, order_id = NULL, paid = 0, tip = 0, total = 0
			WHERE order_id = $1 OR (table_id = $2 AND active)
		`, orderID, tableID); err != nil {
			return fmt.Errorf("failed to detach diners: %w", err)
		}
		return nil
	})
}
