package payment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/tablepay/internal/database"
	"github.com/fkhayef/tablepay/internal/diner"
)

const sessionConstraint = "payments_checkout_session_id_key"

// Repository handles payment and cash intent persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new payment repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// WithinTx runs fn against a transaction-scoped store
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

// CreateIntent records a pending cash payment
func (r *Repository) CreateIntent(ctx context.Context, in *Intent) (*Intent, error) {
	itemIDs := in.ItemIDs
	if itemIDs == nil {
		itemIDs = []int64{}
	}

	query := `
		INSERT INTO payment_intents (order_id, diner_id, split_type, item_ids, amount, tip)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at
	`
	out := *in
	err := r.db.QueryRowContext(ctx, query,
		in.OrderID,
		in.DinerID,
		in.SplitType,
		pq.Array(itemIDs),
		in.Amount,
		in.Tip,
	).Scan(&out.ID, &out.Status, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return &out, nil
}

// GetIntent retrieves a cash intent with its table, branch, and currency
func (r *Repository) GetIntent(ctx context.Context, id int64) (*Intent, error) {
	query := `
		SELECT i.id, i.order_id, i.diner_id, i.split_type, i.item_ids, i.amount, i.tip,
		       i.status, i.reason, i.payment_id, i.resolved_by, i.created_at, i.resolved_at,
		       o.table_id, t.branch_id, b.currency_code
		FROM payment_intents i
		JOIN orders o ON o.id = i.order_id
		JOIN dining_tables t ON t.id = o.table_id
		JOIN branches b ON b.id = t.branch_id
		WHERE i.id = $1
	`
	in := &Intent{}
	var (
		reason     sql.NullString
		paymentID  sql.NullInt64
		resolvedBy sql.NullInt64
		resolvedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&in.ID,
		&in.OrderID,
		&in.DinerID,
		&in.SplitType,
		pq.Array(&in.ItemIDs),
		&in.Amount,
		&in.Tip,
		&in.Status,
		&reason,
		&paymentID,
		&resolvedBy,
		&in.CreatedAt,
		&resolvedAt,
		&in.TableID,
		&in.BranchID,
		&in.CurrencyCode,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	if reason.Valid {
		in.Reason = &reason.String
	}
	if paymentID.Valid {
		in.PaymentID = &paymentID.Int64
	}
	if resolvedBy.Valid {
		in.ResolvedBy = &resolvedBy.Int64
	}
	if resolvedAt.Valid {
		in.ResolvedAt = &resolvedAt.Time
	}
	return in, nil
}

const paymentColumns = `
	id, reference, order_id, diner_id, method, split_type, amount, tip, total,
	fee, currency_code, status, checkout_session_id, created_at
`

func scanPayment(row scanner) (*Payment, error) {
	p := &Payment{}
	var sessionID sql.NullString
	if err := row.Scan(
		&p.ID,
		&p.Reference,
		&p.OrderID,
		&p.DinerID,
		&p.Method,
		&p.SplitType,
		&p.Amount,
		&p.Tip,
		&p.Total,
		&p.Fee,
		&p.CurrencyCode,
		&p.Status,
		&sessionID,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if sessionID.Valid {
		p.CheckoutSessionID = &sessionID.String
	}
	return p, nil
}

// FindBySession retrieves the payment recorded for a checkout session
func (r *Repository) FindBySession(ctx context.Context, sessionID string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE checkout_session_id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment by session: %w", err)
	}
	return p, nil
}

// InsertRejected records a payment that never reached the ledger
func (r *Repository) InsertRejected(ctx context.Context, p *Payment) error {
	return insertPayment(ctx, r.db, p)
}

// ListByOrder retrieves all payments of an order, oldest first
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []*Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func insertPayment(ctx context.Context, q queryer, p *Payment) error {
	query := `
		INSERT INTO payments (reference, order_id, diner_id, method, split_type, amount, tip,
		                      total, fee, currency_code, status, checkout_session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	err := q.QueryRowContext(ctx, query,
		p.Reference,
		p.OrderID,
		p.DinerID,
		p.Method,
		p.SplitType,
		p.Amount,
		p.Tip,
		p.Total,
		p.Fee,
		p.CurrencyCode,
		p.Status,
		p.CheckoutSessionID,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, sessionConstraint) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// txStore is the settlement side of the repository, bound to one transaction
type txStore struct {
	tx *sql.Tx
}

// LockOrder takes the order row lock and then reads the accepted sum in a
// separate statement. Under READ COMMITTED each statement gets its own
// snapshot, so the sum includes payments committed by whoever held the lock
// before us. Folding the sum into the locking statement would read it from a
// snapshot taken before the lock wait.
func (s *txStore) LockOrder(ctx context.Context, orderID int64) (*LockedOrder, error) {
	query := `
		SELECT o.id, o.table_id, t.number, t.branch_id, o.active, COALESCE(o.total, 0),
		       b.currency_code
		FROM orders o
		JOIN dining_tables t ON t.id = o.table_id
		JOIN branches b ON b.id = t.branch_id
		WHERE o.id = $1
		FOR UPDATE OF o
	`
	lo := &LockedOrder{}
	err := s.tx.QueryRowContext(ctx, query, orderID).Scan(
		&lo.ID,
		&lo.TableID,
		&lo.TableNumber,
		&lo.BranchID,
		&lo.Active,
		&lo.Total,
		&lo.CurrencyCode,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	paidQuery := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE order_id = $1 AND status = 'ACCEPTED'
	`
	if err := s.tx.QueryRowContext(ctx, paidQuery, orderID).Scan(&lo.Paid); err != nil {
		return nil, fmt.Errorf("failed to sum accepted payments: %w", err)
	}
	return lo, nil
}

func (s *txStore) InsertPayment(ctx context.Context, p *Payment) error {
	return insertPayment(ctx, s.tx, p)
}

func (s *txStore) AddToDiner(ctx context.Context, dinerID int64, amount, tip decimal.Decimal) (string, error) {
	query := `
		UPDATE diners
		SET paid = paid + $2, tip = tip + $3, total = total + $2 + $3
		WHERE id = $1
		RETURNING name
	`
	var name string
	if err := s.tx.QueryRowContext(ctx, query, dinerID, amount, tip).Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return "", diner.ErrDinerNotFound
		}
		return "", fmt.Errorf("failed to update diner totals: %w", err)
	}
	return name, nil
}

func (s *txStore) AddOrderTip(ctx context.Context, orderID int64, tip decimal.Decimal) error {
	if _, err := s.tx.ExecContext(ctx, `UPDATE orders SET tip = tip + $2 WHERE id = $1`, orderID, tip); err != nil {
		return fmt.Errorf("failed to add order tip: %w", err)
	}
	return nil
}

func (s *txStore) MarkOrderPaid(ctx context.Context, orderID int64) error {
	query := `UPDATE orders SET paid = TRUE, paid_at = NOW() WHERE id = $1 AND NOT paid`
	if _, err := s.tx.ExecContext(ctx, query, orderID); err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	return nil
}

func (s *txStore) MarkItemsPaid(ctx context.Context, orderID int64, itemIDs []int64, paidBy string) (int, error) {
	query := `
		UPDATE cart_items
		SET paid = TRUE, paid_by = $3
		WHERE order_id = $1 AND id = ANY($2) AND active AND NOT paid
	`
	res, err := s.tx.ExecContext(ctx, query, orderID, pq.Array(itemIDs), paidBy)
	if err != nil {
		return 0, fmt.Errorf("failed to mark items paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to mark items paid: %w", err)
	}
	return int(n), nil
}

func (s *txStore) ResolveIntent(ctx context.Context, intentID int64, status Status, paymentID *int64, employeeID int64, reason *string) error {
	query := `
		UPDATE payment_intents
		SET status = $2, payment_id = $3, resolved_by = $4, reason = $5, resolved_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`
	res, err := s.tx.ExecContext(ctx, query, intentID, status, paymentID, employeeID, reason)
	if err != nil {
		return fmt.Errorf("failed to resolve payment intent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to resolve payment intent: %w", err)
	}
	if n == 0 {
		return ErrInvalidStatusChange
	}
	return nil
}

func (s *txStore) DinerTotals(ctx context.Context, orderID int64) ([]DinerTotals, error) {
	query := `
		SELECT d.id, d.name, d.paid, d.tip, d.total,
		       COALESCE(SUM(p.amount) FILTER (WHERE p.status = 'ACCEPTED'), 0),
		       COALESCE(SUM(p.tip) FILTER (WHERE p.status = 'ACCEPTED'), 0)
		FROM diners d
		LEFT JOIN payments p ON p.diner_id = d.id AND p.order_id = $1
		WHERE d.order_id = $1
		GROUP BY d.id
		ORDER BY d.id
	`
	rows, err := s.tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to read diner totals: %w", err)
	}
	defer rows.Close()

	var totals []DinerTotals
	for rows.Next() {
		var t DinerTotals
		if err := rows.Scan(&t.DinerID, &t.Name, &t.Paid, &t.Tip, &t.Total, &t.PaymentPaid, &t.PaymentTip); err != nil {
			return nil, fmt.Errorf("failed to scan diner totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (s *txStore) SetDinerTotals(ctx context.Context, dinerID int64, paid, tip decimal.Decimal) error {
	query := `UPDATE diners SET paid = $2, tip = $3, total = $2::numeric + $3::numeric WHERE id = $1`
	if _, err := s.tx.ExecContext(ctx, query, dinerID, paid, tip); err != nil {
		return fmt.Errorf("failed to set diner totals: %w", err)
	}
	return nil
}
