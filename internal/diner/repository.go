package diner

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles diner data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new diner repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const dinerColumns = `id, table_id, order_id, name, color, paid, tip, total, active, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDiner(row scanner) (*Diner, error) {
	d := &Diner{}
	var orderID sql.NullInt64
	if err := row.Scan(
		&d.ID,
		&d.TableID,
		&orderID,
		&d.Name,
		&d.Color,
		&d.Paid,
		&d.Tip,
		&d.Total,
		&d.Active,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	if orderID.Valid {
		d.OrderID = &orderID.Int64
	}
	return d, nil
}

// Create seats a diner at a table, attaching them to the active order if the
// table already has one
func (r *Repository) Create(ctx context.Context, tableID int64, name, color string) (*Diner, error) {
	query := `
		INSERT INTO diners (table_id, order_id, name, color)
		VALUES ($1, (SELECT id FROM orders WHERE table_id = $1 AND active), $2, $3)
		RETURNING ` + dinerColumns

	d, err := scanDiner(r.db.QueryRowContext(ctx, query, tableID, name, color))
	if err != nil {
		return nil, fmt.Errorf("failed to create diner: %w", err)
	}
	return d, nil
}

// GetByID retrieves a diner by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Diner, error) {
	query := `SELECT ` + dinerColumns + ` FROM diners WHERE id = $1`

	d, err := scanDiner(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get diner: %w", err)
	}
	return d, nil
}

// ListByTable retrieves the diners currently seated at a table
func (r *Repository) ListByTable(ctx context.Context, tableID int64) ([]*Diner, error) {
	query := `SELECT ` + dinerColumns + ` FROM diners WHERE table_id = $1 AND active ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list diners: %w", err)
	}
	defer rows.Close()

	var diners []*Diner
	for rows.Next() {
		d, err := scanDiner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diner: %w", err)
		}
		diners = append(diners, d)
	}
	return diners, rows.Err()
}
