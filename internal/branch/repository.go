package branch

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles branch, employee, and table persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new branch repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new branch into the database
func (r *Repository) Create(ctx context.Context, req *CreateBranchRequest) (*Branch, error) {
	query := `
		INSERT INTO branches (name, currency_code)
		VALUES ($1, $2)
		RETURNING id, name, currency_code, created_at
	`

	branch := &Branch{}
	err := r.db.QueryRowContext(ctx, query, req.Name, req.CurrencyCode).Scan(
		&branch.ID,
		&branch.Name,
		&branch.CurrencyCode,
		&branch.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}

	return branch, nil
}

// GetByID retrieves a branch by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Branch, error) {
	query := `
		SELECT id, name, currency_code, created_at
		FROM branches
		WHERE id = $1
	`

	branch := &Branch{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&branch.ID,
		&branch.Name,
		&branch.CurrencyCode,
		&branch.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}

	return branch, nil
}

// AddEmployee inserts a staff member for a branch
func (r *Repository) AddEmployee(ctx context.Context, branchID int64, req *AddEmployeeRequest) (*Employee, error) {
	query := `
		INSERT INTO employees (branch_id, name, phone, role, notify)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, branch_id, name, phone, role, notify, created_at
	`

	notify := true
	if req.Notify != nil {
		notify = *req.Notify
	}

	emp := &Employee{}
	err := r.db.QueryRowContext(ctx, query, branchID, req.Name, req.Phone, req.Role, notify).Scan(
		&emp.ID,
		&emp.BranchID,
		&emp.Name,
		&emp.Phone,
		&emp.Role,
		&emp.Notify,
		&emp.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add employee: %w", err)
	}

	return emp, nil
}

// GetEmployees retrieves the staff of a branch
func (r *Repository) GetEmployees(ctx context.Context, branchID int64) ([]*Employee, error) {
	return r.listEmployees(ctx, `
		SELECT id, branch_id, name, phone, role, notify, created_at
		FROM employees
		WHERE branch_id = $1
		ORDER BY id
	`, branchID)
}

// GetNotifiableEmployees retrieves the staff of a branch that opted in to
// payment notifications
func (r *Repository) GetNotifiableEmployees(ctx context.Context, branchID int64) ([]*Employee, error) {
	return r.listEmployees(ctx, `
		SELECT id, branch_id, name, phone, role, notify, created_at
		FROM employees
		WHERE branch_id = $1 AND notify
		ORDER BY id
	`, branchID)
}

func (r *Repository) listEmployees(ctx context.Context, query string, branchID int64) ([]*Employee, error) {
	rows, err := r.db.QueryContext(ctx, query, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*Employee
	for rows.Next() {
		emp := &Employee{}
		if err := rows.Scan(
			&emp.ID,
			&emp.BranchID,
			&emp.Name,
			&emp.Phone,
			&emp.Role,
			&emp.Notify,
			&emp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}

	return employees, rows.Err()
}

// AddTable registers a table for a branch
func (r *Repository) AddTable(ctx context.Context, branchID int64, number int) (*Table, error) {
	query := `
		INSERT INTO dining_tables (branch_id, number)
		VALUES ($1, $2)
		RETURNING id, branch_id, number, created_at
	`

	table := &Table{}
	err := r.db.QueryRowContext(ctx, query, branchID, number).Scan(
		&table.ID,
		&table.BranchID,
		&table.Number,
		&table.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add table: %w", err)
	}

	return table, nil
}

// GetTables retrieves the tables of a branch
func (r *Repository) GetTables(ctx context.Context, branchID int64) ([]*Table, error) {
	query := `
		SELECT t.id, t.branch_id, t.number, t.created_at, b.currency_code
		FROM dining_tables t
		JOIN branches b ON b.id = t.branch_id
		WHERE t.branch_id = $1
		ORDER BY t.number
	`

	rows, err := r.db.QueryContext(ctx, query, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []*Table
	for rows.Next() {
		t := &Table{}
		if err := rows.Scan(&t.ID, &t.BranchID, &t.Number, &t.CreatedAt, &t.CurrencyCode); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

// GetTable retrieves a table with its branch currency
func (r *Repository) GetTable(ctx context.Context, tableID int64) (*Table, error) {
	query := `
		SELECT t.id, t.branch_id, t.number, t.created_at, b.currency_code
		FROM dining_tables t
		JOIN branches b ON b.id = t.branch_id
		WHERE t.id = $1
	`

	t := &Table{}
	err := r.db.QueryRowContext(ctx, query, tableID).Scan(
		&t.ID,
		&t.BranchID,
		&t.Number,
		&t.CreatedAt,
		&t.CurrencyCode,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	return t, nil
}
