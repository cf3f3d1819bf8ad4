package branch

import (
	"context"
	"strings"

	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

// Common errors
var (
	ErrBranchNotFound      = apperr.NotFound("branch not found")
	ErrTableNotFound       = apperr.NotFound("table not found")
	ErrInvalidName         = apperr.Validation("name is required")
	ErrUnsupportedCurrency = apperr.Validation("unsupported currency")
	ErrInvalidRole         = apperr.Validation("role must be MANAGER or WAITER")
	ErrInvalidTableNumber  = apperr.Validation("table number must be positive")
	ErrTableExists         = apperr.Conflict("table number already used in this branch")
)

// Store is the persistence the branch service needs
type Store interface {
	Create(ctx context.Context, req *CreateBranchRequest) (*Branch, error)
	GetByID(ctx context.Context, id int64) (*Branch, error)
	AddEmployee(ctx context.Context, branchID int64, req *AddEmployeeRequest) (*Employee, error)
	GetEmployees(ctx context.Context, branchID int64) ([]*Employee, error)
	GetNotifiableEmployees(ctx context.Context, branchID int64) ([]*Employee, error)
	AddTable(ctx context.Context, branchID int64, number int) (*Table, error)
	GetTables(ctx context.Context, branchID int64) ([]*Table, error)
	GetTable(ctx context.Context, tableID int64) (*Table, error)
}

// Service handles branch business logic
type Service struct {
	repo       Store
	currencies *money.Catalog
	isConflict func(error) bool
}

// NewService creates a new branch service. isConflict recognises the
// storage error raised for a duplicate table number; it may be nil.
func NewService(repo Store, currencies *money.Catalog, isConflict func(error) bool) *Service {
	if currencies == nil {
		currencies = money.Default()
	}
	if isConflict == nil {
		isConflict = func(error) bool { return false }
	}
	return &Service{repo: repo, currencies: currencies, isConflict: isConflict}
}

// Create validates and stores a new branch
func (s *Service) Create(ctx context.Context, req *CreateBranchRequest) (*Branch, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, ErrInvalidName
	}
	req.CurrencyCode = strings.ToUpper(strings.TrimSpace(req.CurrencyCode))
	if _, err := s.currencies.Lookup(req.CurrencyCode); err != nil {
		return nil, ErrUnsupportedCurrency
	}
	return s.repo.Create(ctx, req)
}

// GetByID retrieves a branch by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Branch, error) {
	branch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, ErrBranchNotFound
	}
	return branch, nil
}

// GetByIDWithStaff retrieves a branch with its employees and tables
func (s *Service) GetByIDWithStaff(ctx context.Context, id int64) (*Branch, []*Employee, []*Table, error) {
	branch, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	employees, err := s.repo.GetEmployees(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	tables, err := s.repo.GetTables(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	return branch, employees, tables, nil
}

// AddEmployee adds a staff member to a branch
func (s *Service) AddEmployee(ctx context.Context, branchID int64, req *AddEmployeeRequest) (*Employee, error) {
	if _, err := s.GetByID(ctx, branchID); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, ErrInvalidName
	}
	if req.Role == "" {
		req.Role = EmployeeRoleWaiter
	}
	if req.Role != EmployeeRoleManager && req.Role != EmployeeRoleWaiter {
		return nil, ErrInvalidRole
	}

	return s.repo.AddEmployee(ctx, branchID, req)
}

// AddTable registers a table number in a branch
func (s *Service) AddTable(ctx context.Context, branchID int64, req *AddTableRequest) (*Table, error) {
	if req.Number <= 0 {
		return nil, ErrInvalidTableNumber
	}
	branch, err := s.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	table, err := s.repo.AddTable(ctx, branchID, req.Number)
	if err != nil {
		if s.isConflict(err) {
			return nil, ErrTableExists
		}
		return nil, err
	}
	table.CurrencyCode = branch.CurrencyCode
	return table, nil
}

// GetTable retrieves a table with its branch currency
func (s *Service) GetTable(ctx context.Context, tableID int64) (*Table, error) {
	table, err := s.repo.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, ErrTableNotFound
	}
	return table, nil
}

// StaffToNotify returns the employees of a branch who receive payment
// notifications
func (s *Service) StaffToNotify(ctx context.Context, branchID int64) ([]*Employee, error) {
	return s.repo.GetNotifiableEmployees(ctx, branchID)
}
