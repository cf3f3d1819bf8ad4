package diner

import (
	"context"
	"strings"

	"github.com/fkhayef/tablepay/internal/branch"
	"github.com/fkhayef/tablepay/pkg/apperr"
)

// Common errors
var (
	ErrDinerNotFound = apperr.NotFound("diner not found")
	ErrInvalidName   = apperr.Validation("name is required")
	ErrNameTooLong   = apperr.Validation("name must be at most 40 characters")
	ErrNotAtTable    = apperr.Validation("diner is not seated at this table")
)

// palette is cycled through for diners that do not pick a color
var palette = []string{"#E4572E", "#17BEBB", "#FFC914", "#76B041", "#6C5B7B", "#2E86AB", "#F26419", "#C05299"}

// Store is the persistence the diner service needs
type Store interface {
	Create(ctx context.Context, tableID int64, name, color string) (*Diner, error)
	GetByID(ctx context.Context, id int64) (*Diner, error)
	ListByTable(ctx context.Context, tableID int64) ([]*Diner, error)
}

// TableLookup resolves a table id
type TableLookup interface {
	GetTable(ctx context.Context, tableID int64) (*branch.Table, error)
}

// Service handles diner business logic
type Service struct {
	repo   Store
	tables TableLookup
}

// NewService creates a new diner service
func NewService(repo Store, tables TableLookup) *Service {
	return &Service{repo: repo, tables: tables}
}

// Join seats a named diner at a table
func (s *Service) Join(ctx context.Context, tableID int64, req *JoinTableRequest) (*Diner, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if len([]rune(name)) > 40 {
		return nil, ErrNameTooLong
	}
	if _, err := s.tables.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	color := strings.TrimSpace(req.Color)
	if color == "" {
		seated, err := s.repo.ListByTable(ctx, tableID)
		if err != nil {
			return nil, err
		}
		color = palette[len(seated)%len(palette)]
	}

	return s.repo.Create(ctx, tableID, name, color)
}

// GetByID retrieves a diner by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Diner, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDinerNotFound
	}
	return d, nil
}

// AtTable retrieves a diner and checks they are seated at the table
func (s *Service) AtTable(ctx context.Context, id, tableID int64) (*Diner, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.TableID != tableID || !d.Active {
		return nil, ErrNotAtTable
	}
	return d, nil
}

// ListByTable retrieves the diners seated at a table
func (s *Service) ListByTable(ctx context.Context, tableID int64) ([]*Diner, error) {
	if _, err := s.tables.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	return s.repo.ListByTable(ctx, tableID)
}
