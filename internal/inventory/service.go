package inventory

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/petcare/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// Service exposes read access to the product ledger.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetProduct returns the ledger view of a product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: product id must be positive", shared.ErrValidation)
	}
	return s.repo.GetProduct(ctx, id)
}

// Movements lists the stock card of an existing product.
func (s *Service) Movements(ctx context.Context, productID int64, window shared.Window) ([]Movement, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, MovementFilter{ProductID: productID, Window: shared.NewWindow(window.Limit, window.Offset)})
}
