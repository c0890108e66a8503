package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
)

// StockQueryService answers read-only stock questions
type StockQueryService struct {
	products  ProductStore
	batches   BatchStore
	movements MovementStore
}

// NewStockQueryService creates a new stock query service
func NewStockQueryService(products ProductStore, batches BatchStore, movements MovementStore) *StockQueryService {
	return &StockQueryService{products: products, batches: batches, movements: movements}
}

// AvailableBatches returns the product's batches with stock in FEFO order
func (s *StockQueryService) AvailableBatches(ctx context.Context, productID string) ([]*repository.Batch, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	batches, err := s.batches.ListAvailable(ctx, productID)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []*repository.Batch{}
	}
	return batches, nil
}

// Movements returns a page of the product's movements, newest first
func (s *StockQueryService) Movements(ctx context.Context, productID string, limit, offset int) ([]*repository.Movement, int64, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, 0, err
	}
	return s.movements.ListByProduct(ctx, productID, limit, offset)
}
