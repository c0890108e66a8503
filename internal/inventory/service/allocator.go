package service

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// Violation is an exit that consumed a lot other than the FEFO one
type Violation struct {
	Product      *repository.Product
	Expected     *repository.Batch
	Chosen       *repository.Batch
	ActingUserID string
}

// Allocation describes which lot an exit was drawn from. A zero Allocation
// means the product is not batch tracked.
type Allocation struct {
	LotNumber       string
	ExpiryDate      *time.Time
	ExpectedFEFOLot string
	Tracked         bool
	Violation       *Violation
}

// Violated reports whether the exit broke FEFO order
func (a *Allocation) Violated() bool {
	return a.Violation != nil
}

// Allocator picks the batch an exit draws from
type Allocator struct {
	batches BatchStore
	logger  *logger.Logger
}

// NewAllocator creates a new allocator
func NewAllocator(batches BatchStore, log *logger.Logger) *Allocator {
	return &Allocator{
		batches: batches,
		logger:  log.WithComponent("allocator"),
	}
}

// EnsureMigrated returns the product's available batches. A batch-controlled
// product that still carries its stock only in the legacy fields gets one
// batch holding that stock first. product.Quantity must be the value before
// the current movement.
func (a *Allocator) EnsureMigrated(ctx context.Context, product *repository.Product) ([]*repository.Batch, error) {
	batches, err := a.batches.ListAvailable(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	if len(batches) > 0 || !product.ControlsBatches || product.Quantity <= 0 {
		return batches, nil
	}

	in := repository.InboundBatch{
		ProductID:  product.ID,
		Quantity:   product.Quantity,
		ExpiryDate: product.ExpiryDate,
		EntryDate:  product.EntryDate,
	}
	if product.LotNumber != nil {
		in.LotNumber = *product.LotNumber
	}

	lot, err := a.batches.RecordInbound(ctx, in)
	if err != nil {
		return nil, err
	}
	a.logger.Info().
		Str("product_id", product.ID).
		Str("lot_number", lot).
		Int("quantity", product.Quantity).
		Msg("migrated legacy stock into a batch")

	return a.batches.ListAvailable(ctx, product.ID)
}

// ConsumeOutbound draws quantity from the FEFO batch, or from chosenLot when
// given. Choosing a lot out of FEFO order is allowed and reported as a
// violation when the product applies FEFO.
func (a *Allocator) ConsumeOutbound(ctx context.Context, product *repository.Product, quantity int, userID, chosenLot string) (*Allocation, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity(quantity)
	}

	batches, err := a.EnsureMigrated(ctx, product)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		if !product.ControlsBatches {
			return &Allocation{}, nil
		}
		return nil, errors.NoBatchesAvailable(product.Name)
	}

	expected := batches[0]
	target := expected
	if chosenLot != "" {
		target = nil
		for _, b := range batches {
			if b.LotNumber == chosenLot {
				target = b
				break
			}
		}
		if target == nil {
			return nil, errors.LotNotFound(chosenLot)
		}
	}

	if target.AvailableQuantity < quantity {
		return nil, errors.InsufficientBatchStock(target.LotNumber, target.AvailableQuantity, quantity)
	}
	if err := a.batches.Decrement(ctx, target.ID, quantity); err != nil {
		return nil, err
	}

	alloc := &Allocation{
		LotNumber:       target.LotNumber,
		ExpiryDate:      target.ExpiryDate,
		ExpectedFEFOLot: expected.LotNumber,
		Tracked:         true,
	}
	if target.LotNumber != expected.LotNumber {
		alloc.Violation = &Violation{
			Product:      product,
			Expected:     expected,
			Chosen:       target,
			ActingUserID: userID,
		}
	}
	return alloc, nil
}
