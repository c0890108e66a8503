package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("stockflow/inventory")

// ScanRequest is one scanned stock movement
type ScanRequest struct {
	Code       string
	Type       repository.MovementType
	Quantity   int
	UserID     string
	LotNumber  string
	ExpiryDate *time.Time
	UnitCost   decimal.NullDecimal
}

// FEFOInfo reports the lot an exit was drawn from
type FEFOInfo struct {
	LotNumber   string  `json:"numero_lote"`
	ExpiryDate  *string `json:"data_validade"`
	ExpectedLot string  `json:"lote_esperado_peps"`
	Violation   bool    `json:"violacao_peps"`
}

// MovementResult summarizes a processed scan
type MovementResult struct {
	Product  string                  `json:"produto"`
	NewStock int                     `json:"novo_estoque"`
	Type     repository.MovementType `json:"tipo"`
	FEFO     *FEFOInfo               `json:"peps,omitempty"`
}

// ScanService records scanned stock movements
type ScanService struct {
	tx        TxRunner
	products  ProductStore
	batches   BatchStore
	movements MovementStore
	allocator *Allocator
	notifier  *ViolationNotifier
	scanner   *AlertScanner
	publisher *events.InventoryEventPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewScanService creates a new scan service
func NewScanService(
	tx TxRunner,
	products ProductStore,
	batches BatchStore,
	movements MovementStore,
	allocator *Allocator,
	notifier *ViolationNotifier,
	scanner *AlertScanner,
	publisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *ScanService {
	return &ScanService{
		tx:        tx,
		products:  products,
		batches:   batches,
		movements: movements,
		allocator: allocator,
		notifier:  notifier,
		scanner:   scanner,
		publisher: publisher,
		metrics:   m,
		logger:    log.WithComponent("scan"),
	}
}

// ProcessScan applies a movement to the product and its batches and logs it.
// Quantity, batch and ledger changes commit together or not at all. Violation
// notification, the stock-moved event and the low-stock sweep run after the
// commit and cannot fail the movement.
func (s *ScanService) ProcessScan(ctx context.Context, req ScanRequest) (result *MovementResult, err error) {
	ctx, span := tracer.Start(ctx, "inventory.ProcessScan", trace.WithAttributes(
		attribute.String("movement.type", string(req.Type)),
		attribute.Int("movement.quantity", req.Quantity),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = errorCode(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.ObserveScan(string(req.Type), outcome, time.Since(start))
	}()

	if !req.Type.Valid() {
		return nil, errors.InvalidMovementType(string(req.Type))
	}
	if req.Quantity <= 0 {
		return nil, errors.InvalidQuantity(req.Quantity)
	}

	product, err := s.products.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("product.id", product.ID))

	var (
		newQuantity int
		movement    *repository.Movement
		alloc       *Allocation
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// Re-read inside the transaction so a retry sees committed stock.
		current, err := s.products.FindByID(ctx, product.ID)
		if err != nil {
			return err
		}

		delta := req.Quantity
		if req.Type == repository.MovementOutbound {
			delta = -req.Quantity
		}

		legacy := *current
		newQuantity, err = s.products.AdjustQuantity(ctx, current.ID, delta)
		if err != nil {
			return err
		}

		movement = &repository.Movement{
			ProductID: current.ID,
			Type:      req.Type,
			Quantity:  req.Quantity,
			UnitCost:  req.UnitCost,
			Origin:    repository.OriginScan,
		}
		if !movement.UnitCost.Valid {
			movement.UnitCost = current.UnitCost
		}
		if req.UserID != "" {
			movement.UserID = &req.UserID
		}

		alloc = nil
		if req.Type == repository.MovementInbound {
			if err := s.recordInbound(ctx, &legacy, req, movement); err != nil {
				return err
			}
		} else {
			alloc, err = s.allocator.ConsumeOutbound(ctx, &legacy, req.Quantity, req.UserID, req.LotNumber)
			if err != nil {
				return err
			}
			if alloc.Tracked {
				movement.LotNumber = &alloc.LotNumber
				movement.ExpiryDate = alloc.ExpiryDate
				movement.ExpectedFEFOLot = &alloc.ExpectedFEFOLot
				movement.FEFOViolation = alloc.Violated()
			}
		}

		return s.movements.Create(ctx, movement)
	})
	if err != nil {
		var appErr *errors.AppError
		if !errors.As(err, &appErr) {
			s.metrics.IncFailure()
			s.logger.Error().Err(err).Str("product_id", product.ID).Msg("scan movement failed")
		}
		return nil, err
	}

	s.afterCommit(context.WithoutCancel(ctx), product, movement, alloc, newQuantity)

	result = &MovementResult{
		Product:  product.Name,
		NewStock: newQuantity,
		Type:     req.Type,
	}
	if alloc != nil && alloc.Tracked {
		result.FEFO = &FEFOInfo{
			LotNumber:   alloc.LotNumber,
			ExpiryDate:  formatDate(alloc.ExpiryDate),
			ExpectedLot: alloc.ExpectedFEFOLot,
			Violation:   alloc.Violated(),
		}
	}
	return result, nil
}

// recordInbound books the receipt under the given lot, falling back to the
// product's legacy lot and expiry.
func (s *ScanService) recordInbound(ctx context.Context, product *repository.Product, req ScanRequest, movement *repository.Movement) error {
	if _, err := s.allocator.EnsureMigrated(ctx, product); err != nil {
		return err
	}

	lot := req.LotNumber
	if lot == "" && product.LotNumber != nil {
		lot = *product.LotNumber
	}
	expiry := req.ExpiryDate
	if expiry == nil {
		expiry = product.ExpiryDate
	}

	booked, err := s.batches.RecordInbound(ctx, repository.InboundBatch{
		ProductID:  product.ID,
		Quantity:   req.Quantity,
		LotNumber:  lot,
		ExpiryDate: expiry,
	})
	if err != nil {
		return err
	}

	movement.LotNumber = &booked
	movement.ExpiryDate = expiry
	return nil
}

func (s *ScanService) afterCommit(ctx context.Context, product *repository.Product, movement *repository.Movement, alloc *Allocation, newQuantity int) {
	log := s.logger.WithProductID(product.ID)
	log.Info().
		Str("movement_id", movement.ID).
		Str("type", string(movement.Type)).
		Int("quantity", movement.Quantity).
		Int("new_quantity", newQuantity).
		Msg("stock movement recorded")

	if alloc != nil && alloc.Violation != nil {
		s.notifier.Notify(ctx, alloc.Violation)
	}

	s.publisher.PublishStockMoved(ctx, movement, product.Name, newQuantity)

	if _, err := s.scanner.CheckLowStock(ctx, nil); err != nil {
		log.WithError(err).Error().Msg("low stock check after movement failed")
	}
}

func errorCode(err error) string {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "error"
}
