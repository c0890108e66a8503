package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/pkg/database"
)

// MovementType is the direction of a stock movement
type MovementType string

const (
	MovementInbound  MovementType = "entrada"
	MovementOutbound MovementType = "saida"
)

// Valid reports whether t is a known movement type
func (t MovementType) Valid() bool {
	return t == MovementInbound || t == MovementOutbound
}

// MovementOrigin tells where a movement was recorded
type MovementOrigin string

const (
	OriginManual MovementOrigin = "manual"
	OriginScan   MovementOrigin = "scan"
	OriginSystem MovementOrigin = "system"
)

// Movement is an immutable stock ledger entry
type Movement struct {
	ID              string              `db:"id" json:"id"`
	ProductID       string              `db:"product_id" json:"product_id"`
	Type            MovementType        `db:"movement_type" json:"type"`
	Quantity        int                 `db:"quantity" json:"quantity"`
	UnitCost        decimal.NullDecimal `db:"unit_cost" json:"unit_cost"`
	UserID          *string             `db:"user_id" json:"user_id,omitempty"`
	LotNumber       *string             `db:"lot_number" json:"lot_number,omitempty"`
	ExpiryDate      *time.Time          `db:"expiry_date" json:"expiry_date,omitempty"`
	Origin          MovementOrigin      `db:"origin" json:"origin"`
	ExpectedFEFOLot *string             `db:"expected_fefo_lot" json:"expected_fefo_lot,omitempty"`
	FEFOViolation   bool                `db:"fefo_violation" json:"fefo_violation"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
}

const movementColumns = `id, product_id, movement_type, quantity, unit_cost, user_id, lot_number,
	expiry_date, origin, expected_fefo_lot, fefo_violation, created_at`

// MovementRepository appends to the movement ledger
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Create records a movement
func (r *MovementRepository) Create(ctx context.Context, m *Movement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Origin == "" {
		m.Origin = OriginManual
	}

	query := `
		INSERT INTO stock_movements (
			id, product_id, movement_type, quantity, unit_cost, user_id, lot_number,
			expiry_date, origin, expected_fefo_lot, fefo_violation
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.ProductID, m.Type, m.Quantity, m.UnitCost, m.UserID, m.LotNumber,
		m.ExpiryDate, m.Origin, m.ExpectedFEFOLot, m.FEFOViolation,
	).Scan(&m.CreatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// ListByProduct returns a page of the product's movements, newest first, and
// the total count.
func (r *MovementRepository) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*Movement, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_movements WHERE product_id = $1`, productID); err != nil {
		return nil, 0, err
	}

	movements := []*Movement{}
	query := `SELECT ` + movementColumns + ` FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &movements, query, productID, limit, offset); err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}
