package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Product is a catalog entry. Quantity is the aggregate of its batches once
// the product has been migrated to batch tracking.
type Product struct {
	ID              string              `db:"id" json:"id"`
	Name            string              `db:"name" json:"name"`
	Barcode         *string             `db:"barcode" json:"barcode,omitempty"`
	EAN             *string             `db:"ean" json:"ean,omitempty"`
	SKU             *string             `db:"sku" json:"sku,omitempty"`
	Quantity        int                 `db:"quantity" json:"quantity"`
	MinimumStock    int                 `db:"minimum_stock" json:"minimum_stock"`
	ControlsBatches bool                `db:"controls_batches" json:"controls_batches"`
	ControlsExpiry  bool                `db:"controls_expiry" json:"controls_expiry"`
	AppliesFEFO     bool                `db:"applies_fefo" json:"applies_fefo"`
	LotNumber       *string             `db:"lot_number" json:"lot_number,omitempty"`
	ExpiryDate      *time.Time          `db:"expiry_date" json:"expiry_date,omitempty"`
	EntryDate       *time.Time          `db:"entry_date" json:"entry_date,omitempty"`
	UnitCost        decimal.NullDecimal `db:"unit_cost" json:"unit_cost"`
	Active          bool                `db:"active" json:"active"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

const productColumns = `id, name, barcode, ean, sku, quantity, minimum_stock,
	controls_batches, controls_expiry, applies_fefo, lot_number, expiry_date,
	entry_date, unit_cost, active, created_at, updated_at`

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a product
func (r *ProductRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO products (
			id, name, barcode, ean, sku, quantity, minimum_stock,
			controls_batches, controls_expiry, applies_fefo,
			lot_number, expiry_date, entry_date, unit_cost, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Barcode, p.EAN, p.SKU, p.Quantity, p.MinimumStock,
		p.ControlsBatches, p.ControlsExpiry, p.AppliesFEFO,
		p.LotNumber, p.ExpiryDate, p.EntryDate, p.UnitCost, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// FindByCode resolves a scanned code against barcode, EAN and SKU of active products.
func (r *ProductRepository) FindByCode(ctx context.Context, code string) (*Product, error) {
	var p Product
	query := `SELECT ` + productColumns + ` FROM products
		WHERE active AND (barcode = $1 OR ean = $1 OR sku = $1)
		ORDER BY created_at
		LIMIT 1`

	if err := r.db.GetContext(ctx, &p, query, code); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ProductNotFound(code)
		}
		return nil, err
	}
	return &p, nil
}

// FindByID gets a product by ID
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &p, nil
}

// AdjustQuantity applies delta to the aggregate quantity and returns the new
// value. The update is refused when it would leave the quantity negative.
func (r *ProductRepository) AdjustQuantity(ctx context.Context, id string, delta int) (int, error) {
	query := `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING quantity
	`

	var quantity int
	err := r.db.QueryRowxContext(ctx, query, id, delta).Scan(&quantity)
	if err == nil {
		return quantity, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	var current int
	if err := r.db.GetContext(ctx, &current, `SELECT quantity FROM products WHERE id = $1`, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return 0, errors.NotFound("product")
		}
		return 0, err
	}
	return 0, errors.InsufficientStock(current, -delta)
}

// ListActive returns every active product.
func (r *ProductRepository) ListActive(ctx context.Context) ([]*Product, error) {
	var products []*Product
	query := `SELECT ` + productColumns + ` FROM products
		WHERE active
		ORDER BY name`

	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}
