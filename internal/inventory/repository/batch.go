package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// SyntheticLotPrefix marks lots generated for inbound stock without a lot number.
const SyntheticLotPrefix = "SEM-LOTE-"

// Batch is the stock of one lot of a product. Rows are never deleted; an
// exhausted batch stays with a zero quantity.
type Batch struct {
	ID                string     `db:"id" json:"id"`
	ProductID         string     `db:"product_id" json:"product_id"`
	LotNumber         string     `db:"lot_number" json:"lot_number"`
	AvailableQuantity int        `db:"available_quantity" json:"available_quantity"`
	ExpiryDate        *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	EntryDate         *time.Time `db:"entry_date" json:"entry_date,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ExpiringBatch is a batch joined with its product name
type ExpiringBatch struct {
	Batch
	ProductName string `db:"product_name" json:"product_name"`
}

// InboundBatch describes stock received into a lot
type InboundBatch struct {
	ProductID  string
	Quantity   int
	LotNumber  string
	ExpiryDate *time.Time
	EntryDate  *time.Time
}

const batchColumns = `id, product_id, lot_number, available_quantity, expiry_date, entry_date, created_at, updated_at`

// CompareFEFO orders batches for consumption: earliest expiry first with a
// missing expiry last, then earliest entry with a missing entry first, then
// lot number.
func CompareFEFO(a, b *Batch) int {
	if c := compareOptionalTime(a.ExpiryDate, b.ExpiryDate, false); c != 0 {
		return c
	}
	if c := compareOptionalTime(a.EntryDate, b.EntryDate, true); c != 0 {
		return c
	}
	return strings.Compare(a.LotNumber, b.LotNumber)
}

// SortFEFO sorts batches in place into consumption order.
func SortFEFO(batches []*Batch) {
	slices.SortStableFunc(batches, CompareFEFO)
}

func compareOptionalTime(a, b *time.Time, nilFirst bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		if nilFirst {
			return -1
		}
		return 1
	case b == nil:
		if nilFirst {
			return 1
		}
		return -1
	}
	return a.Compare(*b)
}

// SyntheticLotNumber builds the lot number used when none was given. Two
// calls within the same second yield the same lot.
func SyntheticLotNumber(now time.Time) string {
	return SyntheticLotPrefix + now.UTC().Format("20060102150405")
}

// BatchRepository is the only writer of stock_batches
type BatchRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db, now: time.Now}
}

// WithClock replaces the clock used for synthetic lots and entry dates.
func (r *BatchRepository) WithClock(now func() time.Time) *BatchRepository {
	r.now = now
	return r
}

// RecordInbound adds stock to a lot, creating the batch on first use, and
// returns the lot number the stock was booked under. Expiry and entry dates
// overwrite the stored ones when given.
func (r *BatchRepository) RecordInbound(ctx context.Context, in InboundBatch) (string, error) {
	if in.Quantity <= 0 {
		return "", errors.InvalidQuantity(in.Quantity)
	}

	now := r.now()
	lot := strings.TrimSpace(in.LotNumber)
	if lot == "" {
		lot = SyntheticLotNumber(now)
	}
	entry := in.EntryDate
	if entry == nil {
		entry = &now
	}

	query := `
		INSERT INTO stock_batches (id, product_id, lot_number, available_quantity, expiry_date, entry_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, lot_number) DO UPDATE SET
			available_quantity = stock_batches.available_quantity + EXCLUDED.available_quantity,
			expiry_date = COALESCE(EXCLUDED.expiry_date, stock_batches.expiry_date),
			entry_date = COALESCE(EXCLUDED.entry_date, stock_batches.entry_date),
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), in.ProductID, lot, in.Quantity, in.ExpiryDate, entry,
	); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return "", appErr
		}
		return "", err
	}

	return lot, nil
}

// ListAvailable returns the product's batches with stock, in FEFO order.
func (r *BatchRepository) ListAvailable(ctx context.Context, productID string) ([]*Batch, error) {
	var batches []*Batch
	query := `SELECT ` + batchColumns + ` FROM stock_batches
		WHERE product_id = $1 AND available_quantity > 0
		ORDER BY expiry_date ASC NULLS LAST, entry_date ASC NULLS FIRST, lot_number ASC`

	if err := r.db.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, err
	}

	// Collation may order lot numbers differently from Go.
	SortFEFO(batches)
	return batches, nil
}

// Decrement removes quantity from a batch in a single conditional update.
func (r *BatchRepository) Decrement(ctx context.Context, batchID string, quantity int) error {
	if quantity <= 0 {
		return errors.InvalidQuantity(quantity)
	}

	query := `
		UPDATE stock_batches
		SET available_quantity = available_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND available_quantity >= $2
	`

	result, err := r.db.ExecContext(ctx, query, batchID, quantity)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var current struct {
		LotNumber         string `db:"lot_number"`
		AvailableQuantity int    `db:"available_quantity"`
	}
	err = r.db.GetContext(ctx, &current, `SELECT lot_number, available_quantity FROM stock_batches WHERE id = $1`, batchID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("batch")
		}
		return err
	}
	return errors.InsufficientBatchStock(current.LotNumber, current.AvailableQuantity, quantity)
}

// SumAvailable returns the total stock held in the product's batches.
func (r *BatchRepository) SumAvailable(ctx context.Context, productID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(available_quantity), 0) FROM stock_batches WHERE product_id = $1`
	if err := r.db.GetContext(ctx, &total, query, productID); err != nil {
		return 0, err
	}
	return total, nil
}

// ListExpiring returns batches with stock of active expiry-controlled products
// expiring on or before the cutoff.
func (r *BatchRepository) ListExpiring(ctx context.Context, cutoff time.Time) ([]*ExpiringBatch, error) {
	var batches []*ExpiringBatch
	query := `
		SELECT b.id, b.product_id, b.lot_number, b.available_quantity, b.expiry_date,
			b.entry_date, b.created_at, b.updated_at, p.name AS product_name
		FROM stock_batches b
		JOIN products p ON p.id = b.product_id
		WHERE p.active AND p.controls_expiry
			AND b.available_quantity > 0
			AND b.expiry_date IS NOT NULL
			AND b.expiry_date <= $1
		ORDER BY b.expiry_date, p.name
	`

	if err := r.db.SelectContext(ctx, &batches, query, cutoff); err != nil {
		return nil, err
	}
	return batches, nil
}
