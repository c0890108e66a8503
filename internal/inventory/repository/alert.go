package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// AlertType classifies an alert
type AlertType string

const (
	AlertFEFOViolation AlertType = "violacao_peps"
	AlertLowStock      AlertType = "estoque_baixo"
	AlertExpiringSoon  AlertType = "vencimento_proximo"
)

// AlertStatus is the lifecycle state of an alert
type AlertStatus string

const (
	AlertPending AlertStatus = "pendente"
	AlertViewed  AlertStatus = "visualizado"
)

// Alert is an open issue surfaced to users. At most one pending alert exists
// per type and dedup key.
type Alert struct {
	ID              string         `db:"id" json:"id"`
	Type            AlertType      `db:"alert_type" json:"type"`
	Message         string         `db:"message" json:"message"`
	ProductID       *string        `db:"product_id" json:"product_id,omitempty"`
	NotifiedUserIDs pq.StringArray `db:"notified_user_ids" json:"notified_user_ids"`
	Status          AlertStatus    `db:"status" json:"status"`
	DedupKey        string         `db:"dedup_key" json:"dedup_key"`
	CurrentQuantity *int           `db:"current_quantity" json:"current_quantity,omitempty"`
	MinimumQuantity *int           `db:"minimum_quantity" json:"minimum_quantity,omitempty"`
	MarginPercent   *float64       `db:"margin_percent" json:"margin_percent,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	ViewedAt        *time.Time     `db:"viewed_at" json:"viewed_at,omitempty"`
}

// DefaultDedupKey is the key used when an alert carries none.
func DefaultDedupKey(alertType AlertType, productID *string, message string) string {
	pid := ""
	if productID != nil {
		pid = *productID
	}
	return fmt.Sprintf("%s:%s:%s", alertType, pid, message)
}

// AlertFilter narrows an alert listing
type AlertFilter struct {
	Status    AlertStatus
	Type      AlertType
	ProductID string
	Limit     int
	Offset    int
}

var alertColumns = []string{
	"id", "alert_type", "message", "product_id", "notified_user_ids", "status",
	"dedup_key", "current_quantity", "minimum_quantity", "margin_percent",
	"created_at", "viewed_at",
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// AlertRepository handles alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// CreateIfAbsent inserts the alert unless a pending one with the same type and
// dedup key exists. It reports whether a row was created.
func (r *AlertRepository) CreateIfAbsent(ctx context.Context, alert *Alert) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.DedupKey == "" {
		alert.DedupKey = DefaultDedupKey(alert.Type, alert.ProductID, alert.Message)
	}
	if alert.NotifiedUserIDs == nil {
		alert.NotifiedUserIDs = pq.StringArray{}
	}
	alert.Status = AlertPending

	query := `
		INSERT INTO stock_alerts (
			id, alert_type, message, product_id, notified_user_ids, status, dedup_key,
			current_quantity, minimum_quantity, margin_percent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (alert_type, dedup_key) WHERE status = 'pendente' DO NOTHING
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		alert.ID, alert.Type, alert.Message, alert.ProductID, alert.NotifiedUserIDs,
		alert.Status, alert.DedupKey, alert.CurrentQuantity, alert.MinimumQuantity,
		alert.MarginPercent,
	).Scan(&alert.CreatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return false, appErr
		}
		return false, err
	}
	return true, nil
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*Alert, error) {
	query, args, err := builder().Select(alertColumns...).From("stock_alerts").
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var alert Alert
	if err := r.db.GetContext(ctx, &alert, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("alert")
		}
		return nil, err
	}
	return &alert, nil
}

// List returns alerts matching the filter, newest first, and the total count.
func (r *AlertRepository) List(ctx context.Context, filter AlertFilter) ([]*Alert, int64, error) {
	where := squirrel.And{}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": filter.Status})
	}
	if filter.Type != "" {
		where = append(where, squirrel.Eq{"alert_type": filter.Type})
	}
	if filter.ProductID != "" {
		where = append(where, squirrel.Eq{"product_id": filter.ProductID})
	}

	countSQL, countArgs, err := builder().Select("COUNT(*)").From("stock_alerts").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	q := builder().Select(alertColumns...).From("stock_alerts").Where(where).
		OrderBy("created_at DESC", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, err
	}

	alerts := []*Alert{}
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// MarkViewed moves a pending alert to viewed. Viewing an already viewed alert
// is a no-op.
func (r *AlertRepository) MarkViewed(ctx context.Context, id string) (*Alert, error) {
	query := `
		UPDATE stock_alerts
		SET status = 'visualizado', viewed_at = NOW()
		WHERE id = $1 AND status = 'pendente'
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}
