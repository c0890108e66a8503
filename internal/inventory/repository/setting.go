package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/stockflow/stockflow-backend/pkg/database"
)

// SettingAlertMargin holds the low-stock margin percentage
const SettingAlertMargin = "margem_alerta_estoque"

// SettingRepository stores key/value settings
type SettingRepository struct {
	db *database.DB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *database.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the value stored under key and whether it exists.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = $1`, key)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, key, value)
	return err
}
