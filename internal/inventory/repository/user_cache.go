package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/lib/pq"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Role names as issued in access tokens
const (
	RoleAdmin    = "admin"
	RoleLeader   = "lider"
	RoleEmployee = "funcionario"
)

// CachedUser is the local copy of a user, kept current from user events
type CachedUser struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Name      string    `db:"name" json:"name"`
	Role      string    `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserCacheRepository handles user cache persistence
type UserCacheRepository struct {
	db *database.DB
}

// NewUserCacheRepository creates a new user cache repository
func NewUserCacheRepository(db *database.DB) *UserCacheRepository {
	return &UserCacheRepository{db: db}
}

// Set creates or updates a cached user
func (r *UserCacheRepository) Set(ctx context.Context, user *CachedUser) error {
	query := `
		INSERT INTO user_cache (user_id, email, name, role, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET email = $2, name = $3, role = $4, active = $5, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, user.UserID, user.Email, user.Name, user.Role, user.Active)
	return err
}

// UpdateRole changes the cached role of a user
func (r *UserCacheRepository) UpdateRole(ctx context.Context, userID, role string) error {
	query := `UPDATE user_cache SET role = $2, updated_at = NOW() WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID, role)
	return err
}

// FindByID gets a cached user by ID
func (r *UserCacheRepository) FindByID(ctx context.Context, userID string) (*CachedUser, error) {
	var user CachedUser
	query := `SELECT user_id, email, name, role, active, updated_at FROM user_cache WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &user, query, userID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// ListByRoles returns active users holding any of the roles
func (r *UserCacheRepository) ListByRoles(ctx context.Context, roles ...string) ([]*CachedUser, error) {
	users := []*CachedUser{}
	if len(roles) == 0 {
		return users, nil
	}

	query := `
		SELECT user_id, email, name, role, active, updated_at
		FROM user_cache
		WHERE active AND role = ANY($1)
		ORDER BY name, user_id
	`
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(roles)); err != nil {
		return nil, err
	}
	return users, nil
}

// Delete deletes a cached user
func (r *UserCacheRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_cache WHERE user_id = $1`, userID)
	return err
}
