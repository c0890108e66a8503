package service

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
)

// ProductStore resolves products and maintains their aggregate quantity
type ProductStore interface {
	FindByCode(ctx context.Context, code string) (*repository.Product, error)
	FindByID(ctx context.Context, id string) (*repository.Product, error)
	AdjustQuantity(ctx context.Context, id string, delta int) (int, error)
	ListActive(ctx context.Context) ([]*repository.Product, error)
}

// BatchStore is the per-lot stock ledger
type BatchStore interface {
	RecordInbound(ctx context.Context, in repository.InboundBatch) (string, error)
	ListAvailable(ctx context.Context, productID string) ([]*repository.Batch, error)
	Decrement(ctx context.Context, batchID string, quantity int) error
	ListExpiring(ctx context.Context, cutoff time.Time) ([]*repository.ExpiringBatch, error)
}

// MovementStore appends and reads stock movements
type MovementStore interface {
	Create(ctx context.Context, m *repository.Movement) error
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*repository.Movement, int64, error)
}

// AlertStore persists alerts with dedup on insert
type AlertStore interface {
	CreateIfAbsent(ctx context.Context, alert *repository.Alert) (bool, error)
	List(ctx context.Context, filter repository.AlertFilter) ([]*repository.Alert, int64, error)
	MarkViewed(ctx context.Context, id string) (*repository.Alert, error)
}

// TaskStore persists tasks
type TaskStore interface {
	Create(ctx context.Context, task *repository.Task) error
	CreateIfAbsent(ctx context.Context, task *repository.Task) (bool, error)
	GetByID(ctx context.Context, id string) (*repository.Task, error)
	ListByResponsible(ctx context.Context, userID string, status repository.TaskStatus) ([]*repository.Task, error)
	Transition(ctx context.Context, id string, to repository.TaskStatus) (*repository.Task, error)
}

// UserDirectory answers who holds which role
type UserDirectory interface {
	ListByRoles(ctx context.Context, roles ...string) ([]*repository.CachedUser, error)
	FindByID(ctx context.Context, userID string) (*repository.CachedUser, error)
}

// SettingStore reads and writes key/value settings
type SettingStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// TxRunner runs fn in one database transaction carried by ctx
type TxRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
