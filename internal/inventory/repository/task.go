package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pendente"
	TaskInProgress TaskStatus = "em andamento"
	TaskDone       TaskStatus = "concluida"
)

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskInProgress || s == TaskDone
}

// allowedFrom lists the states a task may move to s from. Transitions only
// move forward and a finished task never changes again.
func (s TaskStatus) allowedFrom() []string {
	switch s {
	case TaskInProgress:
		return []string{string(TaskPending)}
	case TaskDone:
		return []string{string(TaskPending), string(TaskInProgress)}
	default:
		return nil
	}
}

// TaskPriority ranks tasks
type TaskPriority string

const (
	PriorityLow    TaskPriority = "baixa"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "alta"
)

// Valid reports whether p is a known priority
func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

// TaskOrigin tells whether a person or the system created a task
type TaskOrigin string

const (
	TaskOriginManual TaskOrigin = "manual"
	TaskOriginSystem TaskOrigin = "sistema"
)

// Task types created by the system
const (
	TaskTypeGeneral    = "geral"
	TaskTypeFEFOAdjust = "ajuste_peps"
	TaskTypeStockAudit = "auditoria_estoque"
)

// Task is a work item assigned to one user
type Task struct {
	ID            string       `db:"id" json:"id"`
	Title         string       `db:"title" json:"title"`
	Description   string       `db:"description" json:"description"`
	ResponsibleID string       `db:"responsible_id" json:"responsible_id"`
	CreatedBy     *string      `db:"created_by" json:"created_by,omitempty"`
	Status        TaskStatus   `db:"status" json:"status"`
	Priority      TaskPriority `db:"priority" json:"priority"`
	Origin        TaskOrigin   `db:"origin" json:"origin"`
	Type          string       `db:"task_type" json:"type"`
	ProductID     *string      `db:"product_id" json:"product_id,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	StartedAt     *time.Time   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
}

const taskColumns = `id, title, description, responsible_id, created_by, status, priority,
	origin, task_type, product_id, created_at, started_at, completed_at`

// TaskRepository handles task persistence
type TaskRepository struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (t *Task) applyDefaults() {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	if t.Origin == "" {
		t.Origin = TaskOriginManual
	}
	if t.Type == "" {
		t.Type = TaskTypeGeneral
	}
}

const insertTask = `
	INSERT INTO tasks (
		id, title, description, responsible_id, created_by, status, priority,
		origin, task_type, product_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func taskArgs(t *Task) []interface{} {
	return []interface{}{
		t.ID, t.Title, t.Description, t.ResponsibleID, t.CreatedBy, t.Status,
		t.Priority, t.Origin, t.Type, t.ProductID,
	}
}

// Create inserts a task unconditionally
func (r *TaskRepository) Create(ctx context.Context, task *Task) error {
	task.applyDefaults()

	err := r.db.QueryRowxContext(ctx, insertTask+" RETURNING created_at", taskArgs(task)...).Scan(&task.CreatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// CreateIfAbsent inserts a system task unless an open one with the same
// title, responsible and type exists. It reports whether a row was created.
func (r *TaskRepository) CreateIfAbsent(ctx context.Context, task *Task) (bool, error) {
	task.applyDefaults()
	task.Origin = TaskOriginSystem
	task.Status = TaskPending

	query := insertTask + `
		ON CONFLICT (title, responsible_id, task_type) WHERE origin = 'sistema' AND status <> 'concluida'
		DO NOTHING
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query, taskArgs(task)...).Scan(&task.CreatedAt)
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

// GetByID gets a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*Task, error) {
	var task Task
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("task")
		}
		return nil, err
	}
	return &task, nil
}

// ListByResponsible returns the user's tasks, optionally filtered by status.
func (r *TaskRepository) ListByResponsible(ctx context.Context, userID string, status TaskStatus) ([]*Task, error) {
	q := builder().Select(taskColumns).From("tasks").
		Where(squirrel.Eq{"responsible_id": userID}).
		OrderBy("created_at DESC", "id")
	if status != "" {
		q = q.Where(squirrel.Eq{"status": status})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	tasks := []*Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Transition moves a task to the given status and stamps the matching
// timestamp. Backward moves are rejected with a conflict.
func (r *TaskRepository) Transition(ctx context.Context, id string, to TaskStatus) (*Task, error) {
	from := to.allowedFrom()
	if len(from) == 0 {
		return nil, errors.BadRequest("invalid target status: " + string(to))
	}

	query := `
		UPDATE tasks SET
			status = $2,
			started_at = CASE WHEN $2 = 'em andamento' THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $2 = 'concluida' THEN NOW() ELSE completed_at END
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + taskColumns

	var task Task
	err := r.db.GetContext(ctx, &task, query, id, to, pq.Array(from))
	if err == nil {
		return &task, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, errors.Conflict("task cannot move from " + string(current.Status) + " to " + string(to))
}
