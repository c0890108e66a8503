package service

import (
	"context"
	"strings"

	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/metrics"
)

// Actor is the authenticated user performing an operation
type Actor struct {
	ID   string
	Role string
}

func (a Actor) isManager() bool {
	return a.Role == repository.RoleAdmin || a.Role == repository.RoleLeader
}

// CreateTaskInput holds the fields of a manual task
type CreateTaskInput struct {
	Title         string
	Description   string
	ResponsibleID string
	Priority      repository.TaskPriority
	Type          string
	ProductID     *string
}

// TaskService manages manual tasks and task progress
type TaskService struct {
	tasks     TaskStore
	users     UserDirectory
	publisher *events.InventoryEventPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(tasks TaskStore, users UserDirectory, publisher *events.InventoryEventPublisher, m *metrics.Metrics, log *logger.Logger) *TaskService {
	return &TaskService{
		tasks:     tasks,
		users:     users,
		publisher: publisher,
		metrics:   m,
		logger:    log.WithComponent("tasks"),
	}
}

// Create assigns a manual task. Admins may assign anyone; leaders only employees.
func (s *TaskService) Create(ctx context.Context, actor Actor, in CreateTaskInput) (*repository.Task, error) {
	if !actor.isManager() {
		return nil, errors.Forbidden("only admins and leaders can assign tasks")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.Validation(map[string]string{"title": "is required"})
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return nil, errors.Validation(map[string]string{"priority": "must be one of: baixa, normal, alta"})
	}

	responsible, err := s.users.FindByID(ctx, in.ResponsibleID)
	if err != nil {
		return nil, err
	}
	if actor.Role == repository.RoleLeader && responsible.Role != repository.RoleEmployee {
		return nil, errors.Forbidden("leaders can only assign tasks to employees")
	}

	task := &repository.Task{
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		ResponsibleID: responsible.UserID,
		CreatedBy:     &actor.ID,
		Priority:      in.Priority,
		Origin:        repository.TaskOriginManual,
		Type:          in.Type,
		ProductID:     in.ProductID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.metrics.IncTask(task.Type, string(task.Origin))
	s.publisher.PublishTaskAssigned(ctx, task)
	s.logger.Info().Str("task_id", task.ID).Str("responsible_id", task.ResponsibleID).Msg("task assigned")
	return task, nil
}

// ListMine returns the actor's tasks, optionally filtered by status
func (s *TaskService) ListMine(ctx context.Context, actor Actor, status repository.TaskStatus) ([]*repository.Task, error) {
	if status != "" && !status.Valid() {
		return nil, errors.Validation(map[string]string{"status": "unknown task status"})
	}
	return s.tasks.ListByResponsible(ctx, actor.ID, status)
}

// Start moves a pending task into progress
func (s *TaskService) Start(ctx context.Context, actor Actor, taskID string) (*repository.Task, error) {
	return s.transition(ctx, actor, taskID, repository.TaskInProgress)
}

// Complete finishes a task. Employees may only complete their own tasks.
func (s *TaskService) Complete(ctx context.Context, actor Actor, taskID string) (*repository.Task, error) {
	return s.transition(ctx, actor, taskID, repository.TaskDone)
}

func (s *TaskService) transition(ctx context.Context, actor Actor, taskID string, to repository.TaskStatus) (*repository.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !actor.isManager() && task.ResponsibleID != actor.ID {
		return nil, errors.Forbidden("employees can only update their own tasks")
	}
	return s.tasks.Transition(ctx, taskID, to)
}
