package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// TaskManager assigns tasks and moves them through their lifecycle
type TaskManager interface {
	Create(ctx context.Context, actor service.Actor, in service.CreateTaskInput) (*repository.Task, error)
	ListMine(ctx context.Context, actor service.Actor, status repository.TaskStatus) ([]*repository.Task, error)
	Start(ctx context.Context, actor service.Actor, taskID string) (*repository.Task, error)
	Complete(ctx context.Context, actor service.Actor, taskID string) (*repository.Task, error)
}

// TaskHandler handles task endpoints
type TaskHandler struct {
	service TaskManager
	logger  *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(svc TaskManager, log *logger.Logger) *TaskHandler {
	return &TaskHandler{
		service: svc,
		logger:  log,
	}
}

func actorFrom(r *http.Request) service.Actor {
	return service.Actor{
		ID:   httputil.GetUserID(r.Context()),
		Role: httputil.GetUserRole(r.Context()),
	}
}

type createTaskRequest struct {
	Title         string  `json:"titulo" validate:"required,max=200"`
	Description   string  `json:"descricao" validate:"max=2000"`
	ResponsibleID string  `json:"responsavel_id" validate:"required"`
	Priority      string  `json:"prioridade" validate:"omitempty,oneof=baixa normal alta"`
	Type          string  `json:"tipo" validate:"max=50"`
	ProductID     *string `json:"produto_id"`
}

// Create assigns a manual task
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	task, err := h.service.Create(r.Context(), actorFrom(r), service.CreateTaskInput{
		Title:         req.Title,
		Description:   req.Description,
		ResponsibleID: req.ResponsibleID,
		Priority:      repository.TaskPriority(req.Priority),
		Type:          req.Type,
		ProductID:     req.ProductID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, task)
}

// ListMine lists the caller's tasks, optionally filtered by ?status=
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	status := repository.TaskStatus(r.URL.Query().Get("status"))

	tasks, err := h.service.ListMine(r.Context(), actorFrom(r), status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tasks)
}

// Start moves a task into progress
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Start(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, task)
}

// Complete finishes a task
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Complete(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, task)
}
