package handler_test

import (
	"net/http"
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Task Tests ---

func TestCreateTask(t *testing.T) {
	api := newTestAPI(t)

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/inventory/tasks", map[string]interface{}{
		"titulo":         "Conferir prateleira B",
		"responsavel_id": "emp-1",
		"prioridade":     "alta",
	})
	testutil.WithBearerToken(req, api.token(t, "lead-1", repository.RoleLeader))

	rr := testutil.ExecuteRequest(api.router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	assert.Equal(t, "lead-1", api.tasks.actor.ID)
	assert.Equal(t, repository.RoleLeader, api.tasks.actor.Role)
	assert.Equal(t, "emp-1", api.tasks.input.ResponsibleID)
	assert.Equal(t, repository.PriorityHigh, api.tasks.input.Priority)
}

func TestCreateTask_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		body       map[string]interface{}
		serviceErr error
		wantStatus int
	}{
		{
			name:       "employee cannot create",
			role:       repository.RoleEmployee,
			body:       map[string]interface{}{"titulo": "x", "responsavel_id": "emp-2"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing responsible",
			role:       repository.RoleAdmin,
			body:       map[string]interface{}{"titulo": "x"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad priority",
			role:       repository.RoleAdmin,
			body:       map[string]interface{}{"titulo": "x", "responsavel_id": "emp-1", "prioridade": "urgente"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "responsible not found",
			role:       repository.RoleAdmin,
			body:       map[string]interface{}{"titulo": "x", "responsavel_id": "ghost"},
			serviceErr: errors.NotFound("user"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "leader assigning leader",
			role:       repository.RoleLeader,
			body:       map[string]interface{}{"titulo": "x", "responsavel_id": "lead-2"},
			serviceErr: errors.Forbidden("leaders can only assign tasks to employees"),
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.tasks.err = tt.serviceErr

			req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/inventory/tasks", tt.body)
			testutil.WithBearerToken(req, api.token(t, "u1", tt.role))

			rr := testutil.ExecuteRequest(api.router, req)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestListMyTasks(t *testing.T) {
	api := newTestAPI(t)

	req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/inventory/tasks/mine?status=pendente", nil)
	testutil.WithBearerToken(req, api.token(t, "emp-1", repository.RoleEmployee))

	rr := testutil.ExecuteRequest(api.router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []repository.Task `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &resp)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "emp-1", resp.Data[0].ResponsibleID)
	assert.Equal(t, repository.TaskPending, resp.Data[0].Status)
}

func TestTaskTransitions(t *testing.T) {
	api := newTestAPI(t)
	token := api.token(t, "emp-1", repository.RoleEmployee)

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/inventory/tasks/task-9/start", nil)
	testutil.WithBearerToken(req, token)
	rr := testutil.ExecuteRequest(api.router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "emp-1", api.tasks.actor.ID)

	req = testutil.NewHTTPRequest(http.MethodPost, "/api/v1/inventory/tasks/task-9/complete", nil)
	testutil.WithBearerToken(req, token)
	rr = testutil.ExecuteRequest(api.router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data repository.Task `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &resp)
	assert.Equal(t, repository.TaskDone, resp.Data.Status)
}

func TestTaskTransitions_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not own task", errors.Forbidden("employees can only update their own tasks"), http.StatusForbidden},
		{"already done", errors.Conflict("task cannot move to concluida"), http.StatusConflict},
		{"missing", errors.NotFound("task"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.tasks.err = tt.err

			req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/inventory/tasks/task-9/complete", nil)
			testutil.WithBearerToken(req, api.token(t, "emp-1", repository.RoleEmployee))

			rr := testutil.ExecuteRequest(api.router, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
