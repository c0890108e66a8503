package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/handler"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/auth"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stretchr/testify/require"
)

// --- Stubs ---

type stubScan struct {
	got    service.ScanRequest
	result *service.MovementResult
	err    error
}

func (s *stubScan) ProcessScan(ctx context.Context, req service.ScanRequest) (*service.MovementResult, error) {
	s.got = req
	return s.result, s.err
}

type stubStock struct {
	batches       []*repository.Batch
	movements     []*repository.Movement
	total         int64
	limit, offset int
	err           error
}

func (s *stubStock) AvailableBatches(ctx context.Context, productID string) ([]*repository.Batch, error) {
	return s.batches, s.err
}

func (s *stubStock) Movements(ctx context.Context, productID string, limit, offset int) ([]*repository.Movement, int64, error) {
	s.limit, s.offset = limit, offset
	return s.movements, s.total, s.err
}

type stubAlerts struct {
	filter repository.AlertFilter
	margin *float64
	called bool
	alerts []*repository.Alert
	err    error
}

func (s *stubAlerts) List(ctx context.Context, filter repository.AlertFilter) ([]*repository.Alert, int64, error) {
	s.filter = filter
	return s.alerts, int64(len(s.alerts)), s.err
}

func (s *stubAlerts) MarkViewed(ctx context.Context, id string) (*repository.Alert, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &repository.Alert{ID: id, Status: repository.AlertViewed}, nil
}

func (s *stubAlerts) Generate(ctx context.Context, margin *float64) ([]*repository.Alert, error) {
	s.called = true
	s.margin = margin
	return s.alerts, s.err
}

type stubSettings struct {
	margin float64
	err    error
}

func (s *stubSettings) AlertMargin(ctx context.Context) (float64, error) {
	return s.margin, nil
}

func (s *stubSettings) SetAlertMargin(ctx context.Context, margin float64) error {
	if s.err != nil {
		return s.err
	}
	s.margin = margin
	return nil
}

type stubTasks struct {
	actor service.Actor
	input service.CreateTaskInput
	err   error
}

func (s *stubTasks) Create(ctx context.Context, actor service.Actor, in service.CreateTaskInput) (*repository.Task, error) {
	s.actor, s.input = actor, in
	if s.err != nil {
		return nil, s.err
	}
	return &repository.Task{ID: "task-1", Title: in.Title, ResponsibleID: in.ResponsibleID, Status: repository.TaskPending}, nil
}

func (s *stubTasks) ListMine(ctx context.Context, actor service.Actor, status repository.TaskStatus) ([]*repository.Task, error) {
	s.actor = actor
	return []*repository.Task{{ID: "task-1", ResponsibleID: actor.ID, Status: status}}, s.err
}

func (s *stubTasks) Start(ctx context.Context, actor service.Actor, taskID string) (*repository.Task, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &repository.Task{ID: taskID, Status: repository.TaskInProgress}, nil
}

func (s *stubTasks) Complete(ctx context.Context, actor service.Actor, taskID string) (*repository.Task, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &repository.Task{ID: taskID, Status: repository.TaskDone}, nil
}

// --- Router ---

type testAPI struct {
	router   http.Handler
	jwt      *auth.Manager
	scan     *stubScan
	stock    *stubStock
	alerts   *stubAlerts
	settings *stubSettings
	tasks    *stubTasks
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logger.Nop()
	api := &testAPI{
		jwt: auth.NewManager(&config.JWTConfig{
			Secret:       "handler-test-secret",
			Issuer:       "stockflow",
			AccessExpiry: time.Minute,
		}),
		scan:     &stubScan{},
		stock:    &stubStock{},
		alerts:   &stubAlerts{},
		settings: &stubSettings{},
		tasks:    &stubTasks{},
	}

	handlers := &handler.Handlers{
		Scan:     handler.NewScanHandler(api.scan, log),
		Stock:    handler.NewStockHandler(api.stock, log),
		Alerts:   handler.NewAlertHandler(api.alerts, log),
		Settings: handler.NewSettingsHandler(api.settings, log),
		Tasks:    handler.NewTaskHandler(api.tasks, log),
	}

	r := chi.NewRouter()
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(api.jwt.Middleware)
		handlers.Routes(r)
	})
	api.router = r
	return api
}

func (a *testAPI) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := a.jwt.GenerateAccessToken(userID, userID+"@stockflow.test", userID, role)
	require.NoError(t, err)
	return token
}
