package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- System Task Dedup Tests ---

func TestTaskRepository_CreateIfAbsent(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("WHERE origin = 'sistema' AND status <> 'concluida'").
		WithArgs(testutil.AnyUUID{}, "Ajustar PEPS: Soro", "d", "leader-1", nil, "pendente", "alta", "sistema", "ajuste_peps", "p1").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("DO NOTHING").
		WillReturnRows(testutil.MockRows("created_at"))

	repo := repository.NewTaskRepository(mockDB.DB)
	newTask := func() *repository.Task {
		return &repository.Task{
			Title:         "Ajustar PEPS: Soro",
			Description:   "d",
			ResponsibleID: "leader-1",
			Priority:      repository.PriorityHigh,
			Type:          repository.TaskTypeFEFOAdjust,
			ProductID:     testutil.PtrString("p1"),
		}
	}

	task := newTask()
	created, err := repo.CreateIfAbsent(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, repository.TaskOriginSystem, task.Origin)

	created, err = repo.CreateIfAbsent(context.Background(), newTask())
	require.NoError(t, err)
	assert.False(t, created)
	mockDB.ExpectationsWereMet(t)
}

func TestTaskRepository_Create_Defaults(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO tasks").
		WithArgs(testutil.AnyUUID{}, "Contar prateleira", "", "u1", "lead", "pendente", "normal", "manual", "geral", nil).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	task := &repository.Task{Title: "Contar prateleira", ResponsibleID: "u1", CreatedBy: testutil.PtrString("lead")}
	require.NoError(t, repository.NewTaskRepository(mockDB.DB).Create(context.Background(), task))
	assert.Equal(t, repository.TaskPending, task.Status)
	mockDB.ExpectationsWereMet(t)
}

// --- Task Transition Tests ---

func TestTaskRepository_Transition(t *testing.T) {
	t.Run("starts a pending task", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery("WHERE id = $1 AND status = ANY($3)").
			WithArgs("t1", "em andamento", "{\"pendente\"}").
			WillReturnRows(testutil.MockRows("id", "status", "started_at").AddRow("t1", "em andamento", time.Now()))

		task, err := repository.NewTaskRepository(mockDB.DB).Transition(context.Background(), "t1", repository.TaskInProgress)
		require.NoError(t, err)
		assert.Equal(t, repository.TaskInProgress, task.Status)
		assert.NotNil(t, task.StartedAt)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("a completed task cannot move again", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery("UPDATE tasks SET").
			WithArgs("t1", "em andamento", "{\"pendente\"}").
			WillReturnRows(testutil.MockRows("id"))
		mockDB.ExpectQuery("FROM tasks WHERE id = $1").
			WithArgs("t1").
			WillReturnRows(testutil.MockRows("id", "status").AddRow("t1", "concluida"))

		_, err := repository.NewTaskRepository(mockDB.DB).Transition(context.Background(), "t1", repository.TaskInProgress)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConflict))
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("pending is not a valid target", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		_, err := repository.NewTaskRepository(mockDB.DB).Transition(context.Background(), "t1", repository.TaskPending)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})
}
