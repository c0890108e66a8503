package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/metrics"
)

// emitter stores deduplicated alerts and system tasks. Failures are logged
// and never returned.
type emitter struct {
	alerts    AlertStore
	tasks     TaskStore
	publisher *events.InventoryEventPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func (e *emitter) alert(ctx context.Context, alert *repository.Alert) bool {
	created, err := e.alerts.CreateIfAbsent(ctx, alert)
	if err != nil {
		e.logger.Error().Err(err).
			Str("alert_type", string(alert.Type)).
			Str("dedup_key", alert.DedupKey).
			Msg("failed to create alert")
		return false
	}
	if created {
		e.metrics.IncAlert(string(alert.Type))
		e.publisher.PublishAlertGenerated(ctx, alert)
	}
	return created
}

func (e *emitter) systemTask(ctx context.Context, task *repository.Task) bool {
	created, err := e.tasks.CreateIfAbsent(ctx, task)
	if err != nil {
		e.logger.Error().Err(err).
			Str("task_type", task.Type).
			Str("responsible_id", task.ResponsibleID).
			Msg("failed to create system task")
		return false
	}
	if created {
		e.metrics.IncTask(task.Type, string(task.Origin))
		e.publisher.PublishTaskAssigned(ctx, task)
	}
	return created
}

func userIDs(users []*repository.CachedUser) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	return ids
}
