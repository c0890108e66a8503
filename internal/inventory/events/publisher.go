package events

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory events. A nil publisher drops
// every event, which is how the service runs without RabbitMQ.
type InventoryEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(publisher messaging.EventPublisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log.WithComponent("events"),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (p *InventoryEventPublisher) publish(ctx context.Context, eventType string, data interface{}) {
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// PublishStockMoved publishes a committed movement
func (p *InventoryEventPublisher) PublishStockMoved(ctx context.Context, m *repository.Movement, productName string, newQuantity int) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockMoved, messaging.StockMovedEvent{
		MovementID:      m.ID,
		ProductID:       m.ProductID,
		ProductName:     productName,
		Type:            string(m.Type),
		Quantity:        m.Quantity,
		NewQuantity:     newQuantity,
		LotNumber:       deref(m.LotNumber),
		ExpectedFEFOLot: deref(m.ExpectedFEFOLot),
		FEFOViolation:   m.FEFOViolation,
		Origin:          string(m.Origin),
		UserID:          deref(m.UserID),
	})
}

// PublishFEFOViolation publishes an out-of-order exit
func (p *InventoryEventPublisher) PublishFEFOViolation(ctx context.Context, product *repository.Product, expectedLot, chosenLot, userID, message string) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventFEFOViolation, messaging.FEFOViolationEvent{
		ProductID:   product.ID,
		ProductName: product.Name,
		ExpectedLot: expectedLot,
		ChosenLot:   chosenLot,
		UserID:      userID,
		Message:     message,
	})
}

// PublishAlertGenerated publishes a newly stored alert
func (p *InventoryEventPublisher) PublishAlertGenerated(ctx context.Context, alert *repository.Alert) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventAlertGenerated, messaging.AlertGeneratedEvent{
		AlertID:   alert.ID,
		AlertType: string(alert.Type),
		Message:   alert.Message,
		ProductID: deref(alert.ProductID),
	})
}

// PublishTaskAssigned publishes a task assignment
func (p *InventoryEventPublisher) PublishTaskAssigned(ctx context.Context, task *repository.Task) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventTaskAssigned, messaging.TaskAssignedEvent{
		TaskID:        task.ID,
		Title:         task.Title,
		ResponsibleID: task.ResponsibleID,
		TaskType:      task.Type,
		Priority:      string(task.Priority),
		Origin:        string(task.Origin),
	})
}

// PublishBatchExpiring publishes a batch entering the expiry window
func (p *InventoryEventPublisher) PublishBatchExpiring(ctx context.Context, batch *repository.ExpiringBatch, now time.Time) {
	if p == nil || batch.ExpiryDate == nil {
		return
	}
	p.publish(ctx, messaging.EventBatchExpiring, messaging.BatchExpiringEvent{
		ProductID:   batch.ProductID,
		ProductName: batch.ProductName,
		BatchID:     batch.ID,
		LotNumber:   batch.LotNumber,
		ExpiryDate:  *batch.ExpiryDate,
		DaysUntil:   int(batch.ExpiryDate.Sub(now).Hours() / 24),
		Quantity:    batch.AvailableQuantity,
	})
}
