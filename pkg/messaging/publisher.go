package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// EventPublisher is implemented by Publisher, NopPublisher and test doubles
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Publisher sends events to one topic exchange, routed by event type
type Publisher struct {
	rmq      *RabbitMQ
	exchange string
	source   string
	logger   *logger.Logger
}

// NewPublisher creates a publisher for exchange. The exchange must already be
// declared, see DeclareTopology.
func NewPublisher(rmq *RabbitMQ, exchange, source string, log *logger.Logger) *Publisher {
	return &Publisher{
		rmq:      rmq,
		exchange: exchange,
		source:   source,
		logger:   log.WithComponent("publisher"),
	}
}

// Publish wraps data in an Event and sends it persistently
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	event, err := NewEvent(eventType, p.source, CorrelationID(ctx), data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	msg, err := event.publishing()
	if err != nil {
		return err
	}

	if err := p.rmq.Channel().PublishWithContext(ctx, p.exchange, eventType, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Msg("event published")

	return nil
}

func (e *Event) publishing() (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     e.ID,
		CorrelationId: e.CorrelationID,
		Timestamp:     e.Timestamp,
		Type:          e.Type,
		AppId:         e.Source,
		Body:          body,
	}, nil
}

// NopPublisher drops every event. Used when RabbitMQ is disabled.
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationID retrieves the correlation ID from context
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
