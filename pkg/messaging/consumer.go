package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// maxDeadLetterCycles caps how often a message may come back from the dead
// letter queue before it stays there.
const maxDeadLetterCycles = 3

// MessageHandler handles one decoded event
type MessageHandler func(ctx context.Context, event *Event) error

// Binding routes messages from an exchange into the consumer's queue
type Binding struct {
	Exchange   string
	RoutingKey string
}

// Consumer reads one durable queue and dispatches by event type. Events with
// no registered handler are acknowledged and dropped.
type Consumer struct {
	rmq      *RabbitMQ
	queue    string
	bindings []Binding
	logger   *logger.Logger

	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

// NewConsumer creates a consumer for queue. Nothing is declared until Start.
func NewConsumer(rmq *RabbitMQ, queue string, log *logger.Logger, bindings ...Binding) *Consumer {
	return &Consumer{
		rmq:      rmq,
		queue:    queue,
		bindings: bindings,
		handlers: make(map[string]MessageHandler),
		logger:   log.WithComponent("consumer").With("queue", queue),
	}
}

// Handle registers the handler for an event type
func (c *Consumer) Handle(eventType string, handler MessageHandler) {
	c.mu.Lock()
	c.handlers[eventType] = handler
	c.mu.Unlock()
}

func (c *Consumer) handler(eventType string) (MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[eventType]
	return h, ok
}

// Start declares the queue and its bindings and begins consuming. After a
// reconnect the consumer subscribes again on the new channel.
func (c *Consumer) Start(ctx context.Context) error {
	return c.rmq.OnSetup(ctx, c.subscribe)
}

func (c *Consumer) subscribe(ctx context.Context) error {
	ch := c.rmq.Channel()
	if err := declareQueue(ch, c.queue, c.bindings); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", c.queue, err)
	}

	c.logger.Info().Int("bindings", len(c.bindings)).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("delivery channel closed")
					return
				}
				c.deliver(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) deliver(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.MessageId).Msg("undecodable message")
		msg.Reject(false)
		return
	}

	handler, ok := c.handler(event.Type)
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler for event type")
		msg.Ack(false)
		return
	}

	err := handler(WithCorrelationID(ctx, event.CorrelationID), &event)
	if err != nil {
		c.logger.Error().Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event")
	}

	switch outcomeFor(err, msg.Redelivered, msg.Headers) {
	case outcomeAck:
		msg.Ack(false)
	case outcomeRequeue:
		msg.Nack(false, true)
	default:
		c.logger.Warn().Str("event_id", event.ID).Msg("delivery attempts exhausted, dead-lettering")
		msg.Reject(false)
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDeadLetter
)

// outcomeFor requeues a failed delivery once; a second failure, or a message
// that already cycled through the dead letter queue too often, is
// dead-lettered.
func outcomeFor(err error, redelivered bool, headers amqp.Table) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case redelivered, RetryCount(headers) >= maxDeadLetterCycles:
		return outcomeDeadLetter
	default:
		return outcomeRequeue
	}
}

// RetryCount reads the broker's x-death bookkeeping from the message headers.
func RetryCount(headers amqp.Table) int {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok {
		return 0
	}

	total := 0
	for _, death := range deaths {
		if d, ok := death.(amqp.Table); ok {
			if count, ok := d["count"].(int64); ok {
				total += int(count)
			}
		}
	}
	return total
}
