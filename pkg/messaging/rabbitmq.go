package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("rabbitmq connection closed")

// SetupFunc declares topology or restarts consumers on a fresh channel.
type SetupFunc func(ctx context.Context) error

// RabbitMQ owns the broker connection and the single channel shared by the
// publisher and consumers. When the connection drops it is re-dialled and
// every registered SetupFunc runs again.
type RabbitMQ struct {
	config *config.RabbitMQConfig
	logger *logger.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	setups  []SetupFunc
}

// New dials the broker, retrying while it comes up.
func New(ctx context.Context, cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		config: cfg,
		logger: log.WithComponent("rabbitmq"),
	}

	if err := r.dialWithRetry(ctx, 30*time.Second); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) dial() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	r.mu.Lock()
	r.conn, r.channel = conn, ch
	r.mu.Unlock()

	r.logger.Info().Msg("connected to RabbitMQ")
	return nil
}

func (r *RabbitMQ) dialWithRetry(ctx context.Context, maxElapsed time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	if r.config.ReconnectDelay > 0 {
		policy.InitialInterval = r.config.ReconnectDelay
	}
	policy.MaxElapsedTime = maxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		if r.isClosed() {
			return backoff.Permanent(ErrClosed)
		}
		attempt++
		err := r.dial()
		if err != nil {
			r.logger.Warn().Err(err).Int("attempt", attempt).Msg("RabbitMQ dial failed")
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// OnSetup registers fn and runs it immediately. It runs again after every
// reconnect.
func (r *RabbitMQ) OnSetup(ctx context.Context, fn SetupFunc) error {
	if err := fn(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.setups = append(r.setups, fn)
	r.mu.Unlock()
	return nil
}

// Watch re-dials after an unexpected connection loss until ctx is done.
func (r *RabbitMQ) Watch(ctx context.Context) {
	go func() {
		for {
			r.mu.RLock()
			conn := r.conn
			r.mu.RUnlock()

			closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
			select {
			case <-ctx.Done():
				return
			case amqpErr, ok := <-closeCh:
				if !ok || amqpErr == nil || r.isClosed() {
					return
				}
				r.logger.Warn().Str("reason", amqpErr.Reason).Msg("RabbitMQ connection lost")
			}

			if err := r.dialWithRetry(ctx, 0); err != nil {
				r.logger.Error().Err(err).Msg("giving up on RabbitMQ reconnect")
				return
			}
			r.rerunSetups(ctx)
		}
	}()
}

func (r *RabbitMQ) rerunSetups(ctx context.Context) {
	r.mu.RLock()
	setups := append([]SetupFunc(nil), r.setups...)
	r.mu.RUnlock()

	for _, fn := range setups {
		if err := fn(ctx); err != nil {
			r.logger.Error().Err(err).Msg("failed to restore RabbitMQ topology")
		}
	}
}

func (r *RabbitMQ) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the channel and the connection for good
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports whether the connection is open
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareTopology declares the exchanges this service touches plus its dead
// letter queue, dlq.<service>.
func (r *RabbitMQ) DeclareTopology(service string) SetupFunc {
	return func(ctx context.Context) error {
		ch := r.Channel()
		for _, name := range []string{ExchangeInventoryEvents, ExchangeUserEvents, ExchangeDeadLetter} {
			if err := declareExchange(ch, name); err != nil {
				return fmt.Errorf("failed to declare exchange %s: %w", name, err)
			}
		}

		dlq := "dlq." + service
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", dlq, err)
		}
		if err := ch.QueueBind(dlq, "#", ExchangeDeadLetter, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", dlq, err)
		}
		return nil
	}
}

func declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
}

// declareQueue declares a durable queue that dead-letters into the DLX and
// binds it to every binding.
func declareQueue(ch *amqp.Channel, name string, bindings []Binding) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": ExchangeDeadLetter},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	for _, b := range bindings {
		if err := declareExchange(ch, b.Exchange); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", b.Exchange, err)
		}
		if err := ch.QueueBind(name, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", name, b.Exchange, err)
		}
	}
	return nil
}
