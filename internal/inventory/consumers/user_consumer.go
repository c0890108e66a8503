package consumers

import (
	"context"
	"strings"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// UserCache is the local copy of the user directory
type UserCache interface {
	Set(ctx context.Context, user *repository.CachedUser) error
	UpdateRole(ctx context.Context, userID, role string) error
	FindByID(ctx context.Context, userID string) (*repository.CachedUser, error)
	Delete(ctx context.Context, userID string) error
}

var roleAliases = map[string]string{
	"admin":       repository.RoleAdmin,
	"lider":       repository.RoleLeader,
	"leader":      repository.RoleLeader,
	"funcionario": repository.RoleEmployee,
	"employee":    repository.RoleEmployee,
}

// NormalizeRole maps identity-service role names onto inventory roles.
// Unknown roles are kept lowercased.
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if mapped, ok := roleAliases[role]; ok {
		return mapped
	}
	return role
}

// UserEventHandler keeps the user cache in sync (testable without RabbitMQ)
type UserEventHandler struct {
	cache  UserCache
	logger *logger.Logger
}

// NewUserEventHandler creates a new user event handler
func NewUserEventHandler(cache UserCache, log *logger.Logger) *UserEventHandler {
	return &UserEventHandler{
		cache:  cache,
		logger: log.WithComponent("user_consumer"),
	}
}

// HandleEvent dispatches a user event
func (h *UserEventHandler) HandleEvent(ctx context.Context, event *messaging.Event) error {
	switch event.Type {
	case messaging.EventUserCreated:
		return h.handleUserCreated(ctx, event)
	case messaging.EventUserUpdated:
		return h.handleUserUpdated(ctx, event)
	case messaging.EventUserDeleted:
		return h.handleUserDeleted(ctx, event)
	case messaging.EventUserRoleChanged:
		return h.handleRoleChanged(ctx, event)
	default:
		h.logger.Warn().Str("event_type", event.Type).Msg("unknown event type received")
		return nil
	}
}

func (h *UserEventHandler) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("user_id", data.UserID).
		Str("role", data.RoleName).
		Msg("received user created event")

	user := &repository.CachedUser{
		UserID: data.UserID,
		Name:   data.FullName(),
		Role:   NormalizeRole(data.RoleName),
		Active: true,
	}
	if data.Email != "" {
		user.Email = &data.Email
	}
	return h.cache.Set(ctx, user)
}

func (h *UserEventHandler) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user updated event")

	existing, err := h.cache.FindByID(ctx, data.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return err
	}

	if name, ok := changedTo[string](data.Fields, "name"); ok {
		existing.Name = name
	}
	if email, ok := changedTo[string](data.Fields, "email"); ok {
		existing.Email = &email
	}
	if active, ok := changedTo[bool](data.Fields, "active"); ok {
		existing.Active = active
	}

	return h.cache.Set(ctx, existing)
}

func (h *UserEventHandler) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	return h.cache.Delete(ctx, data.UserID)
}

func (h *UserEventHandler) handleRoleChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserRoleChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("user_id", data.UserID).
		Str("old_role", data.OldRoleName).
		Str("new_role", data.NewRoleName).
		Msg("received user role changed event")

	return h.cache.UpdateRole(ctx, data.UserID, NormalizeRole(data.NewRoleName))
}

// changedTo reads the "to" side of a {"field": {"from": x, "to": y}} change
func changedTo[T any](fields map[string]any, field string) (T, bool) {
	var zero T
	change, ok := fields[field].(map[string]any)
	if !ok {
		return zero, false
	}
	v, ok := change["to"].(T)
	return v, ok
}

// UserEventConsumer consumes user events into the user cache
type UserEventConsumer struct {
	consumer *messaging.Consumer
}

// NewUserEventConsumer creates the consumer of every user.* event
func NewUserEventConsumer(rmq *messaging.RabbitMQ, cache UserCache, log *logger.Logger) *UserEventConsumer {
	consumer := messaging.NewConsumer(rmq, "inventory-service.user-events", log,
		messaging.Binding{Exchange: messaging.ExchangeUserEvents, RoutingKey: "user.#"})

	handler := NewUserEventHandler(cache, log)
	for _, eventType := range []string{
		messaging.EventUserCreated,
		messaging.EventUserUpdated,
		messaging.EventUserDeleted,
		messaging.EventUserRoleChanged,
	} {
		consumer.Handle(eventType, handler.HandleEvent)
	}

	return &UserEventConsumer{consumer: consumer}
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}
