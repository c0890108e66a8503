package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// User events, consumed to keep the local user directory current
	EventUserCreated     = "user.created"
	EventUserUpdated     = "user.updated"
	EventUserDeleted     = "user.deleted"
	EventUserRoleChanged = "user.role.changed"

	// Inventory events
	EventStockMoved     = "inventory.stock.moved"
	EventFEFOViolation  = "inventory.fefo.violation"
	EventAlertGenerated = "inventory.alert.generated"
	EventTaskAssigned   = "inventory.task.assigned"
	EventBatchExpiring  = "inventory.batch.expiring"
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
	ExchangeDeadLetter      = "dlx.events"
)

// Event is the envelope every message travels in
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published by the identity service when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// UserUpdatedEvent carries the changed fields as {"field": {"from": x, "to": y}}
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
}

// UserRoleChangedEvent is published when a user's role changes
type UserRoleChangedEvent struct {
	UserID      string `json:"user_id"`
	OldRoleName string `json:"old_role_name"`
	NewRoleName string `json:"new_role_name"`
}

// Inventory Events

// StockMovedEvent is published after a movement commits
type StockMovedEvent struct {
	MovementID      string `json:"movement_id"`
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	Type            string `json:"type"`
	Quantity        int    `json:"quantity"`
	NewQuantity     int    `json:"new_quantity"`
	LotNumber       string `json:"lot_number,omitempty"`
	ExpectedFEFOLot string `json:"expected_fefo_lot,omitempty"`
	FEFOViolation   bool   `json:"fefo_violation"`
	Origin          string `json:"origin"`
	UserID          string `json:"user_id,omitempty"`
}

// FEFOViolationEvent is published when an exit used a lot other than the FEFO one
type FEFOViolationEvent struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	ExpectedLot string `json:"expected_lot"`
	ChosenLot   string `json:"chosen_lot"`
	UserID      string `json:"user_id,omitempty"`
	Message     string `json:"message"`
}

// AlertGeneratedEvent is published when a new alert is stored
type AlertGeneratedEvent struct {
	AlertID   string `json:"alert_id"`
	AlertType string `json:"alert_type"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
}

// TaskAssignedEvent is published when a task is assigned to a user
type TaskAssignedEvent struct {
	TaskID        string `json:"task_id"`
	Title         string `json:"title"`
	ResponsibleID string `json:"responsible_id"`
	TaskType      string `json:"task_type"`
	Priority      string `json:"priority"`
	Origin        string `json:"origin"`
}

// BatchExpiringEvent is published when a batch enters the expiry warning window
type BatchExpiringEvent struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	BatchID     string    `json:"batch_id"`
	LotNumber   string    `json:"lot_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	DaysUntil   int       `json:"days_until"`
	Quantity    int       `json:"quantity"`
}
