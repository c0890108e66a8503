package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// AlertService lists alerts and triggers sweeps on demand
type AlertService struct {
	alerts  AlertStore
	scanner *AlertScanner
}

// NewAlertService creates a new alert service
func NewAlertService(alerts AlertStore, scanner *AlertScanner) *AlertService {
	return &AlertService{alerts: alerts, scanner: scanner}
}

// List returns a page of alerts matching the filter
func (s *AlertService) List(ctx context.Context, filter repository.AlertFilter) ([]*repository.Alert, int64, error) {
	if filter.Status != "" && filter.Status != repository.AlertPending && filter.Status != repository.AlertViewed {
		return nil, 0, errors.Validation(map[string]string{"status": "must be pendente or visualizado"})
	}
	return s.alerts.List(ctx, filter)
}

// MarkViewed acknowledges an alert
func (s *AlertService) MarkViewed(ctx context.Context, id string) (*repository.Alert, error) {
	return s.alerts.MarkViewed(ctx, id)
}

// Generate runs the low-stock sweep with an optional margin override and
// returns the alerts it created.
func (s *AlertService) Generate(ctx context.Context, margin *float64) ([]*repository.Alert, error) {
	return s.scanner.CheckLowStock(ctx, margin)
}
