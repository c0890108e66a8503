package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/metrics"
)

// AlertScanner checks stock levels and expiry dates and raises deduplicated
// alerts and audit tasks.
type AlertScanner struct {
	emitter
	products   ProductStore
	batches    BatchStore
	users      UserDirectory
	settings   *SettingsService
	expiryDays int
	now        func() time.Time
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	products ProductStore,
	batches BatchStore,
	alerts AlertStore,
	tasks TaskStore,
	users UserDirectory,
	settings *SettingsService,
	expiryDays int,
	publisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		emitter: emitter{
			alerts:    alerts,
			tasks:     tasks,
			publisher: publisher,
			metrics:   m,
			logger:    log.WithComponent("alert_scanner"),
		},
		products:   products,
		batches:    batches,
		users:      users,
		settings:   settings,
		expiryDays: expiryDays,
		now:        time.Now,
	}
}

// ScanAll runs all alert scans. Logs errors but continues scanning.
func (s *AlertScanner) ScanAll(ctx context.Context) error {
	scanners := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"low_stock", func(ctx context.Context) error {
			_, err := s.CheckLowStock(ctx, nil)
			return err
		}},
		{"expiry", func(ctx context.Context) error {
			_, err := s.CheckExpiring(ctx)
			return err
		}},
	}

	var lastErr error
	for _, scanner := range scanners {
		if err := scanner.fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("scanner", scanner.name).Msg("alert scan failed")
			lastErr = err
		}
	}

	return lastErr
}

// CheckLowStock raises an alert for every product at or below its minimum
// stock widened by the margin percentage, and an audit task per leader.
// A nil margin uses the stored setting; an explicit one applies to this
// sweep only. It returns the alerts created.
func (s *AlertScanner) CheckLowStock(ctx context.Context, margin *float64) ([]*repository.Alert, error) {
	var pct float64
	if margin != nil {
		if err := validateMargin(*margin); err != nil {
			return nil, err
		}
		pct = *margin
	} else {
		stored, err := s.settings.AlertMargin(ctx)
		if err != nil {
			return nil, fmt.Errorf("CheckLowStock: read margin: %w", err)
		}
		pct = stored
	}

	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("CheckLowStock: list products: %w", err)
	}

	notified, err := s.users.ListByRoles(ctx, repository.RoleAdmin, repository.RoleLeader)
	if err != nil {
		s.logger.Error().Err(err).Msg("CheckLowStock: failed to list recipients")
	}
	var leaders []*repository.CachedUser
	for _, u := range notified {
		if u.Role == repository.RoleLeader {
			leaders = append(leaders, u)
		}
	}

	created := []*repository.Alert{}
	for _, p := range products {
		limit := float64(p.MinimumStock) * (1 + pct/100)
		if float64(p.Quantity) > limit {
			continue
		}

		quantity, minimum, marginPct := p.Quantity, p.MinimumStock, pct
		alert := &repository.Alert{
			Type:            repository.AlertLowStock,
			Message:         fmt.Sprintf("Estoque baixo no produto '%s': %d unidades (limite %.2f).", p.Name, p.Quantity, limit),
			ProductID:       &p.ID,
			NotifiedUserIDs: userIDs(notified),
			DedupKey:        "estoque:" + p.ID,
			CurrentQuantity: &quantity,
			MinimumQuantity: &minimum,
			MarginPercent:   &marginPct,
		}
		if s.alert(ctx, alert) {
			created = append(created, alert)
		}

		for _, leader := range leaders {
			s.systemTask(ctx, &repository.Task{
				Title: "Verificar estoque: " + p.Name,
				Description: fmt.Sprintf("Produto abaixo do limite (%d <= %.2f). Revisar estoque fisico e planejar reposicao.",
					p.Quantity, limit),
				ResponsibleID: leader.UserID,
				Priority:      repository.PriorityHigh,
				Type:          repository.TaskTypeStockAudit,
				ProductID:     &p.ID,
			})
		}
	}

	if len(created) > 0 {
		s.logger.Info().Int("alerts", len(created)).Float64("margin", pct).Msg("low stock alerts created")
	}
	return created, nil
}

// CheckExpiring raises an alert for every batch with stock that expires
// within the warning window. It returns the number of alerts created.
func (s *AlertScanner) CheckExpiring(ctx context.Context) (int, error) {
	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, s.expiryDays)

	batches, err := s.batches.ListExpiring(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("CheckExpiring: list batches: %w", err)
	}
	if len(batches) == 0 {
		return 0, nil
	}

	notified, err := s.users.ListByRoles(ctx, repository.RoleAdmin, repository.RoleLeader)
	if err != nil {
		s.logger.Error().Err(err).Msg("CheckExpiring: failed to list recipients")
	}

	created := 0
	for _, b := range batches {
		quantity := b.AvailableQuantity
		productID := b.ProductID
		alert := &repository.Alert{
			Type: repository.AlertExpiringSoon,
			Message: fmt.Sprintf("Lote %s do produto '%s' vence em %s (%d unidades).",
				b.LotNumber, b.ProductName, b.ExpiryDate.Format("02/01/2006"), b.AvailableQuantity),
			ProductID:       &productID,
			NotifiedUserIDs: userIDs(notified),
			DedupKey:        "validade:" + b.ID,
			CurrentQuantity: &quantity,
		}
		if s.alert(ctx, alert) {
			created++
			s.publisher.PublishBatchExpiring(ctx, b, now)
		}
	}
	return created, nil
}
