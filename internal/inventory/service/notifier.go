package service

import (
	"context"
	"fmt"

	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/metrics"
)

// ViolationNotifier raises the alert and tasks for a FEFO violation
type ViolationNotifier struct {
	emitter
	users UserDirectory
}

// NewViolationNotifier creates a new violation notifier
func NewViolationNotifier(
	alerts AlertStore,
	tasks TaskStore,
	users UserDirectory,
	publisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *ViolationNotifier {
	return &ViolationNotifier{
		emitter: emitter{
			alerts:    alerts,
			tasks:     tasks,
			publisher: publisher,
			metrics:   m,
			logger:    log.WithComponent("violation_notifier"),
		},
		users: users,
	}
}

// ViolationMessage describes a violation for alerts and tasks
func ViolationMessage(productName, expectedLot, chosenLot string) string {
	return fmt.Sprintf("Saida fora de PEPS no produto '%s'. Lote esperado: %s. Lote utilizado: %s.",
		productName, expectedLot, chosenLot)
}

// ViolationDedupKey identifies repeated identical violations
func ViolationDedupKey(productID, expectedLot, chosenLot string) string {
	return fmt.Sprintf("peps:%s:%s:%s", productID, expectedLot, chosenLot)
}

// Notify creates one pending alert for leaders and employees, one task per
// leader, and one task for the acting user when that user is an employee.
// Repeated identical violations do not create duplicates.
func (n *ViolationNotifier) Notify(ctx context.Context, v *Violation) {
	product := v.Product
	message := ViolationMessage(product.Name, v.Expected.LotNumber, v.Chosen.LotNumber)
	log := n.logger.WithProductID(product.ID).WithUserID(v.ActingUserID)

	n.metrics.IncViolation()
	log.Warn().
		Str("expected_lot", v.Expected.LotNumber).
		Str("chosen_lot", v.Chosen.LotNumber).
		Msg("FEFO violation")

	recipients, err := n.users.ListByRoles(ctx, repository.RoleLeader, repository.RoleEmployee)
	if err != nil {
		log.WithError(err).Error().Msg("failed to list violation recipients")
	}

	n.alert(ctx, &repository.Alert{
		Type:            repository.AlertFEFOViolation,
		Message:         message,
		ProductID:       &product.ID,
		NotifiedUserIDs: userIDs(recipients),
		DedupKey:        ViolationDedupKey(product.ID, v.Expected.LotNumber, v.Chosen.LotNumber),
	})

	for _, u := range recipients {
		if u.Role != repository.RoleLeader {
			continue
		}
		n.systemTask(ctx, &repository.Task{
			Title:         "Ajustar PEPS: " + product.Name,
			Description:   message + " Ajustar exposicao e orientar equipe.",
			ResponsibleID: u.UserID,
			Priority:      repository.PriorityHigh,
			Type:          repository.TaskTypeFEFOAdjust,
			ProductID:     &product.ID,
		})
	}

	if v.ActingUserID != "" {
		actor, err := n.users.FindByID(ctx, v.ActingUserID)
		switch {
		case err != nil:
			log.WithError(err).Debug().Msg("acting user not in directory")
		case actor.Role == repository.RoleEmployee:
			n.systemTask(ctx, &repository.Task{
				Title:         "Reorganizar lote: " + product.Name,
				Description:   message + " Reorganizar produto para saida correta.",
				ResponsibleID: actor.UserID,
				Priority:      repository.PriorityNormal,
				Type:          repository.TaskTypeFEFOAdjust,
				ProductID:     &product.ID,
			})
		}
	}

	n.publisher.PublishFEFOViolation(ctx, product, v.Expected.LotNumber, v.Chosen.LotNumber, v.ActingUserID, message)
}
