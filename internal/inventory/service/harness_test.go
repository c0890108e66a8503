package service_test

import (
	"testing"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/metrics"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
)

type harness struct {
	store     *memStore
	publisher *testutil.MockPublisher
	metrics   *metrics.Metrics
	allocator *service.Allocator
	notifier  *service.ViolationNotifier
	scanner   *service.AlertScanner
	settings  *service.SettingsService
	scan      *service.ScanService
	tasks     *service.TaskService
	alerts    *service.AlertService
	query     *service.StockQueryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newMemStore()
	log := logger.Nop()
	mock := testutil.NewMockPublisher()
	pub := events.NewInventoryEventPublisher(mock, log)
	m := metrics.New("test")

	products := fakeProducts{store}
	batches := fakeBatches{store}
	alerts := fakeAlerts{store}
	tasks := fakeTasks{store}
	users := fakeUsers{store}

	settings := service.NewSettingsService(fakeSettings{store})
	allocator := service.NewAllocator(batches, log)
	notifier := service.NewViolationNotifier(alerts, tasks, users, pub, m, log)
	scanner := service.NewAlertScanner(products, batches, alerts, tasks, users, settings, 30, pub, m, log)

	return &harness{
		store:     store,
		publisher: mock,
		metrics:   m,
		allocator: allocator,
		notifier:  notifier,
		scanner:   scanner,
		settings:  settings,
		scan:      service.NewScanService(store, products, batches, fakeMovements{store}, allocator, notifier, scanner, pub, m, log),
		tasks:     service.NewTaskService(tasks, users, pub, m, log),
		alerts:    service.NewAlertService(alerts, scanner),
		query:     service.NewStockQueryService(products, batches, fakeMovements{store}),
	}
}

// seedFEFOProduct creates a FEFO product holding L1 (5, earlier expiry) and
// L2 (5, later expiry).
func (h *harness) seedFEFOProduct() *repository.Product {
	p := h.store.addProduct(repository.Product{
		Name:            "Soro fisiologico",
		Barcode:         testutil.PtrString("7890001"),
		Quantity:        10,
		ControlsBatches: true,
		ControlsExpiry:  true,
		AppliesFEFO:     true,
	})
	h.store.addBatch(p.ID, "L1", 5, testutil.PtrTime(testutil.Date(2024, time.March, 1)))
	h.store.addBatch(p.ID, "L2", 5, testutil.PtrTime(testutil.Date(2024, time.June, 1)))
	return p
}
