package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// memStore is an in-memory database. WithinTransaction snapshots the state
// and restores it when fn fails.
type memStore struct {
	mu        sync.Mutex
	seq       int
	now       time.Time
	products  map[string]*repository.Product
	batches   []*repository.Batch
	movements []*repository.Movement
	alerts    []*repository.Alert
	tasks     []*repository.Task
	users     map[string]*repository.CachedUser
	settings  map[string]string

	alertErr    error
	movementErr error
	usersErr    error
}

func newMemStore() *memStore {
	return &memStore{
		now:      time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC),
		products: map[string]*repository.Product{},
		users:    map[string]*repository.CachedUser{},
		settings: map[string]string{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

type snapshot struct {
	products  map[string]repository.Product
	batches   []repository.Batch
	movements []*repository.Movement
	alerts    []repository.Alert
	tasks     []repository.Task
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snap := snapshot{products: map[string]repository.Product{}}
	for id, p := range m.products {
		snap.products[id] = *p
	}
	for _, b := range m.batches {
		snap.batches = append(snap.batches, *b)
	}
	snap.movements = append(snap.movements, m.movements...)
	for _, a := range m.alerts {
		snap.alerts = append(snap.alerts, *a)
	}
	for _, t := range m.tasks {
		snap.tasks = append(snap.tasks, *t)
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.products = map[string]*repository.Product{}
		for id, p := range snap.products {
			p := p
			m.products[id] = &p
		}
		m.batches = nil
		for _, b := range snap.batches {
			b := b
			m.batches = append(m.batches, &b)
		}
		m.movements = snap.movements
		m.alerts = nil
		for _, a := range snap.alerts {
			a := a
			m.alerts = append(m.alerts, &a)
		}
		m.tasks = nil
		for _, t := range snap.tasks {
			t := t
			m.tasks = append(m.tasks, &t)
		}
		return err
	}
	return nil
}

func (m *memStore) addProduct(p repository.Product) *repository.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = m.nextID("product")
	}
	p.Active = true
	m.products[p.ID] = &p
	return &p
}

func (m *memStore) addBatch(productID, lot string, qty int, expiry *time.Time) *repository.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.now
	b := &repository.Batch{
		ID:                m.nextID("batch"),
		ProductID:         productID,
		LotNumber:         lot,
		AvailableQuantity: qty,
		ExpiryDate:        expiry,
		EntryDate:         &entry,
	}
	m.batches = append(m.batches, b)
	return b
}

func (m *memStore) addUser(id, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &repository.CachedUser{UserID: id, Name: id, Role: role, Active: true}
}

func (m *memStore) product(id string) repository.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.products[id]
}

func (m *memStore) batch(productID, lot string) *repository.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.ProductID == productID && b.LotNumber == lot {
			c := *b
			return &c
		}
	}
	return nil
}

func (m *memStore) batchSum(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, b := range m.batches {
		if b.ProductID == productID {
			total += b.AvailableQuantity
		}
	}
	return total
}

func (m *memStore) alertsOfType(t repository.AlertType) []repository.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Alert
	for _, a := range m.alerts {
		if a.Type == t {
			out = append(out, *a)
		}
	}
	return out
}

func (m *memStore) tasksOfType(taskType string) []repository.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Task
	for _, t := range m.tasks {
		if t.Type == taskType {
			out = append(out, *t)
		}
	}
	return out
}

func (m *memStore) tasksFor(responsibleID string) []repository.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Task
	for _, t := range m.tasks {
		if t.ResponsibleID == responsibleID {
			out = append(out, *t)
		}
	}
	return out
}

func (m *memStore) movementLog() []repository.Movement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Movement, len(m.movements))
	for i, mv := range m.movements {
		out[i] = *mv
	}
	return out
}

// --- ProductStore ---

type fakeProducts struct{ *memStore }

func (f fakeProducts) FindByCode(ctx context.Context, code string) (*repository.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if !p.Active {
			continue
		}
		for _, c := range []*string{p.Barcode, p.EAN, p.SKU} {
			if c != nil && *c == code {
				cp := *p
				return &cp, nil
			}
		}
	}
	return nil, errors.ProductNotFound(code)
}

func (f fakeProducts) FindByID(ctx context.Context, id string) (*repository.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, errors.NotFound("product")
	}
	cp := *p
	return &cp, nil
}

func (f fakeProducts) AdjustQuantity(ctx context.Context, id string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return 0, errors.NotFound("product")
	}
	if p.Quantity+delta < 0 {
		return 0, errors.InsufficientStock(p.Quantity, -delta)
	}
	p.Quantity += delta
	return p.Quantity, nil
}

func (f fakeProducts) ListActive(ctx context.Context) ([]*repository.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.Product
	for _, p := range f.products {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- BatchStore ---

type fakeBatches struct{ *memStore }

func (f fakeBatches) RecordInbound(ctx context.Context, in repository.InboundBatch) (string, error) {
	if in.Quantity <= 0 {
		return "", errors.InvalidQuantity(in.Quantity)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	lot := strings.TrimSpace(in.LotNumber)
	if lot == "" {
		lot = repository.SyntheticLotNumber(f.now)
	}
	entry := in.EntryDate
	if entry == nil {
		now := f.now
		entry = &now
	}
	for _, b := range f.batches {
		if b.ProductID == in.ProductID && b.LotNumber == lot {
			b.AvailableQuantity += in.Quantity
			if in.ExpiryDate != nil {
				b.ExpiryDate = in.ExpiryDate
			}
			b.EntryDate = entry
			return lot, nil
		}
	}
	f.batches = append(f.batches, &repository.Batch{
		ID:                f.nextID("batch"),
		ProductID:         in.ProductID,
		LotNumber:         lot,
		AvailableQuantity: in.Quantity,
		ExpiryDate:        in.ExpiryDate,
		EntryDate:         entry,
	})
	return lot, nil
}

func (f fakeBatches) ListAvailable(ctx context.Context, productID string) ([]*repository.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.Batch
	for _, b := range f.batches {
		if b.ProductID == productID && b.AvailableQuantity > 0 {
			cp := *b
			out = append(out, &cp)
		}
	}
	repository.SortFEFO(out)
	return out, nil
}

func (f fakeBatches) Decrement(ctx context.Context, batchID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.batches {
		if b.ID == batchID {
			if b.AvailableQuantity < quantity {
				return errors.InsufficientBatchStock(b.LotNumber, b.AvailableQuantity, quantity)
			}
			b.AvailableQuantity -= quantity
			return nil
		}
	}
	return errors.NotFound("batch")
}

func (f fakeBatches) ListExpiring(ctx context.Context, cutoff time.Time) ([]*repository.ExpiringBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.ExpiringBatch
	for _, b := range f.batches {
		p := f.products[b.ProductID]
		if p == nil || !p.ControlsExpiry || b.AvailableQuantity <= 0 || b.ExpiryDate == nil || b.ExpiryDate.After(cutoff) {
			continue
		}
		out = append(out, &repository.ExpiringBatch{Batch: *b, ProductName: p.Name})
	}
	return out, nil
}

// --- MovementStore ---

type fakeMovements struct{ *memStore }

func (f fakeMovements) Create(ctx context.Context, mv *repository.Movement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.movementErr != nil {
		return f.movementErr
	}
	mv.ID = f.nextID("movement")
	mv.CreatedAt = f.now
	cp := *mv
	f.movements = append(f.movements, &cp)
	return nil
}

func (f fakeMovements) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*repository.Movement, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*repository.Movement
	for i := len(f.movements) - 1; i >= 0; i-- {
		if f.movements[i].ProductID == productID {
			all = append(all, f.movements[i])
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []*repository.Movement{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// --- AlertStore ---

type fakeAlerts struct{ *memStore }

func (f fakeAlerts) CreateIfAbsent(ctx context.Context, alert *repository.Alert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alertErr != nil {
		return false, f.alertErr
	}
	if alert.DedupKey == "" {
		alert.DedupKey = repository.DefaultDedupKey(alert.Type, alert.ProductID, alert.Message)
	}
	for _, a := range f.alerts {
		if a.Status == repository.AlertPending && a.Type == alert.Type && a.DedupKey == alert.DedupKey {
			return false, nil
		}
	}
	alert.ID = f.nextID("alert")
	alert.Status = repository.AlertPending
	alert.CreatedAt = f.now
	cp := *alert
	f.alerts = append(f.alerts, &cp)
	return true, nil
}

func (f fakeAlerts) List(ctx context.Context, filter repository.AlertFilter) ([]*repository.Alert, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*repository.Alert{}
	for _, a := range f.alerts {
		if (filter.Status == "" || a.Status == filter.Status) && (filter.Type == "" || a.Type == filter.Type) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (f fakeAlerts) MarkViewed(ctx context.Context, id string) (*repository.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.ID == id {
			if a.Status == repository.AlertPending {
				a.Status = repository.AlertViewed
				now := f.now
				a.ViewedAt = &now
			}
			cp := *a
			return &cp, nil
		}
	}
	return nil, errors.NotFound("alert")
}

// --- TaskStore ---

type fakeTasks struct{ *memStore }

func (f fakeTasks) Create(ctx context.Context, task *repository.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.ID = f.nextID("task")
	if task.Status == "" {
		task.Status = repository.TaskPending
	}
	if task.Priority == "" {
		task.Priority = repository.PriorityNormal
	}
	if task.Type == "" {
		task.Type = repository.TaskTypeGeneral
	}
	cp := *task
	f.tasks = append(f.tasks, &cp)
	return nil
}

func (f fakeTasks) CreateIfAbsent(ctx context.Context, task *repository.Task) (bool, error) {
	f.mu.Lock()
	for _, t := range f.tasks {
		if t.Origin == repository.TaskOriginSystem && t.Status != repository.TaskDone &&
			t.Title == task.Title && t.ResponsibleID == task.ResponsibleID && t.Type == task.Type {
			f.mu.Unlock()
			return false, nil
		}
	}
	f.mu.Unlock()
	task.Origin = repository.TaskOriginSystem
	return true, f.Create(ctx, task)
}

func (f fakeTasks) GetByID(ctx context.Context, id string) (*repository.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errors.NotFound("task")
}

func (f fakeTasks) ListByResponsible(ctx context.Context, userID string, status repository.TaskStatus) ([]*repository.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*repository.Task{}
	for _, t := range f.tasks {
		if t.ResponsibleID == userID && (status == "" || t.Status == status) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeTasks) Transition(ctx context.Context, id string, to repository.TaskStatus) (*repository.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID != id {
			continue
		}
		allowed := (to == repository.TaskInProgress && t.Status == repository.TaskPending) ||
			(to == repository.TaskDone && t.Status != repository.TaskDone)
		if !allowed {
			return nil, errors.Conflict("invalid transition")
		}
		t.Status = to
		now := f.now
		if to == repository.TaskInProgress {
			t.StartedAt = &now
		} else {
			t.CompletedAt = &now
		}
		cp := *t
		return &cp, nil
	}
	return nil, errors.NotFound("task")
}

// --- UserDirectory ---

type fakeUsers struct{ *memStore }

func (f fakeUsers) ListByRoles(ctx context.Context, roles ...string) ([]*repository.CachedUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	var out []*repository.CachedUser
	for _, u := range f.users {
		for _, r := range roles {
			if u.Active && u.Role == r {
				cp := *u
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (f fakeUsers) FindByID(ctx context.Context, id string) (*repository.CachedUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errors.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

// --- SettingStore ---

type fakeSettings struct{ *memStore }

func (f fakeSettings) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.settings[key]
	return v, ok, nil
}

func (f fakeSettings) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = value
	return nil
}
