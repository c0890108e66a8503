package service_test

import (
	"context"
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableBatches(t *testing.T) {
	h := newHarness(t)
	p := h.seedFEFOProduct()
	h.store.addBatch(p.ID, "L0", 0, nil)
	h.store.addBatch(p.ID, "L9", 2, nil)

	batches, err := h.query.AvailableBatches(context.Background(), p.ID)
	require.NoError(t, err)

	lots := make([]string, 0, len(batches))
	for _, b := range batches {
		lots = append(lots, b.LotNumber)
	}
	assert.Equal(t, []string{"L1", "L2", "L9"}, lots)
}

func TestAvailableBatches_EmptyIsNotNil(t *testing.T) {
	h := newHarness(t)
	p := h.store.addProduct(repository.Product{Name: "Vazio"})

	batches, err := h.query.AvailableBatches(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, batches)
	assert.Empty(t, batches)
}

func TestAvailableBatches_UnknownProduct(t *testing.T) {
	h := newHarness(t)

	_, err := h.query.AvailableBatches(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestMovements_NewestFirstPaged(t *testing.T) {
	h := newHarness(t)
	p := h.seedFEFOProduct()
	for i := 0; i < 3; i++ {
		_, err := h.scan.ProcessScan(context.Background(), outbound("7890001", 1, ""))
		require.NoError(t, err)
	}

	page, total, err := h.query.Movements(context.Background(), p.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	log := h.store.movementLog()
	assert.Equal(t, log[2].ID, page[0].ID)
	assert.Equal(t, log[1].ID, page[1].ID)

	rest, _, err := h.query.Movements(context.Background(), p.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
