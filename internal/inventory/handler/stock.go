package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// StockQuerier answers read-only stock queries
type StockQuerier interface {
	AvailableBatches(ctx context.Context, productID string) ([]*repository.Batch, error)
	Movements(ctx context.Context, productID string, limit, offset int) ([]*repository.Movement, int64, error)
}

// StockHandler handles product batch and movement queries
type StockHandler struct {
	service StockQuerier
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc StockQuerier, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// ListBatches lists a product's batches with stock in FEFO order
func (h *StockHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	batches, err := h.service.AvailableBatches(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// ListMovements lists a product's movements, newest first
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	page, perPage := httputil.Pagination(r, 50, 200)

	movements, total, err := h.service.Movements(r.Context(), productID, perPage, (page-1)*perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, httputil.NewMeta(page, perPage, total))
}
