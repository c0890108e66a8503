package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// AlertManager lists, acknowledges and generates alerts
type AlertManager interface {
	List(ctx context.Context, filter repository.AlertFilter) ([]*repository.Alert, int64, error)
	MarkViewed(ctx context.Context, id string) (*repository.Alert, error)
	Generate(ctx context.Context, margin *float64) ([]*repository.Alert, error)
}

// AlertHandler handles alert endpoints
type AlertHandler struct {
	service AlertManager
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc AlertManager, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// List lists alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, 50, 100)
	q := r.URL.Query()

	filter := repository.AlertFilter{
		Status: repository.AlertStatus(q.Get("status")),
		Type:   repository.AlertType(q.Get("type")),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if productID := q.Get("product_id"); productID != "" {
		filter.ProductID = productID
	}

	alerts, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, httputil.NewMeta(page, perPage, total))
}

type generateRequest struct {
	Margin *float64 `json:"margem"`
}

// Generate runs the low-stock sweep now. The margin may come from the
// "margem" query parameter or JSON body; without one the stored setting
// applies.
func (h *AlertHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var margin *float64
	if raw := r.URL.Query().Get("margem"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{"margem": "must be a number"}))
			return
		}
		margin = &v
	}
	if r.ContentLength > 0 {
		var req generateRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Margin != nil {
			margin = req.Margin
		}
	}

	created, err := h.service.Generate(r.Context(), margin)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().
		Str("user_id", httputil.GetUserID(r.Context())).
		Int("alerts", len(created)).
		Msg("low stock sweep requested")

	httputil.JSON(w, http.StatusOK, created)
}

// MarkViewed acknowledges an alert
func (h *AlertHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.service.MarkViewed(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}
