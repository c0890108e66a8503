package handler

import (
	"context"
	"net/http"

	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// MarginSettings reads and writes the low-stock alert margin
type MarginSettings interface {
	AlertMargin(ctx context.Context) (float64, error)
	SetAlertMargin(ctx context.Context, margin float64) error
}

// SettingsHandler handles inventory settings
type SettingsHandler struct {
	service MarginSettings
	logger  *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(svc MarginSettings, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: svc,
		logger:  log,
	}
}

type marginResponse struct {
	Margin float64 `json:"margem_alerta_estoque"`
}

// GetAlertMargin returns the stored low-stock margin percentage
func (h *SettingsHandler) GetAlertMargin(w http.ResponseWriter, r *http.Request) {
	margin, err := h.service.AlertMargin(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, marginResponse{Margin: margin})
}

// UpdateAlertMargin stores a new low-stock margin percentage
func (h *SettingsHandler) UpdateAlertMargin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *float64 `json:"valor" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.SetAlertMargin(r.Context(), *req.Value); err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().
		Str("user_id", httputil.GetUserID(r.Context())).
		Float64("margin", *req.Value).
		Msg("alert margin updated")

	httputil.JSON(w, http.StatusOK, marginResponse{Margin: *req.Value})
}
