package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ScanProcessor applies scanned movements
type ScanProcessor interface {
	ProcessScan(ctx context.Context, req service.ScanRequest) (*service.MovementResult, error)
}

// ScanHandler handles barcode/QR scan movements
type ScanHandler struct {
	service ScanProcessor
	logger  *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(svc ScanProcessor, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		service: svc,
		logger:  log,
	}
}

type scanRequest struct {
	Code       string           `json:"codigo" validate:"required,max=200"`
	Type       string           `json:"tipo"`
	Quantity   int              `json:"quantidade"`
	LotNumber  string           `json:"numero_lote" validate:"max=100"`
	ExpiryDate string           `json:"data_validade"`
	UnitCost   *decimal.Decimal `json:"preco_unitario"`
}

// Scan records an entrada or saida for the scanned product
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiry, err := service.ParseDate(req.ExpiryDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.ScanRequest{
		Code:       req.Code,
		Type:       repository.MovementType(req.Type),
		Quantity:   req.Quantity,
		UserID:     httputil.GetUserID(r.Context()),
		LotNumber:  req.LotNumber,
		ExpiryDate: expiry,
	}
	if req.UnitCost != nil {
		in.UnitCost = decimal.NewNullDecimal(*req.UnitCost)
	}

	result, err := h.service.ProcessScan(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
