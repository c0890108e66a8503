package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
)

// Handlers groups the inventory API handlers
type Handlers struct {
	Scan     *ScanHandler
	Stock    *StockHandler
	Alerts   *AlertHandler
	Settings *SettingsHandler
	Tasks    *TaskHandler
}

// Routes mounts the inventory API on r. Authentication must already be in
// place; role checks are applied here.
func (h *Handlers) Routes(r chi.Router) {
	managers := httputil.RequireRoles(repository.RoleAdmin, repository.RoleLeader)

	r.Post("/scan", h.Scan.Scan)

	r.Route("/products/{id}", func(r chi.Router) {
		r.Get("/batches", h.Stock.ListBatches)
		r.Get("/movements", h.Stock.ListMovements)
	})

	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.Alerts.List)
		r.With(managers).Post("/generate", h.Alerts.Generate)
		r.Patch("/{id}/viewed", h.Alerts.MarkViewed)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Use(managers)
		r.Get("/alert-margin", h.Settings.GetAlertMargin)
		r.Put("/alert-margin", h.Settings.UpdateAlertMargin)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.With(managers).Post("/", h.Tasks.Create)
		r.Get("/mine", h.Tasks.ListMine)
		r.Post("/{id}/start", h.Tasks.Start)
		r.Post("/{id}/complete", h.Tasks.Complete)
	})
}
