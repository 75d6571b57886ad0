package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.HandleDashboard) // ?force=true refreshes market data first

	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.HandleListAssets)
		r.Post("/", h.HandleCreateAsset)
		r.Get("/validate/{symbol}", h.HandleValidateSymbol) // ?category= selects the provider suffix
		r.Put("/{symbol}", h.HandleUpdateAsset)
		r.Delete("/{symbol}", h.HandleDeleteAsset)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.HandleListCategories)
		r.Put("/{name}", h.HandleUpdateCategory)
	})

	r.Get("/alerts/data-quality", h.HandleDataQuality)
	r.Post("/maintenance/cleanup", h.HandleCleanup)
}
