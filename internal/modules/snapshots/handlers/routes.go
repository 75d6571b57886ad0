package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the history endpoints and the manual snapshot trigger
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.HandleHistory)
	r.Get("/history/", h.HandleHistory)
	r.Get("/history/chart.png", h.HandleChart)
	r.Post("/maintenance/snapshot", h.HandleTakeSnapshot)
}
