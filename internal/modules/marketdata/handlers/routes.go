package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the refresh triggers
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/maintenance/refresh", h.HandleRefresh)
	r.Post("/maintenance/fundamentals", h.HandleFundamentals)
}
