package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the dividend calendar
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/calendar", h.HandleCalendar)
}
