package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the backup routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/maintenance/backup", h.HandleBackup)
	r.Get("/maintenance/backups", h.HandleListRemote)
}
