// Package handlers provides HTTP handlers for the Monte Carlo projection.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/assetflow/internal/modules/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves simulation requests
type Handler struct {
	service *simulation.Service
	log     zerolog.Logger
}

// NewHandler creates a simulation handler
func NewHandler(service *simulation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "simulation").Logger(),
	}
}

// RegisterRoutes registers the simulation route
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/simulation", h.HandleSimulation)
}

// HandleSimulation handles GET /api/simulation
func (h *Handler) HandleSimulation(w http.ResponseWriter, r *http.Request) {
	proj, err := h.service.Project(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Simulation failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, proj)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
