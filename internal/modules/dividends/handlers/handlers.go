// Package handlers serves the dividend calendar over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aristath/assetflow/internal/modules/dividends"
	"github.com/rs/zerolog"
)

// CalendarSource builds the dividend calendar
type CalendarSource interface {
	Calendar(ctx context.Context) ([]dividends.Event, error)
}

// Handler handles dividend HTTP requests
type Handler struct {
	source CalendarSource
	log    zerolog.Logger
}

// NewHandler creates a new dividend handler
func NewHandler(source CalendarSource, log zerolog.Logger) *Handler {
	return &Handler{
		source: source,
		log:    log.With().Str("handler", "dividends").Logger(),
	}
}

// HandleCalendar handles GET /api/calendar
func (h *Handler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := h.source.Calendar(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build dividend calendar")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []dividends.Event{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
