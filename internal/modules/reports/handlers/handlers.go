// Package handlers provides HTTP handlers for spreadsheet exports.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/assetflow/internal/modules/reports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves report downloads
type Handler struct {
	service *reports.Service
	log     zerolog.Logger
}

// NewHandler creates a report handler
func NewHandler(service *reports.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "reports").Logger(),
	}
}

// RegisterRoutes registers report routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/dashboard.xlsx", h.HandleDashboardXLSX)
}

// HandleDashboardXLSX handles GET /api/reports/dashboard.xlsx
func (h *Handler) HandleDashboardXLSX(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.DashboardXLSX(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate report")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reports.FileName(time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
