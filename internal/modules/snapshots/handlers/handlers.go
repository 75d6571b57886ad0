// Package handlers provides HTTP handlers for portfolio history.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/assetflow/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	service *snapshots.Service
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service *snapshots.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		now:     time.Now,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

type historyPoint struct {
	Date          string  `json:"date"`
	TotalEquity   float64 `json:"total_equity"`
	TotalInvested float64 `json:"total_invested"`
	Profit        float64 `json:"profit"`
}

// HandleHistory handles GET /api/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load history")
		h.writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	points := make([]historyPoint, 0, len(history))
	for _, s := range history {
		points = append(points, historyPoint{
			Date:          s.Date.Format(snapshots.DateLayout),
			TotalEquity:   s.TotalEquity,
			TotalInvested: s.TotalInvested,
			Profit:        s.Profit,
		})
	}

	h.writeJSON(w, http.StatusOK, points)
}

// HandleChart handles GET /api/history/chart.png
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.RenderChart(r.Context(), &buf); err != nil {
		if errors.Is(err, snapshots.ErrInsufficientHistory) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to render history chart")
		h.writeError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleTakeSnapshot handles POST /api/maintenance/snapshot
func (h *Handler) HandleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.TakeDailySnapshot(r.Context(), h.now())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to take snapshot")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, historyPoint{
		Date:          snap.Date.Format(snapshots.DateLayout),
		TotalEquity:   snap.TotalEquity,
		TotalInvested: snap.TotalInvested,
		Profit:        snap.Profit,
	})
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
