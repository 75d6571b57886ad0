// Package handlers provides HTTP handlers that trigger market data refreshes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/assetflow/internal/modules/marketdata"
	"github.com/rs/zerolog"
)

// Refresher is the part of marketdata.RefreshService the handlers drive
type Refresher interface {
	Refresh(ctx context.Context) (marketdata.RefreshResult, error)
	RefreshFundamentals(ctx context.Context) (marketdata.FundamentalsResult, error)
}

// Handler handles market data HTTP requests
type Handler struct {
	refresher Refresher
	log       zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(refresher Refresher, log zerolog.Logger) *Handler {
	return &Handler{
		refresher: refresher,
		log:       log.With().Str("handler", "marketdata").Logger(),
	}
}

type refreshResponse struct {
	Updated int     `json:"updated"`
	Skipped int     `json:"skipped"`
	Failed  int     `json:"failed"`
	Seconds float64 `json:"duration_seconds"`
}

// HandleRefresh handles POST /api/maintenance/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Market refresh failed")
		status := http.StatusInternalServerError
		if errors.Is(err, marketdata.ErrRefreshFailed) {
			status = http.StatusBadGateway
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, refreshResponse{
		Updated: res.Updated,
		Skipped: res.Skipped,
		Failed:  res.Failed,
		Seconds: res.Duration.Seconds(),
	})
}

// HandleFundamentals handles POST /api/maintenance/fundamentals
func (h *Handler) HandleFundamentals(w http.ResponseWriter, r *http.Request) {
	res, err := h.refresher.RefreshFundamentals(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Fundamentals refresh failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, res)
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
