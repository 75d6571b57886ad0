// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	assets     *portfolio.AssetRepository
	categories *portfolio.CategoryRepository
	service    *portfolio.Service
	market     domain.MarketDataSupplier
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(
	assets *portfolio.AssetRepository,
	categories *portfolio.CategoryRepository,
	service *portfolio.Service,
	market domain.MarketDataSupplier,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		assets:     assets,
		categories: categories,
		service:    service,
		market:     market,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleDashboard returns the aggregated, scored portfolio
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	dash, err := h.service.Dashboard(r.Context(), force)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build dashboard")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, dash)
}

// HandleListAssets returns every holding
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.assets.ListHoldings(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]holdingResponse, 0, len(holdings))
	for _, hd := range holdings {
		if hd.Asset == nil {
			continue
		}
		out = append(out, toHoldingResponse(hd))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleCreateAsset adds an asset and its position
func (h *Handler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var in portfolio.NewAssetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	holding, err := h.assets.Create(r.Context(), in)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.invalidate(r)

	h.writeJSON(w, http.StatusCreated, toHoldingResponse(holding))
}

// HandleUpdateAsset applies a partial position update
func (h *Handler) HandleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var upd portfolio.PositionUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.assets.Update(r.Context(), symbol, upd); err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.invalidate(r)

	holding, err := h.assets.GetBySymbol(r.Context(), symbol)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toHoldingResponse(holding))
}

// HandleDeleteAsset deletes an asset with its position and market data
func (h *Handler) HandleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	if err := h.assets.Delete(r.Context(), symbol); err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.invalidate(r)
	w.WriteHeader(http.StatusNoContent)
}

// HandleValidateSymbol checks whether the provider knows a symbol.
// Unknown symbols are still accepted as manually priced assets.
func (h *Handler) HandleValidateSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := portfolio.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	category := domain.Category(r.URL.Query().Get("category"))
	if category == "" {
		category = domain.CategoryStock
	}

	providerSymbol := domain.ProviderSymbol(symbol, category)
	quote, err := h.market.FetchQuote(r.Context(), providerSymbol)
	if err != nil {
		if !errors.Is(err, domain.ErrNoMarketData) {
			h.log.Warn().Err(err).Str("symbol", providerSymbol).Msg("Symbol validation failed")
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"valid":   true,
			"manual":  true,
			"symbol":  symbol,
			"message": "symbol not found at the provider, it will be tracked manually",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":           true,
		"manual":          false,
		"symbol":          symbol,
		"provider_symbol": providerSymbol,
		"price":           quote.Price,
		"currency":        quote.Currency,
	})
}

// HandleListCategories returns the category targets
func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if categories == nil {
		categories = []domain.CategoryTarget{}
	}
	h.writeJSON(w, http.StatusOK, categories)
}

// HandleUpdateCategory sets the target of one category
func (h *Handler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		TargetPercent *float64 `json:"target_percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TargetPercent == nil {
		h.writeError(w, http.StatusBadRequest, "target_percent is required")
		return
	}

	category, err := h.categories.SetTarget(r.Context(), domain.Category(name), *body.TargetPercent)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, category)
}

// HandleDataQuality lists missing prices and fundamentals
func (h *Handler) HandleDataQuality(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.DataQuality(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

// HandleCleanup deletes positions whose asset is gone
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.assets.DeleteOrphans(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if removed > 0 {
		h.invalidate(r)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

type holdingResponse struct {
	Asset    *domain.Asset          `json:"asset"`
	Position domain.Position        `json:"position"`
	Market   *domain.MarketSnapshot `json:"market,omitempty"`
}

func toHoldingResponse(hd domain.Holding) holdingResponse {
	return holdingResponse{Asset: hd.Asset, Position: hd.Position, Market: hd.Market}
}

// Helper methods

// invalidate drops cached snapshots after a write so the next dashboard
// reads the store.
func (h *Handler) invalidate(r *http.Request) {
	if h.service != nil {
		h.service.InvalidateSnapshots(r.Context())
	}
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrAssetNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, portfolio.ErrAssetExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, portfolio.ErrInvalidCategory), errors.Is(err, portfolio.ErrInvalidPosition):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Repository operation failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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
