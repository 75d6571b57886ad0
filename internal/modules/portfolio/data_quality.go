package portfolio

import (
	"context"

	"github.com/aristath/assetflow/internal/domain"
)

// Data-quality levels
const (
	QualityCritical = "CRÍTICO"
	QualityWarning  = "AVISO"
)

// DataQualityAlert flags a missing input the engine needs
type DataQualityAlert struct {
	AssetID int64  `json:"id"`
	Symbol  string `json:"symbol"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// CheckDataQuality inspects held positions (quantity > 0) for missing prices
// and, for stocks and REITs, missing curated fundamentals.
func CheckDataQuality(holdings []domain.Holding) []DataQualityAlert {
	alerts := []DataQualityAlert{}
	for _, h := range holdings {
		if h.Asset == nil || h.Position.Quantity <= 0 {
			continue
		}
		a := h.Asset
		add := func(level, message, field string) {
			alerts = append(alerts, DataQualityAlert{
				AssetID: a.ID,
				Symbol:  a.Symbol,
				Type:    level,
				Message: message,
				Field:   field,
			})
		}

		if h.Market == nil || h.Market.Price <= 0 {
			add(QualityCritical, "no current price", "price")
		}

		if a.Category == domain.CategoryStock || a.Category == domain.CategoryREIT {
			if h.Position.DividendYield == 0 {
				add(QualityWarning, "missing dividend yield (DY)", "manual_dy")
			}
		}
		if a.Category == domain.CategoryStock {
			if h.Position.EPS == 0 {
				add(QualityWarning, "missing earnings per share (LPA)", "manual_lpa")
			}
			if h.Position.BookValue == 0 {
				add(QualityWarning, "missing book value per share (VPA)", "manual_vpa")
			}
		}
	}
	return alerts
}

// DataQuality runs CheckDataQuality over the stored holdings
func (s *Service) DataQuality(ctx context.Context) ([]DataQualityAlert, error) {
	holdings, err := s.assets.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}
	return CheckDataQuality(holdings), nil
}
