// Package reports exports the dashboard as a spreadsheet.
package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names
const (
	SummarySheet = "Resumo"
	AssetsSheet  = "Ativos"
)

var assetHeaders = []string{
	"Ativo", "Categoria", "Moeda", "Quantidade", "Preço Médio", "Preço",
	"Valor Atual", "Investido", "Lucro", "Lucro %", "% na Categoria",
	"Gap", "Preço Justo", "Margem %", "P/VP", "Renda Mensal", "Score", "Recomendação",
}

// XLSXGenerator renders a dashboard into an xlsx workbook
type XLSXGenerator struct {
	currency domain.Currency
	log      zerolog.Logger
}

// NewXLSXGenerator creates a generator formatting money in currency
func NewXLSXGenerator(currency domain.Currency, log zerolog.Logger) *XLSXGenerator {
	if currency == "" {
		currency = domain.CurrencyBRL
	}
	return &XLSXGenerator{
		currency: currency,
		log:      log.With().Str("component", "xlsx").Logger(),
	}
}

// Generate returns the workbook bytes for dash
func (g *XLSXGenerator) Generate(dash portfolio.Dashboard, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			g.log.Error().Err(err).Msg("Failed to close workbook")
		}
	}()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(AssetsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#d9ead3"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := g.fillSummary(f, dash, generatedAt, headerStyle); err != nil {
		return nil, err
	}
	if err := g.fillAssets(f, dash.Positions, headerStyle); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *XLSXGenerator) fillSummary(f *excelize.File, dash portfolio.Dashboard, generatedAt time.Time, headerStyle int) error {
	rows := [][]interface{}{
		{"Gerado em", generatedAt.Format("02/01/2006 15:04")},
		{"Patrimônio", g.format(dash.Total)},
		{"Investido", g.format(dash.Invested)},
		{"Lucro", g.format(dash.Profit)},
		{"Renda Mensal", g.format(dash.MonthlyIncome)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	start := len(rows) + 2
	header, _ := excelize.CoordinatesToCellName(1, start)
	if err := f.SetSheetRow(SummarySheet, header, &[]interface{}{"Categoria", "Valor", "%"}); err != nil {
		return fmt.Errorf("failed to write category header: %w", err)
	}
	headerEnd, _ := excelize.CoordinatesToCellName(3, start)
	if err := f.SetCellStyle(SummarySheet, header, headerEnd, headerStyle); err != nil {
		return fmt.Errorf("failed to style category header: %w", err)
	}

	categories := make([]domain.Category, 0, len(dash.CategoryTotals))
	for c := range dash.CategoryTotals {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	total := decimal.NewFromFloat(dash.Total)
	for i, c := range categories {
		value := decimal.NewFromFloat(dash.CategoryTotals[c])
		share := decimal.Zero
		if total.IsPositive() {
			share = value.Div(total).Mul(decimal.NewFromInt(100))
		}
		cell, _ := excelize.CoordinatesToCellName(1, start+1+i)
		row := []interface{}{string(c), g.format(value.InexactFloat64()), share.Round(2).InexactFloat64()}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write category row: %w", err)
		}
	}

	return f.SetColWidth(SummarySheet, "A", "C", 18)
}

func (g *XLSXGenerator) fillAssets(f *excelize.File, positions []portfolio.PositionResult, headerStyle int) error {
	if err := f.SetSheetRow(AssetsSheet, "A1", &assetHeaders); err != nil {
		return fmt.Errorf("failed to write asset header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(assetHeaders))
	if err := f.SetCellStyle(AssetsSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style asset header: %w", err)
	}

	for i, p := range positions {
		row := []interface{}{
			p.Symbol,
			string(p.Category),
			string(p.Currency),
			round(p.Quantity, 8),
			round(p.AveragePrice, 2),
			round(p.Price, 2),
			round(p.CurrentValue, 2),
			round(p.InvestedValue, 2),
			round(p.Profit, 2),
			round(p.ProfitPercent, 2),
			round(p.PctInCategory, 2),
			round(p.AllocationGap, 2),
			round(p.FairValue, 2),
			round(p.FairValueMargin, 2),
			round(p.PriceToBook, 2),
			round(p.Metrics.MonthlyIncome, 2),
			p.Score,
			p.Label,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(AssetsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write asset row %s: %w", p.Symbol, err)
		}
	}

	if err := f.SetPanes(AssetsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	return nil
}

// format renders an amount with the currency symbol and separators
func (g *XLSXGenerator) format(amount float64) string {
	return money.NewFromFloat(amount, string(g.currency)).Display()
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
