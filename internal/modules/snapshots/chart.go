package snapshots

import (
	"fmt"
	"io"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// renderHistoryChart draws equity (solid) and invested capital (dashed)
func renderHistoryChart(history []domain.PortfolioSnapshot, w io.Writer) error {
	xValues := make([]time.Time, len(history))
	equity := make([]float64, len(history))
	invested := make([]float64, len(history))

	for i, s := range history {
		xValues[i] = s.Date
		equity[i] = s.TotalEquity
		invested[i] = s.TotalInvested
	}

	graph := chart.Chart{
		Title:  "Patrimônio",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("02/01")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("R$%.1fk", f/1000)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: "Patrimônio",
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("16a34a"),
					StrokeWidth: 2.5,
				},
				XValues: xValues,
				YValues: equity,
			},
			chart.TimeSeries{
				Name: "Investido",
				Style: chart.Style{
					StrokeColor:     drawing.ColorFromHex("9ca3af"),
					StrokeWidth:     1.5,
					StrokeDashArray: []float64{5.0, 3.0},
				},
				XValues: xValues,
				YValues: invested,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render history chart: %w", err)
	}
	return nil
}
