package memo

import (
	"bytes"
	"fmt"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"cashflow-scorecard/internal/scoring/ledger"
)

const (
	chartWidth  = 500
	chartHeight = 300
)

var (
	balanceColor  = drawing.ColorFromHex("4285F4")
	positiveColor = drawing.ColorFromHex("34A853")
	negativeColor = drawing.ColorFromHex("EA4335")
)

func millions(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.1fM", f/1e6)
	}
	return ""
}

func thousands(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0fK", f/1e3)
	}
	return ""
}

// paddedRange widens [lo, hi] so go-chart never sees a zero-height axis.
func paddedRange(lo, hi float64) *chart.ContinuousRange {
	if hi <= lo {
		pad := math.Max(math.Abs(lo)*0.1, 1)
		return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	}
	pad := (hi - lo) * 0.05
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// balanceChart renders the closing balance per day as a PNG. It returns
// nil when no day carries a balance.
func balanceChart(days []ledger.DailySummary) ([]byte, error) {
	var xs []time.Time
	var ys []float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range days {
		if math.IsNaN(d.Close) {
			continue
		}
		xs = append(xs, d.Date)
		ys = append(ys, d.Close)
		lo = math.Min(lo, d.Close)
		hi = math.Max(hi, d.Close)
	}
	if len(xs) == 0 {
		return nil, nil
	}
	// Pad to at least two X values for go-chart
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(24*time.Hour))
		ys = append(ys, ys[0])
	}

	ch := chart.Chart{
		Title:      "Daily Balance",
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02"),
		},
		YAxis: chart.YAxis{
			Name:           "Balance (USD)",
			ValueFormatter: millions,
			Range:          paddedRange(lo, hi),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Balance",
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: balanceColor, StrokeWidth: 2},
			},
		},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render balance chart: %w", err)
	}
	return buf.Bytes(), nil
}

// weeklyFlowChart renders weekly net flow as bars, green at or above zero
// and red below. It returns nil for an empty series.
func weeklyFlowChart(weeks []ledger.WeekFlow) ([]byte, error) {
	if len(weeks) == 0 {
		return nil, nil
	}

	bars := make([]chart.Value, 0, len(weeks))
	lo, hi := 0.0, 0.0
	for _, w := range weeks {
		col := positiveColor
		if w.Net < 0 {
			col = negativeColor
		}
		bars = append(bars, chart.Value{
			Value: w.Net,
			Label: w.WeekEnding.Format("01-02"),
			Style: chart.Style{FillColor: col, StrokeColor: col},
		})
		lo = math.Min(lo, w.Net)
		hi = math.Max(hi, w.Net)
	}

	spacing := 4
	barWidth := (chartWidth-80)/len(bars) - spacing
	if barWidth < 3 {
		barWidth = 3
		spacing = 1
	}
	if barWidth > 40 {
		barWidth = 40
	}

	bc := chart.BarChart{
		Title:        "Weekly Net Cash Flow",
		Width:        chartWidth,
		Height:       chartHeight,
		Background:   chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:     barWidth,
		BarSpacing:   spacing,
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Name:           "Net Flow (USD)",
			ValueFormatter: thousands,
			Range:          paddedRange(lo, hi),
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render weekly flow chart: %w", err)
	}
	return buf.Bytes(), nil
}
