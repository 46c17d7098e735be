package inspection

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNotEnoughPoints is returned when a chart would have fewer than two points
var ErrNotEnoughPoints = errors.New("at least two valid values are needed for a chart")

// RenderSeaLevelChart draws the daily maximum sea level as a PNG line chart.
// Null days are left out of the line.
func RenderSeaLevelChart(w io.Writer, records []entities.SeaLevelRecord, title string) error {
	var xValues []time.Time
	var yValues []float64
	for _, r := range records {
		if !r.Max.Valid {
			continue
		}
		xValues = append(xValues, r.Date.In(time.UTC))
		yValues = append(yValues, r.Max.Value)
	}
	if len(xValues) < 2 {
		return ErrNotEnoughPoints
	}

	graph := chart.Chart{
		Title: title,
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: drawing.ColorBlack,
		},
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   60,
				Right:  20,
				Bottom: 40,
			},
		},
		Height: 400,
		Width:  1000,
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Daily max water level",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: "max",
				Style: chart.Style{
					StrokeColor: drawing.Color{R: 51, G: 102, B: 204, A: 255},
					StrokeWidth: 1.5,
				},
				XValues: xValues,
				YValues: yValues,
			},
		},
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
