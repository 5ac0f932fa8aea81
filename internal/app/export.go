package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"metalpulse/internal/series"
)

// ExportOptions hold parameters for exporting a price history.
type ExportOptions struct {
	Symbol    string
	Days      int
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// Export renders a symbol's daily-close history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Symbol == "" {
		return errors.New("--symbol is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	agg, err := a.newAggregator()
	if err != nil {
		return err
	}

	points, err := agg.GetSeries(ctx, opts.Symbol, opts.Days)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no history points to export")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().
		Str("symbol", opts.Symbol).
		Int("total", len(points)).
		Int("exported", len(downsampled)).
		Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSeriesPNG(opts.PNGPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePoints(points series.Series, max int) series.Series {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make(series.Series, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeSeriesCSV(path string, points series.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "close"}); err != nil {
		return err
	}

	for _, point := range points {
		if err := writer.Write([]string{point.Date, point.Close.String()}); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSeriesPNG(path, symbol string, points series.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(points))
	y := make([]float64, 0, len(points))
	for _, point := range points {
		parsed, err := time.Parse("2006-01-02", point.Date)
		if err != nil {
			continue
		}
		x = append(x, parsed)
		y = append(y, point.Close.InexactFloat64())
	}
	if len(x) < 2 {
		return errors.New("not enough datable points to chart")
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           symbol + " (USD/oz)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    symbol + " close",
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
