package chart

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"wine-trade-pipeline/internal/model"
)

var (
	// ErrMissingYear is returned when the ranking year is not a column
	ErrMissingYear = errors.New("rank year not found")
	// ErrNoSeries is returned when no row has a value to draw
	ErrNoSeries = errors.New("nothing to plot")
)

// Spec holds the texts and axis settings of a top countries chart
type Spec struct {
	Title    string
	XLabel   string
	YLabel   string
	TopN     int
	YMax     float64 // <= 0 lets the axis scale to the data
	YStep    float64
	RankYear string // empty ranks by the last year column
	Width    vg.Length
	Height   vg.Length
}

// UnitValueSpec is the chart of value per unit by country
func UnitValueSpec() Spec {
	return Spec{
		Title:  "Top 5 Países por Exportação -  Valor por Unidade (U$) de Vinho",
		XLabel: "Ano",
		YLabel: "Valor Unitário (U$)",
		TopN:   5,
		YMax:   15,
		YStep:  3,
		Width:  12 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

// QuantitySpec is the chart of exported litres by country
func QuantitySpec() Spec {
	return Spec{
		Title:  "Top 5 Países por Exportação - Quantidade (L) de Vinho",
		XLabel: "Ano",
		YLabel: "Quantidade (Litros)",
		TopN:   5,
		YMax:   15,
		YStep:  3,
		Width:  12 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

// Apply overrides the spec with the configured chart options
func (s Spec) Apply(c *model.Charts) Spec {
	if c == nil {
		return s
	}
	if c.TopN > 0 {
		s.TopN = c.TopN
	}
	if c.YMax != 0 {
		s.YMax = c.YMax
	}
	if c.YStep > 0 {
		s.YStep = c.YStep
	}
	if c.RankYear != "" {
		s.RankYear = c.RankYear
	}
	return s
}

// countryView returns the table with countries as rows. Tables indexed by
// year are transposed.
func countryView(t *model.Table) (*model.Table, error) {
	if t.IndexName != "year" {
		return t, nil
	}
	return t.Transpose("country")
}

// TopCountries returns the n rows with the highest value in rankYear, or in
// the last numeric column when rankYear is empty. Missing values rank last
// and ties keep their input order.
func TopCountries(t *model.Table, rankYear string, n int) (*model.Table, error) {
	if n <= 0 {
		return nil, fmt.Errorf("top countries: n must be positive, got %d", n)
	}
	t, err := countryView(t)
	if err != nil {
		return nil, err
	}

	var rank *model.Column
	if rankYear == "" {
		for _, c := range t.Columns {
			if c.IsNumeric() {
				rank = c
			}
		}
		if rank == nil {
			return nil, fmt.Errorf("%w: table has no year columns", ErrMissingYear)
		}
	} else {
		c, ok := t.Column(rankYear)
		if !ok || !c.IsNumeric() {
			return nil, fmt.Errorf("%w: %s", ErrMissingYear, rankYear)
		}
		rank = c
	}

	ranked, err := t.SortBy(rank.Name, true)
	if err != nil {
		return nil, err
	}
	return ranked.Head(n)
}

// yTicks returns ticks from 0 to max every step
func yTicks(max, step float64) []plot.Tick {
	var ticks []plot.Tick
	for i := 0; ; i++ {
		v := float64(i) * step
		if v > max+step*1e-9 {
			break
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return ticks
}

// PlotTopCountries draws one line per top country across every year column
// and saves the chart to path; the extension picks the format (png, svg,
// pdf). It returns the plotted countries in rank order.
func PlotTopCountries(t *model.Table, spec Spec, path string) ([]string, error) {
	if spec.TopN <= 0 {
		spec.TopN = 5
	}
	top, err := TopCountries(t, spec.RankYear, spec.TopN)
	if err != nil {
		return nil, err
	}

	var years []*model.Column
	for _, c := range top.Columns {
		if c.IsNumeric() {
			years = append(years, c)
		}
	}

	p := plot.New()
	p.Title.Text = spec.Title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = spec.XLabel
	p.Y.Label.Text = spec.YLabel
	p.Legend.Top = true

	xTicks := make([]plot.Tick, len(years))
	for i, c := range years {
		xTicks[i] = plot.Tick{Value: float64(i), Label: c.Name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)

	if spec.YMax > 0 {
		p.Y.Min = 0
		p.Y.Max = spec.YMax
		if spec.YStep > 0 {
			p.Y.Tick.Marker = plot.ConstantTicks(yTicks(spec.YMax, spec.YStep))
		}
	}

	var plotted []string
	for row, country := range top.Index {
		points := make(plotter.XYs, 0, len(years))
		for i, c := range years {
			if v := c.Values[row]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				points = append(points, plotter.XY{X: float64(i), Y: v})
			}
		}
		if len(points) == 0 {
			continue
		}

		line, err := plotter.NewLine(points)
		if err != nil {
			return nil, fmt.Errorf("line for %s: %w", country, err)
		}
		line.Color = plotutil.Color(len(plotted))
		line.Width = vg.Points(2.5)

		p.Add(line)
		p.Legend.Add(country, line)
		plotted = append(plotted, country)
	}
	if len(plotted) == 0 {
		return nil, ErrNoSeries
	}
	p.Add(plotter.NewGrid())

	width, height := spec.Width, spec.Height
	if width == 0 || height == 0 {
		width, height = 12*vg.Inch, 6*vg.Inch
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := p.Save(width, height, path); err != nil {
		return nil, fmt.Errorf("failed to save chart: %w", err)
	}
	return plotted, nil
}
