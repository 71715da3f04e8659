package analysis

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var clusterPalette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
	{R: 227, G: 119, B: 194, A: 255},
	{R: 127, G: 127, B: 127, A: 255},
}

// TrendChart renders a location's observations with the fitted line overlaid.
func TrendChart(path, title, ylabel string, r TrendResult, g LocationSeries) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "year"
	p.Y.Label.Text = ylabel

	points := make(plotter.XYs, len(g.Values))
	for i := range g.Values {
		points[i].X = fractionalYear(g.Dates[i])
		points[i].Y = g.Values[i]
	}

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)

	fit := make(plotter.XYs, len(points))
	for i := range points {
		fit[i].X = points[i].X
		fit[i].Y = r.Intercept + r.Slope*points[i].X
	}
	line, err := plotter.NewLine(fit)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Add(plotter.NewGrid())

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}

// ForecastChart renders history as a line and the forecast path with its
// interval bounds as dashed lines.
func ForecastChart(path, title, ylabel string, fc LocationForecast) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "year"
	p.Y.Label.Text = ylabel

	history := make(plotter.XYs, len(fc.History.Values))
	for i := range fc.History.Values {
		history[i].X = fractionalYear(fc.History.Dates[i])
		history[i].Y = fc.History.Values[i]
	}
	line, err := plotter.NewLine(history)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)

	point := make(plotter.XYs, len(fc.Points))
	lower := make(plotter.XYs, len(fc.Points))
	upper := make(plotter.XYs, len(fc.Points))
	for i, step := range fc.Points {
		x := fractionalYear(step.Date)
		point[i] = plotter.XY{X: x, Y: step.Point}
		lower[i] = plotter.XY{X: x, Y: step.Lower}
		upper[i] = plotter.XY{X: x, Y: step.Upper}
	}
	forecastLine, err := plotter.NewLine(point)
	if err != nil {
		return err
	}
	forecastLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	forecastLine.Width = vg.Points(1.5)
	p.Add(forecastLine)

	for _, bound := range []plotter.XYs{lower, upper} {
		b, err := plotter.NewLine(bound)
		if err != nil {
			return err
		}
		b.Color = color.RGBA{R: 214, G: 39, B: 40, A: 128}
		b.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(b)
	}
	p.Add(plotter.NewGrid())

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}

// ClusterChart renders locations in the first two clustering coordinates,
// colored by cluster, with location name labels.
func ClusterChart(path, title string, res *ClusterResult) error {
	if len(res.CoordNames) < 2 {
		return fmt.Errorf("cluster chart needs at least 2 coordinates, have %d", len(res.CoordNames))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = res.CoordNames[0]
	p.Y.Label.Text = res.CoordNames[1]

	points := make(plotter.XYs, len(res.Locations))
	for i := range res.Locations {
		points[i].X = res.Coords[i][0]
		points[i].Y = res.Coords[i][1]

		scatter, err := plotter.NewScatter(plotter.XYs{points[i]})
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = clusterPalette[res.Assignments[i]%len(clusterPalette)]
		scatter.GlyphStyle.Radius = vg.Points(5)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: points, Labels: res.Locations})
	if err != nil {
		return err
	}
	p.Add(labels)
	p.Add(plotter.NewGrid())

	return p.Save(10*vg.Inch, 8*vg.Inch, path)
}
