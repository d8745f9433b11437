// Package chart draws run traces as image files and terminal graphs.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

var (
	ErrUnknownColumn = errors.New("chart: unknown column")
	ErrEmptyRun      = errors.New("chart: run has no samples")
)

// FieldHalf is half the field side in inches.
const FieldHalf = 72.0

var (
	pathColor     = color.RGBA{R: 120, G: 120, B: 140, A: 255}
	trueColor     = color.RGBA{R: 0, G: 150, B: 220, A: 255}
	estimateColor = color.RGBA{R: 240, G: 160, B: 0, A: 255}
	palette       = []color.Color{
		color.RGBA{R: 0, G: 150, B: 220, A: 255},
		color.RGBA{R: 220, G: 60, B: 60, A: 255},
		color.RGBA{R: 40, G: 170, B: 80, A: 255},
		color.RGBA{R: 240, G: 160, B: 0, A: 255},
		color.RGBA{R: 150, G: 80, B: 200, A: 255},
	}
)

func curvePoints(c path.Curve, n int) plotter.XYs {
	pts := make(plotter.XYs, n+1)
	for i := 0; i <= n; i++ {
		p := c.Sample(float64(i) / float64(n))
		pts[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return pts
}

// Field plots the authored segments against the true and estimated
// traces of run, on field axes.
func Field(title string, segments []path.Segment, run *telemetry.Run) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (in)"
	p.Y.Label.Text = "y (in)"
	p.X.Min, p.X.Max = -FieldHalf, FieldHalf
	p.Y.Min, p.Y.Max = -FieldHalf, FieldHalf
	p.Add(plotter.NewGrid())

	for i, s := range segments {
		line, err := plotter.NewLine(curvePoints(s.Curve, 32))
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		line.Color = pathColor
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(line)
		if i == 0 {
			p.Legend.Add("path", line)
		}
	}

	if run != nil && len(run.Samples) > 0 {
		truth := make(plotter.XYs, len(run.Samples))
		est := make(plotter.XYs, len(run.Samples))
		for i, s := range run.Samples {
			truth[i] = plotter.XY{X: s.X, Y: s.Y}
			est[i] = plotter.XY{X: s.EstX, Y: s.EstY}
		}

		estLine, err := plotter.NewLine(est)
		if err != nil {
			return nil, err
		}
		estLine.Color = estimateColor
		estLine.Width = vg.Points(1)
		p.Add(estLine)
		p.Legend.Add("odometry", estLine)

		trueLine, err := plotter.NewLine(truth)
		if err != nil {
			return nil, err
		}
		trueLine.Color = trueColor
		trueLine.Width = vg.Points(1.5)
		p.Add(trueLine)
		p.Legend.Add("driven", trueLine)

		ends, err := plotter.NewScatter(plotter.XYs{truth[0], truth[len(truth)-1]})
		if err != nil {
			return nil, err
		}
		ends.GlyphStyle.Shape = draw.CircleGlyph{}
		ends.GlyphStyle.Color = trueColor
		ends.GlyphStyle.Radius = vg.Points(3)
		p.Add(ends)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// Series plots columns of run against time.
func Series(run *telemetry.Run, columns ...string) (*plot.Plot, error) {
	if run == nil || len(run.Samples) == 0 {
		return nil, ErrEmptyRun
	}
	p := plot.New()
	p.Title.Text = run.Routine
	p.X.Label.Text = "t (s)"
	p.Add(plotter.NewGrid())

	ts := run.Column("t")
	for i, col := range columns {
		vs := run.Column(col)
		if vs == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		pts := make(plotter.XYs, len(vs))
		for j := range vs {
			pts[j] = plotter.XY{X: ts[j], Y: vs[j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(col, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	return p, nil
}

// Save writes p to file; the extension picks the format.
func Save(p *plot.Plot, w, h vg.Length, file string) error {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png", ".svg", ".pdf", ".jpg", ".jpeg":
	default:
		return fmt.Errorf("chart: unsupported format %q", filepath.Ext(file))
	}
	if err := p.Save(w, h, file); err != nil {
		return fmt.Errorf("chart: save %s: %w", file, err)
	}
	return nil
}

// ASCII renders one column of run as a terminal graph.
func ASCII(run *telemetry.Run, column string, width, height int) (string, error) {
	if run == nil || len(run.Samples) == 0 {
		return "", ErrEmptyRun
	}
	data := run.Column(column)
	if data == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if width > 0 && len(data) > width*4 {
		data = downsample(data, width*4)
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(column),
	), nil
}

func downsample(data []float64, n int) []float64 {
	out := make([]float64, n)
	step := float64(len(data)-1) / float64(n-1)
	for i := range out {
		out[i] = data[int(float64(i)*step)]
	}
	return out
}
