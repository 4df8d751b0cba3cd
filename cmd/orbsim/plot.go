package main

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// plotErrors saves the position errors of the flight estimates over time as a PNG.
func plotErrors(history []sample, path string) error {
	p := plot.New()
	p.Title.Text = "Position error to truth"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Error (m)"

	estPts := make(plotter.XYs, 0, len(history))
	groundPts := make(plotter.XYs, 0, len(history))
	for _, s := range history {
		// Invalid estimates are gaps.
		if !math.IsNaN(s.estimate) {
			estPts = append(estPts, plotter.XY{X: s.seconds, Y: s.estimate})
		}
		if !math.IsNaN(s.ground) {
			groundPts = append(groundPts, plotter.XY{X: s.seconds, Y: s.ground})
		}
	}

	for _, l := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
	}{
		{"GPS estimator", estPts, color.RGBA{R: 31, G: 119, B: 180, A: 255}},
		{"ground propagator", groundPts, color.RGBA{R: 255, G: 127, B: 14, A: 255}},
	} {
		if len(l.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(l.pts)
		if err != nil {
			return err
		}
		line.Color = l.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(l.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
