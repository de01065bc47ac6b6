package report

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// locationColors is a fixed palette so a location keeps its color
// across every plot of a session.
var locationColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
}

// WritePlots saves static PNG plots alongside the report: one per
// rotation axis (deviation against angle) and one per single point
// orientation (per-sample error magnitude). Axes or orientations
// without measurements are skipped.
func (r *Result) WritePlots(dir string) error {
	for _, rot := range r.Rotations {
		if err := saveRotationPlot(rot, dir); err != nil {
			return err
		}
	}
	for _, sp := range r.SinglePoints {
		if err := saveSinglePointPlot(sp, dir); err != nil {
			return err
		}
	}
	return nil
}

func saveRotationPlot(rot RotationResult, dir string) error {
	locs := measuredLocations(rot.Measurements)
	if len(locs) == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Rotation - Positional Deviation", rot.Axis)
	p.X.Label.Text = "Angle (deg)"
	p.Y.Label.Text = "Deviation (mm)"

	for i, loc := range locs {
		samples := rot.Measurements[loc]
		mean := rotationMean(samples)
		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			pts = append(pts, plotter.XY{X: s.Angle, Y: geom.Dist(s.Pos, mean)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s rotation plot, location %s: %w", rot.Axis, loc, err)
		}
		line.Color = locationColors[i%len(locationColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(loc, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	file := filepath.Join(dir, fmt.Sprintf("rotation_%s.png", strings.ToLower(rot.Axis)))
	if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("save %s rotation plot: %w", rot.Axis, err)
	}
	return nil
}

func saveSinglePointPlot(sp SinglePointResult, dir string) error {
	locs := measuredLocations(sp.Measurements)
	if len(locs) == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Single Point (%s) - Deviation from Mean", sp.Orientation)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Deviation (mm)"

	for i, loc := range locs {
		samples := sp.Measurements[loc]
		mean := geom.Mean(samples)
		pts := make(plotter.XYs, 0, len(samples))
		for j, s := range samples {
			pts = append(pts, plotter.XY{X: float64(j + 1), Y: geom.Dist(s, mean)})
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("single point plot %s, location %s: %w", sp.Orientation, loc, err)
		}
		sc.Color = locationColors[i%len(locationColors)]
		sc.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add(loc, sc)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	name := strings.ReplaceAll(strings.ToLower(sp.Orientation), " ", "_")
	file := filepath.Join(dir, fmt.Sprintf("single_point_%s.png", name))
	if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("save single point plot %s: %w", sp.Orientation, err)
	}
	return nil
}
