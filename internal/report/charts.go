package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/measure"
)

// WriteCharts renders an interactive companion page to the HTML report:
// one scatter per single point orientation (sample deviation from the
// location mean, viewed along the pointer axis) and one per rotation
// axis (positional deviation against the recorded angle). Each
// working-volume location is its own series.
func (r *Result) WriteCharts(path string) error {
	page := components.NewPage()
	page.PageTitle = "ASTM Phantom Test Charts"

	for _, sp := range r.SinglePoints {
		if chart := singlePointScatter(sp); chart != nil {
			page.AddCharts(chart)
		}
	}
	for _, rot := range r.Rotations {
		if chart := rotationScatter(rot); chart != nil {
			page.AddCharts(chart)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create charts file: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}

// singlePointScatter plots, per location, each sample's deviation from
// that location's mean projected on the lateral plane. A tight cloud
// means good precision.
func singlePointScatter(sp SinglePointResult) *charts.Scatter {
	locs := measuredLocations(sp.Measurements)
	if len(locs) == 0 {
		return nil
	}

	pad := 0.0
	series := make(map[string][]opts.ScatterData, len(locs))
	for _, loc := range locs {
		samples := sp.Measurements[loc]
		mean := geom.Mean(samples)
		data := make([]opts.ScatterData, 0, len(samples))
		for _, s := range samples {
			d := s.Sub(mean)
			if abs(d[0]) > pad {
				pad = abs(d[0])
			}
			if abs(d[1]) > pad {
				pad = abs(d[1])
			}
			data = append(data, opts.ScatterData{Value: []interface{}{d[0], d[1]}})
		}
		series[loc] = data
	}
	pad *= 1.1
	if pad == 0 {
		pad = 0.1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Single Point Deviation (%s)", sp.Orientation),
			Subtitle: "sample minus location mean, lateral plane",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (mm)", NameLocation: "middle", NameGap: 30}),
	)
	for _, loc := range locs {
		scatter.AddSeries(loc, series[loc], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}
	return scatter
}

// rotationScatter plots, per location, the positional deviation from
// the location mean against the angle at which it was sampled.
func rotationScatter(rot RotationResult) *charts.Scatter {
	locs := measuredLocations(rot.Measurements)
	if len(locs) == 0 {
		return nil
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s Rotation Deviation", rot.Axis),
			Subtitle: "distance from location mean while rotating",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Angle (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Deviation (mm)", NameLocation: "middle", NameGap: 35}),
	)
	for _, loc := range locs {
		samples := rot.Measurements[loc]
		mean := rotationMean(samples)
		data := make([]opts.ScatterData, 0, len(samples))
		for _, s := range samples {
			data = append(data, opts.ScatterData{Value: []interface{}{s.Angle, geom.Dist(s.Pos, mean)}})
		}
		scatter.AddSeries(loc, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	}
	return scatter
}

// measuredLocations returns the keys of m that hold samples, in
// report order, skipping the cross-location aggregate.
func measuredLocations[S ~[]E, E any](m map[string]S) []string {
	var locs []string
	for loc, samples := range m {
		if loc == measure.AllKey || len(samples) == 0 {
			continue
		}
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool {
		return locationRank(locs[i]) < locationRank(locs[j])
	})
	return locs
}

func locationRank(loc string) int {
	for i, l := range ReportLocations {
		if l == loc {
			return i
		}
	}
	return len(ReportLocations)
}

func rotationMean(samples []measure.RotationSample) geom.Vec3 {
	pts := make([]geom.Vec3, len(samples))
	for i, s := range samples {
		pts[i] = s.Pos
	}
	return geom.Mean(pts)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
