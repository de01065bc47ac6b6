package report

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"strconv"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/measure"
)

//go:embed templates/*
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// Table is one stats table of the report.
type Table struct {
	Heading   string
	Locations []string
	Rows      []Row
}

// Row is one table line. An empty Label marks the measurement-count
// header row; a non-empty Group opens a rowspan covering Span lines.
type Row struct {
	Group string
	Span  int
	Label string
	Cells []string
}

type reportPage struct {
	*Result
	SingleTables   []Table
	RotationTables []Table
	DistTable      Table
}

// WriteHTML renders the report. Cells show "-" for locations the
// session never visited and "x" for tests skipped at a location.
func (r *Result) WriteHTML(path string) error {
	page := reportPage{Result: r}
	for _, sp := range r.SinglePoints {
		page.SingleTables = append(page.SingleTables, Table{
			Heading:   sp.Orientation,
			Locations: ReportLocations,
			Rows: []Row{
				{Cells: cells(r, sp.Accuracy, func(s measure.AccuracyStats) string { return itoa(s.Num) })},
				{Group: "Accuracy (mm)", Span: 2, Label: "Mean",
					Cells: cells(r, sp.Accuracy, func(s measure.AccuracyStats) string { return ftoa(s.AvgErr) })},
				{Label: "Max",
					Cells: cells(r, sp.Accuracy, func(s measure.AccuracyStats) string { return ftoa(s.Max) })},
				{Group: "Precision (mm)", Span: 2, Label: "Span",
					Cells: cells(r, sp.Precision, func(s measure.PrecisionStats) string { return ftoa(s.Span) })},
				{Label: "RMS",
					Cells: cells(r, sp.Precision, func(s measure.PrecisionStats) string { return ftoa(s.RMS) })},
			},
		})
	}
	for _, rot := range r.Rotations {
		page.RotationTables = append(page.RotationTables, Table{
			Heading:   fmt.Sprintf("%s Rotation Precision Test", rot.Axis),
			Locations: ReportLocations,
			Rows: []Row{
				{Cells: cells(r, rot.Stats, func(s measure.RotationStats) string { return itoa(s.Num) })},
				{Group: "Angle (°)", Span: 2, Label: "Min",
					Cells: cells(r, rot.Stats, func(s measure.RotationStats) string { return ftoa(s.RangeMin) })},
				{Label: "Max",
					Cells: cells(r, rot.Stats, func(s measure.RotationStats) string { return ftoa(s.RangeMax) })},
				{Group: "Precision (mm)", Span: 2, Label: "Span",
					Cells: cells(r, rot.Stats, func(s measure.RotationStats) string { return ftoa(s.Span) })},
				{Label: "RMS",
					Cells: cells(r, rot.Stats, func(s measure.RotationStats) string { return ftoa(s.RMS) })},
			},
		})
	}
	page.DistTable = Table{
		Locations: ReportLocations,
		Rows: []Row{
			{Cells: cells(r, r.Dist.RegStats, func(s measure.ErrorStats) string { return itoa(s.Num) })},
			{Group: "Distances (mm)", Span: 5, Label: "Num.",
				Cells: cells(r, r.Dist.DistStats, func(s measure.ErrorStats) string { return itoa(s.Num) })},
			{Label: "Mean", Cells: cells(r, r.Dist.DistStats, func(s measure.ErrorStats) string { return ftoa(s.Mean) })},
			{Label: "Min", Cells: cells(r, r.Dist.DistStats, func(s measure.ErrorStats) string { return ftoa(s.Min) })},
			{Label: "Max", Cells: cells(r, r.Dist.DistStats, func(s measure.ErrorStats) string { return ftoa(s.Max) })},
			{Label: "RMS", Cells: cells(r, r.Dist.DistStats, func(s measure.ErrorStats) string { return ftoa(s.RMS) })},
			{Group: "Registration (mm)", Span: 4, Label: "Mean",
				Cells: cells(r, r.Dist.RegStats, func(s measure.ErrorStats) string { return ftoa(s.Mean) })},
			{Label: "Min", Cells: cells(r, r.Dist.RegStats, func(s measure.ErrorStats) string { return ftoa(s.Min) })},
			{Label: "Max", Cells: cells(r, r.Dist.RegStats, func(s measure.ErrorStats) string { return ftoa(s.Max) })},
			{Label: "RMS", Cells: cells(r, r.Dist.RegStats, func(s measure.ErrorStats) string { return ftoa(s.RMS) })},
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	if err := reportTemplate.Execute(f, page); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// cells renders one stats value per report column.
func cells[T any](r *Result, stats map[string]T, format func(T) string) []string {
	out := make([]string, 0, len(ReportLocations))
	for _, loc := range ReportLocations {
		if !r.enabled(loc) {
			out = append(out, "-")
			continue
		}
		s, ok := stats[loc]
		if !ok {
			out = append(out, "x")
			continue
		}
		out = append(out, format(s))
	}
	return out
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
func itoa(v int) string     { return strconv.Itoa(v) }
