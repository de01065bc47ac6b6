package store

import (
	"fmt"
	"strings"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/measure"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/report"
)

// StatRow is one per-location stats record of an archived session.
// Only the fields the test kind produces are set; the rest stay nil.
type StatRow struct {
	Test     string   `json:"test"`
	Location string   `json:"location"`
	Num      int      `json:"num"`
	Mean     *float64 `json:"mean,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Std      *float64 `json:"std,omitempty"`
	RMS      *float64 `json:"rms,omitempty"`
	Span     *float64 `json:"span,omitempty"`
	RangeMin *float64 `json:"range_min,omitempty"`
	RangeMax *float64 `json:"range_max,omitempty"`
	AvgErr   *float64 `json:"avg_err,omitempty"`
}

// singleTestNames indexes the battery names of the three single point
// orientations, in controller order.
var singleTestNames = [3]string{"singleL", "singleR", "single"}

func f(v float64) *float64 { return &v }

// statRows flattens a session's stats maps into archive records.
func statRows(r *report.Result) []StatRow {
	var rows []StatRow

	for i, sp := range r.SinglePoints {
		name := singleTestNames[i]
		for loc, a := range sp.Accuracy {
			rows = append(rows, StatRow{
				Test: name + "_acc", Location: loc, Num: a.Num,
				AvgErr: f(a.AvgErr), Max: f(a.Max),
			})
		}
		for loc, p := range sp.Precision {
			rows = append(rows, StatRow{
				Test: name + "_prec", Location: loc, Num: p.Num,
				Span: f(p.Span), RMS: f(p.RMS),
			})
		}
	}

	for _, rot := range r.Rotations {
		name := strings.ToLower(rot.Axis)
		for loc, st := range rot.Stats {
			rows = append(rows, StatRow{
				Test: name, Location: loc, Num: st.Num,
				RangeMin: f(st.RangeMin), RangeMax: f(st.RangeMax),
				Span: f(st.Span), RMS: f(st.RMS),
			})
		}
	}

	appendErrorStats := func(name string, stats map[string]measure.ErrorStats) {
		for loc, st := range stats {
			rows = append(rows, StatRow{
				Test: name, Location: loc, Num: st.Num,
				Mean: f(st.Mean), Min: f(st.Min), Max: f(st.Max),
				Std: f(st.Std), RMS: f(st.RMS),
			})
		}
	}
	appendErrorStats("dist", r.Dist.DistStats)
	appendErrorStats("dist_reg", r.Dist.RegStats)

	return rows
}

// SessionStats returns the stat rows of one archived session.
func (s *Store) SessionStats(sessionID string) ([]StatRow, error) {
	query := `
		SELECT test, location, num, mean, min, max, std, rms,
		       span, range_min, range_max, avg_err
		FROM location_stats
		WHERE session_id = ?
		ORDER BY test, location
	`
	rows, err := s.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	var out []StatRow
	for rows.Next() {
		var row StatRow
		if err := rows.Scan(
			&row.Test, &row.Location, &row.Num,
			&row.Mean, &row.Min, &row.Max, &row.Std, &row.RMS,
			&row.Span, &row.RangeMin, &row.RangeMax, &row.AvgErr,
		); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	return out, nil
}
