// Package report serializes a finished session: the raw-measurement
// JSON archive, the HTML report tables, and the measurement charts.
package report

import (
	"fmt"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/measure"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/session"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

// SinglePointResult is one orientation of the single point test.
type SinglePointResult struct {
	Orientation  string
	Measurements map[string][]geom.Vec3
	Accuracy     map[string]measure.AccuracyStats
	Precision    map[string]measure.PrecisionStats
}

// RotationResult is one axis of the rotation precision tests.
type RotationResult struct {
	Axis         string
	Measurements map[string][]measure.RotationSample
	Stats        map[string]measure.RotationStats
}

// DistResult is the multi-point test outcome.
type DistResult struct {
	Measurements map[string]map[int]geom.Vec3
	DistStats    map[string]measure.ErrorStats
	RegStats     map[string]measure.ErrorStats
}

// Result is a snapshot of everything a finished session produced.
type Result struct {
	Operator          string
	TrackerID         string
	PointerID         string
	WorkingVolumeID   string
	PhantomID         string
	CentralDivot      int
	AcquisitionMode   string
	RecalibAtLocation bool

	Start    time.Time
	Duration time.Duration

	// Locations the session was configured to visit, in order; used to
	// distinguish disabled locations from skipped ones.
	Locations []string

	Calibrations map[string]map[int]geom.Vec3

	SinglePoints [3]SinglePointResult
	Rotations    [3]RotationResult
	Dist         DistResult
}

// FromSession snapshots a controller. Usually called on SessionEnded.
func FromSession(c *session.Controller) *Result {
	r := &Result{
		Operator:          c.OperatorID,
		TrackerID:         c.TrackerID,
		PointerID:         c.Pointer.ID,
		WorkingVolumeID:   c.WV.ID,
		PhantomID:         c.Phantom.ID,
		CentralDivot:      c.Phantom.CentralDivot,
		AcquisitionMode:   modeDescription(c.Pointer),
		RecalibAtLocation: c.RecalibAtLocation,
		Start:             c.StartTime,
		Duration:          c.Duration(),
		Locations:         c.EnabledLocations(),
		Calibrations:      c.Phantom.CalibrationsByLocation,
	}
	for i, sp := range c.SinglePoints {
		r.SinglePoints[i] = SinglePointResult{
			Orientation:  sp.Orientation.String(),
			Measurements: sp.Measurements,
			Accuracy:     sp.Accuracy,
			Precision:    sp.Precision,
		}
	}
	for i, rot := range c.Rotations {
		r.Rotations[i] = RotationResult{
			Axis:         rot.Axis.String(),
			Measurements: rot.Measurements,
			Stats:        rot.Stats,
		}
	}
	r.Dist = DistResult{
		Measurements: c.DistMeas.Measurements,
		DistStats:    c.DistMeas.DistStats,
		RegStats:     c.DistMeas.RegStats,
	}
	return r
}

func modeDescription(p *track.Pointer) string {
	switch p.Mode {
	case track.SingleFrame:
		return fmt.Sprintf("%s (%dms)", p.Mode, p.TimerDuration.Milliseconds())
	default:
		return fmt.Sprintf("%s (%d frames)", p.Mode, p.NumFrames)
	}
}

// Stamp is the file-name timestamp of the session start.
func (r *Result) Stamp() string {
	return r.Start.Format("2006.01.02_15.04.05")
}

// DurationString formats the session duration the way the report
// header shows it.
func (r *Result) DurationString() string {
	d := r.Duration.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dmin%ds", h, m, s)
}

// ReportLocations is the fixed column order of every report table.
var ReportLocations = wv.LocationOrder

// enabled reports whether a location was part of the session.
func (r *Result) enabled(loc string) bool {
	for _, l := range r.Locations {
		if l == loc {
			return true
		}
	}
	return false
}
