package measure

import (
	"log"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// Axis identifies the pointer rotation axis under test.
type Axis int

const (
	Roll Axis = iota
	Pitch
	Yaw
)

func (a Axis) String() string {
	switch a {
	case Roll:
		return "Roll"
	case Pitch:
		return "Pitch"
	case Yaw:
		return "Yaw"
	}
	return "unknown"
}

// DefaultAngStep is the minimum angular delta between recorded rotation
// samples, in degrees.
const DefaultAngStep = 2.0

// MinRotationSamples is the sample count a rotation gesture must exceed
// before a tracking loss counts as a deliberate stop.
const MinRotationSamples = 6

// RotationSample pairs a standardized-frame angle with the pointer
// position at which it was observed.
type RotationSample struct {
	Angle float64   `json:"angle"`
	Pos   geom.Vec3 `json:"pos"`
}

// Rotation measures positional precision during one sustained rotation
// gesture about a single axis. Samples are gated by AngStep and by the
// direction of the first recorded angle, so backing up never re-samples
// an angular region.
type Rotation struct {
	Axis    Axis
	AngStep float64
	CurLoc  string

	Measurements map[string][]RotationSample
	all          []RotationSample
	Stats        map[string]RotationStats

	basePos   geom.Vec3
	baseSet   bool
	acquiring bool
}

// NewRotation returns an engine for the given axis.
func NewRotation(axis Axis) *Rotation {
	r := &Rotation{Axis: axis, AngStep: DefaultAngStep}
	r.FullReset()
	return r
}

// FullReset drops all measurements and stats.
func (r *Rotation) FullReset() {
	r.Measurements = make(map[string][]RotationSample)
	r.all = nil
	r.Stats = make(map[string]RotationStats)
	r.Reset("")
}

// Reset starts a fresh gesture at the given location.
func (r *Rotation) Reset(loc string) {
	r.CurLoc = loc
	r.acquiring = false
	if loc != "" {
		r.Measurements[loc] = nil
	}
}

// SetBasePos fixes the reference position deviations are measured
// from: the single-point average when available, else the calibrated
// central divot. Unset base falls back to the sample mean.
func (r *Rotation) SetBasePos(pos geom.Vec3) {
	r.basePos = pos
	r.baseSet = true
}

// ClearBasePos marks the base position unset.
func (r *Rotation) ClearBasePos() { r.baseSet = false }

// Acquiring reports whether a gesture is in progress.
func (r *Rotation) Acquiring() bool { return r.acquiring }

// Start begins the gesture with its first sample, captured immediately
// when sustained tracking begins.
func (r *Rotation) Start(angle float64, pos geom.Vec3) {
	if r.acquiring {
		return
	}
	log.Printf("%s rotation sampled at %.1f", r.Axis, angle)
	r.Measurements[r.CurLoc] = append(r.Measurements[r.CurLoc], RotationSample{Angle: angle, Pos: pos})
	r.acquiring = true
}

// Record offers a sample during the gesture. It is kept only if the
// angular delta from the previously recorded sample exceeds AngStep in
// the direction set by the first recorded angle's sign.
func (r *Rotation) Record(angle float64, pos geom.Vec3) bool {
	if !r.acquiring {
		return false
	}
	meas := r.Measurements[r.CurLoc]
	first := meas[0].Angle
	last := meas[len(meas)-1].Angle
	if (first < 0 && angle-last > r.AngStep) || (first > 0 && last-angle > r.AngStep) {
		log.Printf("%s rotation sampled at %.1f", r.Axis, angle)
		r.Measurements[r.CurLoc] = append(meas, RotationSample{Angle: angle, Pos: pos})
		return true
	}
	return false
}

// StopOnTrackingLoss ends the gesture if enough samples accumulated.
// It reports whether the gesture finished.
func (r *Rotation) StopOnTrackingLoss() bool {
	if r.acquiring && len(r.Measurements[r.CurLoc]) > MinRotationSamples {
		r.acquiring = false
		return true
	}
	return false
}

// UpdateStats finalizes the current location's stats and folds its
// samples into the cross-location aggregate.
func (r *Rotation) UpdateStats() {
	meas := r.Measurements[r.CurLoc]
	if len(meas) == 0 {
		return
	}
	s := r.stats(meas)
	if r.CurLoc != "" {
		r.Stats[r.CurLoc] = s
	}
	log.Printf("rotation [%s] (%d samples): range <%.2f, %.2f>, span %.2f, rms %.2f",
		r.Axis, s.Num, s.RangeMin, s.RangeMax, s.Span, s.RMS)
	r.all = append(r.all, meas...)
	r.Stats[AllKey] = r.stats(r.all)
}

func (r *Rotation) stats(meas []RotationSample) RotationStats {
	if len(meas) == 0 {
		return RotationStats{}
	}
	s := RotationStats{
		Num:      len(meas),
		RangeMin: meas[0].Angle,
		RangeMax: meas[0].Angle,
	}
	pts := make([]geom.Vec3, len(meas))
	for i, m := range meas {
		pts[i] = m.Pos
		if m.Angle < s.RangeMin {
			s.RangeMin = m.Angle
		}
		if m.Angle > s.RangeMax {
			s.RangeMax = m.Angle
		}
	}
	s.Span = geom.Span(pts)
	base := geom.Mean(pts)
	if r.baseSet {
		base = r.basePos
	}
	devs := make([]float64, len(pts))
	for i, p := range pts {
		devs[i] = geom.Dist(p, base)
	}
	s.RMS = geom.RMS(devs)
	return s
}
