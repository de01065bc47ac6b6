package measure

import (
	"log"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/event"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// Orientation tags the phantom attitude under which a single-point run
// is performed.
type Orientation int

const (
	ExtremeLeft Orientation = iota
	ExtremeRight
	Normal
)

func (o Orientation) String() string {
	switch o {
	case ExtremeLeft:
		return "Extreme Left"
	case ExtremeRight:
		return "Extreme Right"
	case Normal:
		return "Normal"
	}
	return "unknown"
}

// DefaultAcquiNumMax is the per-location sample count of the
// single-point test.
const DefaultAcquiNumMax = 20

// SinglePoint measures accuracy and precision of repeated single-point
// acquisition of one divot. Stats finalize only once a location reaches
// AcquiNumMax samples.
type SinglePoint struct {
	Orientation Orientation
	AcquiNumMax int
	Divot       int
	CurLoc      string
	AcquiNum    int

	gtPts        map[int]geom.Vec3
	Measurements map[string][]geom.Vec3
	all          []geom.Vec3

	Accuracy  map[string]AccuracyStats
	Precision map[string]PrecisionStats

	// AvgPos is the sample mean of the last finalized location, kept as
	// the base position for the rotation tests. Nil until a run
	// finalizes.
	AvgPos *geom.Vec3

	AcquiNumChanged  *event.Hub[int]
	AccuracyChanged  *event.Hub[AccuracyStats]
	PrecisionChanged *event.Hub[PrecisionStats]
}

// NewSinglePoint returns an engine for the given orientation with no
// ground truth bound yet.
func NewSinglePoint(o Orientation) *SinglePoint {
	s := &SinglePoint{
		Orientation:      o,
		AcquiNumMax:      DefaultAcquiNumMax,
		Divot:            1,
		AcquiNumChanged:  event.NewHub[int](),
		AccuracyChanged:  event.NewHub[AccuracyStats](),
		PrecisionChanged: event.NewHub[PrecisionStats](),
	}
	s.FullReset(nil, 0)
	return s
}

// FullReset drops every stored measurement and stat, binds the ground
// truth map and the divot under test.
func (s *SinglePoint) FullReset(gtPts map[int]geom.Vec3, divot int) {
	s.gtPts = gtPts
	if divot != 0 {
		s.Divot = divot
	}
	s.Measurements = make(map[string][]geom.Vec3)
	s.all = nil
	s.Accuracy = make(map[string]AccuracyStats)
	s.Precision = make(map[string]PrecisionStats)
	s.AvgPos = nil
	s.Reset("")
}

// SetGroundTruth rebinds the calibrated ground truth after a
// recalibration without losing accumulated measurements.
func (s *SinglePoint) SetGroundTruth(gtPts map[int]geom.Vec3) {
	s.gtPts = gtPts
}

// Reset starts a fresh run at the given location. Finalized stats of
// other locations are untouched.
func (s *SinglePoint) Reset(loc string) {
	s.CurLoc = loc
	s.AcquiNum = 0
	if loc != "" {
		s.Measurements[loc] = nil
	}
}

// Done reports whether the current location reached its sample count.
func (s *SinglePoint) Done() bool {
	return s.AcquiNum >= s.AcquiNumMax
}

// Record stores one acquired point for the current location and
// recomputes the running stats. On the final sample the location's
// stats and the cross-location aggregate are stored and AvgPos is
// updated.
func (s *SinglePoint) Record(pos geom.Vec3) {
	s.AcquiNum++
	s.Measurements[s.CurLoc] = append(s.Measurements[s.CurLoc], pos)
	s.AcquiNumChanged.Publish(s.AcquiNum)
	if s.AcquiNum < s.AcquiNumMax {
		log.Printf("%d acquisition(s) left for central divot #%d", s.AcquiNumMax-s.AcquiNum, s.Divot)
	} else {
		s.all = append(s.all, s.Measurements[s.CurLoc]...)
	}
	s.updateAccuracy()
	s.updatePrecision()
}

func (s *SinglePoint) updateAccuracy() {
	cur := NewAccuracyStats(s.Measurements[s.CurLoc], s.gtPts[s.Divot])
	s.AccuracyChanged.Publish(cur)
	if s.Done() && len(s.Measurements[s.CurLoc]) > 0 {
		if s.CurLoc != "" {
			s.Accuracy[s.CurLoc] = cur
		}
		log.Printf("accuracy (%d): avg err = %.2f, max = %.2f", cur.Num, cur.AvgErr, cur.Max)
		s.Accuracy[AllKey] = NewAccuracyStats(s.all, s.gtPts[s.Divot])
	}
}

func (s *SinglePoint) updatePrecision() {
	cur := NewPrecisionStats(s.Measurements[s.CurLoc])
	s.PrecisionChanged.Publish(cur)
	if s.Done() && len(s.Measurements[s.CurLoc]) > 0 {
		if s.CurLoc != "" {
			s.Precision[s.CurLoc] = cur
		}
		log.Printf("precision (%d): span = %.2f, rms = %.2f", cur.Num, cur.Span, cur.RMS)
		s.Precision[AllKey] = NewPrecisionStats(s.all)
		avg := geom.Mean(s.Measurements[s.CurLoc])
		s.AvgPos = &avg
	}
}
