// Package wv models the tracker's working volume: the named anchor
// locations the phantom is carried to, the depth-dependent moving
// tolerance, and the placement motion detector fed by the reference
// body pose.
package wv

import (
	"log"
	"math"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/event"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
)

// PlacementThreshold is the proximity distance, in millimetres, within
// which the phantom counts as placed at a location anchor.
const PlacementThreshold = 100.0

// placementStride is the motion tolerance for the phantom body itself.
const placementStride = 1.0

// LocationOrder is the reporting order of the five standard anchors:
// center, bottom, top, left, right.
var LocationOrder = []string{"CL", "BL", "TL", "LL", "RL"}

// ToleranceBreakpoint anchors the moving-tolerance curve: Tol applies
// at Depth.
type ToleranceBreakpoint struct {
	Tol   float64
	Depth float64
}

// WorkingVolume holds the anchor locations in tracker space, the
// standard tracker axes, and the tolerance-vs-depth breakpoints. Its
// own position queue watches the reference body so placement stops can
// be detected the same way pointer stops are.
type WorkingVolume struct {
	ID        string
	ModelID   string
	Locations map[string]geom.Vec3
	Nodes     map[int]geom.Vec3

	RollAxis  geom.Vec3
	PitchAxis geom.Vec3
	YawAxis   geom.Vec3

	TolMin ToleranceBreakpoint
	TolMax ToleranceBreakpoint

	// Offset is the calibrated central divot in reference-body space,
	// added to the body position so the anchor comparison tracks the
	// divot rather than the marker origin.
	Offset geom.Vec3

	pq       *track.PositionQueue
	moving   bool
	watching bool
	pose     geom.Mat34

	Moved   *event.Hub[struct{}]
	Stopped *event.Hub[geom.Vec3]
}

// New returns an empty working volume.
func New() *WorkingVolume {
	return &WorkingVolume{
		ID:        "XXXX",
		Locations: make(map[string]geom.Vec3),
		Nodes:     make(map[int]geom.Vec3),
		pq:        track.NewPositionQueue(track.DefaultQueueSize),
		Moved:     event.NewHub[struct{}](),
		Stopped:   event.NewHub[geom.Vec3](),
	}
}

// Watch starts or stops placement monitoring. Starting resets the
// motion window.
func (w *WorkingVolume) Watch(on bool) {
	w.watching = on
	if on {
		w.pq.Reset()
		w.moving = false
	}
}

// UpdatePose processes a reference-body-to-tracker update while
// placement monitoring is active. A stop emits the body position with
// the central-divot offset applied.
func (w *WorkingVolume) UpdatePose(pose geom.Mat34) {
	w.pose = pose
	if !w.watching {
		return
	}
	w.pq.Push(pose.Translation())
	if w.pq.Stride() > placementStride {
		if !w.moving {
			w.moving = true
			w.Moved.Publish(struct{}{})
		}
		return
	}
	if w.moving {
		w.moving = false
		pos := pose.Apply(w.Offset)
		log.Printf("phantom stopped at [%.2f %.2f %.2f]", pos[0], pos[1], pos[2])
		w.Stopped.Publish(pos)
	}
}

// Pos returns the current reference-body position with the
// central-divot offset applied.
func (w *WorkingVolume) Pos() geom.Vec3 {
	return w.pose.Apply(w.Offset)
}

// MovingToleranceAtDepth evaluates the tolerance curve at the given
// depth. Tolerance grows with depth squared between the two
// breakpoints; the depth is clamped to their range. A volume too
// narrow in depth always yields the smallest tolerance.
func (w *WorkingVolume) MovingToleranceAtDepth(depth float64) float64 {
	if math.Abs(w.TolMax.Depth-w.TolMin.Depth) < 0.001 {
		log.Print("working volume too narrow in depth: using smallest moving tolerance")
		return w.TolMin.Tol
	}
	depth = math.Max(depth, w.TolMin.Depth)
	depth = math.Min(depth, w.TolMax.Depth)
	a := (w.TolMax.Tol - w.TolMin.Tol) / (w.TolMax.Depth*w.TolMax.Depth - w.TolMin.Depth*w.TolMin.Depth)
	b := w.TolMax.Tol - a*w.TolMax.Depth*w.TolMax.Depth
	return a*depth*depth + b
}

// OrderedLocations returns the declared locations in reporting order.
func (w *WorkingVolume) OrderedLocations() []string {
	out := make([]string, 0, len(w.Locations))
	for _, l := range LocationOrder {
		if _, ok := w.Locations[l]; ok {
			out = append(out, l)
		}
	}
	return out
}
