// Package target maintains the set of labeled points the operator is
// guided to, and turns pointer stops and acquisition progress into the
// hit / in / out / done protocol the session controller sequences on.
package target

import (
	"log"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/event"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// DefaultProximityThreshold is the pointer-to-target hit distance for
// divot targets, in millimetres.
const DefaultProximityThreshold = 2.0

// Hit carries the label of the target that was hit and the pointer
// position that hit it.
type Hit[L comparable] struct {
	Label L
	Pos   geom.Vec3
}

// Done carries the label of a completed target and its acquired point.
type Done[L comparable] struct {
	Label L
	Pos   geom.Vec3
}

type entry[L comparable] struct {
	label    L
	pos      geom.Vec3
	visible  bool
	progress float64
}

// Detector maps pointer positions onto a declared, ordered set of
// targets. In proximity mode the first target (in insertion order)
// within ProxiThresh of a stop position is hit; in sequential mode the
// first remaining target is always the one hit, regardless of distance.
type Detector[L comparable] struct {
	// ProxiDetect selects proximity mode. Off means sequential mode.
	ProxiDetect bool
	// ProxiThresh is the hit distance in millimetres.
	ProxiThresh float64

	targets []entry[L]
	hit     *L

	TargetHit     *event.Hub[Hit[L]]
	TargetOut     *event.Hub[L]
	TargetDone    *event.Hub[Done[L]]
	TargetDoneOut *event.Hub[L]
}

// NewDetector returns an empty detector in sequential mode with the
// default proximity threshold.
func NewDetector[L comparable]() *Detector[L] {
	return &Detector[L]{
		ProxiThresh:   DefaultProximityThreshold,
		TargetHit:     event.NewHub[Hit[L]](),
		TargetOut:     event.NewHub[L](),
		TargetDone:    event.NewHub[Done[L]](),
		TargetDoneOut: event.NewHub[L](),
	}
}

// Add declares a target. Insertion order is the tie-break order in
// proximity mode and the acquisition order in sequential mode.
func (d *Detector[L]) Add(label L, pos geom.Vec3, visible bool) {
	for i := range d.targets {
		if d.targets[i].label == label {
			d.targets[i].pos = pos
			d.targets[i].visible = visible
			return
		}
	}
	d.targets = append(d.targets, entry[L]{label: label, pos: pos, visible: visible})
}

// Remove drops a target. The next remaining target, if any, becomes
// visible. Removing the hit target clears the hit state.
func (d *Detector[L]) Remove(label L) {
	for i := range d.targets {
		if d.targets[i].label == label {
			d.targets = append(d.targets[:i], d.targets[i+1:]...)
			break
		}
	}
	if len(d.targets) > 0 {
		d.targets[0].visible = true
	}
	if d.hit != nil && *d.hit == label {
		d.hit = nil
	}
}

// RemoveAll clears the target set and the hit state.
func (d *Detector[L]) RemoveAll() {
	d.targets = nil
	d.hit = nil
}

// Labels returns the remaining target labels in insertion order.
func (d *Detector[L]) Labels() []L {
	out := make([]L, len(d.targets))
	for i, t := range d.targets {
		out[i] = t.label
	}
	return out
}

// Len returns the number of remaining targets.
func (d *Detector[L]) Len() int { return len(d.targets) }

// Visible reports whether the given target is currently shown.
func (d *Detector[L]) Visible(label L) bool {
	for _, t := range d.targets {
		if t.label == label {
			return t.visible
		}
	}
	return false
}

// Hit returns the currently hit label, or ok false when none.
func (d *Detector[L]) Hit() (L, bool) {
	if d.hit == nil {
		var zero L
		return zero, false
	}
	return *d.hit, true
}

// Pos returns the declared position of label.
func (d *Detector[L]) Pos(label L) (geom.Vec3, bool) {
	for _, t := range d.targets {
		if t.label == label {
			return t.pos, true
		}
	}
	return geom.NaNVec(), false
}

// Focus processes a pointer-stop position. First match in declaration
// order wins when several targets fall within the threshold.
func (d *Detector[L]) Focus(pos geom.Vec3) {
	if d.ProxiDetect {
		for i := range d.targets {
			dist := geom.Dist(pos, d.targets[i].pos)
			if dist < d.ProxiThresh {
				lbl := d.targets[i].label
				d.hit = &lbl
				log.Printf("target [%v] hit at %.2f mm", lbl, dist)
				d.TargetHit.Publish(Hit[L]{Label: lbl, Pos: pos})
				return
			}
		}
		return
	}
	if len(d.targets) > 0 {
		lbl := d.targets[0].label
		d.hit = &lbl
		log.Printf("stopped for target [%v]", lbl)
		d.TargetHit.Publish(Hit[L]{Label: lbl, Pos: pos})
	}
}

// In reports acquisition progress on the hit target, clamped to [0,1].
func (d *Detector[L]) In(progress float64) {
	if d.hit == nil {
		return
	}
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}
	for i := range d.targets {
		if d.targets[i].label == *d.hit {
			d.targets[i].progress = progress
			return
		}
	}
}

// Out aborts the approach on the hit target: progress resets and the
// hit label clears.
func (d *Detector[L]) Out() {
	if d.hit == nil {
		return
	}
	lbl := *d.hit
	for i := range d.targets {
		if d.targets[i].label == lbl {
			d.targets[i].progress = 0
		}
	}
	d.hit = nil
	d.TargetOut.Publish(lbl)
}

// DoneAt marks the hit target acquired at pos.
func (d *Detector[L]) DoneAt(pos geom.Vec3) {
	if d.hit == nil {
		return
	}
	d.TargetDone.Publish(Done[L]{Label: *d.hit, Pos: pos})
}

// DoneOut finishes the done-and-left transition: the hit label clears
// and observers typically remove the target.
func (d *Detector[L]) DoneOut() {
	if d.hit == nil {
		return
	}
	lbl := *d.hit
	d.hit = nil
	d.TargetDoneOut.Publish(lbl)
}
