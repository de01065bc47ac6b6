package measure

import (
	"log"
	"math"
	"sort"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/event"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// Dist measures point-to-point distance accuracy over a sequence of
// divots. Two error populations are aggregated: pairwise inter-point
// distance deviations from ground truth, and residuals of a rigid
// registration of the measured set onto ground truth.
type Dist struct {
	CurLoc string
	CurLbl int
	ToDo   []int

	gtPts        map[int]geom.Vec3
	sequence     []int
	Measurements map[string]map[int]geom.Vec3

	distErrors map[string][]float64
	regErrors  map[string][]float64
	DistStats  map[string]ErrorStats
	RegStats   map[string]ErrorStats

	NextTarget *event.Hub[int]
	Finished   *event.Hub[struct{}]
}

// NewDist returns an empty distance engine.
func NewDist() *Dist {
	d := &Dist{
		NextTarget: event.NewHub[int](),
		Finished:   event.NewHub[struct{}](),
	}
	d.FullReset(nil, nil)
	return d
}

// FullReset installs the ground truth and sequence and drops all state.
func (d *Dist) FullReset(gtPts map[int]geom.Vec3, sequence []int) {
	d.gtPts = gtPts
	d.sequence = sequence
	d.Measurements = make(map[string]map[int]geom.Vec3)
	d.distErrors = make(map[string][]float64)
	d.regErrors = make(map[string][]float64)
	d.DistStats = make(map[string]ErrorStats)
	d.RegStats = make(map[string]ErrorStats)
	d.Reset("")
}

// SetGroundTruth rebinds the calibrated ground truth after a
// recalibration without losing accumulated measurements.
func (d *Dist) SetGroundTruth(gtPts map[int]geom.Vec3) {
	d.gtPts = gtPts
}

// Reset arms the engine for the given location with the full sequence
// still to do. Without an explicit sequence every ground-truth divot is
// queued, in label order.
func (d *Dist) Reset(loc string) {
	d.CurLoc = loc
	if len(d.sequence) > 0 {
		d.ToDo = append([]int(nil), d.sequence...)
	} else {
		d.ToDo = make([]int, 0, len(d.gtPts))
		for l := range d.gtPts {
			d.ToDo = append(d.ToDo, l)
		}
		sort.Ints(d.ToDo)
	}
	if loc != "" {
		d.Measurements[loc] = make(map[int]geom.Vec3)
	}
	if len(d.ToDo) > 0 {
		d.CurLbl = d.ToDo[0]
	} else {
		d.CurLbl = 0
	}
}

// Done reports whether all sequence divots were measured at the
// current location.
func (d *Dist) Done() bool { return len(d.ToDo) == 0 }

// Record stores the acquired position for the given divot, refreshes
// both error populations and advances to the next divot. When the
// sequence is exhausted Finished fires.
func (d *Dist) Record(lbl int, pos geom.Vec3) {
	if d.CurLoc == "" {
		return
	}
	d.Measurements[d.CurLoc][lbl] = pos
	for i, l := range d.ToDo {
		if l == lbl {
			d.ToDo = append(d.ToDo[:i], d.ToDo[i+1:]...)
			break
		}
	}
	d.updateStats()
	if len(d.ToDo) > 0 {
		d.CurLbl = d.ToDo[0]
		d.NextTarget.Publish(d.CurLbl)
		return
	}
	ds, rs := d.DistStats[d.CurLoc], d.RegStats[d.CurLoc]
	log.Printf("distances at %s: %d pairs, mean %.3f max %.3f; registration rms %.3f",
		d.CurLoc, ds.Num, ds.Mean, ds.Max, rs.RMS)
	d.Finished.Publish(struct{}{})
}

// updateStats recomputes both error populations for the current
// location from scratch and rebuilds the cross-location aggregates.
func (d *Dist) updateStats() {
	meas := d.Measurements[d.CurLoc]
	labels := make([]int, 0, len(meas))
	for l := range meas {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	var distErrs []float64
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			a, b := labels[i], labels[j]
			gt := geom.Dist(d.gtPts[a], d.gtPts[b])
			m := geom.Dist(meas[a], meas[b])
			distErrs = append(distErrs, math.Abs(gt-m))
		}
	}
	d.distErrors[d.CurLoc] = distErrs
	d.DistStats[d.CurLoc] = NewErrorStats(distErrs)
	d.DistStats[AllKey] = NewErrorStats(flatten(d.distErrors))

	regErrs := d.registrationErrors(labels, meas)
	d.regErrors[d.CurLoc] = regErrs
	d.RegStats[d.CurLoc] = NewErrorStats(regErrs)
	d.RegStats[AllKey] = NewErrorStats(flatten(d.regErrors))
}

// flatten concatenates the per-location error populations.
func flatten(m map[string][]float64) []float64 {
	var all []float64
	for _, errs := range m {
		all = append(all, errs...)
	}
	return all
}

// registrationErrors registers the measured set onto ground truth from
// scratch and returns the per-point residuals. Degenerate sets yield
// no errors.
func (d *Dist) registrationErrors(labels []int, meas map[int]geom.Vec3) []float64 {
	if len(labels) < 2 {
		return nil
	}
	src := make([]geom.Vec3, len(labels))
	dst := make([]geom.Vec3, len(labels))
	for i, l := range labels {
		src[i] = meas[l]
		dst[i] = d.gtPts[l]
	}
	tr, err := geom.Register(src, dst, false)
	if err != nil {
		log.Printf("distance registration at %s failed: %v", d.CurLoc, err)
		return nil
	}
	return tr.Residuals(src, dst)
}
