// Package phantom holds the calibration object: its divot geometry, the
// calibration reference labels, and the similarity transform aligning
// the geometric ground truth to tracker-space measurements.
package phantom

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/event"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// ConsistencyTol is the accepted deviation, in millimetres, between the
// measured and geometric distance of any pair of calibration points.
const ConsistencyTol = 5.0

// Phantom is the rigid calibration object. GroundTruth holds the divot
// coordinates from the geometry file; CalPts accumulates measured
// reference points during calibration and, once Calibrate succeeds,
// the calibrated coordinates of every divot.
type Phantom struct {
	ID           string
	GroundTruth  map[int]geom.Vec3
	CalibLabels  []int
	CentralDivot int
	Sequence     []int

	CalPts           map[int]geom.Vec3
	IsCalibrated     bool
	FirstCalibration bool

	// CalibrationsByLocation archives the calibrated divot map solved
	// at each working-volume location, for the session export.
	CalibrationsByLocation map[string]map[int]geom.Vec3

	CalibStarted *event.Hub[struct{}]
	Calibrated   *event.Hub[struct{}]
}

// New returns an uncalibrated phantom with no geometry loaded.
func New() *Phantom {
	p := &Phantom{
		ID:                     "XXXXXYY",
		CentralDivot:           1,
		FirstCalibration:       true,
		CalibrationsByLocation: make(map[string]map[int]geom.Vec3),
		CalibStarted:           event.NewHub[struct{}](),
		Calibrated:             event.NewHub[struct{}](),
	}
	p.ResetCalib()
	return p
}

// Validate checks the loaded geometry: at least 3 distinct reference
// labels, all labels present among the divots, a known central divot
// and a sequence drawn from the divot set.
func (p *Phantom) Validate() error {
	if len(p.GroundTruth) == 0 {
		return fmt.Errorf("phantom %s: no divots loaded", p.ID)
	}
	if len(p.CalibLabels) < 3 {
		return fmt.Errorf("phantom %s: need at least 3 referential labels, got %d", p.ID, len(p.CalibLabels))
	}
	seen := make(map[int]bool, len(p.CalibLabels))
	for _, l := range p.CalibLabels {
		if seen[l] {
			return fmt.Errorf("phantom %s: referential label %d repeated", p.ID, l)
		}
		seen[l] = true
		if _, ok := p.GroundTruth[l]; !ok {
			return fmt.Errorf("phantom %s: referential label %d not amongst given points", p.ID, l)
		}
	}
	for _, l := range p.Sequence {
		if _, ok := p.GroundTruth[l]; !ok {
			return fmt.Errorf("phantom %s: sequence label %d not amongst given points", p.ID, l)
		}
	}
	if _, ok := p.GroundTruth[p.CentralDivot]; !ok {
		return fmt.Errorf("phantom %s: central divot %d not amongst given points", p.ID, p.CentralDivot)
	}
	return nil
}

// ResetCalib discards the measured reference points and the calibrated
// state, ready for a fresh calibration.
func (p *Phantom) ResetCalib() {
	p.CalPts = make(map[int]geom.Vec3)
	p.IsCalibrated = false
}

// DivotPos returns the calibrated coordinates of a divot when
// calibrated, the raw geometric coordinates otherwise, and a NaN
// vector when no geometry is loaded.
func (p *Phantom) DivotPos(label int) geom.Vec3 {
	if p.IsCalibrated && p.GroundTruth != nil {
		return p.CalPts[label]
	}
	if p.GroundTruth != nil {
		return p.GroundTruth[label]
	}
	return geom.NaNVec()
}

// CheckConsistency verifies that a candidate measurement of label keeps
// all already-acquired reference points mutually consistent: for each,
// the measured inter-point distance must match the geometric one within
// ConsistencyTol. Failures are logged per pair; the point must then be
// re-acquired.
func (p *Phantom) CheckConsistency(label int, pos geom.Vec3) bool {
	valid := true
	for k, measured := range p.CalPts {
		theo := geom.Dist(p.GroundTruth[k], p.GroundTruth[label])
		got := geom.Dist(measured, pos)
		if err := math.Abs(theo - got); err > ConsistencyTol {
			log.Printf("invalid distance [%d, %d] (err = %.2f)", k, label, err)
			valid = false
		}
	}
	return valid
}

// RecordCalibrationPoint stores the measured position of a reference
// label. Labels outside the reference set are ignored.
func (p *Phantom) RecordCalibrationPoint(label int, pos geom.Vec3) {
	for _, l := range p.CalibLabels {
		if l == label {
			p.CalPts[label] = pos
			log.Printf("divot #%d calibrated at [%.2f %.2f %.2f]", label, pos[0], pos[1], pos[2])
			return
		}
	}
}

// CanBeCalibrated reports whether every reference label has been
// measured.
func (p *Phantom) CanBeCalibrated() bool {
	for _, l := range p.CalibLabels {
		if _, ok := p.CalPts[l]; !ok {
			return false
		}
	}
	return len(p.CalibLabels) > 0
}

// Calibrate solves the similarity transform mapping the geometric
// reference points onto their measured counterparts and applies it to
// every divot. With reference points still missing it does nothing and
// reports false.
func (p *Phantom) Calibrate() (bool, error) {
	if !p.CanBeCalibrated() {
		return false, nil
	}
	src := make([]geom.Vec3, len(p.CalibLabels))
	dst := make([]geom.Vec3, len(p.CalibLabels))
	for i, l := range p.CalibLabels {
		src[i] = p.GroundTruth[l]
		dst[i] = p.CalPts[l]
	}
	tr, err := geom.Register(src, dst, true)
	if err != nil {
		return false, fmt.Errorf("phantom calibration: %w", err)
	}
	for k, gt := range p.GroundTruth {
		p.CalPts[k] = tr.Apply(gt)
	}
	p.IsCalibrated = true
	log.Print("calibration done")
	p.Calibrated.Publish(struct{}{})
	return true, nil
}

// ArchiveCalibration snapshots the current calibrated divot map under
// the given location name.
func (p *Phantom) ArchiveCalibration(loc string) {
	snap := make(map[int]geom.Vec3, len(p.CalPts))
	for k, v := range p.CalPts {
		snap[k] = v
	}
	p.CalibrationsByLocation[loc] = snap
}

// Labels returns the divot labels in ascending order.
func (p *Phantom) Labels() []int {
	out := make([]int, 0, len(p.GroundTruth))
	for k := range p.GroundTruth {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
