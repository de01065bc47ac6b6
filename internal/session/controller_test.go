package session

import (
	"testing"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/phantom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

func testPhantom() *phantom.Phantom {
	p := phantom.New()
	p.GroundTruth = map[int]geom.Vec3{
		1: {0, 0, 0},
		2: {100, 0, 0},
		3: {0, 100, 0},
		4: {0, 0, 100},
		5: {50, 50, 0},
	}
	p.CalibLabels = []int{2, 3, 4}
	p.CentralDivot = 1
	p.Sequence = []int{1, 2}
	return p
}

func testVolume() *wv.WorkingVolume {
	v := wv.New()
	v.Locations["CL"] = geom.Vec3{0, 0, -1000}
	v.YawAxis = geom.Vec3{0, -1, 0}
	v.TolMin = wv.ToleranceBreakpoint{Tol: 0.5, Depth: 1000}
	v.TolMax = wv.ToleranceBreakpoint{Tol: 2.0, Depth: 2500}
	return v
}

func newTestController() *Controller {
	c := NewController(track.NewPointer(), testPhantom(), testVolume())
	c.SetLocations([]string{"CL"})
	for _, k := range TestOrder {
		c.Battery.SetEnabled(k, false)
	}
	c.Battery.SetEnabled(SingleLeft, true)
	c.Battery.SetEnabled(TestYaw, true)
	c.Battery.SetEnabled(TestDist, true)
	for _, sp := range c.SinglePoints {
		sp.AcquiNumMax = 2
	}
	return c
}

// calibrate walks the reference divots exactly at ground truth, so the
// calibration transform is identity.
func calibrate(c *Controller) {
	for _, l := range c.Phantom.CalibLabels {
		pos := c.Phantom.GroundTruth[l]
		c.Targets.Focus(pos)
		c.Targets.DoneAt(pos)
		c.Targets.DoneOut()
	}
}

// acquire simulates one complete point acquisition on the visible
// target at pos.
func acquire(c *Controller, pos geom.Vec3) {
	c.Targets.Focus(pos)
	c.Targets.DoneAt(pos)
	c.Targets.DoneOut()
}

func TestSessionEndToEnd(t *testing.T) {
	c := newTestController()

	var names []string
	c.TestNamesUpdated.Subscribe(func(n []string) { names = n })
	var started, finished []TestKind
	c.TestStarted.Subscribe(func(k TestKind) { started = append(started, k) })
	c.TestFinished.Subscribe(func(k TestKind) { finished = append(finished, k) })
	var finishedLocs []string
	c.LocationFinished.Subscribe(func(l string) { finishedLocs = append(finishedLocs, l) })
	ended := false
	c.SessionEnded.Subscribe(func(struct{}) { ended = true })

	c.Start()
	if c.State() != StateCalibrating {
		t.Fatalf("state after Start = %v, want calibrating", c.State())
	}
	if len(names) != 3 || names[0] != "singleL" || names[1] != "yaw" || names[2] != "dist" {
		t.Fatalf("test names = %v", names)
	}

	// First calibration leads to placement guidance.
	calibrate(c)
	if !c.Phantom.IsCalibrated {
		t.Fatal("phantom not calibrated")
	}
	if c.State() != StateGuidance {
		t.Fatalf("state after first calibration = %v, want guidance", c.State())
	}

	// The reference body settles on the CL anchor; with recalibration
	// at each location enabled, calibration restarts there.
	c.WV.Stopped.Publish(geom.Vec3{0, 0, -1000})
	if c.CurLoc != "CL" {
		t.Fatalf("CurLoc = %q, want CL", c.CurLoc)
	}
	if c.State() != StateCalibrating {
		t.Fatalf("state after placement = %v, want calibrating", c.State())
	}
	if got := c.Pointer.MovingTol; got <= 0 {
		t.Fatalf("moving tolerance not set, got %v", got)
	}

	calibrate(c)
	if c.State() != StateRunningTest {
		t.Fatalf("state after recalibration = %v, want running test", c.State())
	}
	if len(started) != 1 || started[0] != SingleLeft {
		t.Fatalf("started = %v, want [SingleLeft]", started)
	}

	// Single point test: two acquisitions of the central divot.
	central := c.Phantom.GroundTruth[1]
	acquire(c, central)
	acquire(c, central)
	if len(finished) != 1 || finished[0] != SingleLeft {
		t.Fatalf("finished = %v, want [SingleLeft]", finished)
	}
	acc, ok := c.SinglePoints[0].Accuracy["CL"]
	if !ok || acc.Num != 2 {
		t.Fatalf("single point accuracy = %+v", acc)
	}

	// Yaw rotation test: park in the divot, then sweep downward from
	// +20 degrees until tracking drops.
	if len(started) != 2 || started[1] != TestYaw {
		t.Fatalf("started = %v, want yaw second", started)
	}
	c.Targets.Focus(central)
	c.Pointer.AnglesChanged.Publish(track.AngleSample{Yaw: 20, Pos: central})
	c.Pointer.TrackingStarted.Publish(struct{}{})
	for a := 17.0; a >= -4; a -= 3 {
		c.Pointer.AnglesChanged.Publish(track.AngleSample{Yaw: a, Pos: central})
	}
	c.Pointer.TrackingStopped.Publish(struct{}{})
	if len(finished) != 2 || finished[1] != TestYaw {
		t.Fatalf("finished = %v, want yaw second", finished)
	}
	rot := c.Rotations[2].Stats["CL"]
	if rot.Num != 9 {
		t.Fatalf("rotation samples = %d, want 9", rot.Num)
	}
	if !(rot.RangeMin == -4 && rot.RangeMax == 20) {
		t.Fatalf("rotation range = [%v, %v]", rot.RangeMin, rot.RangeMax)
	}

	// Multi-point test over the two-divot sequence.
	if len(started) != 3 || started[2] != TestDist {
		t.Fatalf("started = %v, want dist third", started)
	}
	acquire(c, c.Phantom.GroundTruth[1])
	acquire(c, c.Phantom.GroundTruth[2])
	ds := c.DistMeas.DistStats["CL"]
	if ds.Num != 1 || ds.Max > 1e-9 {
		t.Fatalf("distance stats = %+v", ds)
	}

	// The only location is done, so the session ends.
	if len(finishedLocs) != 1 || finishedLocs[0] != "CL" {
		t.Fatalf("finished locations = %v", finishedLocs)
	}
	if !ended || c.State() != StateEnded {
		t.Fatalf("session not ended, state = %v", c.State())
	}
	if c.Duration() < 0 {
		t.Fatal("negative duration")
	}
}

func TestResetStepRestartsCalibration(t *testing.T) {
	c := newTestController()
	c.Start()

	// Acquire one reference divot, then reset the step.
	l := c.Phantom.CalibLabels[0]
	pos := c.Phantom.GroundTruth[l]
	c.Targets.Focus(pos)
	c.Targets.DoneAt(pos)
	c.Targets.DoneOut()
	if len(c.Phantom.CalPts) != 1 {
		t.Fatalf("calibration points = %d, want 1", len(c.Phantom.CalPts))
	}
	c.ResetStep()
	if len(c.Phantom.CalPts) != 0 {
		t.Fatal("reset did not clear calibration points")
	}
	if c.State() != StateCalibrating {
		t.Fatalf("state = %v, want calibrating", c.State())
	}
	// The full walk still calibrates.
	calibrate(c)
	if !c.Phantom.IsCalibrated {
		t.Fatal("phantom not calibrated after reset and rewalk")
	}
}

func TestCalibrationShowsFirstReference(t *testing.T) {
	c := newTestController()
	c.Start()

	labels := c.Phantom.CalibLabels
	if !c.Targets.Visible(labels[0]) {
		t.Fatalf("reference %d not visible at calibration start", labels[0])
	}
	for _, l := range labels[1:] {
		if c.Targets.Visible(l) {
			t.Fatalf("reference %d visible before its turn", l)
		}
	}
}

func TestSkipTestAdvancesBattery(t *testing.T) {
	c := newTestController()
	c.RecalibAtLocation = false
	c.Start()
	calibrate(c)
	c.WV.Stopped.Publish(geom.Vec3{0, 0, -1000})

	if k, _ := c.Battery.Current(); k != SingleLeft {
		t.Fatalf("current test = %v, want SingleLeft", k)
	}
	c.SkipTest()
	if k, _ := c.Battery.Current(); k != TestYaw {
		t.Fatalf("current test after skip = %v, want TestYaw", k)
	}
	// No stats recorded for the skipped test.
	if _, ok := c.SinglePoints[0].Accuracy["CL"]; ok {
		t.Fatal("skipped test left stats behind")
	}
	c.SkipTest()
	c.SkipTest()
	if c.State() != StateEnded {
		t.Fatalf("state after skipping everything = %v, want ended", c.State())
	}
}

func TestDisabledLocationNeverVisited(t *testing.T) {
	c := newTestController()
	c.SetLocations(nil)
	c.RecalibAtLocation = false
	c.Start()
	calibrate(c)
	// No anchors to visit: guidance ends the session immediately.
	if c.State() != StateEnded {
		t.Fatalf("state = %v, want ended", c.State())
	}
}

func TestRotationBaseFallsBackToCalibratedDivot(t *testing.T) {
	c := newTestController()
	c.RecalibAtLocation = false
	c.Battery.SetEnabled(SingleLeft, false)
	c.Battery.SetEnabled(TestDist, false)
	c.Start()
	calibrate(c)
	c.WV.Stopped.Publish(geom.Vec3{0, 0, -1000})

	// No single point run happened, so the rotation base must come
	// from the calibrated central divot.
	if c.SinglePoints[2].AvgPos != nil {
		t.Fatal("unexpected single point average")
	}
	if k, _ := c.Battery.Current(); k != TestYaw {
		t.Fatalf("current test = %v, want TestYaw", k)
	}
	central := c.Phantom.GroundTruth[1]
	c.Targets.Focus(central)
	c.Pointer.AnglesChanged.Publish(track.AngleSample{Yaw: -20, Pos: central.Add(geom.Vec3{2, 0, 0})})
	c.Pointer.TrackingStarted.Publish(struct{}{})
	for a := -17.0; a <= 4; a += 3 {
		c.Pointer.AnglesChanged.Publish(track.AngleSample{Yaw: a, Pos: central.Add(geom.Vec3{2, 0, 0})})
	}
	c.Pointer.TrackingStopped.Publish(struct{}{})

	rot := c.Rotations[2].Stats["CL"]
	if rot.Num != 9 {
		t.Fatalf("rotation samples = %d, want 9", rot.Num)
	}
	// Every sample sits 2 mm from the calibrated divot.
	if !(rot.RMS > 1.999 && rot.RMS < 2.001) {
		t.Fatalf("rotation RMS = %v, want 2", rot.RMS)
	}
}
