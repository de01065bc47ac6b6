package session

import (
	"log"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/event"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/measure"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/phantom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/target"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

// State names the phase the session is in.
type State int

const (
	StateInit State = iota
	StateCalibrating
	StateGuidance
	StateRunningTest
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateCalibrating:
		return "calibrating"
	case StateGuidance:
		return "guidance"
	case StateRunningTest:
		return "running test"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// InitLocation is the null location before any placement succeeded.
const InitLocation = "INIT"

// Controller owns the session state machine. All methods must be
// called from the single goroutine that feeds poses and timer ticks;
// the hubs fan events out synchronously on that goroutine.
type Controller struct {
	Pointer *track.Pointer
	Phantom *phantom.Phantom
	WV      *wv.WorkingVolume

	Targets   *target.Detector[int]
	WVTargets *target.Detector[string]

	// Engine indexes follow the battery: single points are extreme
	// left, extreme right, normal; rotations are roll, pitch, yaw.
	SinglePoints [3]*measure.SinglePoint
	Rotations    [3]*measure.Rotation
	DistMeas     *measure.Dist

	Battery           *Battery
	RecalibAtLocation bool

	OperatorID string
	TrackerID  string
	StartTime  time.Time
	EndTime    time.Time

	CurLoc    string
	state     State
	locations []string

	calibObs [3]int
	testObs  [3]int
	wvObs    [2]int

	curSingle *measure.SinglePoint
	curRot    *measure.Rotation
	rotAxis   measure.Axis
	rotObs    [3]int
	rotHooked bool
	lastAngle float64
	lastPos   geom.Vec3

	TestNamesUpdated *event.Hub[[]string]
	GuidanceStarted  *event.Hub[struct{}]
	LocationFinished *event.Hub[string]
	TestStarted      *event.Hub[TestKind]
	TestFinished     *event.Hub[TestKind]
	SessionEnded     *event.Hub[struct{}]
}

// NewController wires the permanent pointer-to-target connections and
// creates all engines. Location targets are added with SetLocations
// before Start.
func NewController(ptr *track.Pointer, ph *phantom.Phantom, vol *wv.WorkingVolume) *Controller {
	c := &Controller{
		Pointer:           ptr,
		Phantom:           ph,
		WV:                vol,
		Targets:           target.NewDetector[int](),
		WVTargets:         target.NewDetector[string](),
		Battery:           NewBattery(),
		RecalibAtLocation: true,
		CurLoc:            InitLocation,
		DistMeas:          measure.NewDist(),
		TestNamesUpdated:  event.NewHub[[]string](),
		GuidanceStarted:   event.NewHub[struct{}](),
		LocationFinished:  event.NewHub[string](),
		TestStarted:       event.NewHub[TestKind](),
		TestFinished:      event.NewHub[TestKind](),
		SessionEnded:      event.NewHub[struct{}](),
	}
	c.SinglePoints[0] = measure.NewSinglePoint(measure.ExtremeLeft)
	c.SinglePoints[1] = measure.NewSinglePoint(measure.ExtremeRight)
	c.SinglePoints[2] = measure.NewSinglePoint(measure.Normal)
	c.Rotations[0] = measure.NewRotation(measure.Roll)
	c.Rotations[1] = measure.NewRotation(measure.Pitch)
	c.Rotations[2] = measure.NewRotation(measure.Yaw)

	// The pointer drives the divot detector for the whole session.
	ptr.Stopped.Subscribe(func(pos geom.Vec3) { c.Targets.Focus(pos) })
	ptr.AcquiProgress.Subscribe(func(p float64) { c.Targets.In(p) })
	ptr.AcquiFailed.Subscribe(func(struct{}) { c.Targets.Out() })
	ptr.AcquiDone.Subscribe(func(pos geom.Vec3) { c.Targets.DoneAt(pos) })
	ptr.AcquiDoneOut.Subscribe(func(struct{}) { c.Targets.DoneOut() })
	return c
}

// State returns the current phase.
func (c *Controller) State() State { return c.state }

// SetLocations installs the working-volume anchors to visit, in
// canonical order. The top location is lowered so the pointer stays
// inside the tracker's field of view when reaching for the phantom.
func (c *Controller) SetLocations(locs []string) {
	c.locations = append([]string(nil), locs...)
	c.WVTargets.RemoveAll()
	for _, loc := range locs {
		p, ok := c.WV.Locations[loc]
		if !ok {
			log.Printf("location %s not in working volume %s, skipped", loc, c.WV.ID)
			continue
		}
		if loc == "TL" && c.Pointer.Height > 0 {
			off := c.phantomHeight() + c.Pointer.Height
			p = p.Sub(c.WV.YawAxis.Scale(off))
		}
		c.WVTargets.Add(loc, p, true)
	}
}

// EnabledLocations returns the anchor locations installed with
// SetLocations, in their given order.
func (c *Controller) EnabledLocations() []string {
	return append([]string(nil), c.locations...)
}

// phantomHeight is the tallest divot above the phantom base plane.
func (c *Controller) phantomHeight() float64 {
	h := 0.0
	for _, p := range c.Phantom.GroundTruth {
		if p[2] > h {
			h = p[2]
		}
	}
	return h
}

// Start begins the session with the first phantom calibration.
func (c *Controller) Start() {
	c.StartTime = time.Now()
	c.TestNamesUpdated.Publish(c.Battery.Names())
	c.StartCalibration()
}

// UpdatePose feeds one tracker frame: the pointer-in-reference pose
// plus the raw tool and reference poses used for tilt monitoring and
// placement guidance.
func (c *Controller) UpdatePose(ptrRef geom.Mat34, ptrRot geom.Mat3, ref geom.Mat34, visible bool) {
	c.Pointer.UpdateToolPose(ptrRot, visible)
	if visible {
		c.Pointer.UpdateRelativePose(ptrRef)
	}
	c.WV.UpdatePose(ref)
}

// Tick forwards the 50 ms acquisition timer to the pointer.
func (c *Controller) Tick() { c.Pointer.Tick() }

// --------------------- calibration ---------------------

// StartCalibration begins (or restarts) divot calibration at the
// current location. Reference divots are presented in declaration
// order; each acquired point is gated by the inter-divot distance
// consistency check.
func (c *Controller) StartCalibration() {
	log.Print("calibration started")
	if c.Phantom.IsCalibrated || len(c.Phantom.CalPts) > 0 {
		c.Phantom.ResetCalib()
	}
	c.Pointer.StopTimer()
	c.Targets.RemoveAll()

	c.Targets.ProxiDetect = false
	// Only the first reference divot is shown so guidance starts there.
	for i, l := range c.Phantom.CalibLabels {
		c.Targets.Add(l, c.Phantom.DivotPos(l), i == 0)
	}

	c.calibObs[0] = c.Targets.TargetHit.Subscribe(func(h target.Hit[int]) {
		if c.Phantom.CheckConsistency(h.Label, h.Pos) {
			c.Pointer.StartAcquiring()
		}
	})
	c.calibObs[1] = c.Targets.TargetDone.Subscribe(func(d target.Done[int]) {
		c.Phantom.RecordCalibrationPoint(d.Label, d.Pos)
	})
	c.calibObs[2] = c.Targets.TargetDoneOut.Subscribe(func(l int) {
		c.Targets.Remove(l)
		if c.Phantom.CanBeCalibrated() {
			c.stopCalibration()
			c.finishCalibration()
		}
	})

	c.state = StateCalibrating
	c.Phantom.CalibStarted.Publish(struct{}{})
}

func (c *Controller) stopCalibration() {
	c.Targets.TargetHit.Unsubscribe(c.calibObs[0])
	c.Targets.TargetDone.Unsubscribe(c.calibObs[1])
	c.Targets.TargetDoneOut.Unsubscribe(c.calibObs[2])
}

// RestartCalibration throws the collected points away and starts over.
func (c *Controller) RestartCalibration() {
	c.stopCalibration()
	c.StartCalibration()
}

func (c *Controller) finishCalibration() {
	if _, err := c.Phantom.Calibrate(); err != nil {
		log.Printf("calibration failed: %v, restarting", err)
		c.StartCalibration()
		return
	}
	c.Phantom.ArchiveCalibration(c.CurLoc)
	// Track the central divot, not the marker origin, during placement.
	c.WV.Offset = c.Phantom.CalPts[c.Phantom.CentralDivot]

	if c.Phantom.FirstCalibration {
		for _, sp := range c.SinglePoints {
			sp.FullReset(c.Phantom.CalPts, c.Phantom.CentralDivot)
		}
		for _, r := range c.Rotations {
			r.FullReset()
		}
		c.DistMeas.FullReset(c.Phantom.CalPts, c.Phantom.Sequence)
		c.Phantom.FirstCalibration = false
		c.startGuidance()
		return
	}
	// A recalibration refreshes the ground truth without touching the
	// measurements already taken elsewhere.
	for _, sp := range c.SinglePoints {
		sp.SetGroundTruth(c.Phantom.CalPts)
	}
	c.DistMeas.SetGroundTruth(c.Phantom.CalPts)
	c.startCurrentTest()
}

// --------------------- placement guidance ---------------------

func (c *Controller) startGuidance() {
	if c.WVTargets.Len() == 0 {
		c.endSession()
		return
	}
	log.Print("starting working volume guidance")
	c.WV.Watch(true)
	c.WVTargets.ProxiDetect = true
	c.WVTargets.ProxiThresh = wv.PlacementThreshold
	c.wvObs[0] = c.WV.Stopped.Subscribe(func(pos geom.Vec3) { c.WVTargets.Focus(pos) })
	c.wvObs[1] = c.WVTargets.TargetHit.Subscribe(c.stopGuidance)
	c.state = StateGuidance
	c.GuidanceStarted.Publish(struct{}{})
}

func (c *Controller) stopGuidance(h target.Hit[string]) {
	c.CurLoc = h.Label
	log.Printf("phantom placed for location %s at %v", c.CurLoc, h.Pos)

	c.WV.Watch(false)
	c.WV.Stopped.Unsubscribe(c.wvObs[0])
	c.WVTargets.ProxiDetect = false
	c.WVTargets.TargetHit.Unsubscribe(c.wvObs[1])

	c.Pointer.SetMovingTolerance(c.WV.MovingToleranceAtDepth(h.Pos.Norm()))

	c.initTests(c.CurLoc)
	c.WVTargets.Remove(c.CurLoc)

	switch {
	case c.Battery.Empty():
		c.LocationFinished.Publish(c.CurLoc)
		c.startGuidance()
	case c.RecalibAtLocation:
		c.StartCalibration()
	default:
		c.startCurrentTest()
	}
}

// --------------------- battery control ---------------------

func (c *Controller) initTests(loc string) {
	c.Battery.InitLocation()
	for _, sp := range c.SinglePoints {
		sp.Reset(loc)
	}
	for _, r := range c.Rotations {
		r.Reset(loc)
	}
	c.DistMeas.Reset(loc)
}

func (c *Controller) startCurrentTest() {
	k, ok := c.Battery.Current()
	if !ok {
		c.LocationFinished.Publish(c.CurLoc)
		c.startGuidance()
		return
	}
	c.state = StateRunningTest
	c.TestStarted.Publish(k)
	switch k {
	case SingleLeft:
		c.startSingleTest(0)
	case SingleRight:
		c.startSingleTest(1)
	case Single:
		c.startSingleTest(2)
	case TestRoll:
		c.startRotationTest(0)
	case TestPitch:
		c.startRotationTest(1)
	case TestYaw:
		c.startRotationTest(2)
	case TestDist:
		c.startDistTest()
	}
}

func (c *Controller) startNextTest() {
	if k, ok := c.Battery.Current(); ok {
		c.TestFinished.Publish(k)
	}
	c.Battery.Pop()
	c.startCurrentTest()
}

// StopCurrentTest tears the running test down without advancing.
func (c *Controller) StopCurrentTest() {
	k, ok := c.Battery.Current()
	if c.state != StateRunningTest || !ok {
		return
	}
	switch k {
	case SingleLeft, SingleRight, Single:
		c.stopSingleTest()
	case TestRoll, TestPitch, TestYaw:
		c.stopRotationTest()
	case TestDist:
		c.stopDistTest()
	}
}

// SkipTest abandons the running test and moves on. The skipped test
// leaves no stats, which the report renders as a skipped cell.
func (c *Controller) SkipTest() {
	if c.state != StateRunningTest {
		return
	}
	c.StopCurrentTest()
	c.startNextTest()
}

// ResetStep restarts whatever step is in progress, keeping everything
// already finished.
func (c *Controller) ResetStep() {
	switch c.state {
	case StateCalibrating:
		log.Print("restarting calibration step")
		c.RestartCalibration()
	case StateRunningTest:
		log.Print("restarting current test")
		c.StopCurrentTest()
		c.startCurrentTest()
	}
}

// --------------------- single point test ---------------------

func (c *Controller) startSingleTest(i int) {
	c.curSingle = c.SinglePoints[i]
	log.Printf("***** [%s] %s single point test start *****", c.CurLoc, c.curSingle.Orientation)
	c.curSingle.Reset(c.CurLoc)

	c.Targets.ProxiDetect = true
	c.testObs[0] = c.Targets.TargetHit.Subscribe(func(target.Hit[int]) { c.Pointer.StartAcquiring() })
	c.testObs[1] = c.Targets.TargetDone.Subscribe(func(d target.Done[int]) {
		if d.Label == c.Phantom.CentralDivot {
			c.curSingle.Record(d.Pos)
		}
	})
	c.testObs[2] = c.Targets.TargetDoneOut.Subscribe(func(int) {
		c.Targets.Remove(c.curSingle.Divot)
		c.singleNext()
	})
	c.singleNext()
}

func (c *Controller) singleNext() {
	if !c.curSingle.Done() {
		c.Targets.Add(c.curSingle.Divot, c.Phantom.DivotPos(c.curSingle.Divot), true)
		return
	}
	log.Printf("----- [%s] single point test finished -----", c.CurLoc)
	c.stopSingleTest()
	c.startNextTest()
}

func (c *Controller) stopSingleTest() {
	c.Targets.ProxiDetect = false
	c.Targets.RemoveAll()
	c.Targets.TargetHit.Unsubscribe(c.testObs[0])
	c.Targets.TargetDone.Unsubscribe(c.testObs[1])
	c.Targets.TargetDoneOut.Unsubscribe(c.testObs[2])
}

// --------------------- rotation tests ---------------------

func (c *Controller) startRotationTest(i int) {
	c.curRot = c.Rotations[i]
	c.rotAxis = c.curRot.Axis
	log.Printf("***** [%s] %s rotation test start *****", c.CurLoc, c.rotAxis)
	c.curRot.Reset(c.CurLoc)
	// Deviations are measured from the best estimate of the divot
	// position: the normal single point run if it happened, else the
	// calibrated central divot.
	if avg := c.SinglePoints[2].AvgPos; avg != nil {
		c.curRot.SetBasePos(*avg)
	} else if c.Phantom.IsCalibrated {
		c.curRot.SetBasePos(c.Phantom.CalPts[c.Phantom.CentralDivot])
	} else {
		c.curRot.ClearBasePos()
	}

	c.Targets.ProxiDetect = true
	c.testObs[0] = c.Targets.TargetHit.Subscribe(func(target.Hit[int]) { c.hookRotation() })
	c.testObs[1] = c.Targets.TargetOut.Subscribe(func(int) { c.unhookRotation() })
	div := c.SinglePoints[0].Divot
	c.Targets.Add(div, c.Phantom.DivotPos(div), true)
}

// hookRotation arms the pointer for in-divot rotation: position is
// pinned to the divot and angle samples stream in.
func (c *Controller) hookRotation() {
	if c.rotHooked {
		return
	}
	c.rotHooked = true
	c.Pointer.SetStaticConstraint(true)
	c.Pointer.SetEmitAngles(true)
	c.rotObs[0] = c.Pointer.AnglesChanged.Subscribe(c.onRotationAngles)
	c.rotObs[1] = c.Pointer.TrackingStarted.Subscribe(func(struct{}) {
		if !c.curRot.Acquiring() {
			c.curRot.Start(c.lastAngle, c.lastPos)
		}
	})
	c.rotObs[2] = c.Pointer.TrackingStopped.Subscribe(func(struct{}) {
		if c.curRot.StopOnTrackingLoss() {
			log.Print("rotation acquisition stopped")
			c.finishRotationTest()
		}
	})
}

func (c *Controller) unhookRotation() {
	if !c.rotHooked {
		return
	}
	c.rotHooked = false
	c.Pointer.SetStaticConstraint(false)
	c.Pointer.SetEmitAngles(false)
	c.Pointer.AnglesChanged.Unsubscribe(c.rotObs[0])
	c.Pointer.TrackingStarted.Unsubscribe(c.rotObs[1])
	c.Pointer.TrackingStopped.Unsubscribe(c.rotObs[2])
}

func (c *Controller) onRotationAngles(s track.AngleSample) {
	switch c.rotAxis {
	case measure.Roll:
		c.lastAngle = s.Roll
	case measure.Pitch:
		c.lastAngle = s.Pitch
	case measure.Yaw:
		c.lastAngle = s.Yaw
	}
	c.lastPos = s.Pos
	c.curRot.Record(c.lastAngle, c.lastPos)
}

func (c *Controller) stopRotationTest() {
	c.unhookRotation()
	c.Targets.ProxiDetect = false
	c.Targets.RemoveAll()
	c.Targets.TargetHit.Unsubscribe(c.testObs[0])
	c.Targets.TargetOut.Unsubscribe(c.testObs[1])
	c.curRot.UpdateStats()
}

func (c *Controller) finishRotationTest() {
	log.Printf("----- [%s] %s rotation test finished -----", c.CurLoc, c.rotAxis)
	c.stopRotationTest()
	c.startNextTest()
}

// --------------------- multi-point test ---------------------

func (c *Controller) startDistTest() {
	log.Printf("***** [%s] multi-point test start *****", c.CurLoc)
	c.DistMeas.Reset(c.CurLoc)

	c.Targets.ProxiDetect = true
	c.testObs[0] = c.Targets.TargetHit.Subscribe(func(target.Hit[int]) { c.Pointer.StartAcquiring() })
	c.testObs[1] = c.Targets.TargetDone.Subscribe(func(d target.Done[int]) {
		if d.Label == c.DistMeas.CurLbl {
			c.DistMeas.Record(d.Label, d.Pos)
		}
	})
	c.testObs[2] = c.Targets.TargetDoneOut.Subscribe(func(l int) {
		c.Targets.Remove(l)
		c.distNext()
	})
	c.distNext()
}

func (c *Controller) distNext() {
	if !c.DistMeas.Done() {
		c.Targets.Add(c.DistMeas.CurLbl, c.Phantom.DivotPos(c.DistMeas.CurLbl), true)
		return
	}
	log.Printf("----- [%s] multi-point test finished -----", c.CurLoc)
	c.stopDistTest()
	c.startNextTest()
}

func (c *Controller) stopDistTest() {
	c.Targets.ProxiDetect = false
	c.Targets.RemoveAll()
	c.Targets.TargetHit.Unsubscribe(c.testObs[0])
	c.Targets.TargetDone.Unsubscribe(c.testObs[1])
	c.Targets.TargetDoneOut.Unsubscribe(c.testObs[2])
}

// --------------------- session end ---------------------

func (c *Controller) endSession() {
	log.Print("====== all done ======")
	c.state = StateEnded
	c.EndTime = time.Now()
	c.SessionEnded.Publish(struct{}{})
}

// Duration is the wall time from Start to session end (or now, while
// the session runs).
func (c *Controller) Duration() time.Duration {
	if c.state == StateEnded {
		return c.EndTime.Sub(c.StartTime)
	}
	return time.Since(c.StartTime)
}
