package track

import (
	"log"
	"math"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/event"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// AcquisitionMode selects how a single point is extracted from the
// frames accumulated while the pointer holds still.
type AcquisitionMode int

const (
	// SingleFrame holds for a fixed duration and keeps the middle
	// accumulated frame.
	SingleFrame AcquisitionMode = iota
	// MeanOfN averages a fixed number of frames.
	MeanOfN
	// MedianOfN takes the component-wise median of a fixed number of
	// frames.
	MedianOfN
)

func (m AcquisitionMode) String() string {
	switch m {
	case SingleFrame:
		return "1-frame"
	case MeanOfN:
		return "mean"
	case MedianOfN:
		return "median"
	}
	return "unknown"
}

// TickInterval is the cadence of the single-frame acquisition timer.
const TickInterval = 50 * time.Millisecond

// AngleSample carries the pointer orientation in the standardized frame
// together with its current position.
type AngleSample struct {
	Roll, Pitch, Yaw float64
	Pos              geom.Vec3
}

// Pointer models the tracked probe. Two independent pose inputs drive
// it: UpdateToolPose carries the visibility status and the raw
// orientation relative to the tracker, UpdateRelativePose the position
// relative to the phantom reference. State changes surface as events;
// handlers run synchronously on the caller's goroutine.
type Pointer struct {
	ID            string
	PQ            *PositionQueue
	MovingTol     float64
	Mode          AcquisitionMode
	NumFrames     int
	TimerDuration time.Duration
	MaxTilt       float64
	Height        float64
	MonitorTilt   bool

	tracking         bool
	moving           bool
	staticConstraint bool
	acquiring        bool
	acquiDone        bool
	emitAngles       bool

	accumulator []geom.Vec3
	ticks       int
	maxTicks    int
	timerActive bool

	trkRot  geom.Mat3
	ptrRot  geom.Mat3
	stdMat  geom.Mat3
	relPose geom.Mat34

	TrackingStarted *event.Hub[struct{}]
	TrackingStopped *event.Hub[struct{}]
	Moved           *event.Hub[struct{}]
	Stopped         *event.Hub[geom.Vec3]
	MovingTolChange *event.Hub[float64]
	AcquiProgress   *event.Hub[float64]
	AcquiFailed     *event.Hub[struct{}]
	AcquiDone       *event.Hub[geom.Vec3]
	AcquiDoneOut    *event.Hub[struct{}]
	AnglesChanged   *event.Hub[AngleSample]
}

// NewPointer returns a pointer with the usual defaults: a 20-slot
// motion window, 0.5 mm moving tolerance, mean acquisition over 30
// frames and a 60 degree tilt limit.
func NewPointer() *Pointer {
	return &Pointer{
		ID:            "XXXXX",
		PQ:            NewPositionQueue(DefaultQueueSize),
		MovingTol:     0.5,
		Mode:          SingleFrame,
		NumFrames:     30,
		MaxTilt:       60,
		MonitorTilt:   true,
		trkRot:        geom.AxesMatrix(geom.Vec3{0, 0, 1}, geom.Vec3{0, -1, 0}),
		ptrRot:        geom.AxesMatrix(geom.Vec3{0, 0, -1}, geom.Vec3{0, 1, 0}),
		stdMat:        geom.Identity3(),
		relPose:       geom.Mat34{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}},

		TrackingStarted: event.NewHub[struct{}](),
		TrackingStopped: event.NewHub[struct{}](),
		Moved:           event.NewHub[struct{}](),
		Stopped:         event.NewHub[geom.Vec3](),
		MovingTolChange: event.NewHub[float64](),
		AcquiProgress:   event.NewHub[float64](),
		AcquiFailed:     event.NewHub[struct{}](),
		AcquiDone:       event.NewHub[geom.Vec3](),
		AcquiDoneOut:    event.NewHub[struct{}](),
		AnglesChanged:   event.NewHub[AngleSample](),
	}
}

// SetMovingTolerance updates the motion threshold and notifies
// observers.
func (p *Pointer) SetMovingTolerance(v float64) {
	p.MovingTol = v
	p.MovingTolChange.Publish(v)
}

// SetTrackerAxes installs the tracker-frame standard roll and yaw axes.
func (p *Pointer) SetTrackerAxes(roll, yaw geom.Vec3) {
	p.trkRot = geom.AxesMatrix(roll, yaw)
}

// SetPointerAxes installs the pointer-frame standard roll and yaw axes.
func (p *Pointer) SetPointerAxes(roll, yaw geom.Vec3) {
	p.ptrRot = geom.AxesMatrix(roll, yaw)
}

// SetEmitAngles toggles per-frame angle emission.
func (p *Pointer) SetEmitAngles(on bool) { p.emitAngles = on }

// SetStaticConstraint arms or disarms the hold-still requirement
// outside of an acquisition, as the rotation tests do.
func (p *Pointer) SetStaticConstraint(on bool) { p.staticConstraint = on }

// Tracking reports the current visibility state.
func (p *Pointer) Tracking() bool { return p.tracking }

// Moving reports the current motion state.
func (p *Pointer) Moving() bool { return p.moving }

// Acquiring reports whether a point acquisition is in flight.
func (p *Pointer) Acquiring() bool { return p.acquiring }

// Pos returns the current position relative to the phantom reference.
func (p *Pointer) Pos() geom.Vec3 {
	return p.relPose.Translation()
}

// Angles returns the pointer orientation in the standardized frame as
// roll, pitch, yaw degrees.
func (p *Pointer) Angles() (roll, pitch, yaw float64) {
	return geom.EulerAngles(p.stdMat)
}

// Tilt returns the angle in degrees between the pointer roll axis and
// the standard roll axis. Advisory only.
func (p *Pointer) Tilt() float64 {
	c := p.stdMat[0][0]
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180 / math.Pi
}

// UpdateToolPose processes a pointer-to-tracker update. Visibility
// drives the tracking state; the rotation feeds the standardized
// orientation matrix.
func (p *Pointer) UpdateToolPose(rot geom.Mat3, visible bool) {
	if !visible {
		if p.tracking {
			p.tracking = false
			p.TrackingStopped.Publish(struct{}{})
		}
		return
	}
	if !p.tracking {
		p.tracking = true
		p.TrackingStarted.Publish(struct{}{})
	}
	p.stdMat = p.trkRot.Mul(rot).Mul(p.ptrRot.Transpose())
}

// UpdateRelativePose processes a pointer-to-reference update: push the
// position, reclassify moving/static and advance any acquisition.
// Updates while tracking is lost are dropped, freezing all motion
// judgement until tracking resumes.
func (p *Pointer) UpdateRelativePose(pose geom.Mat34) {
	if !p.tracking {
		return
	}
	p.relPose = pose
	if p.emitAngles {
		roll, pitch, yaw := p.Angles()
		p.AnglesChanged.Publish(AngleSample{Roll: roll, Pitch: pitch, Yaw: yaw, Pos: p.Pos()})
	}
	p.PQ.Push(p.Pos())

	if p.PQ.Stride() > p.MovingTol {
		if !p.moving {
			p.moving = true
			p.Moved.Publish(struct{}{})
			if p.staticConstraint {
				if p.acquiDone {
					p.acquiDone = false
					p.staticConstraint = false
					p.AcquiDoneOut.Publish(struct{}{})
				} else {
					if p.acquiring {
						p.acquiring = false
						p.accumulator = p.accumulator[:0]
						p.timerActive = false
					}
					p.AcquiFailed.Publish(struct{}{})
				}
			}
		}
		return
	}

	if p.moving {
		p.moving = false
		p.Stopped.Publish(p.PQ.Oldest())
	}
	if !p.acquiring {
		return
	}
	p.accumulator = append(p.accumulator, p.PQ.Oldest())
	if p.Mode == SingleFrame {
		return // completion is driven by Tick
	}
	prog := math.Min(float64(len(p.accumulator))/float64(p.NumFrames), 1.0)
	p.AcquiProgress.Publish(prog)
	if len(p.accumulator) == p.NumFrames {
		p.acquiring = false
		p.acquiDone = true
		var pt geom.Vec3
		if p.Mode == MeanOfN {
			pt = geom.Mean(p.accumulator)
		} else {
			pt = geom.Median(p.accumulator)
		}
		p.accumulator = p.accumulator[:0]
		p.AcquiDone.Publish(pt)
	}
}

// StartAcquiring begins a point acquisition. Ignored while the pointer
// is moving.
func (p *Pointer) StartAcquiring() {
	if p.moving {
		return
	}
	p.staticConstraint = true
	p.acquiring = true
	p.accumulator = p.accumulator[:0]
	if p.Mode == SingleFrame {
		p.maxTicks = int(p.TimerDuration/TickInterval) + 1
		p.ticks = 0
		p.timerActive = true
		log.Printf("timer started for %d ticks", p.maxTicks)
	}
}

// StopTimer cancels a pending single-frame countdown, used when a step
// restart interrupts an acquisition.
func (p *Pointer) StopTimer() { p.timerActive = false }

// Tick advances the single-frame acquisition countdown. The run loop
// calls it every TickInterval; completion takes the middle accumulated
// frame.
func (p *Pointer) Tick() {
	if p.moving || !p.timerActive {
		return
	}
	p.ticks++
	prog := math.Min(float64(p.ticks)/float64(p.maxTicks), 1.0)
	p.AcquiProgress.Publish(prog)
	if prog < 1 {
		return
	}
	p.timerActive = false
	if len(p.accumulator) == 0 {
		// tracking never delivered a static frame during the hold
		p.acquiring = false
		p.AcquiFailed.Publish(struct{}{})
		return
	}
	pt := p.accumulator[len(p.accumulator)/2]
	p.acquiring = false
	p.acquiDone = true
	p.AcquiDone.Publish(pt)
}
