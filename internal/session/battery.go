// Package session drives a test session end to end: phantom
// calibration, working-volume placement guidance and the ordered test
// battery at each location, down to the final report handoff.
package session

// TestKind identifies one test of the battery.
type TestKind int

const (
	SingleLeft TestKind = iota
	SingleRight
	Single
	TestYaw
	TestPitch
	TestRoll
	TestDist
)

func (k TestKind) String() string {
	switch k {
	case SingleLeft:
		return "singleL"
	case SingleRight:
		return "singleR"
	case Single:
		return "single"
	case TestYaw:
		return "yaw"
	case TestPitch:
		return "pitch"
	case TestRoll:
		return "roll"
	case TestDist:
		return "dist"
	}
	return "unknown"
}

// TestOrder is the fixed execution order of the battery.
var TestOrder = []TestKind{SingleLeft, SingleRight, Single, TestYaw, TestPitch, TestRoll, TestDist}

// Battery tracks which tests are enabled and which remain to do at the
// current location.
type Battery struct {
	enabled map[TestKind]bool
	toDo    []TestKind
}

// NewBattery returns a battery with every test enabled.
func NewBattery() *Battery {
	b := &Battery{enabled: make(map[TestKind]bool)}
	for _, k := range TestOrder {
		b.enabled[k] = true
	}
	return b
}

// SetEnabled switches a test on or off for subsequent locations.
func (b *Battery) SetEnabled(k TestKind, on bool) { b.enabled[k] = on }

// Enabled reports whether a test is part of the battery.
func (b *Battery) Enabled(k TestKind) bool { return b.enabled[k] }

// Names returns the enabled test names in execution order.
func (b *Battery) Names() []string {
	var names []string
	for _, k := range TestOrder {
		if b.enabled[k] {
			names = append(names, k.String())
		}
	}
	return names
}

// InitLocation rebuilds the todo list from the enabled set.
func (b *Battery) InitLocation() {
	b.toDo = b.toDo[:0]
	for _, k := range TestOrder {
		if b.enabled[k] {
			b.toDo = append(b.toDo, k)
		}
	}
}

// Current returns the test at the front of the todo list.
func (b *Battery) Current() (TestKind, bool) {
	if len(b.toDo) == 0 {
		return 0, false
	}
	return b.toDo[0], true
}

// Pop removes the front test.
func (b *Battery) Pop() {
	if len(b.toDo) > 0 {
		b.toDo = b.toDo[1:]
	}
}

// Empty reports whether the location's battery is exhausted.
func (b *Battery) Empty() bool { return len(b.toDo) == 0 }
