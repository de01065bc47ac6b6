package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/phantom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/session"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

func optionsController() *session.Controller {
	p := phantom.New()
	p.GroundTruth = map[int]geom.Vec3{1: {0, 0, 0}, 2: {100, 0, 0}, 3: {0, 100, 0}}
	p.CalibLabels = []int{1, 2, 3}
	p.Sequence = []int{1, 2, 3}
	v := wv.New()
	v.Locations["CL"] = geom.Vec3{0, 0, -1500}
	v.Locations["BL"] = geom.Vec3{0, 280, -1406}
	return session.NewController(track.NewPointer(), p, v)
}

func TestLoadOptionsAndApply(t *testing.T) {
	content := `{
  "operator": "jdoe",
  "tracker_id": "SN1234",
  "acquisition_mode": "median",
  "acquisition_duration": "3s",
  "num_frames": 15,
  "recalib_at_location": false,
  "tests": ["single", "dist"],
  "locations": ["CL"]
}`
	path := writeFile(t, "options.json", content)
	o, err := LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	c := optionsController()
	if err := o.Apply(c); err != nil {
		t.Fatal(err)
	}
	if c.OperatorID != "jdoe" || c.TrackerID != "SN1234" {
		t.Errorf("ids = %q %q", c.OperatorID, c.TrackerID)
	}
	if c.Pointer.Mode != track.MedianOfN || c.Pointer.NumFrames != 15 {
		t.Errorf("mode = %v, frames = %d", c.Pointer.Mode, c.Pointer.NumFrames)
	}
	if c.Pointer.TimerDuration != 3*time.Second {
		t.Errorf("duration = %v", c.Pointer.TimerDuration)
	}
	if c.RecalibAtLocation {
		t.Error("recalib still enabled")
	}
	if got, want := c.Battery.Names(), []string{"single", "dist"}; !reflect.DeepEqual(got, want) {
		t.Errorf("tests = %v, want %v", got, want)
	}
	if c.WVTargets.Len() != 1 {
		t.Errorf("location targets = %d, want 1", c.WVTargets.Len())
	}
}

func TestApplyDefaultsKeepEverything(t *testing.T) {
	c := optionsController()
	var o Options
	if err := o.Apply(c); err != nil {
		t.Fatal(err)
	}
	if got := len(c.Battery.Names()); got != 7 {
		t.Errorf("enabled tests = %d, want 7", got)
	}
	// Both volume locations become targets.
	if c.WVTargets.Len() != 2 {
		t.Errorf("location targets = %d, want 2", c.WVTargets.Len())
	}
}

func TestApplyRejectsUnknowns(t *testing.T) {
	tests := []struct {
		name string
		o    Options
	}{
		{"bad mode", Options{AcquisitionMode: strPtr("fastest")}},
		{"bad test", Options{Tests: []string{"warp"}}},
		{"bad location", Options{Locations: []string{"ZZ"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.o.Apply(optionsController()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func strPtr(s string) *string { return &s }
