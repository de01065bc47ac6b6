package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/phantom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const goodGroundTruth = `REF = 2 3 4
CTR = 1
SEQ = 1 2 3 4 5

POINT 1
X 0.0
Y 0.0
Z 0.0
POINT 2
X 100.0
Y 0.0
Z 0.0
POINT 3
X 0.0
Y 100.0
Z 0.0
POINT 4
X 0.0
Y 0.0
Z 100.0
POINT 5
X 50.0
Y 50.0
Z 0.0
`

func TestLoadGroundTruth(t *testing.T) {
	path := writeFile(t, "PHANTOM01.txt", goodGroundTruth)
	p := phantom.New()
	if err := LoadGroundTruth(path, p); err != nil {
		t.Fatal(err)
	}
	if p.ID != "PHANTOM01" {
		t.Errorf("ID = %q, want PHANTOM01", p.ID)
	}
	if p.CentralDivot != 1 {
		t.Errorf("CentralDivot = %d, want 1", p.CentralDivot)
	}
	if len(p.CalibLabels) != 3 || p.CalibLabels[0] != 2 {
		t.Errorf("CalibLabels = %v", p.CalibLabels)
	}
	if len(p.Sequence) != 5 {
		t.Errorf("Sequence = %v", p.Sequence)
	}
	if got := p.GroundTruth[5]; got != (geom.Vec3{50, 50, 0}) {
		t.Errorf("divot 5 = %v", got)
	}
}

func TestLoadGroundTruthErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"two refs", "REF = 2 3\nCTR = 1\nSEQ = 1\nPOINT 1\nX 0\nY 0\nZ 0\n"},
		{"unknown central", "REF = 1 2 3\nCTR = 9\nSEQ = 1\nPOINT 1\nX 0\nY 0\nZ 0\nPOINT 2\nX 1\nY 0\nZ 0\nPOINT 3\nX 0\nY 1\nZ 0\n"},
		{"truncated point", "REF = 1 2 3\nCTR = 1\nSEQ = 1\nPOINT 1\nX 0\nY 0\n"},
		{"bad coordinate", "REF = 1 2 3\nCTR = 1\nSEQ = 1\nPOINT 1\nX abc\nY 0\nZ 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.txt", tt.content)
			p := phantom.New()
			p.ID = "before"
			if err := LoadGroundTruth(path, p); err == nil {
				t.Fatal("expected error")
			}
			// Prior state survives a failed load.
			if p.ID != "before" {
				t.Errorf("ID changed to %q on error", p.ID)
			}
		})
	}
}

const goodWorkingVolume = `MODEL = SPRYTRK
NODE = 1 0.0 0.0 -950.0
NODE = 2 0.0 280.0 -1406.0
MOVTOLMIN = 0.5 1000.0
MOVTOLMAX = 2.0 2500.0
CL = 0.0 0.0 -1500.0
BL = 0.0 280.0 -1406.0
TL = 0.0 -280.0 -1406.0
LL = 357.0 0.0 -1406.0
RL = -357.0 0.0 -1406.0
ROLL = 0.0 0.0 1.0
PITCH = 1.0 0.0 0.0
YAW = 0.0 -1.0 0.0
`

func TestLoadWorkingVolume(t *testing.T) {
	path := writeFile(t, "sprytrk.txt", goodWorkingVolume)
	v := wv.New()
	if err := LoadWorkingVolume(path, v); err != nil {
		t.Fatal(err)
	}
	if v.ID != "sprytrk" || v.ModelID != "SPRYTRK" {
		t.Errorf("ID = %q, ModelID = %q", v.ID, v.ModelID)
	}
	if len(v.Locations) != 5 {
		t.Errorf("locations = %v", v.Locations)
	}
	if got := v.Locations["LL"]; got != (geom.Vec3{357, 0, -1406}) {
		t.Errorf("LL = %v", got)
	}
	if v.TolMin.Tol != 0.5 || v.TolMax.Depth != 2500 {
		t.Errorf("tolerances = %+v %+v", v.TolMin, v.TolMax)
	}
	if v.YawAxis != (geom.Vec3{0, -1, 0}) {
		t.Errorf("YawAxis = %v", v.YawAxis)
	}
	if len(v.Nodes) != 2 {
		t.Errorf("nodes = %v", v.Nodes)
	}
}

func TestLoadWorkingVolumeNoAnchors(t *testing.T) {
	path := writeFile(t, "empty.txt", "MODEL = X\n")
	v := wv.New()
	if err := LoadWorkingVolume(path, v); err == nil {
		t.Fatal("expected error for a volume without anchors")
	}
}

const goodPointer = `MAXTILT = 50
ROLL = 0.0 0.0 -1.0
PITCH = -1.0 0.0 0.0
YAW = 0.0 1.0 0.0
HEIGHT = 158.0
`

func TestLoadPointer(t *testing.T) {
	path := writeFile(t, "FS600.txt", goodPointer)
	p := track.NewPointer()
	if err := LoadPointer(path, p); err != nil {
		t.Fatal(err)
	}
	if p.ID != "FS600" {
		t.Errorf("ID = %q, want FS600", p.ID)
	}
	if p.MaxTilt != 50 {
		t.Errorf("MaxTilt = %v, want 50", p.MaxTilt)
	}
	if p.Height != 158 {
		t.Errorf("Height = %v, want 158", p.Height)
	}
}

func TestLoadPointerBadAxes(t *testing.T) {
	content := `ROLL = 0.0 0.0 -1.0
PITCH = 1.0 0.0 0.0
YAW = 0.0 1.0 0.0
`
	path := writeFile(t, "bad.txt", content)
	p := track.NewPointer()
	if err := LoadPointer(path, p); err == nil {
		t.Fatal("expected error for a left-handed frame")
	}
}

func TestLoadPointerMissingAxes(t *testing.T) {
	path := writeFile(t, "noaxes.txt", "MAXTILT = 50\n")
	p := track.NewPointer()
	if err := LoadPointer(path, p); err == nil {
		t.Fatal("expected error for missing axes")
	}
}
