package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/phantom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/session"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/store"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

func testController() *session.Controller {
	p := phantom.New()
	p.GroundTruth = map[int]geom.Vec3{
		1: {0, 0, 0},
		2: {100, 0, 0},
		3: {0, 100, 0},
		4: {0, 0, 100},
	}
	p.CalibLabels = []int{2, 3, 4}
	p.CentralDivot = 1
	p.Sequence = []int{1, 2}

	v := wv.New()
	v.Locations["CL"] = geom.Vec3{0, 0, -1000}
	v.TolMin = wv.ToleranceBreakpoint{Tol: 0.5, Depth: 1000}
	v.TolMax = wv.ToleranceBreakpoint{Tol: 2.0, Depth: 2500}

	c := session.NewController(track.NewPointer(), p, v)
	c.SetLocations([]string{"CL"})
	c.OperatorID = "jdoe"
	return c
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.txt")
	content := `# warmup
PointerToTracker 10 20 -1400 1
PointerToPhantom 0 0 -5 true
PointerToTracker 0 0 0 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	frames, err := loadFixtures(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if frames[0].tool != devPointerToTracker || !frames[0].visible {
		t.Errorf("frame 0 = %+v", frames[0])
	}
	if frames[0].pos != (geom.Vec3{10, 20, -1400}) {
		t.Errorf("frame 0 pos = %v", frames[0].pos)
	}
	if !frames[1].visible || frames[2].visible {
		t.Errorf("visibility parsing: %+v %+v", frames[1], frames[2])
	}

	if err := os.WriteFile(path, []byte("PointerToTracker 1 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadFixtures(path); err == nil {
		t.Error("short line accepted")
	}
}

func TestWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	old := *outDir
	*outDir = dir
	defer func() { *outDir = old }()

	ctl := testController()
	ctl.Start()

	archive, err := store.Open(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer archive.Close()

	writeOutputs(ctl, archive)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var haveJSON, haveHTML, haveCharts bool
	for _, e := range entries {
		name := e.Name()
		switch {
		case filepath.Ext(name) == ".json":
			haveJSON = true
		case strings.HasPrefix(name, "AstmPhantomTest_report_"):
			haveHTML = true
		case strings.HasPrefix(name, "AstmPhantomTest_charts_"):
			haveCharts = true
		}
	}
	if !haveJSON || !haveHTML || !haveCharts {
		t.Errorf("missing outputs: json=%v html=%v charts=%v", haveJSON, haveHTML, haveCharts)
	}

	sums, err := archive.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 {
		t.Fatalf("archived sessions = %d, want 1", len(sums))
	}
	if sums[0].Operator != "jdoe" {
		t.Errorf("archived operator = %q", sums[0].Operator)
	}
}
