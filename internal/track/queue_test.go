package track

import (
	"math"
	"testing"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

func TestStrideBeforeFull(t *testing.T) {
	q := NewPositionQueue(5)
	for i := 0; i < 4; i++ {
		q.Push(geom.Vec3{float64(i), 0, 0})
		if !math.IsInf(q.Stride(), 1) {
			t.Fatalf("stride after %d pushes = %v, want +Inf", i+1, q.Stride())
		}
	}
	q.Push(geom.Vec3{4, 0, 0})
	if got := q.Stride(); got != 4 {
		t.Errorf("stride = %v, want 4", got)
	}
}

func TestStrideSlidesWindow(t *testing.T) {
	q := NewPositionQueue(3)
	for i := 0; i < 10; i++ {
		q.Push(geom.Vec3{float64(i * i), 0, 0})
	}
	// window holds positions for i=9,8,7
	want := 81.0 - 49.0
	if got := q.Stride(); got != want {
		t.Errorf("stride = %v, want %v", got, want)
	}
	if got := q.Newest(); got != (geom.Vec3{81, 0, 0}) {
		t.Errorf("Newest = %v", got)
	}
	if got := q.Oldest(); got != (geom.Vec3{49, 0, 0}) {
		t.Errorf("Oldest = %v", got)
	}
}

func TestAvgTracksEviction(t *testing.T) {
	q := NewPositionQueue(2)
	q.Push(geom.Vec3{1, 0, 0})
	q.Push(geom.Vec3{3, 0, 0})
	q.Push(geom.Vec3{5, 0, 0}) // evicts {1,0,0}
	if got := q.Avg(); got != (geom.Vec3{4, 0, 0}) {
		t.Errorf("Avg = %v, want {4 0 0}", got)
	}
}

func TestStrideMeanMedianWindows(t *testing.T) {
	q := NewPositionQueue(4)
	for _, x := range []float64{0, 10, 20, 100} {
		q.Push(geom.Vec3{x, 0, 0})
	}
	// newest-first order: 100, 20, 10, 0
	if got := q.StrideMean(2, 2); got != 55 { // mean(100,20) - mean(10,0)
		t.Errorf("StrideMean(2,2) = %v, want 55", got)
	}
	// invalid windows fall back to 1/1, matching plain Stride
	if got := q.StrideMean(3, 3); got != q.Stride() {
		t.Errorf("StrideMean fallback = %v, want %v", got, q.Stride())
	}
	if got := q.StrideMedian(0, 2); got != q.Stride() {
		t.Errorf("StrideMedian fallback = %v, want %v", got, q.Stride())
	}
}

func TestResetEmpties(t *testing.T) {
	q := NewPositionQueue(2)
	q.Push(geom.Vec3{1, 2, 3})
	q.Reset()
	if q.Size() != 0 {
		t.Errorf("Size after reset = %d, want 0", q.Size())
	}
	if !q.Newest().IsNaN() || !q.Oldest().IsNaN() || !q.Avg().IsNaN() {
		t.Error("empty queue accessors should be NaN-filled")
	}
	if !math.IsInf(q.Stride(), 1) {
		t.Error("stride after reset should be +Inf")
	}
}
