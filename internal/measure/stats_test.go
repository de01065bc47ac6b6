package measure

import (
	"math"
	"testing"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNewErrorStats(t *testing.T) {
	tests := []struct {
		name string
		errs []float64
		want ErrorStats
	}{
		{"empty", nil, ErrorStats{}},
		{"single", []float64{2}, ErrorStats{Num: 1, Mean: 2, Min: 2, Max: 2, Std: 0, RMS: 2}},
		{
			"two values",
			[]float64{1, 3},
			ErrorStats{Num: 2, Mean: 2, Min: 1, Max: 3, Std: 1, RMS: math.Sqrt(5)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewErrorStats(tt.errs)
			if got.Num != tt.want.Num || !almost(got.Mean, tt.want.Mean) ||
				!almost(got.Min, tt.want.Min) || !almost(got.Max, tt.want.Max) ||
				!almost(got.Std, tt.want.Std) || !almost(got.RMS, tt.want.RMS) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAccuracyOfIdenticalSamples(t *testing.T) {
	pts := []geom.Vec3{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}
	got := NewAccuracyStats(pts, geom.Vec3{1, 2, 3})
	if got.Num != 3 || !almost(got.AvgErr, 0) || !almost(got.Max, 0) {
		t.Errorf("expected zero accuracy errors, got %+v", got)
	}
}

func TestAccuracyOffsetMean(t *testing.T) {
	// Samples symmetric about {1,0,0}; ground truth at origin.
	pts := []geom.Vec3{{0, 0, 0}, {2, 0, 0}}
	got := NewAccuracyStats(pts, geom.Vec3{0, 0, 0})
	if !almost(got.AvgErr, 1) {
		t.Errorf("AvgErr = %v, want 1", got.AvgErr)
	}
	if !almost(got.Max, 2) {
		t.Errorf("Max = %v, want 2", got.Max)
	}
}

func TestPrecisionTwoSamples(t *testing.T) {
	pts := []geom.Vec3{{0, 0, 0}, {4, 0, 0}}
	got := NewPrecisionStats(pts)
	if !almost(got.Span, 4) {
		t.Errorf("Span = %v, want 4", got.Span)
	}
	// Each sample is 2 from the mean.
	if !almost(got.RMS, 2) {
		t.Errorf("RMS = %v, want 2", got.RMS)
	}
}

func TestPrecisionOfIdenticalSamples(t *testing.T) {
	pts := []geom.Vec3{{5, 5, 5}, {5, 5, 5}}
	got := NewPrecisionStats(pts)
	if !almost(got.Span, 0) || !almost(got.RMS, 0) {
		t.Errorf("expected zero precision stats, got %+v", got)
	}
}
