package geom

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDist(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec3
		want float64
	}{
		{"zero", Vec3{}, Vec3{}, 0},
		{"unit x", Vec3{}, Vec3{1, 0, 0}, 1},
		{"pythagorean", Vec3{1, 2, 3}, Vec3{4, 6, 3}, 5},
		{"negative", Vec3{-1, -1, -1}, Vec3{1, 1, 1}, 2 * math.Sqrt(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dist(tt.a, tt.b); !almostEqual(got, tt.want, 1e-12) {
				t.Errorf("Dist(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMeanMedian(t *testing.T) {
	pts := []Vec3{{1, 10, 0}, {3, 30, 0}, {2, 50, 0}}
	if got := Mean(pts); got != (Vec3{2, 30, 0}) {
		t.Errorf("Mean = %v, want {2 30 0}", got)
	}
	if got := Median(pts); got != (Vec3{2, 30, 0}) {
		t.Errorf("Median = %v, want {2 30 0}", got)
	}

	// even count takes the midpoint of the two central values
	even := []Vec3{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}}
	if got := Median(even); got != (Vec3{2.5, 0, 0}) {
		t.Errorf("Median(even) = %v, want {2.5 0 0}", got)
	}

	if !Mean(nil).IsNaN() {
		t.Error("Mean(nil) should be NaN-filled")
	}
	if !Median(nil).IsNaN() {
		t.Error("Median(nil) should be NaN-filled")
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS([]float64{3, 4}); !almostEqual(got, math.Sqrt(12.5), 1e-12) {
		t.Errorf("RMS = %v, want %v", got, math.Sqrt(12.5))
	}
}

func TestSpan(t *testing.T) {
	tests := []struct {
		name string
		pts  []Vec3
		want float64
	}{
		{"empty", nil, 0},
		{"single", []Vec3{{1, 2, 3}}, 0},
		{"identical", []Vec3{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}, 0},
		{"two apart", []Vec3{{0, 0, 0}, {0, 3, 4}}, 5},
		{"max of pairs", []Vec3{{0, 0, 0}, {1, 0, 0}, {10, 0, 0}}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Span(tt.pts); !almostEqual(got, tt.want, 1e-12) {
				t.Errorf("Span = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStdDist(t *testing.T) {
	// two points 2 apart: each is distance 1 from the mean
	pts := []Vec3{{-1, 0, 0}, {1, 0, 0}}
	if got := StdDist(pts); !almostEqual(got, 1, 1e-12) {
		t.Errorf("StdDist = %v, want 1", got)
	}
	if got := StdDist([]Vec3{{5, 5, 5}}); got != 0 {
		t.Errorf("StdDist(single) = %v, want 0", got)
	}
}

func TestAxesMatrix(t *testing.T) {
	// unnormalized, slightly skewed inputs must still produce a
	// right-handed orthonormal basis
	m := AxesMatrix(Vec3{2, 0, 0}, Vec3{0.1, 0, 3})
	rows := [3]Vec3{
		{m[0][0], m[0][1], m[0][2]},
		{m[1][0], m[1][1], m[1][2]},
		{m[2][0], m[2][1], m[2][2]},
	}
	for i, r := range rows {
		if !almostEqual(r.Norm(), 1, 1e-12) {
			t.Errorf("row %d norm = %v, want 1", i, r.Norm())
		}
	}
	if !almostEqual(rows[0].Dot(rows[1]), 0, 1e-12) || !almostEqual(rows[1].Dot(rows[2]), 0, 1e-12) {
		t.Error("axes not orthogonal")
	}
	if cross := rows[0].Cross(rows[1]); Dist(cross, rows[2]) > 1e-12 {
		t.Errorf("basis not right-handed: roll×pitch = %v, yaw = %v", cross, rows[2])
	}
}

func TestEulerAngles(t *testing.T) {
	roll, pitch, yaw := EulerAngles(Identity3())
	if roll != 0 || pitch != 0 || yaw != 0 {
		t.Errorf("identity angles = (%v, %v, %v), want zeros", roll, pitch, yaw)
	}

	// 90° about Z
	rz := Mat3{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	_, _, yaw = EulerAngles(rz)
	if !almostEqual(yaw, 90, 1e-9) {
		t.Errorf("yaw = %v, want 90", yaw)
	}

	// 30° about X
	s, c := math.Sincos(30 * math.Pi / 180)
	rx := Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
	roll, _, _ = EulerAngles(rx)
	if !almostEqual(roll, 30, 1e-9) {
		t.Errorf("roll = %v, want 30", roll)
	}
}
