package geom

import (
	"math"
	"testing"
)

func rotZ(deg float64) Mat3 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

func TestRegisterIdentity(t *testing.T) {
	pts := []Vec3{{0, 0, 0}, {50, 0, 0}, {0, 50, 0}, {10, 20, 30}}
	tr, err := Register(pts, pts, false)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, r := range tr.Residuals(pts, pts) {
		if r > 1e-9 {
			t.Errorf("identity residual = %v, want 0", r)
		}
	}
	if !almostEqual(tr.Scale, 1, 1e-12) {
		t.Errorf("rigid scale = %v, want 1", tr.Scale)
	}
}

func TestRegisterRecoversSimilarity(t *testing.T) {
	src := []Vec3{{0, 0, 0}, {100, 0, 0}, {0, 80, 0}, {0, 0, 60}, {25, 35, 45}}
	want := Transform{Rotation: rotZ(40), Scale: 1.25, Translation: Vec3{12, -7, 3}}
	dst := make([]Vec3, len(src))
	for i, p := range src {
		dst[i] = want.Apply(p)
	}

	tr, err := Register(src, dst, true)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !almostEqual(tr.Scale, want.Scale, 1e-9) {
		t.Errorf("scale = %v, want %v", tr.Scale, want.Scale)
	}
	for _, r := range tr.Residuals(src, dst) {
		if r > 1e-9 {
			t.Errorf("residual = %v, want 0", r)
		}
	}
	// the recovered transform must map unseen points the same way
	probe := Vec3{-30, 55, 17}
	if d := Dist(tr.Apply(probe), want.Apply(probe)); d > 1e-8 {
		t.Errorf("probe point maps %v away from expected", d)
	}
}

func TestRegisterRigidIgnoresScale(t *testing.T) {
	src := []Vec3{{0, 0, 0}, {10, 0, 0}, {0, 10, 0}, {0, 0, 10}}
	dst := make([]Vec3, len(src))
	for i, p := range src {
		dst[i] = p.Scale(2) // pure scaling, which rigid cannot express
	}
	tr, err := Register(src, dst, false)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tr.Scale != 1 {
		t.Errorf("rigid scale = %v, want 1", tr.Scale)
	}
	// residuals are nonzero because the misfit is real
	var sum float64
	for _, r := range tr.Residuals(src, dst) {
		sum += r
	}
	if sum == 0 {
		t.Error("expected nonzero residuals for unscalable fit")
	}
}

func TestRegisterDegenerate(t *testing.T) {
	tests := []struct {
		name     string
		src, dst []Vec3
	}{
		{"empty", nil, nil},
		{"one pair", []Vec3{{1, 2, 3}}, []Vec3{{4, 5, 6}}},
		{"length mismatch", []Vec3{{1, 2, 3}, {4, 5, 6}}, []Vec3{{1, 2, 3}}},
		{"coincident source", []Vec3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}, []Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Register(tt.src, tt.dst, true); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRegisterTranslationOnly(t *testing.T) {
	src := []Vec3{{0, 0, 0}, {40, 0, 0}, {0, 40, 0}}
	shift := Vec3{5, -3, 12}
	dst := make([]Vec3, len(src))
	for i, p := range src {
		dst[i] = p.Add(shift)
	}
	tr, err := Register(src, dst, true)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if d := Dist(tr.Translation, shift); d > 1e-9 {
		t.Errorf("translation = %v, want %v", tr.Translation, shift)
	}
	if !almostEqual(tr.Scale, 1, 1e-9) {
		t.Errorf("scale = %v, want 1", tr.Scale)
	}
}
