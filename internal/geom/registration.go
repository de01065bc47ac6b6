package geom

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transform is a similarity transform y = scale*R*x + t. Rigid
// registrations carry scale 1.
type Transform struct {
	Rotation    Mat3
	Scale       float64
	Translation Vec3
}

// Identity returns the no-op transform.
func Identity() Transform {
	return Transform{Rotation: Identity3(), Scale: 1}
}

// Apply maps the point v through the transform.
func (t Transform) Apply(v Vec3) Vec3 {
	return t.Rotation.Apply(v).Scale(t.Scale).Add(t.Translation)
}

// Register solves the least-squares landmark registration mapping src
// onto dst (Umeyama's method over the cross-covariance SVD). With
// similarity set, a uniform scale factor is estimated as well;
// otherwise the result is rigid. Fewer than two points, mismatched
// lengths, or coincident source points yield an error, never a panic.
func Register(src, dst []Vec3, similarity bool) (Transform, error) {
	if len(src) != len(dst) {
		return Transform{}, fmt.Errorf("registration: %d source vs %d destination points", len(src), len(dst))
	}
	if len(src) < 2 {
		return Transform{}, fmt.Errorf("registration: need at least 2 point pairs, got %d", len(src))
	}

	n := float64(len(src))
	ms := Mean(src)
	md := Mean(dst)

	// Cross-covariance of the centered sets, plus source variance for
	// the scale estimate.
	var cov [3][3]float64
	var srcVar float64
	for k := range src {
		s := src[k].Sub(ms)
		d := dst[k].Sub(md)
		srcVar += s.Dot(s)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				cov[i][j] += d[i] * s[j]
			}
		}
	}
	srcVar /= n
	if srcVar == 0 {
		return Transform{}, fmt.Errorf("registration: source points are coincident")
	}

	sigma := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sigma.Set(i, j, cov[i][j]/n)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(sigma, mat.SVDFull) {
		return Transform{}, fmt.Errorf("registration: SVD failed to converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	// Reflection guard: flip the smallest singular direction when the
	// determinant product is negative so R stays a proper rotation.
	det := mat.Det(&u) * mat.Det(&v)
	sign := [3]float64{1, 1, 1}
	if det < 0 {
		sign[2] = -1
	}

	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += u.At(i, k) * sign[k] * v.At(j, k)
			}
		}
	}

	scale := 1.0
	if similarity {
		var tr float64
		for k := 0; k < 3; k++ {
			tr += sv[k] * sign[k]
		}
		scale = tr / srcVar
	}

	return Transform{
		Rotation:    r,
		Scale:       scale,
		Translation: md.Sub(r.Apply(ms).Scale(scale)),
	}, nil
}

// Residuals returns the per-point distance between each transformed
// source point and its destination counterpart.
func (t Transform) Residuals(src, dst []Vec3) []float64 {
	res := make([]float64, len(src))
	for i := range src {
		res[i] = Dist(t.Apply(src[i]), dst[i])
	}
	return res
}
