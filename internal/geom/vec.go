// Package geom provides the small 3D vector and point-set statistics
// toolkit used by the tracking and measurement code: distances, spans,
// RMS deviations, and least-squares landmark registration.
package geom

import (
	"math"
	"sort"
)

// Vec3 is a 3D point or direction in millimetres (or unitless for axes).
type Vec3 [3]float64

// NaNVec is the "position unknown" sentinel.
func NaNVec() Vec3 {
	n := math.NaN()
	return Vec3{n, n, n}
}

// IsNaN reports whether any component of v is NaN.
func (v Vec3) IsNaN() bool {
	return math.IsNaN(v[0]) || math.IsNaN(v[1]) || math.IsNaN(v[2])
}

func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec3) Dot(w Vec3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Unit returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Vec3) float64 {
	return a.Sub(b).Norm()
}

// Mean returns the component-wise mean of pts. Empty input yields the
// NaN vector.
func Mean(pts []Vec3) Vec3 {
	if len(pts) == 0 {
		return NaNVec()
	}
	var sum Vec3
	for _, p := range pts {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(pts)))
}

// Median returns the component-wise median of pts. Empty input yields
// the NaN vector.
func Median(pts []Vec3) Vec3 {
	if len(pts) == 0 {
		return NaNVec()
	}
	var med Vec3
	comp := make([]float64, len(pts))
	for i := 0; i < 3; i++ {
		for j, p := range pts {
			comp[j] = p[i]
		}
		sort.Float64s(comp)
		if len(comp)%2 == 1 {
			med[i] = comp[len(comp)/2]
		} else {
			med[i] = (comp[len(comp)/2-1] + comp[len(comp)/2]) / 2
		}
	}
	return med
}

// RMS returns the root-mean-square of the samples, or 0 for empty input.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var ss float64
	for _, s := range samples {
		ss += s * s
	}
	return math.Sqrt(ss / float64(len(samples)))
}

// Span returns the maximum pairwise distance within pts.
func Span(pts []Vec3) float64 {
	var max float64
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			if d := Dist(pts[i], pts[j]); d > max {
				max = d
			}
		}
	}
	return max
}

// StdDist returns the RMS distance of each point from the set mean, the
// 3D analogue of a standard deviation by distance.
func StdDist(pts []Vec3) float64 {
	if len(pts) == 0 {
		return 0
	}
	m := Mean(pts)
	ds := make([]float64, len(pts))
	for i, p := range pts {
		ds[i] = Dist(p, m)
	}
	return RMS(ds)
}
