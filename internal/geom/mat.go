package geom

import "math"

// Mat3 is a row-major 3x3 rotation matrix.
type Mat3 [3][3]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Mul returns m*n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return r
}

// Transpose returns mᵀ.
func (m Mat3) Transpose() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Apply returns m*v.
func (m Mat3) Apply(v Vec3) Vec3 {
	var r Vec3
	for i := 0; i < 3; i++ {
		r[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return r
}

// Mat34 is a rigid pose as a row-major 3x4 matrix [R|t].
type Mat34 [3][4]float64

// Rotation returns the 3x3 rotation block of m.
func (m Mat34) Rotation() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j]
		}
	}
	return r
}

// Translation returns the translation column of m.
func (m Mat34) Translation() Vec3 {
	return Vec3{m[0][3], m[1][3], m[2][3]}
}

// Apply transforms the point v by m.
func (m Mat34) Apply(v Vec3) Vec3 {
	return m.Rotation().Apply(v).Add(m.Translation())
}

// AxesMatrix builds the right-handed rotation matrix whose rows are the
// roll (X), pitch (Y) and yaw (Z) axes, re-orthonormalized from the two
// input axes: roll is normalized, pitch is yaw×roll, yaw is roll×pitch.
func AxesMatrix(roll, yaw Vec3) Mat3 {
	r := roll.Unit()
	p := yaw.Unit().Cross(r)
	y := r.Cross(p)
	return Mat3{{r[0], r[1], r[2]}, {p[0], p[1], p[2]}, {y[0], y[1], y[2]}}
}

// EulerAngles extracts (roll, pitch, yaw) in degrees from a rotation
// matrix, XYZ convention.
func EulerAngles(m Mat3) (roll, pitch, yaw float64) {
	roll = math.Atan2(m[2][1], m[2][2]) * 180 / math.Pi
	pitch = math.Atan2(-m[2][0], math.Hypot(m[2][1], m[2][2])) * 180 / math.Pi
	yaw = math.Atan2(m[1][0], m[0][0]) * 180 / math.Pi
	return roll, pitch, yaw
}
