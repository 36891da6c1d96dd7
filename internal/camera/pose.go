package camera

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	worldUp = r3.Vec{Z: 1}
	altUp   = r3.Vec{Y: 1}
)

const parallel = 1e-9

// Pose is a solved camera placement.
type Pose struct {
	Position    r3.Vec
	Target      r3.Vec
	Euler       r3.Vec // XYZ order, radians
	Rotation    quat.Number
	Zoom        float64 // focal length, mm
	SensorWidth float64 // mm
}

// NewPose derives the quaternion from the Euler angles.
func NewPose(pos, target, euler r3.Vec, zoom, sensor float64) Pose {
	return Pose{
		Position:    pos,
		Target:      target,
		Euler:       euler,
		Rotation:    EulerToQuat(euler),
		Zoom:        zoom,
		SensorWidth: sensor,
	}
}

// Basis returns the camera's right (+X), up (+Y) and back (+Z) axes in world
// space. The camera looks along -back.
func (p Pose) Basis() (right, up, back r3.Vec) {
	return Rotate(p.Rotation, r3.Vec{X: 1}), Rotate(p.Rotation, r3.Vec{Y: 1}), Rotate(p.Rotation, r3.Vec{Z: 1})
}

// Forward is the unit view direction.
func (p Pose) Forward() r3.Vec {
	_, _, back := p.Basis()
	return r3.Scale(-1, back)
}

// LookAt returns the XYZ Euler rotation that points a camera at pos along
// -Z towards target, with +Y tracking world +Z. When the view direction is
// parallel to world +Z, world +Y is used as the up reference instead.
// Coincident points give the identity rotation.
func LookAt(pos, target r3.Vec) r3.Vec {
	dir := r3.Sub(pos, target)
	if r3.Norm(dir) < parallel {
		return r3.Vec{}
	}
	z := r3.Unit(dir)
	y := reject(worldUp, z)
	if r3.Norm(y) < parallel {
		y = reject(altUp, z)
	}
	y = r3.Unit(y)
	x := r3.Cross(y, z)
	return matrixToEuler([3]r3.Vec{x, y, z})
}

// reject removes the component of v along unit n.
func reject(v, n r3.Vec) r3.Vec {
	return r3.Sub(v, r3.Scale(r3.Dot(v, n), n))
}

// matrixToEuler decomposes a rotation given by its columns into XYZ Euler
// angles, R = Rz(z) Ry(y) Rx(x).
func matrixToEuler(cols [3]r3.Vec) r3.Vec {
	// Row-major element access: m(r, c).
	m := func(r, c int) float64 {
		v := cols[c]
		switch r {
		case 0:
			return v.X
		case 1:
			return v.Y
		default:
			return v.Z
		}
	}
	cy := math.Hypot(m(0, 0), m(1, 0))
	if cy > 16*math.SmallestNonzeroFloat32 {
		return r3.Vec{
			X: math.Atan2(m(2, 1), m(2, 2)),
			Y: math.Atan2(-m(2, 0), cy),
			Z: math.Atan2(m(1, 0), m(0, 0)),
		}
	}
	return r3.Vec{
		X: math.Atan2(-m(1, 2), m(1, 1)),
		Y: math.Atan2(-m(2, 0), cy),
	}
}

// EulerToQuat builds the unit quaternion qz*qy*qx for XYZ Euler angles.
func EulerToQuat(e r3.Vec) quat.Number {
	half := func(a float64) (float64, float64) { return math.Cos(a / 2), math.Sin(a / 2) }
	cx, sx := half(e.X)
	cy, sy := half(e.Y)
	cz, sz := half(e.Z)
	qx := quat.Number{Real: cx, Imag: sx}
	qy := quat.Number{Real: cy, Jmag: sy}
	qz := quat.Number{Real: cz, Kmag: sz}
	return quat.Mul(qz, quat.Mul(qy, qx))
}

// Rotate applies unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}
