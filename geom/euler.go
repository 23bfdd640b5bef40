package geom

import (
	"strings"

	"github.com/chewxy/math32"
)

// RotationOrder names the axis order of an euler rotation. XYZ means the matrix Rx*Ry*Rz.
type RotationOrder int

const (
	RotationOrderXYZ RotationOrder = iota
	RotationOrderYXZ
	RotationOrderZXY
	RotationOrderZYX
)

var rotationOrderNames = []string{"XYZ", "YXZ", "ZXY", "ZYX"}

func (o RotationOrder) String() string {
	if int(o) < len(rotationOrderNames) {
		return rotationOrderNames[o]
	}
	return "unknown"
}

// ParseRotationOrder accepts "xyz", "YXZ" and so on. An empty string is XYZ.
func ParseRotationOrder(s string) (RotationOrder, bool) {
	if s == "" {
		return RotationOrderXYZ, true
	}
	for i, n := range rotationOrderNames {
		if strings.EqualFold(n, s) {
			return RotationOrder(i), true
		}
	}
	return RotationOrderXYZ, false
}

type EulerAngles struct {
	Vector3
	Order RotationOrder
}

func NewEuler(x, y, z float32, order RotationOrder) *EulerAngles {
	return &EulerAngles{Vector3: Vector3{x, y, z}, Order: order}
}

func NewEulerDegrees(x, y, z float32, order RotationOrder) *EulerAngles {
	const d = math32.Pi / 180
	return NewEuler(x*d, y*d, z*d, order)
}

func NewEulerFromQuaternion(q *Quaternion, order RotationOrder) *EulerAngles {
	return NewEulerFromMatrix4(NewRotationMatrix4FromQuaternion(q), order)
}

func clamp1(v float32) float32 {
	return math32.Max(-1, math32.Min(v, 1))
}

// NewEulerFromMatrix4 decomposes the rotation part of mat. In gimbal lock the last angle is 0.
func NewEulerFromMatrix4(mat *Matrix4, order RotationOrder) *EulerAngles {
	const eps = 1e-6
	m11, m21, m31 := mat[0], mat[1], mat[2]
	m12, m22, m32 := mat[4], mat[5], mat[6]
	m13, m23, m33 := mat[8], mat[9], mat[10]

	e := &EulerAngles{Order: order}
	switch order {
	case RotationOrderXYZ:
		e.Y = math32.Asin(clamp1(m13))
		if math32.Abs(m13) < 1-eps {
			e.X, e.Z = math32.Atan2(-m23, m33), math32.Atan2(-m12, m11)
		} else {
			e.X = math32.Atan2(m32, m22)
		}
	case RotationOrderYXZ:
		e.X = math32.Asin(-clamp1(m23))
		if math32.Abs(m23) < 1-eps {
			e.Y, e.Z = math32.Atan2(m13, m33), math32.Atan2(m21, m22)
		} else {
			e.Y = math32.Atan2(-m31, m11)
		}
	case RotationOrderZXY:
		e.X = math32.Asin(clamp1(m32))
		if math32.Abs(m32) < 1-eps {
			e.Y, e.Z = math32.Atan2(-m31, m33), math32.Atan2(-m12, m22)
		} else {
			e.Z = math32.Atan2(m21, m11)
		}
	case RotationOrderZYX:
		e.Y = math32.Asin(-clamp1(m31))
		if math32.Abs(m31) < 1-eps {
			e.X, e.Z = math32.Atan2(m32, m33), math32.Atan2(m21, m11)
		} else {
			e.Z = math32.Atan2(-m12, m22)
		}
	}
	return e
}

func axisAngle(x, y, z, angle float32) *Quaternion {
	s, c := math32.Sincos(angle / 2)
	return &Quaternion{X: x * s, Y: y * s, Z: z * s, W: c}
}

// ToQuaternion composes the axis rotations in Order.
func (v *EulerAngles) ToQuaternion() *Quaternion {
	qx := axisAngle(1, 0, 0, v.X)
	qy := axisAngle(0, 1, 0, v.Y)
	qz := axisAngle(0, 0, 1, v.Z)
	switch v.Order {
	case RotationOrderXYZ:
		return qx.Mul(qy).Mul(qz)
	case RotationOrderYXZ:
		return qy.Mul(qx).Mul(qz)
	case RotationOrderZXY:
		return qz.Mul(qx).Mul(qy)
	case RotationOrderZYX:
		return qz.Mul(qy).Mul(qx)
	}
	q := IdentityQuaternion
	return &q
}
