// Package affinetransform places a surface's local frame in a global frame.
//
// Surfaces evaluate sag and normals with their vertex at the origin and their
// axis along +z.  A transform here maps surface-local coordinates to global
// coordinates; its inverse localizes rays before intersection.
package affinetransform

import (
	"row-major/lenstrace/vmath/mat33"
	"row-major/lenstrace/vmath/vec3"
)

type AffineTransform struct {
	Linear mat33.T
	Offset vec3.T
}

func Identity() AffineTransform {
	return AffineTransform{
		Linear: mat33.Identity(),
		Offset: vec3.T{0.0, 0.0, 0.0},
	}
}

func Translate(x vec3.T) AffineTransform {
	result := Identity()
	result.Offset = x
	return result
}

// Tilt rotates about x, then y, then z (angles in radians).
func Tilt(rx, ry, rz float64) AffineTransform {
	result := Identity()
	result.Linear = mat33.MulMM(mat33.RotateZ(rz), mat33.MulMM(mat33.RotateY(ry), mat33.RotateX(rx)))
	return result
}

// Compose returns the transform that applies b, then a.
func Compose(a, b AffineTransform) AffineTransform {
	return AffineTransform{
		Linear: mat33.MulMM(a.Linear, b.Linear),
		Offset: vec3.AddVV(a.Offset, mat33.MulMV(a.Linear, b.Offset)),
	}
}

func (t AffineTransform) Invert() AffineTransform {
	inv := mat33.Inverse(t.Linear)
	return AffineTransform{
		Linear: inv,
		Offset: vec3.MulVS(mat33.MulMV(inv, t.Offset), -1),
	}
}

func (t AffineTransform) IsIdentity() bool {
	return t == Identity()
}

// NormalTransformMat is the transpose inverse of the linear part, the map
// that carries surface normals through the transform.
func (t AffineTransform) NormalTransformMat() mat33.T {
	return mat33.Transpose(mat33.Inverse(t.Linear))
}

func TransformPoint(a AffineTransform, b vec3.T) vec3.T {
	return vec3.AddVV(mat33.MulMV(a.Linear, b), a.Offset)
}

// TransformDirection maps a direction and renormalizes it.
func TransformDirection(a AffineTransform, b vec3.T) vec3.T {
	return vec3.Normalize(mat33.MulMV(a.Linear, b))
}
