package vec3

import (
	"math"
)

type T [3]float64

// NaN returns a vector with every component NaN, used as the normal of rays
// that did not land on a surface.
func NaN() T {
	return T{math.NaN(), math.NaN(), math.NaN()}
}

func (v T) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v T) IsNaN() bool {
	return math.IsNaN(v[0]) || math.IsNaN(v[1]) || math.IsNaN(v[2])
}

func Normalize(v T) T {
	l := v.Norm()
	return T{
		v[0] / l,
		v[1] / l,
		v[2] / l,
	}
}

// FromSlope builds the unit normal of a height field z(x, y) from its partial
// derivatives.  The result always has a positive z component.
func FromSlope(dzdx, dzdy float64) T {
	mag := math.Sqrt(dzdx*dzdx + dzdy*dzdy + 1)
	return T{
		-dzdx / mag,
		-dzdy / mag,
		1 / mag,
	}
}

func AddVV(a, b T) T {
	return T{
		a[0] + b[0],
		a[1] + b[1],
		a[2] + b[2],
	}
}

func MulVS(a T, b float64) T {
	return T{
		a[0] * b,
		a[1] * b,
		a[2] * b,
	}
}

func IProd(a, b T) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
