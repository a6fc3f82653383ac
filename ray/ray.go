package ray

import (
	"fmt"
	"math"

	"row-major/lenstrace/affinetransform"
	"row-major/lenstrace/vmath/vec3"
)

// unitTolerance bounds how far a valid ray's direction cosines may stray from
// unit length.
const unitTolerance = 1e-9

type Ray struct {
	Point vec3.T
	Slope vec3.T
}

func (r Ray) Eval(t float64) vec3.T {
	return vec3.T{
		r.Point[0] + t*r.Slope[0],
		r.Point[1] + t*r.Slope[1],
		r.Point[2] + t*r.Slope[2],
	}
}

// Batch holds ray state as parallel slices.
//
// W is the wavelength in micrometres.  I is the ray intensity; a ray with
// I == 0 has been vignetted or has failed at an earlier surface and is skipped
// by the intersectors.
type Batch struct {
	X, Y, Z []float64
	L, M, N []float64
	W       []float64
	I       []float64
}

// NewBatch copies the given slices into a new batch with every ray at unit
// intensity.  Slices of length one are broadcast to the length of the longest
// slice.
func NewBatch(x, y, z, l, m, n, w []float64) (*Batch, error) {
	size, err := commonLength(x, y, z, l, m, n, w)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		X: broadcast(x, size),
		Y: broadcast(y, size),
		Z: broadcast(z, size),
		L: broadcast(l, size),
		M: broadcast(m, size),
		N: broadcast(n, size),
		W: broadcast(w, size),
		I: broadcast([]float64{1}, size),
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func commonLength(slices ...[]float64) (int, error) {
	size := 0
	for _, s := range slices {
		if len(s) > size {
			size = len(s)
		}
	}
	for i, s := range slices {
		if len(s) != 1 && len(s) != size {
			return 0, fmt.Errorf("input %d has length %d, want 1 or %d", i, len(s), size)
		}
	}
	return size, nil
}

func broadcast(s []float64, size int) []float64 {
	out := make([]float64, size)
	if len(s) == 1 {
		for i := range out {
			out[i] = s[0]
		}
		return out
	}
	copy(out, s)
	return out
}

func (b *Batch) Len() int {
	return len(b.X)
}

// Validate checks that every slice has the same length and that every valid
// ray has a finite position and unit direction cosines.
func (b *Batch) Validate() error {
	size := len(b.X)
	names := []string{"y", "z", "L", "M", "N", "wavelength", "intensity"}
	for i, s := range [][]float64{b.Y, b.Z, b.L, b.M, b.N, b.W, b.I} {
		if len(s) != size {
			return fmt.Errorf("%s has length %d, want %d", names[i], len(s), size)
		}
	}

	for i := 0; i < size; i++ {
		if b.I[i] == 0 {
			continue
		}
		if !isFinite(b.X[i]) || !isFinite(b.Y[i]) || !isFinite(b.Z[i]) {
			return fmt.Errorf("ray %d has non-finite position (%v, %v, %v)", i, b.X[i], b.Y[i], b.Z[i])
		}
		norm2 := b.L[i]*b.L[i] + b.M[i]*b.M[i] + b.N[i]*b.N[i]
		if !(math.Abs(norm2-1) <= unitTolerance) {
			return fmt.Errorf("ray %d has direction cosines (%v, %v, %v) of squared norm %v, want 1", i, b.L[i], b.M[i], b.N[i], norm2)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Ray returns a view of ray i as a point and direction.
func (b *Batch) Ray(i int) Ray {
	return Ray{
		Point: vec3.T{b.X[i], b.Y[i], b.Z[i]},
		Slope: vec3.T{b.L[i], b.M[i], b.N[i]},
	}
}

func (b *Batch) setRay(i int, r Ray) {
	b.X[i], b.Y[i], b.Z[i] = r.Point[0], r.Point[1], r.Point[2]
	b.L[i], b.M[i], b.N[i] = r.Slope[0], r.Slope[1], r.Slope[2]
}

func (b *Batch) Clone() *Batch {
	return b.Cut(0, b.Len())
}

// Cut copies rays [lo, hi) into a new batch.
func (b *Batch) Cut(lo, hi int) *Batch {
	cut := func(s []float64) []float64 {
		out := make([]float64, hi-lo)
		copy(out, s[lo:hi])
		return out
	}
	return &Batch{
		X: cut(b.X),
		Y: cut(b.Y),
		Z: cut(b.Z),
		L: cut(b.L),
		M: cut(b.M),
		N: cut(b.N),
		W: cut(b.W),
		I: cut(b.I),
	}
}

// Paste copies every ray of src into b starting at index lo.
func (b *Batch) Paste(src *Batch, lo int) {
	copy(b.X[lo:], src.X)
	copy(b.Y[lo:], src.Y)
	copy(b.Z[lo:], src.Z)
	copy(b.L[lo:], src.L)
	copy(b.M[lo:], src.M)
	copy(b.N[lo:], src.N)
	copy(b.W[lo:], src.W)
	copy(b.I[lo:], src.I)
}

// Propagate advances each ray by its own distance along its direction.  Rays
// with a non-finite distance are left where they are.
func (b *Batch) Propagate(t []float64) {
	for i, ti := range t {
		if !isFinite(ti) {
			continue
		}
		b.X[i] += ti * b.L[i]
		b.Y[i] += ti * b.M[i]
		b.Z[i] += ti * b.N[i]
	}
}

// Transform maps positions as points and directions as unit vectors.
func (b *Batch) Transform(a affinetransform.AffineTransform) {
	if a.IsIdentity() {
		return
	}
	for i := 0; i < b.Len(); i++ {
		r := b.Ray(i)
		b.setRay(i, Ray{
			Point: affinetransform.TransformPoint(a, r.Point),
			Slope: affinetransform.TransformDirection(a, r.Slope),
		})
	}
}
