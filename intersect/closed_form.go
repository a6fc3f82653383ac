package intersect

import (
	"context"
	"math"

	"row-major/lenstrace/contact"
	"row-major/lenstrace/ray"
	"row-major/lenstrace/surface"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ClosedForm intersects every ray with a conic of revolution by solving the
// quadratic obtained from substituting the ray into
//
//	c (x^2 + y^2 + (1 + k) z^2) - 2z = 0.
//
// Of the two roots, negative ones are discarded and the one landing closer to
// the vertex plane wins.  A vanishing quadratic coefficient (a flat surface,
// or a ray parallel to a paraboloid's axis) falls back to the linear solution.
// b is not modified.
func ClosedForm(ctx context.Context, q surface.Conicoid, b *ray.Batch) *contact.Set {
	tracer := otel.Tracer("row-major/lenstrace/intersect")
	var span trace.Span
	_, span = tracer.Start(ctx, "ClosedForm")
	defer span.End()

	span.SetAttributes(attribute.Int("rays", b.Len()))

	curvature, k := q.Quadric()
	set := contact.NewSet(b.Len())
	for i := 0; i < b.Len(); i++ {
		if b.I[i] == 0 {
			set.Fail(i, contact.Vignetted)
			continue
		}

		t, ok := conicDistance(curvature, k, b.X[i], b.Y[i], b.Z[i], b.L[i], b.M[i], b.N[i])
		if !ok {
			set.Fail(i, contact.Missed)
			continue
		}
		set.T[i] = t
		set.Status[i] = contact.Hit
	}
	return set
}

func conicDistance(curvature, k, x, y, z, l, m, n float64) (float64, bool) {
	kk := 1 + k
	a := curvature * (l*l + m*m + kk*n*n)
	b := 2*curvature*(l*x+m*y+kk*n*z) - 2*n
	c := curvature*(x*x+y*y+kk*z*z) - 2*z

	if a == 0 {
		if b == 0 {
			return math.Inf(1), false
		}
		t := -c / b
		return t, t >= 0
	}

	d := b*b - 4*a*c
	if d < 0 {
		return math.Inf(1), false
	}

	// Form the roots without subtracting nearly equal quantities; the plain
	// quadratic formula loses the near root on weakly curved surfaces.
	var t1, t2 float64
	q := -0.5 * (b + math.Copysign(math.Sqrt(d), b))
	if q == 0 {
		t1, t2 = 0, 0
	} else {
		t1, t2 = q/a, c/q
	}

	best, bestZ := math.Inf(1), math.Inf(1)
	for _, t := range [2]float64{t1, t2} {
		if !(t >= 0) || math.IsInf(t, 1) {
			continue
		}
		if zt := math.Abs(z + t*n); zt < bestZ {
			best, bestZ = t, zt
		}
	}
	return best, !math.IsInf(best, 1)
}
