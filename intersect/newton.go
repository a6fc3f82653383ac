package intersect

import (
	"context"
	"fmt"
	"math"

	"row-major/lenstrace/contact"
	"row-major/lenstrace/ray"
	"row-major/lenstrace/surface"
	"row-major/lenstrace/vmath/vec3"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// grazingCosine is the smallest |n·d| for which a Newton step is trusted.
const grazingCosine = 1e-12

// Newton intersects rays with any surface model by Newton-Raphson iteration
// on the distance along each ray.
//
// The zero value uses surface.DefaultTolerance and
// surface.DefaultMaxIterations.
type Newton struct {
	// Tolerance is the largest |z - sag(x, y)| accepted as on the surface.
	Tolerance float64

	// MaxIterations caps the Newton steps taken per ray.
	MaxIterations int
}

// NewtonFor returns a Newton intersector configured from m's own iteration
// settings, if it has any.
func NewtonFor(m surface.Model) Newton {
	n := Newton{}
	if c, ok := m.(surface.Convergent); ok {
		n.Tolerance, n.MaxIterations = c.Convergence()
	}
	return n
}

func (n Newton) settings() (float64, int) {
	tol, maxIter := n.Tolerance, n.MaxIterations
	if tol <= 0 {
		tol = surface.DefaultTolerance
	}
	if maxIter <= 0 {
		maxIter = surface.DefaultMaxIterations
	}
	return tol, maxIter
}

// Intersect finds, for every valid ray in b, the forward distance t at which
// the ray meets m.  b is not modified.
//
// Each ray starts at its forward intersection with the surface's base conic
// when m is surface.ConicBased and that intersection exists, and otherwise at
// its crossing of the vertex plane z = 0.  A ray is in one of three states:
// active, converged, or failed.  Every pass evaluates sag and
// normal for all active rays in a single batch call, then moves each of them
// one step:
//
//	f  = z - sag(x, y)
//	dt = -f nz / (n·d)
//
// which lands the ray on the tangent plane at (x, y, sag).  A ray converges
// when |f| < Tolerance, fails as Diverged if it is still active after
// MaxIterations steps, and fails as Grazing if n·d is too small to trust.
//
// A domain error from m aborts the whole call.
func (n Newton) Intersect(ctx context.Context, m surface.Model, b *ray.Batch) (*contact.Set, error) {
	tracer := otel.Tracer("row-major/lenstrace/intersect")
	var span trace.Span
	_, span = tracer.Start(ctx, "Newton.Intersect")
	defer span.End()

	tol, maxIter := n.settings()
	size := b.Len()
	span.SetAttributes(
		attribute.Int("rays", size),
		attribute.String("surface", m.Kind()),
	)

	base, seeded := m.(surface.ConicBased)
	var curvature, k float64
	if seeded {
		curvature, k = base.BaseConic()
	}

	set := contact.NewSet(size)
	active := make([]int, 0, size)
	for i := 0; i < size; i++ {
		if b.I[i] == 0 {
			set.Fail(i, contact.Vignetted)
			continue
		}
		if b.N[i] != 0 {
			set.T[i] = -b.Z[i] / b.N[i]
		}
		if seeded {
			if t, ok := conicDistance(curvature, k, b.X[i], b.Y[i], b.Z[i], b.L[i], b.M[i], b.N[i]); ok {
				set.T[i] = t
			}
		}
		active = append(active, i)
	}

	xs := make([]float64, len(active))
	ys := make([]float64, len(active))
	sag := make([]float64, len(active))
	normals := make([]vec3.T, len(active))

	pass := 0
	for ; len(active) > 0; pass++ {
		xs, ys, sag, normals = xs[:len(active)], ys[:len(active)], sag[:len(active)], normals[:len(active)]
		for j, i := range active {
			xs[j] = b.X[i] + set.T[i]*b.L[i]
			ys[j] = b.Y[i] + set.T[i]*b.M[i]
		}

		if err := m.Sag(xs, ys, sag); err != nil {
			err := fmt.Errorf("while evaluating %s sag on pass %d: %w", m.Kind(), pass, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if err := m.Normal(xs, ys, normals); err != nil {
			err := fmt.Errorf("while evaluating %s normal on pass %d: %w", m.Kind(), pass, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		// Filter active in place; index j is always read before it can be
		// overwritten.
		next := active[:0]
		for j, i := range active {
			set.Iterations[i] = pass
			z := b.Z[i] + set.T[i]*b.N[i]
			f := z - sag[j]
			nrm := normals[j]

			switch {
			case math.IsNaN(f) || nrm.IsNaN():
				set.Fail(i, contact.Missed)

			case math.Abs(f) < tol:
				if set.T[i] < 0 {
					set.Fail(i, contact.Missed)
					continue
				}
				set.Status[i] = contact.Hit
				set.Normal[i] = nrm

			case pass == maxIter:
				set.Fail(i, contact.Diverged)

			default:
				den := vec3.IProd(nrm, vec3.T{b.L[i], b.M[i], b.N[i]})
				if math.Abs(den) < grazingCosine {
					set.Fail(i, contact.Grazing)
					continue
				}
				t := set.T[i] - f*nrm[2]/den
				if math.IsNaN(t) || math.IsInf(t, 0) {
					set.Fail(i, contact.Missed)
					continue
				}
				set.T[i] = t
				next = append(next, i)
			}
		}
		active = next
	}

	span.SetAttributes(attribute.Int("passes", pass))
	span.SetStatus(codes.Ok, "")
	if glog.V(2) {
		glog.Infof("newton: %s surface, %d rays, %d passes, tolerance %v", m.Kind(), size, pass, tol)
	}
	return set, nil
}
