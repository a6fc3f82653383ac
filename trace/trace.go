// Package trace carries a ray batch onto a surface: it intersects, commits the
// new ray positions, and evaluates the surface normal at every hit.
package trace

import (
	"context"
	"fmt"
	"runtime"

	"row-major/lenstrace/affinetransform"
	"row-major/lenstrace/contact"
	"row-major/lenstrace/intersect"
	"row-major/lenstrace/metrics"
	"row-major/lenstrace/ray"
	"row-major/lenstrace/surface"
	"row-major/lenstrace/vmath/vec3"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const DefaultChunkSize = 4096

type options struct {
	placement affinetransform.AffineTransform
	chunkSize int
	workers   int
}

type Option func(*options)

// WithPlacement positions the surface: at maps surface-local coordinates to
// the batch's frame.  It must be rigid (rotation and translation only).
func WithPlacement(at affinetransform.AffineTransform) Option {
	return func(o *options) {
		o.placement = at
	}
}

// WithChunkSize sets how many rays each Parallel worker takes at a time.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithWorkers bounds how many chunks Parallel traces at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func buildOptions(opts []Option) options {
	o := options{
		placement: affinetransform.Identity(),
		chunkSize: DefaultChunkSize,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunkSize < 1 {
		o.chunkSize = DefaultChunkSize
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// Surface intersects b with m and commits the result into b: rays that hit
// move to the hit point, rays that fail drop to zero intensity and stay put.
// The returned set carries the distance, status, and unit normal (in b's
// frame) of every ray.
//
// On error b is left untouched.
func Surface(ctx context.Context, m surface.Model, b *ray.Batch, opts ...Option) (*contact.Set, error) {
	tracer := otel.Tracer("row-major/lenstrace/trace")
	var span oteltrace.Span
	ctx, span = tracer.Start(ctx, "Surface")
	defer span.End()

	o := buildOptions(opts)
	span.SetAttributes(attribute.String("surface", m.Kind()), attribute.Int("rays", b.Len()))

	work, set, err := traceLocal(ctx, m, b, o.placement)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	b.Paste(work, 0)

	logOutcome(m, set)
	metrics.RecordContacts(ctx, m.Kind(), set)
	span.SetStatus(codes.Ok, "")
	return set, nil
}

// traceLocal does the work of Surface on a copy of b, which it returns.
func traceLocal(ctx context.Context, m surface.Model, b *ray.Batch, placement affinetransform.AffineTransform) (*ray.Batch, *contact.Set, error) {
	work := b.Clone()
	work.Transform(placement.Invert())

	set, err := intersect.Distance(ctx, m, work)
	if err != nil {
		return nil, nil, err
	}

	work.Propagate(set.T)

	// The Newton intersector leaves the normal it converged on; closed-form
	// hits still need theirs.
	pending := []int{}
	for _, i := range set.Hits() {
		if set.Normal[i].IsNaN() {
			pending = append(pending, i)
		}
	}
	if len(pending) > 0 {
		xs := make([]float64, len(pending))
		ys := make([]float64, len(pending))
		normals := make([]vec3.T, len(pending))
		for j, i := range pending {
			xs[j], ys[j] = work.X[i], work.Y[i]
		}
		if err := m.Normal(xs, ys, normals); err != nil {
			return nil, nil, fmt.Errorf("while evaluating %s normals at hit points: %w", m.Kind(), err)
		}
		for j, i := range pending {
			set.Normal[i] = normals[j]
		}
	}

	for i, st := range set.Status {
		if st != contact.Hit {
			work.I[i] = 0
		}
	}

	work.Transform(placement)
	if !placement.IsIdentity() {
		set.TransformNormals(placement.NormalTransformMat())
	}
	return work, set, nil
}

// Parallel behaves like Surface but splits b into chunks traced concurrently.
// Results are committed only once every chunk has succeeded, so on error b is
// left untouched.
func Parallel(ctx context.Context, m surface.Model, b *ray.Batch, opts ...Option) (*contact.Set, error) {
	tracer := otel.Tracer("row-major/lenstrace/trace")
	var span oteltrace.Span
	ctx, span = tracer.Start(ctx, "Parallel")
	defer span.End()

	o := buildOptions(opts)
	size := b.Len()
	span.SetAttributes(
		attribute.String("surface", m.Kind()),
		attribute.Int("rays", size),
		attribute.Int("chunk-size", o.chunkSize),
	)

	type chunk struct {
		lo   int
		rays *ray.Batch
		set  *contact.Set
	}
	chunks := []*chunk{}
	for lo := 0; lo < size; lo += o.chunkSize {
		hi := lo + o.chunkSize
		if hi > size {
			hi = size
		}
		chunks = append(chunks, &chunk{lo: lo, rays: b.Cut(lo, hi)})
	}

	// Use errgroup and semaphore to limit concurrency.
	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(o.workers))
	for _, c := range chunks {
		c := c

		if err := sem.Acquire(egCtx, 1); err != nil {
			// The group's context is only cancelled by a failed chunk; Wait
			// reports that chunk's error.
			break
		}

		eg.Go(func() error {
			defer sem.Release(1)
			work, set, err := traceLocal(egCtx, m, c.rays, o.placement)
			if err != nil {
				return fmt.Errorf("while tracing rays [%d, %d): %w", c.lo, c.lo+c.rays.Len(), err)
			}
			c.rays, c.set = work, set
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("while scheduling chunks: %w", err)
	}

	set := contact.NewSet(size)
	for _, c := range chunks {
		b.Paste(c.rays, c.lo)
		set.Paste(c.set, c.lo)
	}

	logOutcome(m, set)
	metrics.RecordContacts(ctx, m.Kind(), set)
	span.SetStatus(codes.Ok, "")
	return set, nil
}

func logOutcome(m surface.Model, set *contact.Set) {
	if !glog.V(1) {
		return
	}
	counts := set.Counts()
	if failed := set.Len() - counts[contact.Hit] - counts[contact.Vignetted]; failed > 0 {
		glog.Infof("%s surface: %d of %d rays failed (missed=%d grazing=%d diverged=%d)", m.Kind(), failed, set.Len(), counts[contact.Missed], counts[contact.Grazing], counts[contact.Diverged])
	}
}
