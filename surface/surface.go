// Package surface evaluates the sag and unit normal of rotationally symmetric
// and freeform optical surfaces.
//
// Every surface is described in its own local frame: the vertex sits at the
// origin and the axis runs along +z.  Normals follow one convention across all
// variants,
//
//	n = (-dz/dx, -dz/dy, 1) / sqrt(1 + (dz/dx)^2 + (dz/dy)^2),
//
// so the z component of a normal is always positive.
//
// Models are immutable once constructed and may be shared by any number of
// goroutines.
package surface

import (
	"fmt"
	"math"

	"row-major/lenstrace/vmath/vec3"
)

const (
	DefaultTolerance     = 1e-10
	DefaultMaxIterations = 100
)

// Model is the capability every surface variant provides.  Both methods work
// on whole batches of points so that a domain violation anywhere in the batch
// aborts the call.
type Model interface {
	// Kind names the variant, for logs and metrics.
	Kind() string

	// Sag writes the sag at each (x[i], y[i]) into z[i].
	Sag(x, y, z []float64) error

	// Normal writes the unit normal at each (x[i], y[i]) into n[i].
	Normal(x, y []float64, n []vec3.T) error
}

// Conicoid is implemented by surfaces whose intersection has a closed form.
type Conicoid interface {
	Quadric() (curvature, conic float64)
}

// ConicBased is implemented by surfaces built on a conic of revolution.  The
// conic's closed-form intersection seeds iterative solvers.
type ConicBased interface {
	BaseConic() (curvature, conic float64)
}

// Convergent is implemented by surfaces that carry their own iteration
// settings for the Newton intersector.
type Convergent interface {
	Convergence() (tolerance float64, maxIterations int)
}

// DomainError reports a point outside the region where a surface's sag is
// defined.  It signals misconfiguration (for example a normalization radius
// smaller than the traced aperture) rather than a per-ray condition.
type DomainError struct {
	Kind  string
	Index int
	X, Y  float64
	U, V  float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s surface: point %d at (%v, %v) normalizes to (%v, %v), outside [-1, 1]; consider updating the normalization factors", e.Kind, e.Index, e.X, e.Y, e.U, e.V)
}

// SagAt evaluates the sag of m at a single point.
func SagAt(m Model, x, y float64) (float64, error) {
	z := []float64{0}
	if err := m.Sag([]float64{x}, []float64{y}, z); err != nil {
		return 0, err
	}
	return z[0], nil
}

// NormalAt evaluates the unit normal of m at a single point.
func NormalAt(m Model, x, y float64) (vec3.T, error) {
	n := []vec3.T{{}}
	if err := m.Normal([]float64{x}, []float64{y}, n); err != nil {
		return vec3.T{}, err
	}
	return n[0], nil
}

func checkLengths(x, y []float64, out int) error {
	if len(x) != len(y) || len(x) != out {
		return fmt.Errorf("mismatched point batch: len(x)=%d len(y)=%d len(out)=%d", len(x), len(y), out)
	}
	return nil
}

// conicBase is the conic section shared by every variant, held in curvature
// form so that a flat surface is simply zero curvature.
type conicBase struct {
	curvature float64
	k         float64
}

func newConicBase(radius, k float64) (conicBase, error) {
	if radius == 0 || math.IsNaN(radius) {
		return conicBase{}, fmt.Errorf("radius must be nonzero (use +Inf for a flat surface), got %v", radius)
	}
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return conicBase{}, fmt.Errorf("conic constant must be finite, got %v", k)
	}
	return conicBase{curvature: 1 / radius, k: k}, nil
}

func (c conicBase) radius() float64 {
	return 1 / c.curvature
}

// sag is NaN outside the conic's aperture, where the square root goes
// negative.
func (c conicBase) sag(r2 float64) float64 {
	return c.curvature * r2 / (1 + math.Sqrt(1-(1+c.k)*c.curvature*c.curvature*r2))
}

func (c conicBase) slope(x, y float64) (dzdx, dzdy float64) {
	r2 := x*x + y*y
	root := math.Sqrt(1 - (1+c.k)*c.curvature*c.curvature*r2)
	return c.curvature * x / root, c.curvature * y / root
}

type config struct {
	conic         float64
	tolerance     float64
	maxIterations int
	normX, normY  float64
}

func defaultConfig() config {
	return config{
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
		normX:         1,
		normY:         1,
	}
}

func (c config) validate() error {
	if !(c.tolerance > 0) || math.IsInf(c.tolerance, 0) {
		return fmt.Errorf("tolerance must be positive and finite, got %v", c.tolerance)
	}
	if c.maxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.maxIterations)
	}
	if !(c.normX > 0) || !(c.normY > 0) || math.IsInf(c.normX, 0) || math.IsInf(c.normY, 0) {
		return fmt.Errorf("normalization factors must be positive and finite, got (%v, %v)", c.normX, c.normY)
	}
	return nil
}

// Option configures a surface at construction.
type Option func(*config)

// WithConic sets the conic constant k (default 0, a sphere).
func WithConic(k float64) Option {
	return func(c *config) {
		c.conic = k
	}
}

// WithTolerance sets the residual below which the Newton intersector accepts
// a ray (default 1e-10).
func WithTolerance(tol float64) Option {
	return func(c *config) {
		c.tolerance = tol
	}
}

// WithMaxIterations caps the Newton steps taken per ray (default 100).
func WithMaxIterations(n int) Option {
	return func(c *config) {
		c.maxIterations = n
	}
}

// WithNormalization sets the Chebyshev normalization radii (default 1, 1).
// Other variants ignore it.
func WithNormalization(normX, normY float64) Option {
	return func(c *config) {
		c.normX = normX
		c.normY = normY
	}
}

func buildConfig(opts []Option) (config, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return config{}, err
	}
	return c, nil
}
