package surface

import (
	"fmt"

	"row-major/lenstrace/vmath/vec3"
)

// Standard is a conic of revolution,
//
//	z = c r^2 / (1 + sqrt(1 - (1 + k) c^2 r^2)),  c = 1/R.
type Standard struct {
	base conicBase
	cfg  config
}

func NewStandard(radius float64, opts ...Option) (*Standard, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("while configuring standard surface: %w", err)
	}
	base, err := newConicBase(radius, cfg.conic)
	if err != nil {
		return nil, fmt.Errorf("while configuring standard surface: %w", err)
	}
	return &Standard{base: base, cfg: cfg}, nil
}

func (s *Standard) Kind() string {
	return "standard"
}

func (s *Standard) Radius() float64 {
	return s.base.radius()
}

func (s *Standard) Quadric() (curvature, conic float64) {
	return s.base.curvature, s.base.k
}

func (s *Standard) BaseConic() (curvature, conic float64) {
	return s.base.curvature, s.base.k
}

func (s *Standard) Convergence() (float64, int) {
	return s.cfg.tolerance, s.cfg.maxIterations
}

func (s *Standard) Sag(x, y, z []float64) error {
	if err := checkLengths(x, y, len(z)); err != nil {
		return err
	}
	for i := range x {
		z[i] = s.base.sag(x[i]*x[i] + y[i]*y[i])
	}
	return nil
}

func (s *Standard) Normal(x, y []float64, n []vec3.T) error {
	if err := checkLengths(x, y, len(n)); err != nil {
		return err
	}
	for i := range x {
		n[i] = vec3.FromSlope(s.base.slope(x[i], y[i]))
	}
	return nil
}
