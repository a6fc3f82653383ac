package surface

import (
	"fmt"

	"row-major/lenstrace/vmath/vec3"
)

// EvenAsphere adds even polynomial terms to a conic,
//
//	z = conic(r) + sum_i C[i] r^(2(i+1)).
type EvenAsphere struct {
	base   conicBase
	cfg    config
	coeffs []float64
}

func NewEvenAsphere(radius float64, coefficients []float64, opts ...Option) (*EvenAsphere, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("while configuring even asphere: %w", err)
	}
	base, err := newConicBase(radius, cfg.conic)
	if err != nil {
		return nil, fmt.Errorf("while configuring even asphere: %w", err)
	}
	return &EvenAsphere{
		base:   base,
		cfg:    cfg,
		coeffs: append([]float64(nil), coefficients...),
	}, nil
}

func (a *EvenAsphere) Kind() string {
	return "even_asphere"
}

func (a *EvenAsphere) Radius() float64 {
	return a.base.radius()
}

// Coefficients returns a copy of the aspheric coefficients.
func (a *EvenAsphere) Coefficients() []float64 {
	return append([]float64(nil), a.coeffs...)
}

func (a *EvenAsphere) BaseConic() (curvature, conic float64) {
	return a.base.curvature, a.base.k
}

func (a *EvenAsphere) Convergence() (float64, int) {
	return a.cfg.tolerance, a.cfg.maxIterations
}

func (a *EvenAsphere) Sag(x, y, z []float64) error {
	if err := checkLengths(x, y, len(z)); err != nil {
		return err
	}
	for i := range x {
		r2 := x[i]*x[i] + y[i]*y[i]
		zi := a.base.sag(r2)
		pow := r2
		for _, c := range a.coeffs {
			zi += c * pow
			pow *= r2
		}
		z[i] = zi
	}
	return nil
}

func (a *EvenAsphere) Normal(x, y []float64, n []vec3.T) error {
	if err := checkLengths(x, y, len(n)); err != nil {
		return err
	}
	for i := range x {
		dzdx, dzdy := a.base.slope(x[i], y[i])
		r2 := x[i]*x[i] + y[i]*y[i]
		pow := 1.0
		for j, c := range a.coeffs {
			dzdx += 2 * float64(j+1) * x[i] * c * pow
			dzdy += 2 * float64(j+1) * y[i] * c * pow
			pow *= r2
		}
		n[i] = vec3.FromSlope(dzdx, dzdy)
	}
	return nil
}
