package surface

import (
	"fmt"
	"math"

	"row-major/lenstrace/vmath/vec3"
)

// Chebyshev adds a product series of Chebyshev polynomials of the first kind
// to a conic,
//
//	z = conic(r) + sum_ij C[i][j] T_i(x/normX) T_j(y/normY).
//
// The series is only defined for |x/normX| <= 1 and |y/normY| <= 1.
type Chebyshev struct {
	base   conicBase
	cfg    config
	coeffs [][]float64

	// terms lists the nonzero coefficients; degX and degY are the highest
	// polynomial degrees among them.
	terms      []chebyshevTerm
	degX, degY int
}

type chebyshevTerm struct {
	i, j int
	c    float64
}

// NewChebyshev builds a Chebyshev freeform surface.  coefficients[i][j]
// multiplies T_i(x) T_j(y); rows may have different lengths.
func NewChebyshev(radius float64, coefficients [][]float64, opts ...Option) (*Chebyshev, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("while configuring chebyshev surface: %w", err)
	}
	base, err := newConicBase(radius, cfg.conic)
	if err != nil {
		return nil, fmt.Errorf("while configuring chebyshev surface: %w", err)
	}

	s := &Chebyshev{base: base, cfg: cfg}
	for i, row := range coefficients {
		s.coeffs = append(s.coeffs, append([]float64(nil), row...))
		for j, c := range row {
			if c == 0 {
				continue
			}
			s.terms = append(s.terms, chebyshevTerm{i: i, j: j, c: c})
			if i > s.degX {
				s.degX = i
			}
			if j > s.degY {
				s.degY = j
			}
		}
	}
	return s, nil
}

func (s *Chebyshev) Kind() string {
	return "chebyshev"
}

func (s *Chebyshev) Radius() float64 {
	return s.base.radius()
}

func (s *Chebyshev) Normalization() (normX, normY float64) {
	return s.cfg.normX, s.cfg.normY
}

// Coefficients returns a copy of the coefficient grid.
func (s *Chebyshev) Coefficients() [][]float64 {
	out := make([][]float64, len(s.coeffs))
	for i, row := range s.coeffs {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func (s *Chebyshev) BaseConic() (curvature, conic float64) {
	return s.base.curvature, s.base.k
}

func (s *Chebyshev) Convergence() (float64, int) {
	return s.cfg.tolerance, s.cfg.maxIterations
}

// checkDomain rejects the whole batch if any point falls outside the
// normalized square.  NaN coordinates are outside.
func (s *Chebyshev) checkDomain(x, y []float64) error {
	for i := range x {
		u := x[i] / s.cfg.normX
		v := y[i] / s.cfg.normY
		if !(math.Abs(u) <= 1) || !(math.Abs(v) <= 1) {
			return &DomainError{Kind: s.Kind(), Index: i, X: x[i], Y: y[i], U: u, V: v}
		}
	}
	return nil
}

func (s *Chebyshev) Sag(x, y, z []float64) error {
	if err := checkLengths(x, y, len(z)); err != nil {
		return err
	}
	if err := s.checkDomain(x, y); err != nil {
		return err
	}

	tx := make([]float64, s.degX+1)
	ty := make([]float64, s.degY+1)
	for i := range x {
		zi := s.base.sag(x[i]*x[i] + y[i]*y[i])
		if len(s.terms) != 0 {
			chebyshevSeries(x[i]/s.cfg.normX, tx, nil)
			chebyshevSeries(y[i]/s.cfg.normY, ty, nil)
			for _, term := range s.terms {
				zi += term.c * tx[term.i] * ty[term.j]
			}
		}
		z[i] = zi
	}
	return nil
}

func (s *Chebyshev) Normal(x, y []float64, n []vec3.T) error {
	if err := checkLengths(x, y, len(n)); err != nil {
		return err
	}
	if err := s.checkDomain(x, y); err != nil {
		return err
	}

	tx := make([]float64, s.degX+1)
	dtx := make([]float64, s.degX+1)
	ty := make([]float64, s.degY+1)
	dty := make([]float64, s.degY+1)
	for i := range x {
		dzdx, dzdy := s.base.slope(x[i], y[i])
		if len(s.terms) != 0 {
			chebyshevSeries(x[i]/s.cfg.normX, tx, dtx)
			chebyshevSeries(y[i]/s.cfg.normY, ty, dty)
			var sx, sy float64
			for _, term := range s.terms {
				sx += term.c * dtx[term.i] * ty[term.j]
				sy += term.c * tx[term.i] * dty[term.j]
			}
			dzdx += sx / s.cfg.normX
			dzdy += sy / s.cfg.normY
		}
		n[i] = vec3.FromSlope(dzdx, dzdy)
	}
	return nil
}

// chebyshevSeries fills t[n] = T_n(u) and, when dt is non-nil,
// dt[n] = T_n'(u) for every n < len(t).
//
// T_n(u) = cos(n acos u) and T_n'(u) = n sin(n acos u) / sqrt(1 - u^2) on
// [-1, 1].  The three-term recurrences produce the same values and stay finite
// at u = ±1, where the trigonometric derivative is 0/0.  The derivative uses
// T_n' = n U_{n-1} with U the polynomials of the second kind.
func chebyshevSeries(u float64, t, dt []float64) {
	t[0] = 1
	if len(t) > 1 {
		t[1] = u
	}
	for n := 2; n < len(t); n++ {
		t[n] = 2*u*t[n-1] - t[n-2]
	}

	if dt == nil {
		return
	}
	dt[0] = 0
	uPrev, uCur := 0.0, 1.0 // U_{-1}, U_0
	for n := 1; n < len(dt); n++ {
		dt[n] = float64(n) * uCur
		uPrev, uCur = uCur, 2*u*uCur-uPrev
	}
}
