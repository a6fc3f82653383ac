package ray

// Paraxial holds meridional paraxial rays: a height y and a slope u per ray,
// propagating along z.
type Paraxial struct {
	X, Y, Z []float64
	U       []float64
	W       []float64
	I       []float64
}

// NewParaxial copies its inputs, broadcasting length-one slices, and sets every
// ray on axis in x with unit intensity.
func NewParaxial(y, u, z, w []float64) (*Paraxial, error) {
	size, err := commonLength(y, u, z, w)
	if err != nil {
		return nil, err
	}
	return &Paraxial{
		X: make([]float64, size),
		Y: broadcast(y, size),
		Z: broadcast(z, size),
		U: broadcast(u, size),
		W: broadcast(w, size),
		I: broadcast([]float64{1}, size),
	}, nil
}

func (p *Paraxial) Len() int {
	return len(p.Y)
}

// Propagate advances every ray by t along the axis.
func (p *Paraxial) Propagate(t float64) {
	for i := range p.Z {
		p.Z[i] += t
		p.Y[i] += t * p.U[i]
	}
}
