// Package source builds ray batches that sample an entrance aperture.
package source

import (
	"fmt"

	"row-major/lenstrace/ray"
	"row-major/lenstrace/vmath/vec3"
)

// Collimated launches parallel rays from the plane z = Z through a circular
// aperture of radius SemiAperture centred on the axis.
type Collimated struct {
	SemiAperture float64
	Z            float64

	// Direction need not be normalized.
	Direction  vec3.T
	Wavelength float64
}

func (c *Collimated) check() error {
	if !(c.SemiAperture > 0) {
		return fmt.Errorf("semi-aperture must be positive, got %v", c.SemiAperture)
	}
	if c.Direction.Norm() == 0 {
		return fmt.Errorf("direction must be nonzero")
	}
	return nil
}

// imageToPoint maps sample (cur of count) onto [-SemiAperture, SemiAperture].
func (c *Collimated) imageToPoint(cur, count int) float64 {
	if count == 1 {
		return 0
	}
	return c.SemiAperture * (2*float64(cur)/float64(count-1) - 1)
}

// Grid samples the aperture on an n x n square grid, dropping points outside
// the circle.
func (c *Collimated) Grid(n int) (*ray.Batch, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("grid size must be positive, got %d", n)
	}

	var xs, ys []float64
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			x := c.imageToPoint(col, n)
			y := c.imageToPoint(row, n)
			if x*x+y*y > c.SemiAperture*c.SemiAperture {
				continue
			}
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("no point of the %dx%d grid falls inside the aperture", n, n)
	}
	return c.batch(xs, ys)
}

// Fan samples n points along the y axis of the aperture.
func (c *Collimated) Fan(n int) (*ray.Batch, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("fan size must be positive, got %d", n)
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range ys {
		ys[i] = c.imageToPoint(i, n)
	}
	return c.batch(xs, ys)
}

// ParaxialFan samples n heights along the y axis of the aperture as paraxial
// rays, with slope u = M/N taken from the beam direction.
func (c *Collimated) ParaxialFan(n int) (*ray.Paraxial, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("fan size must be positive, got %d", n)
	}
	d := vec3.Normalize(c.Direction)
	if d[2] == 0 {
		return nil, fmt.Errorf("direction %v has no component along the axis", c.Direction)
	}

	ys := make([]float64, n)
	for i := range ys {
		ys[i] = c.imageToPoint(i, n)
	}
	return ray.NewParaxial(ys, []float64{d[1] / d[2]}, []float64{c.Z}, []float64{c.Wavelength})
}

func (c *Collimated) batch(xs, ys []float64) (*ray.Batch, error) {
	d := vec3.Normalize(c.Direction)
	return ray.NewBatch(
		xs,
		ys,
		[]float64{c.Z},
		[]float64{d[0]},
		[]float64{d[1]},
		[]float64{d[2]},
		[]float64{c.Wavelength},
	)
}
