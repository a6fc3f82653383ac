// Package intersect computes the distance from each ray of a batch to a
// surface.
//
// Surfaces that offer a closed form (surface.Conicoid) are solved directly;
// every other surface goes through Newton iteration.  Either way the result is
// a full-length contact.Set: rays that miss, graze, or fail to converge are
// reported per ray rather than as errors.  The only errors are misuse and
// surface domain violations.
package intersect

import (
	"context"
	"fmt"

	"row-major/lenstrace/contact"
	"row-major/lenstrace/ray"
	"row-major/lenstrace/surface"
)

// Distance picks the intersector for m by its capabilities and runs it.
func Distance(ctx context.Context, m surface.Model, b *ray.Batch) (*contact.Set, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("while validating ray batch: %w", err)
	}

	if q, ok := m.(surface.Conicoid); ok {
		return ClosedForm(ctx, q, b), nil
	}

	set, err := NewtonFor(m).Intersect(ctx, m, b)
	if err != nil {
		return nil, fmt.Errorf("while intersecting %s surface: %w", m.Kind(), err)
	}
	return set, nil
}
