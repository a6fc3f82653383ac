// Package metrics records intersection outcomes as OpenCensus measurements.
package metrics

import (
	"context"

	"row-major/lenstrace/contact"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	KeySurface = tag.MustNewKey("surface")
	KeyStatus  = tag.MustNewKey("status")

	RayCount        = stats.Int64("lenstrace/rays", "Rays intersected with a surface", stats.UnitDimensionless)
	NewtonPassCount = stats.Int64("lenstrace/newton_iterations", "Newton steps taken by rays that hit", stats.UnitDimensionless)

	RayCountView = &view.View{
		Name:        "lenstrace/rays",
		Description: "Rays intersected with a surface, by surface kind and outcome",
		TagKeys:     []tag.Key{KeySurface, KeyStatus},
		Measure:     RayCount,
		Aggregation: view.Sum(),
	}

	NewtonPassView = &view.View{
		Name:        "lenstrace/newton_iterations",
		Description: "Distribution of Newton steps per converged ray",
		TagKeys:     []tag.Key{KeySurface},
		Measure:     NewtonPassCount,
		Aggregation: view.Distribution(0, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 50, 100),
	}
)

// Register registers the package's views with the default view worker.
func Register() error {
	return view.Register(RayCountView, NewtonPassView)
}

// RecordContacts records one measurement per status present in set, and the
// step count of every ray that hit.
func RecordContacts(ctx context.Context, surfaceKind string, set *contact.Set) {
	for status, count := range set.Counts() {
		stats.RecordWithOptions(
			ctx,
			stats.WithTags(
				tag.Upsert(KeySurface, surfaceKind),
				tag.Upsert(KeyStatus, status.String()),
			),
			stats.WithMeasurements(RayCount.M(int64(count))))
	}

	measurements := []stats.Measurement{}
	for _, i := range set.Hits() {
		measurements = append(measurements, NewtonPassCount.M(int64(set.Iterations[i])))
	}
	if len(measurements) == 0 {
		return
	}
	stats.RecordWithOptions(
		ctx,
		stats.WithTags(tag.Upsert(KeySurface, surfaceKind)),
		stats.WithMeasurements(measurements...))
}
