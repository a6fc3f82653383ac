// Package prescription loads surface definitions from YAML documents.
package prescription

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"row-major/lenstrace/affinetransform"
	"row-major/lenstrace/surface"
	"row-major/lenstrace/vmath/vec3"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// Document is the YAML layout of a prescription.
type Document struct {
	Surfaces []SurfaceSpec `yaml:"surfaces"`
}

type SurfaceSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Radius is required; write .inf for a flat surface.
	Radius        *float64 `yaml:"radius"`
	Conic         float64  `yaml:"conic"`
	Tolerance     float64  `yaml:"tolerance"`
	MaxIterations int      `yaml:"max_iterations"`

	Aspheric  []float64   `yaml:"aspheric"`
	Chebyshev [][]float64 `yaml:"chebyshev"`
	NormX     float64     `yaml:"norm_x"`
	NormY     float64     `yaml:"norm_y"`

	Decenter []float64 `yaml:"decenter"`
	TiltDeg  []float64 `yaml:"tilt_deg"`
}

// Entry is one built surface together with its placement.
type Entry struct {
	Name      string
	Model     surface.Model
	Placement affinetransform.AffineTransform
}

// Parse builds every surface listed in a YAML prescription.
func Parse(data []byte) ([]Entry, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("while unmarshaling prescription: %w", err)
	}
	if len(doc.Surfaces) == 0 {
		return nil, fmt.Errorf("prescription lists no surfaces")
	}

	entries := []Entry{}
	for i, spec := range doc.Surfaces {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("surface-%d", i)
		}

		model, err := convertSurface(spec)
		if err != nil {
			return nil, fmt.Errorf("while building surface %d (%q): %w", i, name, err)
		}
		placement, err := convertPlacement(spec)
		if err != nil {
			return nil, fmt.Errorf("while placing surface %d (%q): %w", i, name, err)
		}

		entries = append(entries, Entry{
			Name:      name,
			Model:     model,
			Placement: placement,
		})
	}
	return entries, nil
}

func convertSurface(spec SurfaceSpec) (surface.Model, error) {
	if spec.Radius == nil {
		return nil, fmt.Errorf("radius is required")
	}

	opts := []surface.Option{surface.WithConic(spec.Conic)}
	if spec.Tolerance != 0 {
		opts = append(opts, surface.WithTolerance(spec.Tolerance))
	}
	if spec.MaxIterations != 0 {
		opts = append(opts, surface.WithMaxIterations(spec.MaxIterations))
	}

	switch spec.Type {
	case "", "standard":
		if len(spec.Aspheric) != 0 || len(spec.Chebyshev) != 0 {
			return nil, fmt.Errorf("standard surface takes no coefficients")
		}
		return surface.NewStandard(*spec.Radius, opts...)

	case "even_asphere":
		if len(spec.Chebyshev) != 0 {
			return nil, fmt.Errorf("even asphere takes aspheric coefficients, not chebyshev")
		}
		return surface.NewEvenAsphere(*spec.Radius, spec.Aspheric, opts...)

	case "chebyshev":
		if len(spec.Aspheric) != 0 {
			return nil, fmt.Errorf("chebyshev surface takes chebyshev coefficients, not aspheric")
		}
		normX, normY := spec.NormX, spec.NormY
		if normX == 0 {
			normX = 1
		}
		if normY == 0 {
			normY = 1
		}
		opts = append(opts, surface.WithNormalization(normX, normY))
		return surface.NewChebyshev(*spec.Radius, spec.Chebyshev, opts...)
	}

	return nil, fmt.Errorf("unknown surface type %q", spec.Type)
}

func convertPlacement(spec SurfaceSpec) (affinetransform.AffineTransform, error) {
	decenter, err := convertVec3(spec.Decenter)
	if err != nil {
		return affinetransform.AffineTransform{}, fmt.Errorf("bad decenter: %w", err)
	}
	tilt, err := convertVec3(spec.TiltDeg)
	if err != nil {
		return affinetransform.AffineTransform{}, fmt.Errorf("bad tilt: %w", err)
	}

	deg := math.Pi / 180
	return affinetransform.Compose(
		affinetransform.Translate(decenter),
		affinetransform.Tilt(tilt[0]*deg, tilt[1]*deg, tilt[2]*deg),
	), nil
}

func convertVec3(in []float64) (vec3.T, error) {
	switch len(in) {
	case 0:
		return vec3.T{}, nil
	case 3:
		return vec3.T{in[0], in[1], in[2]}, nil
	}
	return vec3.T{}, fmt.Errorf("want 3 components, got %d", len(in))
}

// Load reads and parses a prescription from a local path or from a
// gs://bucket/object URI.  gcs may be nil when uri is local.
func Load(ctx context.Context, gcs *storage.Client, uri string) ([]Entry, error) {
	tracer := otel.Tracer("row-major/lenstrace/prescription")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Load")
	defer span.End()

	span.SetAttributes(attribute.String("uri", uri))

	data, err := read(ctx, gcs, uri)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	entries, err := Parse(data)
	if err != nil {
		err := fmt.Errorf("while parsing %s: %w", uri, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return entries, nil
}

func read(ctx context.Context, gcs *storage.Client, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "gs://") {
		data, err := os.ReadFile(uri)
		if err != nil {
			return nil, fmt.Errorf("while reading prescription: %w", err)
		}
		return data, nil
	}

	if gcs == nil {
		return nil, fmt.Errorf("%s is a GCS object but no GCS client was given", uri)
	}
	bucket, object, ok := strings.Cut(strings.TrimPrefix(uri, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("malformed GCS URI %q, want gs://bucket/object", uri)
	}

	r, err := gcs.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("while opening reader for %s: %w", uri, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("while reading from %s: %w", uri, err)
	}
	return data, nil
}
