package prescription

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"row-major/lenstrace/affinetransform"
	"row-major/lenstrace/surface"
	"row-major/lenstrace/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const doublet = `
surfaces:
  - name: window
    radius: .inf
  - name: front
    type: even_asphere
    radius: 50
    conic: -1
    aspheric: [1e-5, -2e-8]
    max_iterations: 40
    decenter: [0, 0, 10]
  - name: back
    type: chebyshev
    radius: -80
    chebyshev:
      - [0, 1e-3]
      - [2e-3]
    norm_x: 12
    norm_y: 10
    tolerance: 1e-9
    tilt_deg: [90, 0, 0]
`

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(doublet))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var names, kinds []string
	for _, e := range entries {
		names = append(names, e.Name)
		kinds = append(kinds, e.Model.Kind())
	}
	if diff := cmp.Diff(names, []string{"window", "front", "back"}); diff != "" {
		t.Fatalf("Bad names; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(kinds, []string{"standard", "even_asphere", "chebyshev"}); diff != "" {
		t.Fatalf("Bad kinds; diff (-got +want)\n%s", diff)
	}

	window := entries[0].Model.(*surface.Standard)
	if !math.IsInf(window.Radius(), 1) {
		t.Errorf("Window radius = %v, want +Inf", window.Radius())
	}
	if !entries[0].Placement.IsIdentity() {
		t.Errorf("Window placement = %+v, want identity", entries[0].Placement)
	}

	front := entries[1].Model.(*surface.EvenAsphere)
	if diff := cmp.Diff(front.Coefficients(), []float64{1e-5, -2e-8}); diff != "" {
		t.Errorf("Bad aspheric coefficients; diff (-got +want)\n%s", diff)
	}
	tol, maxIter := front.Convergence()
	if tol != surface.DefaultTolerance || maxIter != 40 {
		t.Errorf("Front convergence = (%v, %v), want (%v, 40)", tol, maxIter, surface.DefaultTolerance)
	}
	if diff := cmp.Diff(entries[1].Placement, affinetransform.Translate(vec3.T{0, 0, 10})); diff != "" {
		t.Errorf("Bad front placement; diff (-got +want)\n%s", diff)
	}

	back := entries[2].Model.(*surface.Chebyshev)
	normX, normY := back.Normalization()
	if normX != 12 || normY != 10 {
		t.Errorf("Back normalization = (%v, %v), want (12, 10)", normX, normY)
	}
	if diff := cmp.Diff(back.Coefficients(), [][]float64{{0, 1e-3}, {2e-3}}); diff != "" {
		t.Errorf("Bad chebyshev coefficients; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(entries[2].Placement, affinetransform.Tilt(math.Pi/2, 0, 0), cmpopts.EquateApprox(0, 1e-15)); diff != "" {
		t.Errorf("Bad back placement; diff (-got +want)\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"not yaml", "surfaces: [\n"},
		{"no surfaces", "surfaces: []\n"},
		{"missing radius", "surfaces:\n  - name: a\n"},
		{"zero radius", "surfaces:\n  - radius: 0\n"},
		{"unknown type", "surfaces:\n  - type: toroid\n    radius: 10\n"},
		{"coefficients on standard", "surfaces:\n  - radius: 10\n    aspheric: [1e-5]\n"},
		{"chebyshev on asphere", "surfaces:\n  - type: even_asphere\n    radius: 10\n    chebyshev: [[1]]\n"},
		{"short decenter", "surfaces:\n  - radius: 10\n    decenter: [0, 1]\n"},
		{"bad normalization", "surfaces:\n  - type: chebyshev\n    radius: 10\n    norm_x: -3\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); err == nil {
				t.Errorf("Parse succeeded, want error")
			}
		})
	}
}

func TestParseDefaultsName(t *testing.T) {
	entries, err := Parse([]byte("surfaces:\n  - radius: 10\n  - radius: -10\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entries[1].Name != "surface-1" {
		t.Errorf("Name = %q, want %q", entries[1].Name, "surface-1")
	}
}

func TestLoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doublet.yaml")
	if err := os.WriteFile(path, []byte(doublet), 0644); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	entries, err := Load(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Loaded %d surfaces, want 3", len(entries))
	}
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		uri  string
	}{
		{"missing file", filepath.Join(t.TempDir(), "absent.yaml")},
		{"GCS without client", "gs://bucket/lens.yaml"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(context.Background(), nil, tc.uri); err == nil {
				t.Errorf("Load succeeded, want error")
			}
		})
	}
}
