package ray

import (
	"math"
	"testing"

	"row-major/lenstrace/affinetransform"
	"row-major/lenstrace/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestNewBatchBroadcasts(t *testing.T) {
	b, err := NewBatch(
		[]float64{0, 1, 2},
		[]float64{5},
		[]float64{-10},
		[]float64{0},
		[]float64{0.6},
		[]float64{0.8},
		[]float64{0.55},
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := &Batch{
		X: []float64{0, 1, 2},
		Y: []float64{5, 5, 5},
		Z: []float64{-10, -10, -10},
		L: []float64{0, 0, 0},
		M: []float64{0.6, 0.6, 0.6},
		N: []float64{0.8, 0.8, 0.8},
		W: []float64{0.55, 0.55, 0.55},
		I: []float64{1, 1, 1},
	}
	if diff := cmp.Diff(b, want); diff != "" {
		t.Errorf("Bad batch; diff (-got +want)\n%s", diff)
	}
}

func TestNewBatchCopiesInputs(t *testing.T) {
	x := []float64{1, 2}
	b, err := NewBatch(x, []float64{0}, []float64{0}, []float64{0}, []float64{0}, []float64{1}, []float64{0.5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	x[0] = 100
	if b.X[0] != 1 {
		t.Errorf("Batch aliases its input: X[0] = %v after caller mutation", b.X[0])
	}
}

func TestNewBatchErrors(t *testing.T) {
	one := []float64{0}
	testCases := []struct {
		name    string
		x, l, n []float64
	}{
		{
			name: "mismatched lengths",
			x:    []float64{0, 1, 2},
			l:    []float64{0, 0},
			n:    one,
		},
		{
			name: "non-unit direction",
			x:    one,
			l:    one,
			n:    []float64{0.5},
		},
		{
			name: "zero direction",
			x:    one,
			l:    one,
			n:    one,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBatch(tc.x, one, one, tc.l, one, tc.n, one)
			if err == nil {
				t.Fatalf("NewBatch succeeded, want error")
			}
		})
	}
}

func TestValidateSkipsInvalidRays(t *testing.T) {
	b := &Batch{
		X: []float64{0, 0},
		Y: []float64{0, 0},
		Z: []float64{0, 0},
		L: []float64{0, math.NaN()},
		M: []float64{0, math.NaN()},
		N: []float64{1, math.NaN()},
		W: []float64{0.5, 0.5},
		I: []float64{1, 0},
	}
	if err := b.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	b.I[1] = 1
	if err := b.Validate(); err == nil {
		t.Errorf("Validate accepted a valid ray with NaN direction")
	}
}

func TestValidateRejectsNonFinitePosition(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		b := &Batch{
			X: []float64{0, v},
			Y: []float64{0, 0},
			Z: []float64{0, -5},
			L: []float64{0, 0},
			M: []float64{0, 0},
			N: []float64{1, 1},
			W: []float64{0.5, 0.5},
			I: []float64{1, 1},
		}
		if err := b.Validate(); err == nil {
			t.Errorf("Validate accepted a ray at x=%v", v)
		}

		b.I[1] = 0
		if err := b.Validate(); err != nil {
			t.Errorf("Validate rejected an invalid ray at x=%v: %v", v, err)
		}
	}
}

func TestPropagate(t *testing.T) {
	b, err := NewBatch(
		[]float64{0},
		[]float64{0},
		[]float64{-10, -10, -10},
		[]float64{0},
		[]float64{0.6},
		[]float64{0.8},
		[]float64{0.5},
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	b.Propagate([]float64{12.5, math.Inf(1), math.NaN()})

	if diff := cmp.Diff(b.Y, []float64{7.5, 0, 0}, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Bad y; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(b.Z, []float64{0, -10, -10}, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Bad z; diff (-got +want)\n%s", diff)
	}
}

func TestCutPaste(t *testing.T) {
	b, err := NewBatch(
		[]float64{0, 1, 2, 3, 4},
		[]float64{0},
		[]float64{0},
		[]float64{0},
		[]float64{0},
		[]float64{1},
		[]float64{0.5},
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cut := b.Cut(1, 3)
	if diff := cmp.Diff(cut.X, []float64{1, 2}); diff != "" {
		t.Errorf("Bad cut; diff (-got +want)\n%s", diff)
	}

	cut.X[0] = 10
	if b.X[1] != 1 {
		t.Errorf("Cut aliases its source")
	}

	b.Paste(cut, 3)
	if diff := cmp.Diff(b.X, []float64{0, 1, 2, 10, 2}); diff != "" {
		t.Errorf("Bad paste; diff (-got +want)\n%s", diff)
	}
}

func TestTransform(t *testing.T) {
	b, err := NewBatch(
		[]float64{1},
		[]float64{2},
		[]float64{3},
		[]float64{0},
		[]float64{0},
		[]float64{1},
		[]float64{0.5},
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	b.Transform(affinetransform.Compose(
		affinetransform.Translate(vec3.T{0, 0, 5}),
		affinetransform.Tilt(0, 0, math.Pi/2),
	))

	got := b.Ray(0)
	want := Ray{
		Point: vec3.T{-2, 1, 8},
		Slope: vec3.T{0, 0, 1},
	}
	if diff := cmp.Diff(got, want, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Bad transformed ray; diff (-got +want)\n%s", diff)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("Transformed batch is invalid: %v", err)
	}
}

func TestRayEval(t *testing.T) {
	r := Ray{Point: vec3.T{1, 2, 3}, Slope: vec3.T{0, 0, 1}}
	if diff := cmp.Diff(r.Eval(2), vec3.T{1, 2, 5}); diff != "" {
		t.Errorf("Bad point; diff (-got +want)\n%s", diff)
	}
}
