package affinetransform

import (
	"math"
	"testing"

	"row-major/lenstrace/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestInvertRoundTrips(t *testing.T) {
	placements := map[string]AffineTransform{
		"identity":  Identity(),
		"translate": Translate(vec3.T{1, -2, 30}),
		"tilt":      Tilt(0.1, -0.2, 0.3),
		"decenter and tilt": Compose(
			Translate(vec3.T{0, 5, 10}),
			Tilt(math.Pi/4, 0, 0),
		),
	}

	p := vec3.T{3, -4, 12}
	for name, at := range placements {
		t.Run(name, func(t *testing.T) {
			got := TransformPoint(at.Invert(), TransformPoint(at, p))
			if diff := cmp.Diff(got, p, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("Point did not round-trip; diff (-got +want)\n%s", diff)
			}

			both := Compose(at.Invert(), at)
			if diff := cmp.Diff(both, Identity(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("Transform composed with its inverse is not identity; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestComposeOrder(t *testing.T) {
	// Tilt first, then translate: the origin lands on the translation.
	at := Compose(Translate(vec3.T{0, 0, 5}), Tilt(math.Pi/2, 0, 0))

	got := TransformPoint(at, vec3.T{0, 0, 0})
	if diff := cmp.Diff(got, vec3.T{0, 0, 5}, cmpopts.EquateApprox(0, 1e-15)); diff != "" {
		t.Errorf("Bad origin; diff (-got +want)\n%s", diff)
	}

	got = TransformDirection(at, vec3.T{0, 0, 1})
	if diff := cmp.Diff(got, vec3.T{0, -1, 0}, cmpopts.EquateApprox(0, 1e-15)); diff != "" {
		t.Errorf("Bad axis direction; diff (-got +want)\n%s", diff)
	}
}

func TestIsIdentity(t *testing.T) {
	if !Identity().IsIdentity() {
		t.Errorf("Identity().IsIdentity() = false")
	}
	if !Compose(Translate(vec3.T{}), Tilt(0, 0, 0)).IsIdentity() {
		t.Errorf("Zero decenter and tilt is not identity")
	}
	if Translate(vec3.T{0, 0, 1}).IsIdentity() {
		t.Errorf("Translation reports identity")
	}
}

func TestNormalTransformOfRotationIsRotation(t *testing.T) {
	at := Tilt(0.4, 0.5, -0.6)
	if diff := cmp.Diff(at.NormalTransformMat(), at.Linear, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Bad normal transform; diff (-got +want)\n%s", diff)
	}
}
