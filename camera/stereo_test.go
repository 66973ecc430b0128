package camera

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func testCamera(t *testing.T) *Stereo {
	t.Helper()
	cam, err := NewStereo(200, 200, 160, 120, 0.25, 320, 240)
	test.That(t, err, test.ShouldBeNil)
	return cam
}

func TestNewStereoValidation(t *testing.T) {
	_, err := NewStereo(0, 200, 160, 120, 0.25, 320, 240)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewStereo(200, 200, 160, 120, -1, 320, 240)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewStereo(200, 200, 160, 120, 0.25, 0, 240)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProjectTriangulateRoundTrip(t *testing.T) {
	cam := testCamera(t)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 25; i++ {
		p := r3.Vector{
			X: 2 * (r.Float64() - 0.5),
			Y: 2 * (r.Float64() - 0.5),
			Z: 1 + 4*r.Float64(),
		}
		m, _ := cam.Project(p, false)
		back := cam.Triangulate(m)
		test.That(t, back.X, test.ShouldAlmostEqual, p.X, 1e-10)
		test.That(t, back.Y, test.ShouldAlmostEqual, p.Y, 1e-10)
		test.That(t, back.Z, test.ShouldAlmostEqual, p.Z, 1e-10)
	}
}

func TestProjectJacobian(t *testing.T) {
	cam := testCamera(t)
	p := r3.Vector{X: 0.3, Y: -0.2, Z: 2.5}
	_, jac := cam.Project(p, true)

	const eps = 1e-7
	axes := []r3.Vector{{X: eps}, {Y: eps}, {Z: eps}}
	for k, d := range axes {
		plus, _ := cam.Project(p.Add(d), false)
		minus, _ := cam.Project(p.Sub(d), false)
		test.That(t, jac.At(0, k), test.ShouldAlmostEqual, (plus.U-minus.U)/(2*eps), 1e-5)
		test.That(t, jac.At(1, k), test.ShouldAlmostEqual, (plus.V-minus.V)/(2*eps), 1e-5)
		test.That(t, jac.At(2, k), test.ShouldAlmostEqual, (plus.Disparity-minus.Disparity)/(2*eps), 1e-5)
	}
}

func TestIsValidMeasurement(t *testing.T) {
	cam := testCamera(t)
	test.That(t, cam.IsValidMeasurement(Measurement{U: 10, V: 10, Disparity: 5}), test.ShouldBeTrue)
	test.That(t, cam.IsValidMeasurement(Measurement{U: -1, V: 10, Disparity: 5}), test.ShouldBeFalse)
	test.That(t, cam.IsValidMeasurement(Measurement{U: 10, V: 240, Disparity: 5}), test.ShouldBeFalse)
	test.That(t, cam.IsValidMeasurement(Measurement{U: 10, V: 10, Disparity: 0}), test.ShouldBeFalse)

	// behind the camera: negative disparity
	m, _ := cam.Project(r3.Vector{X: 0, Y: 0, Z: -2}, false)
	test.That(t, cam.IsValidMeasurement(m), test.ShouldBeFalse)
}

func TestScaled(t *testing.T) {
	cam := testCamera(t)
	half := cam.Scaled(0.5, 160, 120)
	test.That(t, half.Fu, test.ShouldAlmostEqual, 100)
	test.That(t, half.Cu, test.ShouldAlmostEqual, 80)
	test.That(t, half.Baseline, test.ShouldAlmostEqual, cam.Baseline)
	test.That(t, half.Width, test.ShouldEqual, 160)

	// scaling preserves the triangulated geometry
	p := r3.Vector{X: 0.4, Y: 0.1, Z: 3}
	m, _ := half.Project(p, false)
	back := half.Triangulate(m)
	test.That(t, back.Z, test.ShouldAlmostEqual, p.Z, 1e-10)
}
