// Package camera provides the rectified stereo pinhole model consumed by the
// reprojection and photometric costs. Measurements are (u, v, d) tuples: a
// pixel in the left image plus the horizontal disparity to the right image.
package camera

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Measurement is a stereo observation of a 3-D point.
type Measurement struct {
	U, V      float64
	Disparity float64
}

// Stereo is a rectified stereo pair with identical pinhole intrinsics.
type Stereo struct {
	// Focal lengths and principal point, in pixels.
	Fu, Fv, Cu, Cv float64
	// Baseline between the two optical centers, in the same metric unit as
	// triangulated points.
	Baseline float64
	// Image bounds in pixels.
	Width, Height int
}

// NewStereo validates the intrinsics and returns the camera model.
func NewStereo(fu, fv, cu, cv, baseline float64, width, height int) (*Stereo, error) {
	if fu <= 0 || fv <= 0 {
		return nil, errors.Errorf("focal lengths must be positive, got (%g, %g)", fu, fv)
	}
	if baseline <= 0 {
		return nil, errors.Errorf("baseline must be positive, got %g", baseline)
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("image bounds must be positive, got (%d, %d)", width, height)
	}
	return &Stereo{Fu: fu, Fv: fv, Cu: cu, Cv: cv, Baseline: baseline, Width: width, Height: height}, nil
}

// Scaled returns a copy of the camera with intrinsics multiplied by factor
// and the given image bounds, for use at a coarser pyramid level. The
// baseline is metric and does not scale.
func (c *Stereo) Scaled(factor float64, width, height int) *Stereo {
	return &Stereo{
		Fu: c.Fu * factor, Fv: c.Fv * factor,
		Cu: c.Cu * factor, Cv: c.Cv * factor,
		Baseline: c.Baseline,
		Width:    width, Height: height,
	}
}

// Project maps a point in the camera frame to a stereo measurement. When
// wantJacobian is set it also returns the 3x3 Jacobian of (u, v, d) with
// respect to the point. Points at or behind the image plane project to
// non-finite or non-positive-disparity measurements, which
// IsValidMeasurement rejects; callers must filter before using the Jacobian.
func (c *Stereo) Project(p r3.Vector, wantJacobian bool) (Measurement, *mat.Dense) {
	invZ := 1 / p.Z
	m := Measurement{
		U:         c.Fu*p.X*invZ + c.Cu,
		V:         c.Fv*p.Y*invZ + c.Cv,
		Disparity: c.Fu * c.Baseline * invZ,
	}
	if !wantJacobian {
		return m, nil
	}
	invZ2 := invZ * invZ
	jac := mat.NewDense(3, 3, []float64{
		c.Fu * invZ, 0, -c.Fu * p.X * invZ2,
		0, c.Fv * invZ, -c.Fv * p.Y * invZ2,
		0, 0, -c.Fu * c.Baseline * invZ2,
	})
	return m, jac
}

// Triangulate back-projects a stereo measurement to a point in the camera
// frame.
func (c *Stereo) Triangulate(m Measurement) r3.Vector {
	z := c.Fu * c.Baseline / m.Disparity
	return r3.Vector{
		X: (m.U - c.Cu) * z / c.Fu,
		Y: (m.V - c.Cv) * z / c.Fv,
		Z: z,
	}
}

// IsValidMeasurement reports whether m is finite, inside the image bounds,
// and has positive disparity.
func (c *Stereo) IsValidMeasurement(m Measurement) bool {
	if math.IsNaN(m.U) || math.IsInf(m.U, 0) ||
		math.IsNaN(m.V) || math.IsInf(m.V, 0) ||
		math.IsNaN(m.Disparity) || math.IsInf(m.Disparity, 0) {
		return false
	}
	return m.U >= 0 && m.U <= float64(c.Width-1) &&
		m.V >= 0 && m.V <= float64(c.Height-1) &&
		m.Disparity > 0
}
