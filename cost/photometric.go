package cost

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/camera"
	"github.com/viam-labs/densevo/lie"
	"github.com/viam-labs/densevo/rimage"
)

// Photometric measures the intensity difference between a reference keyframe
// and a tracking image under a candidate relative pose T_track_ref. Every
// reference pixel with finite disparity is back-projected to 3-D, warped into
// the tracking frame and sampled bilinearly; pixels that leave the image or
// lose positive depth are dropped, so the residual dimension varies from
// call to call.
//
// The Jacobian uses the precomputed reference-image gradient as a stand-in
// for the tracking-image gradient at the warped location. The approximation
// holds for small inter-frame motion, which is what the coarse-to-fine warm
// start guarantees; in exchange, no gradient needs recomputing as the
// linearization point moves.
type Photometric struct {
	cam       *camera.Stereo
	imRef     *rimage.FloatImage
	dispRef   *rimage.FloatImage
	gradRef   *rimage.Gradient
	imTrack   *rimage.FloatImage
	stiffness float64
}

// NewPhotometric validates that all grids match the camera bounds and
// returns the cost. stiffness is the scalar inverse standard deviation of
// the intensity error.
func NewPhotometric(
	cam *camera.Stereo,
	imRef, dispRef *rimage.FloatImage,
	gradRef *rimage.Gradient,
	imTrack *rimage.FloatImage,
	stiffness float64,
) (*Photometric, error) {
	for _, im := range []*rimage.FloatImage{imRef, dispRef, gradRef.X, gradRef.Y, imTrack} {
		if im.Width() != cam.Width || im.Height() != cam.Height {
			return nil, errors.Errorf("image size (%d, %d) does not match camera bounds (%d, %d)",
				im.Width(), im.Height(), cam.Width, cam.Height)
		}
	}
	return &Photometric{
		cam:       cam,
		imRef:     imRef,
		dispRef:   dispRef,
		gradRef:   gradRef,
		imTrack:   imTrack,
		stiffness: stiffness,
	}, nil
}

// Evaluate implements optimize.Cost over the single pose parameter
// T_track_ref. It returns a nil residual when no reference pixel survives
// validity filtering.
func (c *Photometric) Evaluate(params []lie.Element, jacobians []bool) ([]float64, []*mat.Dense, error) {
	if len(params) != 1 {
		return nil, nil, errors.Errorf("photometric cost takes 1 parameter, got %d", len(params))
	}
	pose, err := asSE3(params[0], "relative pose")
	if err != nil {
		return nil, nil, err
	}
	wantJac := len(jacobians) > 0 && jacobians[0]

	var res []float64
	var jacData []float64
	for v := 0; v < c.cam.Height; v++ {
		for u := 0; u < c.cam.Width; u++ {
			ref := camera.Measurement{U: float64(u), V: float64(v), Disparity: c.dispRef.At(u, v)}
			if !c.cam.IsValidMeasurement(ref) {
				continue
			}
			ptTrack := pose.Apply(c.cam.Triangulate(ref))
			predicted, projJac := c.cam.Project(ptTrack, wantJac)
			if !c.cam.IsValidMeasurement(predicted) {
				continue
			}
			est := rimage.BilinearInterpolate(c.imTrack, predicted.U, predicted.V)
			if math.IsNaN(est) {
				continue
			}
			res = append(res, c.stiffness*(est-c.imRef.At(u, v)))

			if !wantJac {
				continue
			}
			gx := c.gradRef.X.At(u, v)
			gy := c.gradRef.Y.At(u, v)
			odot := lie.Odot(ptTrack)
			for k := 0; k < 6; k++ {
				var du, dv float64
				for i := 0; i < 3; i++ {
					du += projJac.At(0, i) * odot.At(i, k)
					dv += projJac.At(1, i) * odot.At(i, k)
				}
				jacData = append(jacData, c.stiffness*(gx*du+gy*dv))
			}
		}
	}

	if len(res) == 0 {
		return nil, nil, nil
	}
	if jacobians == nil {
		return res, nil, nil
	}
	jacs := make([]*mat.Dense, 1)
	if wantJac {
		jacs[0] = mat.NewDense(len(res), 6, jacData)
	}
	return res, jacs, nil
}
