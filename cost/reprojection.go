package cost

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/camera"
	"github.com/viam-labs/densevo/lie"
)

// Reprojection compares the stereo projection of a world point against an
// observed measurement. Its parameters are the camera pose T_cam_w and the
// world point as a 3-vector.
type Reprojection struct {
	cam       *camera.Stereo
	observed  camera.Measurement
	stiffness *mat.Dense
}

// NewReprojection returns the constraint for one observation with a 3x3
// stiffness matrix.
func NewReprojection(cam *camera.Stereo, observed camera.Measurement, stiffness *mat.Dense) *Reprojection {
	return &Reprojection{cam: cam, observed: observed, stiffness: cloneDense(stiffness)}
}

// Evaluate implements optimize.Cost over parameters (T_cam_w, point).
func (c *Reprojection) Evaluate(params []lie.Element, jacobians []bool) ([]float64, []*mat.Dense, error) {
	if len(params) != 2 {
		return nil, nil, errors.Errorf("reprojection cost takes 2 parameters, got %d", len(params))
	}
	pose, err := asSE3(params[0], "camera pose")
	if err != nil {
		return nil, nil, err
	}
	pv, ok := params[1].(lie.Vector)
	if !ok || len(pv) != 3 {
		return nil, nil, errors.New("reprojection point must be a 3-vector")
	}
	ptWorld := r3.Vector{X: pv[0], Y: pv[1], Z: pv[2]}
	ptCam := pose.Apply(ptWorld)

	predicted, projJac := c.cam.Project(ptCam, jacobians != nil)
	res := applyStiffness(c.stiffness, []float64{
		predicted.U - c.observed.U,
		predicted.V - c.observed.V,
		predicted.Disparity - c.observed.Disparity,
	})
	if jacobians == nil {
		return res, nil, nil
	}

	jacs := make([]*mat.Dense, 2)
	if jacobians[0] {
		// chain through the point's first-order motion under a pose
		// perturbation
		var chain, j mat.Dense
		chain.Mul(projJac, lie.Odot(ptCam))
		j.Mul(c.stiffness, &chain)
		jacs[0] = &j
	}
	if jacobians[1] {
		var chain, j mat.Dense
		chain.Mul(projJac, pose.Rotation())
		j.Mul(c.stiffness, &chain)
		jacs[1] = &j
	}
	return res, jacs, nil
}
