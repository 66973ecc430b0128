package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/lie"
	"github.com/viam-labs/densevo/optimize"
)

func asSE3(e lie.Element, what string) (*lie.SE3, error) {
	t, ok := e.(*lie.SE3)
	if !ok {
		return nil, errors.Errorf("%s must be an SE3 pose", what)
	}
	return t, nil
}

func applyStiffness(s *mat.Dense, xi []float64) []float64 {
	var out mat.VecDense
	out.MulVec(s, mat.NewVecDense(len(xi), xi))
	res := make([]float64, len(xi))
	for i := range res {
		res[i] = out.AtVec(i)
	}
	return res
}

func cloneDense(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(m)
	return out
}

// PosePrior penalizes deviation of a pose estimate from an absolute pose
// observation: residual = stiffness * Log(T_est * T_obs^-1).
type PosePrior struct {
	observedInv *lie.SE3
	stiffness   *mat.Dense
}

// NewPosePrior returns the prior for an observed pose with a 6x6 stiffness
// matrix (the inverse square root of the measurement covariance).
func NewPosePrior(observed *lie.SE3, stiffness *mat.Dense) *PosePrior {
	return &PosePrior{observedInv: observed.Inverse(), stiffness: cloneDense(stiffness)}
}

// NewPosePriorFromCovariance derives the stiffness from a measurement
// covariance.
func NewPosePriorFromCovariance(observed *lie.SE3, covar *mat.SymDense) (*PosePrior, error) {
	stiffness, err := optimize.InvSqrt(covar)
	if err != nil {
		return nil, errors.Wrap(err, "deriving pose prior stiffness")
	}
	return &PosePrior{observedInv: observed.Inverse(), stiffness: stiffness}, nil
}

// Evaluate implements optimize.Cost over the single pose parameter. The
// Jacobian is the stiffness itself, the first-order block valid near the
// observation.
func (c *PosePrior) Evaluate(params []lie.Element, jacobians []bool) ([]float64, []*mat.Dense, error) {
	if len(params) != 1 {
		return nil, nil, errors.Errorf("pose prior takes 1 parameter, got %d", len(params))
	}
	est, err := asSE3(params[0], "pose prior parameter")
	if err != nil {
		return nil, nil, err
	}

	res := applyStiffness(c.stiffness, est.Compose(c.observedInv).Log())
	if jacobians == nil {
		return res, nil, nil
	}
	jacs := make([]*mat.Dense, 1)
	if jacobians[0] {
		jacs[0] = cloneDense(c.stiffness)
	}
	return res, jacs, nil
}

// RelativePose penalizes the loop formed by two pose estimates and a
// relative observation T_2_1: residual = stiffness * Log(T_2 * T_1^-1 *
// T_2_1^-1). The first pose's Jacobian is -stiffness*Adjoint(T_2) and the
// second's is the stiffness itself, the standard first-order pose-graph
// blocks, exact as the loop closes.
type RelativePose struct {
	observedInv *lie.SE3
	stiffness   *mat.Dense
}

// NewRelativePose returns the constraint for an observed relative motion
// T_2_1 with a 6x6 stiffness matrix.
func NewRelativePose(observed *lie.SE3, stiffness *mat.Dense) *RelativePose {
	return &RelativePose{observedInv: observed.Inverse(), stiffness: cloneDense(stiffness)}
}

// Evaluate implements optimize.Cost over parameters (T_1, T_2).
func (c *RelativePose) Evaluate(params []lie.Element, jacobians []bool) ([]float64, []*mat.Dense, error) {
	if len(params) != 2 {
		return nil, nil, errors.Errorf("relative pose cost takes 2 parameters, got %d", len(params))
	}
	t1, err := asSE3(params[0], "first pose")
	if err != nil {
		return nil, nil, err
	}
	t2, err := asSE3(params[1], "second pose")
	if err != nil {
		return nil, nil, err
	}

	res := applyStiffness(c.stiffness, t2.Compose(t1.Inverse()).Compose(c.observedInv).Log())
	if jacobians == nil {
		return res, nil, nil
	}
	jacs := make([]*mat.Dense, 2)
	if jacobians[0] {
		var j mat.Dense
		j.Mul(c.stiffness, t2.Adjoint())
		j.Scale(-1, &j)
		jacs[0] = &j
	}
	if jacobians[1] {
		jacs[1] = cloneDense(c.stiffness)
	}
	return res, jacs, nil
}
