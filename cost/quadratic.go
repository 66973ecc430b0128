// Package cost implements the cost functions evaluated by the optimize
// solver: a scalar polynomial-fit cost, absolute and relative pose costs, a
// stereo point-reprojection cost, and the dense photometric cost driving the
// coarse-to-fine tracker. Every analytic Jacobian here is derived against
// the left-multiplicative retraction convention of package lie and is
// validated against optimize.NumericalJacobian in the tests.
package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/lie"
)

// Quadratic is one sample constraint for fitting y = a*x^2 + b*x + c. The
// parameters are the three scalar coefficients, each its own block.
type Quadratic struct {
	x, y      float64
	stiffness float64
}

// NewQuadratic returns the constraint for one (x, y) sample, scaled by
// stiffness (the inverse standard deviation of the sample).
func NewQuadratic(x, y, stiffness float64) *Quadratic {
	return &Quadratic{x: x, y: y, stiffness: stiffness}
}

// Evaluate implements optimize.Cost over parameters (a, b, c).
func (q *Quadratic) Evaluate(params []lie.Element, jacobians []bool) ([]float64, []*mat.Dense, error) {
	if len(params) != 3 {
		return nil, nil, errors.Errorf("quadratic cost takes 3 parameters, got %d", len(params))
	}
	coef := make([]float64, 3)
	for i, p := range params {
		v, ok := p.(lie.Vector)
		if !ok || len(v) != 1 {
			return nil, nil, errors.Errorf("quadratic cost parameter %d must be a scalar", i)
		}
		coef[i] = v[0]
	}

	res := []float64{q.stiffness * (coef[0]*q.x*q.x + coef[1]*q.x + coef[2] - q.y)}
	if jacobians == nil {
		return res, nil, nil
	}

	jacs := make([]*mat.Dense, 3)
	grads := []float64{q.x * q.x, q.x, 1}
	for i, want := range jacobians {
		if want {
			jacs[i] = mat.NewDense(1, 1, []float64{q.stiffness * grads[i]})
		}
	}
	return res, jacs, nil
}
