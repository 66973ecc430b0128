package optimize

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/lie"
)

// Cost computes a residual vector and, on request, analytic Jacobian blocks
// with respect to each parameter. Implementations must not mutate params.
type Cost interface {
	// Evaluate returns the residual at params and, for every index i with
	// jacobians[i] true, the m x Dof_i Jacobian block of the residual with
	// respect to a left-multiplicative tangent perturbation of params[i]:
	//
	//	residual(params with params[i] replaced by params[i].Retract(d))
	//	  ~ residual(params) + jac[i]*d
	//
	// to first order. A nil jacobians slice requests no Jacobians; entries for
	// unrequested indices are nil. A nil residual means the cost has no valid
	// measurements at params (the residual dimension of vision costs varies
	// with the current estimate).
	Evaluate(params []lie.Element, jacobians []bool) ([]float64, []*mat.Dense, error)
}

// NumericalJacobian computes the central finite-difference Jacobian of c with
// respect to params[index], perturbing through the parameter's retraction.
// It is the correctness oracle every analytic Jacobian in this repository is
// validated against. The residual dimension must be stable under
// perturbations of size step around params.
func NumericalJacobian(c Cost, params []lie.Element, index int, step float64) (*mat.Dense, error) {
	base, _, err := c.Evaluate(params, nil)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, errors.New("cost has no valid measurements at params")
	}
	m := len(base)
	dof := params[index].Dof()
	jac := mat.NewDense(m, dof, nil)

	perturbed := make([]lie.Element, len(params))
	delta := make([]float64, dof)
	for k := 0; k < dof; k++ {
		copy(perturbed, params)

		delta[k] = step
		perturbed[index] = params[index].Retract(delta)
		plus, _, err := c.Evaluate(perturbed, nil)
		if err != nil {
			return nil, err
		}

		delta[k] = -step
		perturbed[index] = params[index].Retract(delta)
		minus, _, err := c.Evaluate(perturbed, nil)
		if err != nil {
			return nil, err
		}
		delta[k] = 0

		if len(plus) != m || len(minus) != m {
			return nil, errors.Errorf(
				"residual dimension changed under perturbation of parameter %d (%d -> %d/%d)",
				index, m, len(plus), len(minus))
		}
		for i := 0; i < m; i++ {
			jac.Set(i, k, (plus[i]-minus[i])/(2*step))
		}
	}
	return jac, nil
}
