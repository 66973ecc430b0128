// Package lie implements the matrix Lie groups SE(2) and SE(3) along with the
// tangent-space operations (exponential, logarithm, adjoint) needed for
// on-manifold least-squares optimization.
//
// Tangent vectors order translation before rotation: an SE(3) tangent is
// [rho_x rho_y rho_z phi_x phi_y phi_z]. Retraction is the left-multiplicative
// update Exp(delta) * T, and every analytic Jacobian in this repository is
// derived against that convention.
package lie

import (
	"gonum.org/v1/gonum/floats"
)

// Element is a point on a smooth manifold that can be perturbed by a
// tangent-space vector. It is the optimizer's unit of state: Euclidean
// vectors and Lie-group elements both satisfy it.
type Element interface {
	// Dof returns the dimension of the tangent space.
	Dof() int
	// Retract applies a tangent-space perturbation of length Dof and returns
	// the updated element. The receiver is not modified. Retract panics if
	// len(delta) != Dof.
	Retract(delta []float64) Element
}

// Vector is a Euclidean parameter of arbitrary dimension. Its retraction is
// plain vector addition.
type Vector []float64

// NewVector returns a Vector with the given components.
func NewVector(vals ...float64) Vector {
	v := make(Vector, len(vals))
	copy(v, vals)
	return v
}

// Dof returns the dimension of the vector.
func (v Vector) Dof() int {
	return len(v)
}

// Retract returns v + delta as a new Vector.
func (v Vector) Retract(delta []float64) Element {
	if len(delta) != len(v) {
		panic("lie: retraction dimension mismatch")
	}
	out := make(Vector, len(v))
	floats.AddTo(out, v, delta)
	return out
}
