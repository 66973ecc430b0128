package lie

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// SE3 is a rigid-body transformation in three dimensions, stored as a 3x3
// rotation matrix and a translation vector. Elements are immutable: all
// operations return new values.
type SE3 struct {
	rot   *mat.Dense
	trans r3.Vector
}

// NewSE3 constructs an SE3 from a 3x3 rotation matrix and a translation.
// The rotation is copied; it is the caller's responsibility that it is a
// proper rotation.
func NewSE3(rot *mat.Dense, trans r3.Vector) *SE3 {
	r := mat.NewDense(3, 3, nil)
	r.Copy(rot)
	return &SE3{rot: r, trans: trans}
}

// IdentitySE3 returns the identity transformation.
func IdentitySE3() *SE3 {
	return &SE3{rot: eye(3)}
}

// ExpSE3 maps a tangent vector [rho, phi] of length 6 to a group element
// with rotation Exp(phi) and translation J_l(phi)*rho.
func ExpSE3(xi []float64) *SE3 {
	if len(xi) != 6 {
		panic("lie: SE3 tangent must have length 6")
	}
	rho := r3.Vector{X: xi[0], Y: xi[1], Z: xi[2]}
	phi := r3.Vector{X: xi[3], Y: xi[4], Z: xi[5]}
	return &SE3{
		rot:   expSO3(phi),
		trans: mulVec3(leftJacobianSO3(phi), rho),
	}
}

// Dof returns 6, the dimension of se(3).
func (t *SE3) Dof() int { return 6 }

// Rotation returns a copy of the rotation matrix.
func (t *SE3) Rotation() *mat.Dense {
	r := mat.NewDense(3, 3, nil)
	r.Copy(t.rot)
	return r
}

// Translation returns the translation component.
func (t *SE3) Translation() r3.Vector { return t.trans }

// Compose returns the product t * other.
func (t *SE3) Compose(other *SE3) *SE3 {
	var r mat.Dense
	r.Mul(t.rot, other.rot)
	return &SE3{
		rot:   &r,
		trans: mulVec3(t.rot, other.trans).Add(t.trans),
	}
}

// Inverse returns t^-1.
func (t *SE3) Inverse() *SE3 {
	var rt mat.Dense
	rt.CloneFrom(t.rot.T())
	return &SE3{
		rot:   &rt,
		trans: mulVec3(&rt, t.trans).Mul(-1),
	}
}

// Apply transforms the point p into the frame of t.
func (t *SE3) Apply(p r3.Vector) r3.Vector {
	return mulVec3(t.rot, p).Add(t.trans)
}

// Log returns the tangent vector [rho, phi] such that ExpSE3(Log(t))
// equals t.
func (t *SE3) Log() []float64 {
	phi := logSO3(t.rot)
	rho := mulVec3(invLeftJacobianSO3(phi), t.trans)
	return []float64{rho.X, rho.Y, rho.Z, phi.X, phi.Y, phi.Z}
}

// Adjoint returns the 6x6 matrix satisfying
// Exp(Adjoint(t)*xi) = t * Exp(xi) * t^-1.
func (t *SE3) Adjoint() *mat.Dense {
	ad := mat.NewDense(6, 6, nil)
	var tr mat.Dense
	tr.Mul(Skew(t.trans), t.rot)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ad.Set(i, j, t.rot.At(i, j))
			ad.Set(i, j+3, tr.At(i, j))
			ad.Set(i+3, j+3, t.rot.At(i, j))
		}
	}
	return ad
}

// Retract applies the left-multiplicative update Exp(delta) * t.
func (t *SE3) Retract(delta []float64) Element {
	return ExpSE3(delta).Compose(t)
}

// Odot returns the 3x6 matrix [I | -Skew(p)] relating a tangent perturbation
// of a transformation to the first-order motion of a transformed point:
// Exp(xi)*p ~ p + Odot(p)*xi.
func Odot(p r3.Vector) *mat.Dense {
	o := mat.NewDense(3, 6, nil)
	sk := Skew(p)
	for i := 0; i < 3; i++ {
		o.Set(i, i, 1)
		for j := 0; j < 3; j++ {
			o.Set(i, j+3, -sk.At(i, j))
		}
	}
	return o
}
